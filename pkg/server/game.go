package server

import (
	"fmt"
	"strings"

	"github.com/cgif-games/octothorpe/pkg/events"
	"github.com/cgif-games/octothorpe/pkg/proto"
	"github.com/cgif-games/octothorpe/pkg/world"
)

// directions maps the full direction names to their unit offsets. North
// is up the grid (decreasing row).
var directions = []struct {
	name   string
	offset world.Point
}{
	{"north", world.Point{X: 0, Y: -1}},
	{"south", world.Point{X: 0, Y: 1}},
	{"east", world.Point{X: 1, Y: 0}},
	{"west", world.Point{X: -1, Y: 0}},
}

// resolveDirection matches a token as a prefix of a direction name, so
// "n", "no" and "north" all resolve. The four names have distinct first
// letters, so a prefix is never ambiguous.
func resolveDirection(tok string) (string, world.Point, bool) {
	if tok == "" {
		return "", world.Point{}, false
	}
	for _, d := range directions {
		if strings.HasPrefix(d.name, tok) {
			return d.name, d.offset, true
		}
	}
	return "", world.Point{}, false
}

// cmdMove applies a one-cell move for the session's user, collecting any
// treasure on the destination cell and hinting at treasures inside the
// fog-of-war radius.
func cmdMove(g *Game, s *Session, args []string) bool {
	if len(args) != 2 {
		s.Send(proto.CodeUserError, "Invalid move command. Use format: 'move [direction]'")
		return true
	}
	name, off, ok := resolveDirection(args[1])
	if !ok {
		s.Send(proto.CodeUserError, fmt.Sprintf("invalid direction '%s'", args[1]))
		return true
	}

	u := s.User
	pos := u.Position()
	cand := world.Point{X: pos.X + off.X, Y: pos.Y + off.Y}
	if !g.World.IsWalkable(cand) {
		s.Queue.Push(events.Event{Type: events.EvMoveFail, User: u, Text: name})
		return true
	}

	u.SetPosition(cand)
	for _, td := range g.World.Nearby(cand, g.Conf.FOWRadius) {
		if td.Distance == 0 {
			// First successful removal wins; a racing session's nearby
			// query simply no longer sees this treasure.
			if g.World.Collect(td.Treasure.ID) {
				u.AddScore(td.Treasure.Score)
				g.Metrics.TreasureCollected()
				s.Queue.Push(events.Event{Type: events.EvFound, User: u, Treasure: td.Treasure})
				g.Broadcast.Collected(s.ID, u, td.Treasure)
			}
		} else {
			s.Queue.Push(events.Event{Type: events.EvNearby, User: u, Treasure: td.Treasure})
		}
	}
	s.Queue.Push(events.Event{Type: events.EvMoveAck, User: u, Text: name})
	g.Broadcast.Move(s.ID, u)
	return true
}

// cmdMap queues a map render; the writer reconstructs it from current
// state at send time.
func cmdMap(g *Game, s *Session, args []string) bool {
	s.Queue.Push(events.Event{Type: events.EvMapReq, User: s.User})
	return true
}

// cmdCheatMap is the undocumented debug variant of map with every active
// treasure's score overlaid.
func cmdCheatMap(g *Game, s *Session, args []string) bool {
	s.Queue.Push(events.Event{Type: events.EvCheatMapReq, User: s.User})
	return true
}
