package server

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/cgif-games/octothorpe/pkg/events"
	"github.com/cgif-games/octothorpe/pkg/proto"
	"github.com/cgif-games/octothorpe/pkg/users"
)

// RunWriter drains the session's private queue and serializes each event
// onto the wire. One per session; exits when the queue closes at
// teardown.
func (g *Game) RunWriter(s *Session) {
	for {
		ev, ok := s.Queue.Pop()
		if !ok {
			return
		}
		g.writeEvent(s, ev)
	}
}

// writeEvent encodes one event per the wire protocol. The switch is
// exhaustive over the event set; anything else is logged and dropped,
// never sent to the client.
func (g *Game) writeEvent(s *Session, ev events.Event) {
	switch ev.Type {
	case events.EvLoginSync:
		// Full map with dimensions header, then a snapshot line per
		// currently active other user, then the join is relayed
		// server-wide.
		rows, cols := g.World.Size()
		s.Send(proto.CodeMap, fmt.Sprintf("(%d, %d)", rows, cols))
		for _, row := range g.World.Rows() {
			s.Send(proto.CodeMap, row)
		}
		for _, u := range g.Users.ActiveUsers() {
			if u == ev.User {
				continue
			}
			p := u.Position()
			s.Send(proto.CodePlayerUpdate, fmt.Sprintf("%s, %d, %d, %d",
				u.Username(), p.X, p.Y, u.Score()))
		}
		g.Broadcast.Login(s.ID, ev.User)

	case events.EvMapReq:
		for _, row := range g.renderMap(ev.User, false) {
			s.Send(proto.CodeMap, row)
		}

	case events.EvCheatMapReq:
		for _, row := range g.renderMap(ev.User, true) {
			s.Send(proto.CodeMap, row)
		}

	case events.EvNearby:
		t := ev.Treasure
		s.Send(proto.CodeTreasureProximity, fmt.Sprintf("%d, %d, %d", t.ID, t.Pos.X, t.Pos.Y))

	case events.EvFound, events.EvTaken:
		t := ev.Treasure
		s.Send(proto.CodeTreasureUpdate, fmt.Sprintf("%s, %d, %d",
			ev.User.Username(), t.ID, t.Score))

	case events.EvMoveAck:
		s.Send(proto.CodeSuccess, "move "+ev.Text)

	case events.EvMoveFail:
		s.Send(proto.CodeUserError, "move "+ev.Text+" unsuccessful")

	case events.EvJoined:
		p := ev.User.Position()
		s.Send(proto.CodePlayerUpdate, fmt.Sprintf("%s, %d, %d, %d, joined the game",
			ev.User.Username(), p.X, p.Y, ev.User.Score()))

	case events.EvLeft:
		// Position is reported as an out-of-bounds sentinel.
		s.Send(proto.CodePlayerUpdate, fmt.Sprintf("%s, -1, -1, %d, left the game",
			ev.User.Username(), ev.User.Score()))

	case events.EvMoved:
		p := ev.User.Position()
		s.Send(proto.CodePlayerUpdate, fmt.Sprintf("%s, %d, %d, %d",
			ev.User.Username(), p.X, p.Y, ev.User.Score()))

	default:
		log.Printf("[%d] dropping invalid event [%s]", s.ID, ev.Type)
	}
}

// renderMap rebuilds the annotated map from current world and registry
// state. Never cached: other users may have moved and treasures may be
// gone since the command was issued.
func (g *Game) renderMap(u *users.User, cheat bool) []string {
	src := g.World.Rows()
	rows := make([]string, len(src))
	copy(rows, src)

	if cheat {
		for _, t := range g.World.Treasures() {
			overlay(rows, t.Pos.X, t.Pos.Y, strconv.Itoa(t.Score))
		}
	}
	p := u.Position()
	marker := strings.ToUpper(u.Username()[:1])
	overlay(rows, p.X, p.Y, marker)
	return rows
}

// overlay writes text into a row starting at column x, clipped to the
// row's bounds.
func overlay(rows []string, x, y int, text string) {
	if y < 0 || y >= len(rows) {
		return
	}
	row := rows[y]
	if x < 0 || x >= len(row) {
		return
	}
	end := x + len(text)
	if end > len(row) {
		end = len(row)
		text = text[:end-x]
	}
	rows[y] = row[:x] + text + row[end:]
}
