package server

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cgif-games/octothorpe/pkg/events"
	"github.com/cgif-games/octothorpe/pkg/proto"
	"github.com/cgif-games/octothorpe/pkg/users"
)

// cmdFunc handles one parsed command. It returns false to end the session.
type cmdFunc func(g *Game, s *Session, args []string) bool

// The command tables are static per protocol state: operation name to
// handler, validated before dispatch. cheatmap stays out of the
// advertised operation lists.
var (
	loginCommands = map[string]cmdFunc{
		"login": cmdLogin,
		"quit":  cmdQuit,
	}
	playCommands = map[string]cmdFunc{
		"move":     cmdMove,
		"map":      cmdMap,
		"cheatmap": cmdCheatMap,
		"quit":     cmdQuit,
		"login":    cmdLogin,
	}

	loginOps = []string{"quit", "login"}
	playOps  = []string{"move", "map", "quit", "login"}
)

// runCommand tokenizes and routes one command line through the table for
// the session's current state.
func (g *Game) runCommand(s *Session, line string) bool {
	args := proto.Tokenize(line)
	if len(args) == 0 {
		// A blank line still names an operation: the empty one, which is
		// rejected like any other unknown token.
		args = []string{""}
	}
	s.LastCmd = time.Now()
	s.CmdCount++
	g.Metrics.CommandProcessed()

	table, ops := loginCommands, loginOps
	if s.State == ConnPlaying {
		table, ops = playCommands, playOps
	}

	handler, ok := table[args[0]]
	if !ok {
		s.Send(proto.CodeUserError, fmt.Sprintf("Invalid operation '%s'. Allowed operations: [%s]",
			args[0], strings.Join(ops, ",")))
		return true
	}
	return handler(g, s, args)
}

// cmdLogin binds the session to a user and starts gameplay. A session
// never re-authenticates: once playing, login is rejected outright.
func cmdLogin(g *Game, s *Session, args []string) bool {
	if s.User != nil {
		s.Send(proto.CodeUserError, "You're already logged in!")
		return true
	}
	if len(args) != 2 {
		s.Send(proto.CodeUserError, "Invalid login command. Use format: 'login [username]'")
		return true
	}

	username := args[1]
	u, isNew, err := g.Users.Login(s.ID, username)
	switch {
	case errors.Is(err, users.ErrInvalidUsername):
		s.Send(proto.CodeUserError, "Invalid username")
		return true
	case errors.Is(err, users.ErrUsernameActive):
		s.Send(proto.CodeUserError, fmt.Sprintf("Username [%s] is already logged in", username))
		return true
	case err != nil:
		log.Printf("[%d] login %q: %v", s.ID, username, err)
		s.Send(proto.CodeServerError, serverErrorText)
		return false
	}

	s.User = u
	s.State = ConnPlaying
	log.Printf("[%d] Client at %s logged in as user %s", s.ID, s.Addr, u.Username())

	if isNew {
		s.Send(proto.CodeSuccess, fmt.Sprintf("Welcome new user %s!", u.Username()))
	} else {
		s.Send(proto.CodeSuccess, fmt.Sprintf("Welcome back %s!", u.Username()))
	}
	if txt := g.Texts.GetMotd(); txt != "" {
		sendTextLines(s, proto.CodeSuccess, txt)
	}

	// The writer sends the map and player snapshot, then relays the join
	// to everyone else.
	s.Queue.Push(events.Event{Type: events.EvLoginSync, User: u})
	return true
}

// cmdQuit says goodbye and signals end-of-session.
func cmdQuit(g *Game, s *Session, args []string) bool {
	if txt := g.Texts.GetQuit(); txt != "" {
		sendTextLines(s, proto.CodeSuccess, txt)
	} else {
		s.Send(proto.CodeSuccess, farewellText)
	}
	return false
}

// sendTextLines writes a multi-line text file as individual protocol
// lines under one code.
func sendTextLines(s *Session, code int, txt string) {
	for _, line := range strings.Split(strings.TrimRight(txt, "\n"), "\n") {
		s.Send(code, strings.TrimRight(line, "\r"))
	}
}
