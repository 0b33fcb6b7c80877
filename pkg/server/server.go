package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"runtime/debug"

	"github.com/cgif-games/octothorpe/pkg/events"
	"github.com/cgif-games/octothorpe/pkg/proto"
	"github.com/cgif-games/octothorpe/pkg/users"
	"github.com/cgif-games/octothorpe/pkg/world"
)

const (
	greetingText    = "Please first login using command 'login [username]'"
	farewellText    = "Goodbye. Thanks for playing!"
	serverErrorText = "We experienced a critical internal error. Please contact support."
)

// Game binds the world, the user registry, the broadcaster and the active
// session set together. It is shared by the TCP listener and the
// WebSocket transport.
type Game struct {
	Conf      *GameConf
	World     *world.World
	Users     *users.Registry
	Broadcast *events.Broadcaster
	Sessions  *SessionManager
	Texts     *TextFiles
	Metrics   *Metrics
}

// NewGame assembles a game around a loaded world and registry.
func NewGame(conf *GameConf, w *world.World, reg *users.Registry) *Game {
	return &Game{
		Conf:      conf,
		World:     w,
		Users:     reg,
		Broadcast: events.NewBroadcaster(),
		Sessions:  NewSessionManager(),
		Texts:     &TextFiles{},
	}
}

// Start launches the global broadcaster loop.
func (g *Game) Start() {
	go g.Broadcast.Run()
}

// Stop halts the broadcaster and closes every active session.
func (g *Game) Stop() {
	for _, s := range g.Sessions.All() {
		s.Close()
	}
	g.Broadcast.Stop()
}

// Server is the TCP game server.
type Server struct {
	Game     *Game
	listener net.Listener
	web      *WebServer
}

// NewServer creates a server around an assembled game.
func NewServer(g *Game) *Server {
	return &Server{Game: g}
}

// Start begins listening for connections and blocks until the listener
// closes. An unbindable port is fatal to the caller.
func (s *Server) Start() error {
	g := s.Game
	g.Start()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", g.Conf.Port))
	if err != nil {
		return fmt.Errorf("server: listen on port %d: %w", g.Conf.Port, err)
	}
	s.listener = ln
	log.Printf("Listening on port %d", g.Conf.Port)

	if g.Conf.WebEnabled {
		s.web = NewWebServer(g, WebConfig{Host: g.Conf.WebHost, Port: g.Conf.WebPort})
		go func() {
			if err := s.web.Start(); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	s.acceptLoop(ln)
	return nil
}

// acceptLoop accepts connections until the listener is closed. Each
// connection gets its own reader goroutine plus a writer goroutine, with
// no pooling or cap.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.Game.HandleConn(conn)
	}
}

// Stop closes the listener, the web server, and every active session,
// then flushes the registry.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.web != nil {
		s.web.Stop()
	}
	s.Game.Stop()
	if err := s.Game.Users.Save(); err != nil {
		log.Printf("final registry save: %v", err)
	}
}

// HandleConn runs the full lifecycle of one client connection: greeting,
// command loop, and teardown. It blocks until the session ends.
func (g *Game) HandleConn(conn net.Conn) {
	id := g.Sessions.NextID()
	sess := NewSession(id, conn)
	g.Sessions.Add(sess)
	g.Broadcast.Register(id, sess.Queue)
	g.Metrics.ConnectionOpened()

	log.Printf("[%d] New connection from %s", sess.ID, sess.Addr)

	go g.RunWriter(sess)
	g.RunSession(sess)
}

// RunSession owns the inbound byte stream: it assembles line-delimited
// commands and dispatches them in arrival order. It returns when the
// client quits, the peer disconnects, or command handling faults.
func (g *Game) RunSession(sess *Session) {
	defer g.teardown(sess)

	if txt := g.Texts.GetWelcome(); txt != "" {
		sendTextLines(sess, proto.CodeSuccess, txt)
	}
	sess.Send(proto.CodeSuccess, greetingText)

	reader := proto.NewLineReader(sess)
	for {
		cmds, err := reader.ReadCommands()
		if err != nil {
			if err != io.EOF {
				log.Printf("[%d] read error: %v", sess.ID, err)
			}
			return
		}
		for _, line := range cmds {
			if !g.dispatch(sess, line) {
				return
			}
		}
	}
}

// dispatch processes one command line. It returns false when the session
// should end. Unexpected faults are contained here: they are logged,
// reported as a generic server error, and end only this session.
func (g *Game) dispatch(sess *Session, line string) (keepGoing bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%d] internal error processing %q: %v\n%s", sess.ID, line, r, debug.Stack())
			sess.Send(proto.CodeServerError, serverErrorText)
			keepGoing = false
		}
	}()
	return g.runCommand(sess, line)
}

// teardown releases everything a session holds, in order: stop receiving
// broadcasts, announce the departure, release the user binding (which
// saves the registry), drop the session, and stop its writer.
func (g *Game) teardown(sess *Session) {
	g.Broadcast.Unregister(sess.ID)
	if sess.User != nil {
		g.Broadcast.Logout(sess.User)
	}
	g.Users.Logout(sess.ID)
	g.Sessions.Remove(sess.ID)
	sess.Queue.Close()
	sess.Close()
	log.Printf("[%d] Connection closed from %s", sess.ID, sess.Addr)
}
