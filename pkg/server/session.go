package server

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/cgif-games/octothorpe/pkg/events"
	"github.com/cgif-games/octothorpe/pkg/proto"
	"github.com/cgif-games/octothorpe/pkg/users"
)

// ConnState tracks the protocol state of a connection. There is no
// transition back from ConnPlaying; teardown is terminal.
type ConnState int

const (
	ConnLogin   ConnState = iota // awaiting login
	ConnPlaying                  // authenticated, gameplay commands legal
)

// Session is one connected client's server-side state: the socket, the
// optional bound user, and the private outbound event queue drained by
// the session's writer goroutine.
type Session struct {
	ID       int
	Conn     net.Conn
	Addr     string
	State    ConnState
	User     *users.User
	Queue    *events.Queue
	ConnTime time.Time
	LastCmd  time.Time
	CmdCount int

	mu        sync.Mutex
	closed    bool
	bytesSent int
	bytesRecv int
}

// NewSession wraps an accepted connection.
func NewSession(id int, conn net.Conn) *Session {
	now := time.Now()
	return &Session{
		ID:       id,
		Conn:     conn,
		Addr:     conn.RemoteAddr().String(),
		State:    ConnLogin,
		Queue:    events.NewQueue(),
		ConnTime: now,
		LastCmd:  now,
	}
}

// Send serializes one protocol line and writes it to the client. Both the
// reader goroutine (synchronous responses) and the writer goroutine
// (queued events) call this, so writes are serialized under the lock.
func (s *Session) Send(code int, msg string) {
	s.write(proto.Response(code, msg))
}

// write pushes bytes to the client. A failed write closes the connection
// so the blocked reader unblocks and runs the normal teardown; only this
// session is affected.
func (s *Session) write(b []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	n, err := s.Conn.Write(b)
	s.bytesSent += n
	if err != nil {
		s.closed = true
		s.Conn.Close()
		s.mu.Unlock()
		log.Printf("[%d] write error: %v", s.ID, err)
		return
	}
	s.mu.Unlock()
}

// Read implements io.Reader for the protocol line reader.
func (s *Session) Read(p []byte) (int, error) {
	n, err := s.Conn.Read(p)
	s.mu.Lock()
	s.bytesRecv += n
	s.mu.Unlock()
	return n, err
}

// Write implements io.Writer; the line reader uses it for backspace echo.
func (s *Session) Write(p []byte) (int, error) {
	s.write(p)
	return len(p), nil
}

// Close shuts down the connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.Conn.Close()
	}
}

// IsClosed reports whether the connection has been closed.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// BytesSent returns the total bytes written to this connection.
func (s *Session) BytesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}

// SessionManager tracks all active sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int]*Session
	nextID   int
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[int]*Session),
		nextID:   1,
	}
}

// NextID returns the next session id.
func (sm *SessionManager) NextID() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	id := sm.nextID
	sm.nextID++
	return id
}

// Add registers a session.
func (sm *SessionManager) Add(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.ID] = s
}

// Remove unregisters a session.
func (sm *SessionManager) Remove(id int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// All returns a snapshot of the active sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
