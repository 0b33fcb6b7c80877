package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cgif-games/octothorpe/pkg/users"
	"github.com/cgif-games/octothorpe/pkg/world"
)

// testMap has the spawn at (1,1), a wall directly south of it, and open
// floor to the east.
var testMap = []string{
	"#######",
	"#S    #",
	"##    #",
	"#     #",
	"#######",
}

func newTestGame(t *testing.T) *Game {
	t.Helper()
	w := world.New(testMap)
	store := users.NewJSONStore(filepath.Join(t.TempDir(), "users.json"))
	reg, err := users.NewRegistry(store, w.Spawn())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	g := NewGame(DefaultGameConf(), w, reg)
	g.Start()
	t.Cleanup(g.Stop)
	return g
}

// testClient drives one end of an in-memory connection whose other end
// runs the full session lifecycle.
type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialTestGame(t *testing.T, g *Game) *testClient {
	t.Helper()
	client, server := net.Pipe()
	go g.HandleConn(server)
	t.Cleanup(func() { client.Close() })
	return &testClient{conn: client, r: bufio.NewReader(client)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) readLine(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func (c *testClient) expect(t *testing.T, want string) {
	t.Helper()
	if got := c.readLine(t); got != want {
		t.Fatalf("read %q, want %q", got, want)
	}
}

// login drives a client through the greeting and login exchange,
// consuming the map dump and any snapshot lines for already-active users.
func (c *testClient) login(t *testing.T, g *Game, username string) {
	t.Helper()
	c.expect(t, "200:Please first login using command 'login [username]'")
	others := g.Users.ActiveCount()
	c.send(t, "login "+username)
	c.expect(t, "200:Welcome new user "+username+"!")
	c.expect(t, "104:(5, 7)")
	for _, row := range testMap {
		c.expect(t, "104:"+row)
	}
	for i := 0; i < others; i++ {
		if got := c.readLine(t); !strings.HasPrefix(got, "101:") {
			t.Fatalf("snapshot line = %q, want 101 player update", got)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	g := newTestGame(t)
	c := dialTestGame(t, g)

	c.login(t, g, "alice")

	if g.Users.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", g.Users.ActiveCount())
	}
	u := g.Users.ByUsername("alice")
	if u == nil {
		t.Fatal("alice not registered")
	}
	if p := u.Position(); p != g.World.Spawn() {
		t.Fatalf("position = %v, want spawn %v", p, g.World.Spawn())
	}

	c.send(t, "login bob")
	c.expect(t, "400:You're already logged in!")
}

func TestLoginErrors(t *testing.T) {
	g := newTestGame(t)

	a := dialTestGame(t, g)
	a.login(t, g, "alice")

	b := dialTestGame(t, g)
	b.expect(t, "200:Please first login using command 'login [username]'")

	b.send(t, "login")
	b.expect(t, "400:Invalid login command. Use format: 'login [username]'")

	b.send(t, "login alice bob")
	b.expect(t, "400:Invalid login command. Use format: 'login [username]'")

	b.send(t, "login alice")
	b.expect(t, "400:Username [alice] is already logged in")

	b.send(t, "move north")
	b.expect(t, "400:Invalid operation 'move'. Allowed operations: [quit,login]")
}

func TestMove(t *testing.T) {
	g := newTestGame(t)
	c := dialTestGame(t, g)
	c.login(t, g, "alice")

	c.send(t, "move east")
	c.expect(t, "200:move east")
	if p := g.Users.ByUsername("alice").Position(); p != (world.Point{X: 2, Y: 1}) {
		t.Fatalf("position after move east = %v", p)
	}

	// Wall directly north of the spawn row.
	c.send(t, "move north")
	c.expect(t, "400:move north unsuccessful")

	// Directions resolve by prefix.
	c.send(t, "move w")
	c.expect(t, "200:move west")

	c.send(t, "move up")
	c.expect(t, "400:invalid direction 'up'")

	c.send(t, "move")
	c.expect(t, "400:Invalid move command. Use format: 'move [direction]'")
}

func TestEmptyCommandLine(t *testing.T) {
	g := newTestGame(t)
	c := dialTestGame(t, g)
	c.expect(t, "200:Please first login using command 'login [username]'")

	c.send(t, "")
	c.expect(t, "400:Invalid operation ''. Allowed operations: [quit,login]")

	c.send(t, "   ")
	c.expect(t, "400:Invalid operation ''. Allowed operations: [quit,login]")
}

// brokenWriteConn blocks reads until closed and fails every write.
type brokenWriteConn struct {
	once   sync.Once
	closed chan struct{}
}

func newBrokenWriteConn() *brokenWriteConn {
	return &brokenWriteConn{closed: make(chan struct{})}
}

func (c *brokenWriteConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *brokenWriteConn) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func (c *brokenWriteConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *brokenWriteConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *brokenWriteConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *brokenWriteConn) SetDeadline(t time.Time) error      { return nil }
func (c *brokenWriteConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *brokenWriteConn) SetWriteDeadline(t time.Time) error { return nil }

func TestWriteFailureTearsDownSession(t *testing.T) {
	g := newTestGame(t)

	// The greeting write fails immediately; that must close the
	// connection, unblock the reader and run the full teardown.
	done := make(chan struct{})
	go func() {
		g.HandleConn(newBrokenWriteConn())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session not torn down after write failure")
	}
	if n := g.Sessions.Count(); n != 0 {
		t.Fatalf("Sessions.Count after write failure = %d, want 0", n)
	}
}

func TestInvalidOperationWhilePlaying(t *testing.T) {
	g := newTestGame(t)
	c := dialTestGame(t, g)
	c.login(t, g, "alice")

	c.send(t, "fly north")
	c.expect(t, "400:Invalid operation 'fly'. Allowed operations: [move,map,quit,login]")
}

func TestTreasureCollection(t *testing.T) {
	g := newTestGame(t)
	g.World.Place(world.Treasure{ID: 3, Pos: world.Point{X: 2, Y: 1}, Score: 7})

	a := dialTestGame(t, g)
	a.login(t, g, "alice")

	b := dialTestGame(t, g)
	b.login(t, g, "bob")

	// alice sees bob join before anything else.
	a.expect(t, "101:bob, 1, 1, 0, joined the game")

	a.send(t, "move east")
	a.expect(t, "103:alice, 3, 7")
	a.expect(t, "200:move east")

	b.expect(t, "103:alice, 3, 7")
	b.expect(t, "101:alice, 2, 1, 7")

	if got := g.Users.ByUsername("alice").Score(); got != 7 {
		t.Fatalf("alice score = %d, want 7", got)
	}
	if g.World.Count() != 0 {
		t.Fatalf("treasure count = %d, want 0", g.World.Count())
	}

	// The treasure is gone for good: stepping off and back on scores nothing.
	a.send(t, "move west")
	a.expect(t, "200:move west")
	a.send(t, "move east")
	a.expect(t, "200:move east")
	if got := g.Users.ByUsername("alice").Score(); got != 7 {
		t.Fatalf("alice score after revisit = %d, want 7", got)
	}
}

func TestTreasureProximityHint(t *testing.T) {
	g := newTestGame(t)
	// Two cells east of the spawn: distance 1 after one move east.
	g.World.Place(world.Treasure{ID: 0, Pos: world.Point{X: 3, Y: 1}, Score: 4})

	c := dialTestGame(t, g)
	c.login(t, g, "alice")

	c.send(t, "move east")
	c.expect(t, "102:0, 3, 1")
	c.expect(t, "200:move east")
}

func TestQuit(t *testing.T) {
	g := newTestGame(t)

	a := dialTestGame(t, g)
	a.login(t, g, "alice")

	b := dialTestGame(t, g)
	b.login(t, g, "bob")
	a.expect(t, "101:bob, 1, 1, 0, joined the game")

	b.send(t, "quit")
	b.expect(t, "200:Goodbye. Thanks for playing!")

	a.expect(t, "101:bob, -1, -1, 0, left the game")

	// The server closes its end after the farewell.
	b.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := b.r.ReadString('\n'); err != io.EOF {
		t.Fatalf("read after quit: err = %v, want io.EOF", err)
	}
}

func TestDisconnectAnnounced(t *testing.T) {
	g := newTestGame(t)

	a := dialTestGame(t, g)
	a.login(t, g, "alice")

	b := dialTestGame(t, g)
	b.login(t, g, "bob")
	a.expect(t, "101:bob, 1, 1, 0, joined the game")

	b.conn.Close()
	a.expect(t, "101:bob, -1, -1, 0, left the game")

	// The departure broadcast can land before teardown finishes unbinding.
	deadline := time.Now().Add(2 * time.Second)
	for g.Users.ActiveCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("ActiveCount after disconnect = %d, want 1", g.Users.ActiveCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMoveBroadcast(t *testing.T) {
	g := newTestGame(t)

	a := dialTestGame(t, g)
	a.login(t, g, "alice")

	b := dialTestGame(t, g)
	b.login(t, g, "bob")
	a.expect(t, "101:bob, 1, 1, 0, joined the game")

	a.send(t, "move south")
	// South of the spawn is a wall; nothing is broadcast for a failed move.
	a.expect(t, "400:move south unsuccessful")

	a.send(t, "move east")
	a.expect(t, "200:move east")
	b.expect(t, "101:alice, 2, 1, 0")
}

func TestRenderMap(t *testing.T) {
	g := newTestGame(t)
	g.World.Place(world.Treasure{ID: 0, Pos: world.Point{X: 4, Y: 3}, Score: 9})

	u, _, err := g.Users.Login(1, "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	plain := g.renderMap(u, false)
	want := []string{
		"#######",
		"#A    #",
		"##    #",
		"#     #",
		"#######",
	}
	for i, row := range want {
		if plain[i] != row {
			t.Errorf("map row %d = %q, want %q", i, plain[i], row)
		}
	}

	cheat := g.renderMap(u, true)
	if cheat[3] != "#   9 #" {
		t.Errorf("cheat row 3 = %q, want %q", cheat[3], "#   9 #")
	}
	if cheat[1] != "#A    #" {
		t.Errorf("cheat row 1 = %q, want %q", cheat[1], "#A    #")
	}

	// The source rows are never mutated by rendering.
	if g.World.Rows()[1] != "#S    #" {
		t.Errorf("world row mutated: %q", g.World.Rows()[1])
	}
}

func TestMapCommand(t *testing.T) {
	g := newTestGame(t)
	c := dialTestGame(t, g)
	c.login(t, g, "alice")

	c.send(t, "map")
	c.expect(t, "104:#######")
	c.expect(t, "104:#A    #")
	c.expect(t, "104:##    #")
	c.expect(t, "104:#     #")
	c.expect(t, "104:#######")
}
