package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebConfig holds the HTTP sidecar's bind address.
type WebConfig struct {
	Host string
	Port int
}

// WebServer exposes the game over HTTP: a WebSocket endpoint speaking the
// same line protocol as the TCP listener, Prometheus metrics, and a
// health check.
type WebServer struct {
	game     *Game
	conf     WebConfig
	srv      *http.Server
	upgrader websocket.Upgrader
	started  time.Time
}

// NewWebServer builds the sidecar and wires the game's metrics.
func NewWebServer(g *Game, conf WebConfig) *WebServer {
	ws := &WebServer{
		game: g,
		conf: conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
	if g.Metrics == nil {
		g.Metrics = NewMetrics(g, ws.started)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", ws.handleWS)
	mux.Handle("GET /metrics", g.Metrics.Handler())
	mux.HandleFunc("GET /health", ws.handleHealth)

	ws.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler: mux,
	}
	return ws
}

// Start serves HTTP until Stop is called.
func (ws *WebServer) Start() error {
	log.Printf("Web server listening on %s", ws.srv.Addr)
	if err := ws.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (ws *WebServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.srv.Shutdown(ctx); err != nil {
		log.Printf("web server shutdown: %v", err)
	}
}

// handleWS upgrades the connection and hands it to the same session
// lifecycle the TCP listener uses, via a net.Conn adapter.
func (ws *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	ws.game.HandleConn(newWSConn(conn))
}

// handleHealth reports liveness plus a few cheap counters.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"uptime":   time.Since(ws.started).Round(time.Second).String(),
		"players":  ws.game.Users.ActiveCount(),
		"sessions": ws.game.Sessions.Count(),
	})
}

// wsConn adapts a websocket connection to net.Conn so websocket clients
// share the session code path. Each inbound text message is treated as
// one command line; the line reader's CRLF framing is restored by
// appending the terminator to every message.
type wsConn struct {
	ws *websocket.Conn

	mu      sync.Mutex // serializes writes
	pending []byte     // unread tail of the current message
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{ws: c}
}

func (c *wsConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		_, r, err := c.ws.NextReader()
		if err != nil {
			return 0, io.EOF
		}
		msg, err := io.ReadAll(r)
		if err != nil {
			return 0, io.EOF
		}
		c.pending = append(msg, '\r', '\n')
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error                { return c.ws.Close() }
func (c *wsConn) LocalAddr() net.Addr         { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr        { return c.ws.RemoteAddr() }
func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
