package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server. A nil
// *Metrics is valid and turns every recording call into a no-op, so the
// game runs identically with the web sidecar disabled.
type Metrics struct {
	game      *Game
	startTime time.Time

	playersConnected   prometheus.Gauge
	sessionsOpen       prometheus.Gauge
	treasuresRemaining prometheus.Gauge
	connectionsTotal   prometheus.Counter
	commandsTotal      prometheus.Counter
	treasuresCollected prometheus.Counter
	uptimeSeconds      prometheus.Gauge
	goroutines         prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "octothorpe_players_connected",
			Help: "Number of currently logged-in players.",
		}),
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "octothorpe_sessions_open",
			Help: "Number of open connections, logged in or not.",
		}),
		treasuresRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "octothorpe_treasures_remaining",
			Help: "Active treasures left on the map.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octothorpe_connections_total",
			Help: "Total connections since server start.",
		}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octothorpe_commands_processed_total",
			Help: "Total commands processed since server start.",
		}),
		treasuresCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octothorpe_treasures_collected_total",
			Help: "Treasures collected since server start.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "octothorpe_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "octothorpe_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.playersConnected,
		m.sessionsOpen,
		m.treasuresRemaining,
		m.connectionsTotal,
		m.commandsTotal,
		m.treasuresCollected,
		m.uptimeSeconds,
		m.goroutines,
	)

	return m
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
}

// CommandProcessed records one dispatched command.
func (m *Metrics) CommandProcessed() {
	if m == nil {
		return
	}
	m.commandsTotal.Inc()
}

// TreasureCollected records a successful treasure claim.
func (m *Metrics) TreasureCollected() {
	if m == nil {
		return
	}
	m.treasuresCollected.Inc()
}

// Update refreshes all gauges from current game state.
func (m *Metrics) Update() {
	m.playersConnected.Set(float64(m.game.Users.ActiveCount()))
	m.sessionsOpen.Set(float64(m.game.Sessions.Count()))
	m.treasuresRemaining.Set(float64(m.game.World.Count()))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates gauges before serving.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}
