// Package adminserver exposes the kernel's diagnostics as an HTTP and
// websocket surface: Prometheus metrics, a JSON status snapshot, and a
// live feed of script/gameplay events. This is SPEC_FULL.md §4.10's
// ambient observability layer; it carries no gameplay authority of its
// own. Grounded on the chi + cors + prometheus stack wired in
// kick-game-stream's own HTTP surface, adapted here from a stream
// ingest API into a read-only sim-diagnostics surface.
package adminserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/novaria-game/core/pkg/kernel"
)

// Metrics is the Prometheus surface this server registers and updates
// once per reported tick.
type Metrics struct {
	TickIndex           prometheus.Gauge
	LoadedChunkCount    prometheus.Gauge
	DroppedLocalCommand prometheus.Counter
	DroppedRemoteCommand prometheus.Counter
	DroppedChunkPayload prometheus.Counter
	AutoReconnectTotal  prometheus.Counter
}

// NewMetrics registers and returns a fresh Metrics set against reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		TickIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "novaria", Name: "tick_index", Help: "Current simulation tick index.",
		}),
		LoadedChunkCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "novaria", Name: "loaded_chunk_count", Help: "Number of chunks currently realized in the world service.",
		}),
		DroppedLocalCommand: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "novaria", Name: "dropped_local_command_total", Help: "Local commands dropped due to queue overflow.",
		}),
		DroppedRemoteCommand: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "novaria", Name: "dropped_remote_command_total", Help: "Remote commands dropped for malformed payloads.",
		}),
		DroppedChunkPayload: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "novaria", Name: "dropped_chunk_payload_total", Help: "Remote chunk payloads dropped for malformed payloads.",
		}),
		AutoReconnectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "novaria", Name: "auto_reconnect_total", Help: "Auto-reconnect attempts issued by the kernel.",
		}),
	}
	reg.MustRegister(m.TickIndex, m.LoadedChunkCount, m.DroppedLocalCommand, m.DroppedRemoteCommand, m.DroppedChunkPayload, m.AutoReconnectTotal)
	return m
}

// sample pushes the kernel's current counters into the gauges/counters.
// Counters only move forward, so we track the last observed value and
// add the delta (kernel.Diagnostics reports running totals, not deltas).
type counterState struct {
	lastDroppedLocal, lastDroppedRemote, lastDroppedChunk, lastAutoReconnect uint64
}

func (m *Metrics) sample(k *kernel.Kernel, state *counterState) {
	diag := k.Diagnostics()
	m.TickIndex.Set(float64(diag.TickIndex))
	m.LoadedChunkCount.Set(float64(k.World().LoadedChunkCount()))
	m.DroppedLocalCommand.Add(float64(diag.DroppedLocalCommandCount - state.lastDroppedLocal))
	m.DroppedRemoteCommand.Add(float64(diag.DroppedRemoteCommandCount - state.lastDroppedRemote))
	m.DroppedChunkPayload.Add(float64(diag.DroppedChunkPayloadCount - state.lastDroppedChunk))
	m.AutoReconnectTotal.Add(float64(diag.AutoReconnectCount - state.lastAutoReconnect))
	state.lastDroppedLocal = diag.DroppedLocalCommandCount
	state.lastDroppedRemote = diag.DroppedRemoteCommandCount
	state.lastDroppedChunk = diag.DroppedChunkPayloadCount
	state.lastAutoReconnect = diag.AutoReconnectCount
}

// StatusSnapshot is the JSON body served by GET /status.
type StatusSnapshot struct {
	TickIndex        uint64  `json:"tick_index"`
	LoadedChunkCount int     `json:"loaded_chunk_count"`
	WoodCollected    uint32  `json:"wood_collected"`
	StoneCollected   uint32  `json:"stone_collected"`
	WorkbenchBuilt   bool    `json:"workbench_built"`
	SwordCrafted     bool    `json:"sword_crafted"`
	EnemyKillCount   uint32  `json:"enemy_kill_count"`
	BossHealth       int32   `json:"boss_health"`
	BossDefeated     bool    `json:"boss_defeated"`
	PlayableLoop     bool    `json:"playable_loop_complete"`
	Fingerprint      uint64  `json:"world_fingerprint"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves diagnostics for a single kernel instance.
type Server struct {
	kernel  *kernel.Kernel
	metrics *Metrics
	logger  *zap.SugaredLogger

	httpServer *http.Server

	mu       sync.Mutex
	feedConns map[*websocket.Conn]struct{}
}

// Config configures the admin HTTP surface.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// New builds (but does not start) an admin server bound to k.
func New(cfg Config, k *kernel.Kernel, reg *prometheus.Registry, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		kernel:    k,
		metrics:   NewMetrics(reg),
		logger:    logger,
		feedConns: make(map[*websocket.Conn]struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/status", s.handleStatus)
	r.Get("/feed", s.handleFeed)

	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.kernel.Ruleset().Progress()
	snap := StatusSnapshot{
		TickIndex:        s.kernel.Diagnostics().TickIndex,
		LoadedChunkCount: s.kernel.World().LoadedChunkCount(),
		WoodCollected:    p.WoodCollected,
		StoneCollected:   p.StoneCollected,
		WorkbenchBuilt:   p.WorkbenchBuilt,
		SwordCrafted:     p.SwordCrafted,
		EnemyKillCount:   p.EnemyKillCount,
		BossHealth:       p.BossHealth,
		BossDefeated:     p.BossDefeated,
		PlayableLoop:     p.PlayableLoopComplete,
		Fingerprint:      s.kernel.World().Fingerprint(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("feed upgrade failed", "error", err)
		return
	}
	s.mu.Lock()
	s.feedConns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.feedConns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// The feed is push-only; drain and discard client frames so the
	// connection's read deadline keeps getting reset by gorilla's
	// internal pong handling.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BroadcastEvents fans a batch of kernel.ScriptEvent names out to every
// connected feed client as newline-delimited JSON.
func (s *Server) BroadcastEvents(events []kernel.ScriptEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range events {
		msg, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		for conn := range s.feedConns {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debugw("feed write failed", "error", err)
			}
		}
	}
}

// SampleMetrics pushes the kernel's current counters into Prometheus.
// Call this once per reported tick (typically from the same loop that
// calls kernel.Update, not from inside it, since the kernel itself has
// no HTTP/metrics dependency).
func (s *Server) SampleMetrics(state *counterState) {
	s.metrics.sample(s.kernel, state)
}

// NewCounterState constructs a zeroed delta-tracking state for
// SampleMetrics.
func NewCounterState() *counterState { return &counterState{} }

// ListenAndServe starts the HTTP server; blocks until Shutdown or error.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and closes feed connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.feedConns {
		conn.Close()
	}
	s.feedConns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}
