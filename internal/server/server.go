package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/nudge/internal/handler"
	"github.com/dukerupert/nudge/internal/metrics"
	"github.com/dukerupert/nudge/internal/middleware"
	"github.com/dukerupert/nudge/internal/registry"
	"github.com/dukerupert/nudge/internal/sweep"
	ws "github.com/dukerupert/nudge/internal/websocket"
)

type Config struct {
	StaticDir string
	SweepAuth middleware.SweepAuthConfig
	// Per-client limit on the sweep endpoint.
	RateLimit float64
	RateBurst int
	Now       func() time.Time
}

type Server struct {
	cfg         Config
	hub         *ws.Hub
	reminderH   *handler.ReminderHandler
	sweepH      *handler.SweepHandler
	statusH     *handler.StatusHandler
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(cfg Config, reg *registry.Registry, engine *sweep.Engine, hub *ws.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}

	return &Server{
		cfg:         cfg,
		hub:         hub,
		reminderH:   handler.NewReminderHandler(reg, hub, logger.With("component", "reminder")),
		sweepH:      handler.NewSweepHandler(engine, cfg.Now, logger.With("component", "sweep_handler")),
		statusH:     handler.NewStatusHandler(reg, cfg.Now, logger.With("component", "status")),
		metrics:     m,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /status", s.statusH.Get)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.hub != nil {
		mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
	}

	// Reminder API
	mux.HandleFunc("GET /reminders", s.reminderH.List)
	mux.HandleFunc("GET /reminders/{id}", s.reminderH.Get)
	mux.HandleFunc("POST /reminders", s.reminderH.Upsert)
	mux.HandleFunc("DELETE /reminders", s.reminderH.Cancel)
	mux.HandleFunc("DELETE /reminders/{id}", s.reminderH.Cancel)

	// Sweep trigger: rate limit first so bad credentials are throttled too
	sweepAuth := middleware.RequireSweepAuth(s.cfg.SweepAuth, s.logger.With("component", "sweep_auth"))
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	mux.Handle("POST /sweep", rl(sweepAuth(http.HandlerFunc(s.sweepH.Run))))

	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
