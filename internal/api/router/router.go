package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/gemini-bridge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gemini-bridge/internal/http/middleware"
	"github.com/wolfman30/gemini-bridge/internal/ratelimit"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	ReplyHandler   *handlers.ReplyHandler
	AdminSessions  *handlers.AdminSessionsHandler
	Health         http.Handler
	MetricsHandler http.Handler

	// AdminAuthSecret enables /admin when set.
	AdminAuthSecret string
	// ClientLimiter throttles /v1 per client IP; nil disables it.
	ClientLimiter *ratelimit.KeyedLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Method(http.MethodGet, "/health", health)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	if cfg.ReplyHandler != nil {
		r.Route("/v1", func(v1 chi.Router) {
			v1.Use(httpmiddleware.RateLimit(cfg.ClientLimiter))
			v1.Post("/reply", cfg.ReplyHandler.Reply)
		})
	}

	if cfg.AdminAuthSecret != "" && cfg.AdminSessions != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Delete("/sessions/{sessionID}", cfg.AdminSessions.Clear)
		})
	}

	return r
}
