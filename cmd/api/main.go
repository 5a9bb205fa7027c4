package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/gemini-bridge/internal/api/router"
	"github.com/wolfman30/gemini-bridge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/gemini-bridge/internal/config"
	"github.com/wolfman30/gemini-bridge/internal/http/handlers"
	"github.com/wolfman30/gemini-bridge/internal/observability/metrics"
	"github.com/wolfman30/gemini-bridge/internal/ratelimit"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting gemini-bridge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"model", cfg.Model,
		"session_store", cfg.SessionStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := setupServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server stopped")
}

// setupServer wires sessions, the bot and the HTTP surface. cleanup releases
// the session backend and must run after the server has stopped.
func setupServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*http.Server, func(), error) {
	backend, err := bootstrap.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	sessions := bootstrap.BuildSessionManager(backend.Store, cfg, logger)

	metricsHandler, botMetrics := setupBotMetrics()
	bot, err := bootstrap.BuildBot(ctx, cfg, sessions, botMetrics, logger)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	checks := map[string]handlers.HealthCheck{}
	if backend.Ping != nil {
		checks["sessions"] = backend.Ping
	}

	var clientLimiter *ratelimit.KeyedLimiter
	if cfg.HTTPRateLimitRPS > 0 {
		clientLimiter = ratelimit.NewKeyedLimiter(cfg.HTTPRateLimitRPS, cfg.HTTPRateLimitBurst, 10*time.Minute)
		go clientLimiter.RunSweeper(ctx, 5*time.Minute)
	}

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	r := router.New(&router.Config{
		Logger:          logger,
		ReplyHandler:    handlers.NewReplyHandler(bot, logger),
		AdminSessions:   handlers.NewAdminSessionsHandler(sessions, logger),
		Health:          handlers.NewHealthHandler(checks),
		MetricsHandler:  metricsHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		ClientLimiter:   clientLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, backend.Close, nil
}

// setupBotMetrics registers the bot collectors on a dedicated registry so
// tests can build more than one server per process.
func setupBotMetrics() (http.Handler, *metrics.BotMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.NewBotMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), botMetrics
}
