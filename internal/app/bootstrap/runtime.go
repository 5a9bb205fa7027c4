package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/gemini-bridge/internal/config"
	"github.com/wolfman30/gemini-bridge/internal/session"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// SessionBackend is the configured session store plus its lifecycle hooks.
type SessionBackend struct {
	Name  string
	Store session.Store
	// Ping checks the backing service; nil for the memory store.
	Ping  func(context.Context) error
	Close func()
}

// BuildSessionStore selects the session store named by SESSION_STORE.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*SessionBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.SessionStore {
	case "", "memory":
		logger.Info("using in-memory session store", "ttl", cfg.SessionTTL)
		return &SessionBackend{
			Name:  "memory",
			Store: session.NewMemoryStore(cfg.SessionTTL),
			Close: func() {},
		}, nil

	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis session store unavailable at %q", cfg.RedisAddr)
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		return &SessionBackend{
			Name:  "redis",
			Store: session.NewRedisStore(client, cfg.SessionTTL, nil),
			Ping:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Close: func() { _ = client.Close() },
		}, nil

	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres session store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		logger.Info("using postgres session store", "ttl", cfg.SessionTTL)
		return &SessionBackend{
			Name:  "postgres",
			Store: session.NewPostgresStore(pool, cfg.SessionTTL, nil),
			Ping:  pool.Ping,
			Close: pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}

// BuildSessionManager wraps store with the configured prompt and history bound.
func BuildSessionManager(store session.Store, cfg *appconfig.Config, logger *logging.Logger) *session.Manager {
	return session.NewManager(store, logger,
		session.WithSystemPrompt(cfg.SystemPrompt),
		session.WithMaxTokens(cfg.MaxTokens),
	)
}
