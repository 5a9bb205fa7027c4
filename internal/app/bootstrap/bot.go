package bootstrap

import (
	"context"
	"fmt"

	appconfig "github.com/wolfman30/gemini-bridge/internal/config"
	"github.com/wolfman30/gemini-bridge/internal/gemini"
	"github.com/wolfman30/gemini-bridge/internal/observability/metrics"
	"github.com/wolfman30/gemini-bridge/internal/ratelimit"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

// BuildBot wires the Gemini client, rate gate and grounding from config.
// botMetrics may be nil.
func BuildBot(ctx context.Context, cfg *appconfig.Config, sessions gemini.SessionService, botMetrics *metrics.BotMetrics, logger *logging.Logger) (*gemini.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := gemini.NewGenAIClient(ctx, gemini.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	opts := []gemini.Option{
		gemini.WithThrottleMessage(cfg.ThrottleMessage),
		gemini.WithMetrics(botMetrics),
	}
	if cfg.RateLimitEnabled() {
		opts = append(opts, gemini.WithRateLimiter(ratelimit.NewTokenBucket(cfg.RateLimitPerMinute, cfg.RateLimitTimeout)))
		logger.Info("gemini rate limiting enabled", "per_minute", cfg.RateLimitPerMinute, "timeout", cfg.RateLimitTimeout)
	}
	if cfg.GroundingEnabled() {
		opts = append(opts, gemini.WithGroundingPrefix(cfg.GroundingPrefix))
		logger.Info("gemini grounding enabled", "prefix", cfg.GroundingPrefix)
	}

	logger.Info("gemini bot ready", "model", cfg.Model)
	return gemini.NewBot(client, sessions, cfg.Model, logger, opts...), nil
}
