package gemini

import (
	"context"
	"time"

	"github.com/wolfman30/gemini-bridge/internal/bridge"
	"github.com/wolfman30/gemini-bridge/internal/observability/metrics"
	"github.com/wolfman30/gemini-bridge/internal/session"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

// SessionService stores the conversation history the bot reads and appends to.
type SessionService interface {
	Query(ctx context.Context, query, sessionID string) ([]session.Message, error)
	Reply(ctx context.Context, text, sessionID string) error
}

// Limiter gates outbound model calls.
type Limiter interface {
	TryAcquire(ctx context.Context) bool
}

// Bot answers text queries with Gemini and keeps the session history in step
// with what the user is shown.
type Bot struct {
	generator       Generator
	sessions        SessionService
	model           string
	limiter         Limiter
	groundingPrefix string
	throttleMessage string
	safety          []SafetySetting
	metrics         *metrics.BotMetrics
	logger          *logging.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithRateLimiter gates every call on limiter. Without it calls are unlimited.
func WithRateLimiter(limiter Limiter) Option {
	return func(b *Bot) {
		b.limiter = limiter
	}
}

// WithGroundingPrefix enables search grounding for queries starting with prefix.
func WithGroundingPrefix(prefix string) Option {
	return func(b *Bot) {
		b.groundingPrefix = prefix
	}
}

// WithThrottleMessage sets the text shown when the rate limit is hit.
func WithThrottleMessage(msg string) Option {
	return func(b *Bot) {
		if msg != "" {
			b.throttleMessage = msg
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// NewBot creates a bot for model.
func NewBot(generator Generator, sessions SessionService, model string, logger *logging.Logger, opts ...Option) *Bot {
	if generator == nil {
		panic("gemini: generator cannot be nil")
	}
	if sessions == nil {
		panic("gemini: session service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	b := &Bot{
		generator:       generator,
		sessions:        sessions,
		model:           model,
		throttleMessage: DefaultThrottleMessage,
		safety:          DefaultSafetySettings(),
		logger:          logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Reply answers query for the conversation in bctx. It never fails: every
// outcome is mapped to a TEXT or ERROR reply.
func (b *Bot) Reply(ctx context.Context, query string, bctx bridge.Context) bridge.Reply {
	if bctx.Type != bridge.ContextText {
		b.logger.Warn("gemini unsupported message type",
			"type", bctx.Type,
			"session_id", bctx.SessionID,
		)
		b.metrics.ObserveReply("unsupported")
		return bridge.Reply{Type: bridge.ReplyText}
	}

	logger := b.logger.With("session_id", bctx.SessionID)
	outcome := b.Invoke(ctx, query, bctx.SessionID)
	b.metrics.ObserveReply(outcome.Kind.String())

	switch outcome.Kind {
	case OutcomeText:
		logger.Info("gemini reply", "reply", outcome.Text)
		b.persist(ctx, logger, bctx.SessionID, outcome.Text)
		return bridge.TextReply(outcome.Text)

	case OutcomeRateLimited:
		logger.Error("gemini error generating response", "error", outcome.Err)
		return bridge.TextReply(b.throttleMessage)

	case OutcomeWithheld:
		b.metrics.ObserveWithheld()
		logWithheld(logger, outcome.Response)
		b.persist(ctx, logger, bctx.SessionID, WithheldMessage)
		return bridge.ErrorReply(WithheldMessage)

	default:
		logger.Error("gemini error generating response", "error", outcome.Err)
		b.persist(ctx, logger, bctx.SessionID, FailureMessage)
		return bridge.ErrorReply(FailureMessage)
	}
}

// Invoke runs the rate gate, history update and model call for one query and
// classifies the result. It does not record the assistant turn.
func (b *Bot) Invoke(ctx context.Context, query, sessionID string) Outcome {
	if b.limiter != nil && !b.limiter.TryAcquire(ctx) {
		return Outcome{Kind: OutcomeRateLimited, Err: ErrRateLimited}
	}

	b.logger.Info("gemini query", "session_id", sessionID, "query", query)
	history, err := b.sessions.Query(ctx, query, sessionID)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	turns := ConvertMessages(FilterMessages(history))
	if len(turns) == 0 {
		return Outcome{Kind: OutcomeFailed, Err: ErrNoMessages}
	}
	b.logger.Debug("gemini turns", "session_id", sessionID, "turns", len(turns), "history", len(history))

	grounding := DetectGrounding(turns, b.groundingPrefix)
	if grounding == GroundingSearch {
		b.logger.Info("gemini grounding enabled", "session_id", sessionID)
	}

	start := time.Now()
	resp, err := b.generator.Generate(ctx, GenerateRequest{
		Model:     b.model,
		Turns:     turns,
		Safety:    b.safety,
		Grounding: grounding,
	})
	b.metrics.ObserveGenerate(b.model, grounding == GroundingSearch, time.Since(start).Seconds())
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	text, ok := resp.FirstText()
	if !ok {
		return Outcome{Kind: OutcomeWithheld, Response: resp}
	}
	return Outcome{Kind: OutcomeText, Text: text, Response: resp}
}

func (b *Bot) persist(ctx context.Context, logger *logging.Logger, sessionID, text string) {
	if err := b.sessions.Reply(ctx, text, sessionID); err != nil {
		logger.Error("gemini failed to record assistant turn", "error", err)
	}
}

func logWithheld(logger *logging.Logger, resp *GenerateResponse) {
	logger.Warn("gemini no valid response generated, checking safety ratings")
	if resp == nil {
		return
	}
	if resp.BlockReason != "" {
		logger.Warn("gemini prompt blocked", "block_reason", resp.BlockReason)
	}
	for i, cand := range resp.Candidates {
		for _, rating := range cand.SafetyRatings {
			logger.Warn("gemini safety rating",
				"candidate", i,
				"category", rating.Category,
				"probability", rating.Probability,
				"blocked", rating.Blocked,
				"finish_reason", cand.FinishReason,
			)
		}
	}
}
