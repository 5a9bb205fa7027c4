package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/gemini-bridge/internal/bridge"
	"github.com/wolfman30/gemini-bridge/internal/observability/metrics"
	"github.com/wolfman30/gemini-bridge/internal/session"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

type stubGenerator struct {
	mu       sync.Mutex
	requests []GenerateRequest
	resp     *GenerateResponse
	err      error
}

func (s *stubGenerator) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.resp, s.err
}

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type denyLimiter struct{}

func (denyLimiter) TryAcquire(context.Context) bool { return false }

type allowLimiter struct{ calls int }

func (a *allowLimiter) TryAcquire(context.Context) bool {
	a.calls++
	return true
}

type failingSessions struct{}

func (failingSessions) Query(context.Context, string, string) ([]session.Message, error) {
	return nil, errors.New("store down")
}

func (failingSessions) Reply(context.Context, string, string) error {
	return errors.New("store down")
}

func textResponse(text string) *GenerateResponse {
	return &GenerateResponse{Candidates: []Candidate{{Parts: []string{text}, FinishReason: "STOP"}}}
}

func newTestBot(t *testing.T, gen Generator, opts ...Option) (*Bot, *session.Manager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(0)
	mgr := session.NewManager(store, logging.Discard())
	return NewBot(gen, mgr, "gemini-pro", logging.Discard(), opts...), mgr, store
}

func history(t *testing.T, mgr *session.Manager, id string) []session.Message {
	t.Helper()
	sess, err := mgr.FetchOrCreate(context.Background(), id)
	require.NoError(t, err)
	return sess.History()
}

func TestBotReplySuccess(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("Hi! How can I help?")}
	bot, mgr, _ := newTestBot(t, gen)

	reply := bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))

	assert.Equal(t, bridge.TextReply("Hi! How can I help?"), reply)
	assert.Equal(t, []session.Message{
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: "Hi! How can I help?"},
	}, history(t, mgr, "s1"))

	require.Equal(t, 1, gen.calls())
	req := gen.requests[0]
	assert.Equal(t, "gemini-pro", req.Model)
	assert.Equal(t, []Turn{{Role: RoleUser, Parts: []string{"hello"}}}, req.Turns)
	assert.Equal(t, GroundingNone, req.Grounding)
	require.Len(t, req.Safety, 4)
	for _, s := range req.Safety {
		assert.Equal(t, BlockNone, s.Threshold)
	}
}

func TestBotReplySendsAlternatingHistory(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("second answer")}
	bot, mgr, _ := newTestBot(t, gen)
	ctx := context.Background()

	_, err := mgr.Query(ctx, "first", "s1")
	require.NoError(t, err)
	_, err = mgr.Query(ctx, "retry", "s1")
	require.NoError(t, err)

	bot.Reply(ctx, "again", bridge.NewTextContext("s1"))

	require.Equal(t, 1, gen.calls())
	assert.Equal(t, []Turn{{Role: RoleUser, Parts: []string{"again"}}}, gen.requests[0].Turns)
}

func TestBotReplyRateLimited(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("unused")}
	bot, _, store := newTestBot(t, gen,
		WithRateLimiter(denyLimiter{}),
		WithThrottleMessage("slow down"),
	)

	reply := bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))

	assert.Equal(t, bridge.TextReply("slow down"), reply)
	assert.Zero(t, gen.calls())
	assert.Zero(t, store.Len())
}

func TestBotReplyRateLimitedDefaultMessage(t *testing.T) {
	bot, _, _ := newTestBot(t, &stubGenerator{}, WithRateLimiter(denyLimiter{}), WithThrottleMessage(""))

	reply := bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))
	assert.Equal(t, bridge.TextReply(DefaultThrottleMessage), reply)
}

func TestBotReplyConsultsLimiterOncePerCall(t *testing.T) {
	limiter := &allowLimiter{}
	bot, _, _ := newTestBot(t, &stubGenerator{resp: textResponse("ok")}, WithRateLimiter(limiter))

	bot.Reply(context.Background(), "a", bridge.NewTextContext("s1"))
	bot.Reply(context.Background(), "b", bridge.NewTextContext("s1"))
	assert.Equal(t, 2, limiter.calls)
}

func TestBotReplyWithheld(t *testing.T) {
	tests := []struct {
		name string
		resp *GenerateResponse
	}{
		{"no candidates", &GenerateResponse{BlockReason: "SAFETY"}},
		{"empty candidate", &GenerateResponse{Candidates: []Candidate{{
			FinishReason:  "SAFETY",
			SafetyRatings: []SafetyRating{{Category: string(HarmCategoryHarassment), Probability: "HIGH", Blocked: true}},
		}}}},
		{"nil response", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, mgr, _ := newTestBot(t, &stubGenerator{resp: tt.resp})

			reply := bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))

			assert.Equal(t, bridge.ErrorReply(WithheldMessage), reply)
			assert.Equal(t, []session.Message{
				{Role: session.RoleUser, Content: "hello"},
				{Role: session.RoleAssistant, Content: WithheldMessage},
			}, history(t, mgr, "s1"))
		})
	}
}

func TestBotReplyGenerateFailure(t *testing.T) {
	bot, mgr, _ := newTestBot(t, &stubGenerator{err: errors.New("connection reset")})

	reply := bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))

	assert.Equal(t, bridge.ErrorReply(FailureMessage), reply)
	assert.Equal(t, []session.Message{
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: FailureMessage},
	}, history(t, mgr, "s1"))
}

func TestBotReplySessionFailure(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("unused")}
	bot := NewBot(gen, failingSessions{}, "gemini-pro", logging.Discard())

	reply := bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))

	assert.Equal(t, bridge.ErrorReply(FailureMessage), reply)
	assert.Zero(t, gen.calls())
}

func TestBotReplyUnsupportedType(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("unused")}
	bot, _, store := newTestBot(t, gen)

	for _, typ := range []bridge.ContextType{bridge.ContextImage, bridge.ContextVoice, bridge.ContextImageGen} {
		reply := bot.Reply(context.Background(), "draw a cat", bridge.Context{Type: typ, SessionID: "s1"})
		assert.Equal(t, bridge.Reply{Type: bridge.ReplyText}, reply)
		assert.True(t, reply.Empty())
	}
	assert.Zero(t, gen.calls())
	assert.Zero(t, store.Len())
}

func TestBotReplyGrounding(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("It is sunny.")}
	bot, mgr, _ := newTestBot(t, gen, WithGroundingPrefix("!search"))

	reply := bot.Reply(context.Background(), "!search weather today", bridge.NewTextContext("s1"))

	assert.Equal(t, bridge.TextReply("It is sunny."), reply)
	require.Equal(t, 1, gen.calls())
	assert.Equal(t, GroundingSearch, gen.requests[0].Grounding)
	assert.Equal(t, "weather today", gen.requests[0].Turns[0].Text())

	// The stored query keeps the prefix; only the outbound copy is stripped.
	assert.Equal(t, "!search weather today", history(t, mgr, "s1")[0].Content)
}

func TestBotReplyBarePrefixSentAsText(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("What should I search for?")}
	bot, _, _ := newTestBot(t, gen, WithGroundingPrefix("!search"))

	reply := bot.Reply(context.Background(), "!search", bridge.NewTextContext("s1"))

	assert.Equal(t, bridge.TextReply("What should I search for?"), reply)
	require.Equal(t, 1, gen.calls())
	assert.Equal(t, GroundingNone, gen.requests[0].Grounding)
	assert.Equal(t, "!search", gen.requests[0].Turns[0].Text())
}

func TestBotReplyGroundingDisabled(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("ok")}
	bot, _, _ := newTestBot(t, gen)

	bot.Reply(context.Background(), "!search weather today", bridge.NewTextContext("s1"))

	require.Equal(t, 1, gen.calls())
	assert.Equal(t, GroundingNone, gen.requests[0].Grounding)
	assert.Equal(t, "!search weather today", gen.requests[0].Turns[0].Text())
}

func TestBotReplySystemPromptSent(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("ahoy")}
	store := session.NewMemoryStore(0)
	mgr := session.NewManager(store, logging.Discard(), session.WithSystemPrompt("You are a pirate."))
	bot := NewBot(gen, mgr, "gemini-2.5-flash", logging.Discard())

	bot.Reply(context.Background(), "hi", bridge.NewTextContext("s1"))

	require.Equal(t, 1, gen.calls())
	assert.Equal(t, []Turn{
		{Role: RoleUser, Parts: []string{"You are a pirate."}},
		{Role: RoleUser, Parts: []string{"hi"}},
	}, gen.requests[0].Turns)
	assert.Equal(t, "gemini-2.5-flash", gen.requests[0].Model)
}

func TestBotReplyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBotMetrics(reg)

	gen := &stubGenerator{resp: textResponse("ok")}
	bot, _, _ := newTestBot(t, gen, WithMetrics(m))
	bot.Reply(context.Background(), "hello", bridge.NewTextContext("s1"))

	gen.resp = &GenerateResponse{}
	bot.Reply(context.Background(), "hello again", bridge.NewTextContext("s1"))

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "gemini_bridge_bot_replies_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "gemini_bridge_bot_safety_withheld_total"))
}

func TestBotInvokeOutcomes(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("fine")}
	bot, _, _ := newTestBot(t, gen)

	out := bot.Invoke(context.Background(), "hello", "s1")
	assert.Equal(t, OutcomeText, out.Kind)
	assert.Equal(t, "fine", out.Text)
	assert.Equal(t, "text", out.Kind.String())

	gen.err = errors.New("boom")
	out = bot.Invoke(context.Background(), "hello", "s1")
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Error(t, out.Err)
	assert.Equal(t, "failed", out.Kind.String())

	limited := NewBot(gen, session.NewManager(session.NewMemoryStore(0), logging.Discard()), "gemini-pro", logging.Discard(), WithRateLimiter(denyLimiter{}))
	out = limited.Invoke(context.Background(), "hello", "s1")
	assert.Equal(t, OutcomeRateLimited, out.Kind)
	assert.ErrorIs(t, out.Err, ErrRateLimited)
	assert.Equal(t, "rate_limited", out.Kind.String())
	assert.Equal(t, "withheld", OutcomeWithheld.String())
}
