package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/gemini-bridge/internal/bridge"
	appconfig "github.com/wolfman30/gemini-bridge/internal/config"
	"github.com/wolfman30/gemini-bridge/internal/gemini"
	"github.com/wolfman30/gemini-bridge/internal/session"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.Discard()

	assert.Nil(t, BuildRedisClient(context.Background(), nil, logger, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true))
}

func TestBuildSessionStoreMemory(t *testing.T) {
	backend, err := BuildSessionStore(context.Background(), &appconfig.Config{SessionStore: "memory", SessionTTL: time.Minute}, logging.Discard())
	require.NoError(t, err)
	defer backend.Close()

	assert.Equal(t, "memory", backend.Name)
	assert.IsType(t, &session.MemoryStore{}, backend.Store)
	assert.Nil(t, backend.Ping)
}

func TestBuildSessionStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{SessionStore: "redis", RedisAddr: mr.Addr(), SessionTTL: time.Minute}

	backend, err := BuildSessionStore(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer backend.Close()

	assert.IsType(t, &session.RedisStore{}, backend.Store)
	require.NoError(t, backend.Ping(context.Background()))

	mgr := BuildSessionManager(backend.Store, &appconfig.Config{SystemPrompt: "Be brief.", MaxTokens: 1000}, logging.Discard())
	history, err := mgr.Query(context.Background(), "hello", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, []session.Message{
		{Role: session.RoleSystem, Content: "Be brief."},
		{Role: session.RoleUser, Content: "hello"},
	}, history)
	assert.True(t, mr.Exists("chat_session:chat-1"))
}

func TestBuildSessionStoreErrors(t *testing.T) {
	_, err := BuildSessionStore(context.Background(), nil, logging.Discard())
	assert.Error(t, err)

	_, err = BuildSessionStore(context.Background(), &appconfig.Config{SessionStore: "postgres"}, logging.Discard())
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = BuildSessionStore(context.Background(), &appconfig.Config{SessionStore: "dynamo"}, logging.Discard())
	assert.ErrorContains(t, err, "unknown session store")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = BuildSessionStore(context.Background(), &appconfig.Config{SessionStore: "redis", RedisAddr: addr}, logging.Discard())
	assert.Error(t, err)
}

func TestBuildBotRequiresKey(t *testing.T) {
	mgr := session.NewManager(session.NewMemoryStore(0), logging.Discard())
	_, err := BuildBot(context.Background(), &appconfig.Config{Model: appconfig.DefaultModel}, mgr, nil, logging.Discard())
	assert.Error(t, err)

	_, err = BuildBot(context.Background(), nil, mgr, nil, logging.Discard())
	assert.Error(t, err)
}

func TestBuildBotRateLimitedEndToEnd(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"pong"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	cfg := &appconfig.Config{
		GeminiAPIKey:       "test-key",
		GeminiBaseURL:      srv.URL,
		Model:              appconfig.DefaultModel,
		RateLimitPerMinute: 1,
		ThrottleMessage:    "easy there",
	}
	mgr := session.NewManager(session.NewMemoryStore(0), logging.Discard())
	bot, err := BuildBot(context.Background(), cfg, mgr, nil, logging.Discard())
	require.NoError(t, err)

	first := bot.Reply(context.Background(), "ping", bridge.NewTextContext("chat-1"))
	second := bot.Reply(context.Background(), "ping", bridge.NewTextContext("chat-1"))

	assert.Equal(t, bridge.TextReply("pong"), first)
	assert.Equal(t, bridge.TextReply("easy there"), second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBuildBotDefaultThrottleMessage(t *testing.T) {
	cfg := &appconfig.Config{
		GeminiAPIKey:       "test-key",
		GeminiBaseURL:      "http://127.0.0.1:1",
		Model:              appconfig.DefaultModel,
		RateLimitPerMinute: 1,
	}
	mgr := session.NewManager(session.NewMemoryStore(0), logging.Discard())
	bot, err := BuildBot(context.Background(), cfg, mgr, nil, logging.Discard())
	require.NoError(t, err)

	// The first call spends the only token and fails to connect.
	assert.Equal(t, bridge.ErrorReply(gemini.FailureMessage), bot.Reply(context.Background(), "a", bridge.NewTextContext("c")))
	assert.Equal(t, bridge.TextReply(gemini.DefaultThrottleMessage), bot.Reply(context.Background(), "b", bridge.NewTextContext("c")))
}
