package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-livechat/internal/config"
	"github.com/iyunix/go-livechat/internal/feed"
	"github.com/iyunix/go-livechat/internal/services"
	"github.com/iyunix/go-livechat/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey:       "a-test-secret-of-reasonable-length",
		JWTTTL:             time.Hour,
		RedisChannel:       "livechat:test",
		WelcomeMessage:     "Hi! How can I help you today?",
		MaxMessageLength:   4000,
		SubscriptionBuffer: 16,
		StoreTimeout:       time.Second,
		VisitorSendRate:    10,
		VisitorSendBurst:   10,
	}
}

func TestApplicationWithoutRelay(t *testing.T) {
	app, err := NewApplication(testConfig(), &services.NoOpLogger{}, testutil.NewTestDB(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.Relay)
	require.NoError(t, app.StartRelay(context.Background(), time.Second))

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplicationRelaysThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	app, err := NewApplication(cfg, &services.NoOpLogger{}, testutil.NewTestDB(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.NotNil(t, app.Relay)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, app.StartRelay(ctx, 2*time.Second))

	all := app.Hub.Subscribe(feed.Filter{})
	defer all.Close()

	conv, _, err := app.ChatService.OpenConversation(ctx, "visitor-relay")
	require.NoError(t, err)

	select {
	case msg := <-all.C():
		assert.Equal(t, conv.ID, msg.ConversationID, "the welcome message comes back through Redis")
	case <-time.After(2 * time.Second):
		t.Fatal("no message relayed")
	}
}

func TestApplicationRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "://nope"
	_, err := NewApplication(cfg, &services.NoOpLogger{}, testutil.NewTestDB(t))
	assert.Error(t, err)
}
