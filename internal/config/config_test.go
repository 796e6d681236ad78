package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.CookieSecure)

	chat := cfg.Chat()
	assert.Equal(t, chatservice.DefaultWelcomeMessage, chat.WelcomeMessage)
	assert.Equal(t, 4000, chat.MaxContentLength)
	assert.Equal(t, 5*time.Second, chat.StoreTimeout)
	assert.True(t, chat.ResubscribeOnLoss)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("RESUBSCRIBE_ON_LOSS", "false")
	t.Setenv("VISITOR_SEND_RATE", "0.5")
	t.Setenv("MAX_MESSAGE_LENGTH", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.False(t, cfg.ResubscribeOnLoss)
	assert.Equal(t, 0.5, cfg.VisitorSendRate)
	assert.Equal(t, 4000, cfg.MaxMessageLength, "unparsable values fall back to the default")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET_KEY")

	t.Setenv("JWT_SECRET_KEY", "short")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CookieSecure, "cookies default to Secure in production")
}

func TestInvalidChatSettings(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SUBSCRIPTION_BUFFER", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "subscription_buffer")
}
