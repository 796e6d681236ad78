package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, clock *time.Time) *MemoryRateLimiter {
	t.Helper()
	limiter := NewMemoryRateLimiter(&Config{
		WindowSize:    time.Minute,
		MaxAttempts:   2,
		CleanupPeriod: time.Hour,
		BanDuration:   5 * time.Minute,
	})
	limiter.now = func() time.Time { return *clock }
	t.Cleanup(limiter.Close)
	return limiter
}

func TestMemoryRateLimiterBansAfterLimit(t *testing.T) {
	clock := time.Now()
	limiter := newLimiter(t, &clock)

	allowed, info := limiter.Allow("10.0.0.1")
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Remaining)
	allowed, _ = limiter.Allow("10.0.0.1")
	assert.True(t, allowed)

	allowed, info = limiter.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.True(t, info.Banned)

	allowed, _ = limiter.Allow("10.0.0.2")
	assert.True(t, allowed, "other clients are unaffected")

	clock = clock.Add(2 * time.Minute)
	allowed, info = limiter.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Equal(t, 3*time.Minute, info.RetryAfter)

	clock = clock.Add(4 * time.Minute)
	allowed, _ = limiter.Allow("10.0.0.1")
	assert.True(t, allowed, "ban expired")
}

func TestMemoryRateLimiterSuccessResets(t *testing.T) {
	clock := time.Now()
	limiter := newLimiter(t, &clock)

	limiter.Allow("ip")
	limiter.Allow("ip")
	limiter.RecordSuccess("ip")

	allowed, info := limiter.Allow("ip")
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Remaining)
}

func TestMemoryRateLimiterWindowResets(t *testing.T) {
	clock := time.Now()
	limiter := newLimiter(t, &clock)

	limiter.Allow("ip")
	limiter.Allow("ip")
	clock = clock.Add(2 * time.Minute)

	allowed, _ := limiter.Allow("ip")
	assert.True(t, allowed)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", GetClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", GetClientIP(r))
}

func TestSendLimiterBurstThenRefill(t *testing.T) {
	clock := time.Now()
	limiter := NewSendLimiter(1, 2)
	limiter.now = func() time.Time { return clock }

	assert.True(t, limiter.Allow("visitor"))
	assert.True(t, limiter.Allow("visitor"))
	assert.False(t, limiter.Allow("visitor"))
	assert.True(t, limiter.Allow("someone-else"))

	clock = clock.Add(time.Second)
	assert.True(t, limiter.Allow("visitor"))
}

func TestSendLimiterDropsIdleBuckets(t *testing.T) {
	clock := time.Now()
	limiter := NewSendLimiter(1, 1)
	limiter.now = func() time.Time { return clock }

	limiter.Allow("a")
	limiter.Allow("b")
	require.Equal(t, 2, limiter.Len())

	clock = clock.Add(time.Hour)
	limiter.Allow("c")
	assert.Equal(t, 1, limiter.Len())
}

func TestSendLimiterDisabled(t *testing.T) {
	limiter := NewSendLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow("visitor"))
	}
}
