package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-livechat/internal/ratelimit"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

type stubValidator map[string]uint

func (s stubValidator) ValidateToken(_ context.Context, token string) (uint, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

func TestOperatorAuthMiddleware(t *testing.T) {
	var seen uint
	protected := NewOperatorAuthMiddleware(stubValidator{"good": 7}, nopLogger{}, true)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = OperatorIDFromContext(r.Context())
			assert.True(t, IsOperatorAuthenticated(r.Context()))
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/console/conversations", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/console/conversations", nil)
	req.AddCookie(&http.Cookie{Name: OperatorCookieName, Value: "forged"})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value, "invalid cookie is cleared")

	req = httptest.NewRequest(http.MethodGet, "/api/console/conversations", nil)
	req.AddCookie(&http.Cookie{Name: OperatorCookieName, Value: "good"})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 7, seen)
}

func TestIsOperatorAuthenticatedWithoutMiddleware(t *testing.T) {
	assert.False(t, IsOperatorAuthenticated(context.Background()))
}

func TestRecoverPanic(t *testing.T) {
	handler := RecoverPanic(nopLogger{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoginRateLimitAndReset(t *testing.T) {
	limiter := ratelimit.NewMemoryRateLimiter(&ratelimit.Config{
		WindowSize:    time.Minute,
		MaxAttempts:   1,
		CleanupPeriod: time.Hour,
		BanDuration:   time.Minute,
	})
	defer limiter.Close()

	status := http.StatusUnauthorized
	handler := LoginRateLimit(limiter, "login", nopLogger{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }))

	do := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/operator/login", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	other := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultLoginConfig())
	defer other.Close()
	handler = LoginRateLimit(other, "login", nopLogger{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, do(), "successful logins never accumulate")
	}
}
