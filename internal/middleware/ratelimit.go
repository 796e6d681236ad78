// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/iyunix/go-livechat/internal/ratelimit"
)

// LoginRateLimit counts every attempt from a client IP against limiter and
// forgets the client once an attempt succeeds with a 2xx.
func LoginRateLimit(limiter *ratelimit.MemoryRateLimiter, name string, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.GetClientIP(r)
			allowed, info := limiter.Allow(clientIP)

			h := w.Header()
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

			if !allowed {
				logger.Warn("rate limited", "limiter", name, "client_ip", clientIP, "banned", info.Banned)
				retryAfter := int(info.RetryAfter.Seconds())
				if retryAfter > 0 {
					h.Set("Retry-After", strconv.Itoa(retryAfter))
				}
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "Too many sign-in attempts. Please try again later.",
					"retryAfter": retryAfter,
					"banned":     info.Banned,
				})
				return
			}

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			if wrapper.statusCode/100 == 2 {
				limiter.RecordSuccess(clientIP)
				logger.Debug("rate limit reset after success", "limiter", name, "client_ip", clientIP)
			}
		})
	}
}
