package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// TokenValidator resolves an operator session token to an operator id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uint, error)
}

// NewOperatorAuthMiddleware rejects requests without a valid operator cookie
// and stores the operator id in the request context.
func NewOperatorAuthMiddleware(validator TokenValidator, logger Logger, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(OperatorCookieName)
			if err != nil {
				logger.Debug("missing operator cookie", "path", r.URL.Path)
				unauthorized(w)
				return
			}

			operatorID, err := validator.ValidateToken(r.Context(), cookie.Value)
			if err != nil {
				logger.Warn("invalid operator token", "path", r.URL.Path, "error", err)
				ClearOperatorCookie(w, secureCookie)
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorIDKey, operatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorIDFromContext returns the operator authenticated for this request.
func OperatorIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(OperatorIDKey).(uint)
	return id, ok && id != 0
}

// IsOperatorAuthenticated reports whether the auth middleware admitted the
// request carrying ctx.
func IsOperatorAuthenticated(ctx context.Context) bool {
	_, ok := OperatorIDFromContext(ctx)
	return ok
}

func SetOperatorCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OperatorCookieName,
		Value:    token,
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearOperatorCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OperatorCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "operator is not authenticated"})
}
