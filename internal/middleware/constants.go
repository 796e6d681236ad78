// File: internal/middleware/constants.go
package middleware

// Context keys for middleware communication
type contextKey string

const (
	OperatorIDKey contextKey = "operator_id"
)

// OperatorCookieName carries the operator's session token.
const OperatorCookieName = "operator_token"

// Logger is the logging surface middlewares write to.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
