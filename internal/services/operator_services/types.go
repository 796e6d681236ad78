package operator_services

import "strings"

// Logger interface for all operator services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// maskEmail keeps enough of an address to correlate log lines.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "****"
	}
	return email[:min(2, at)] + "****" + email[at:]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
