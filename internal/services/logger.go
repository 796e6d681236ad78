package services

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel maps LOG_LEVEL values; unknown values mean INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ProductionLogger writes key/value pairs through zerolog, as JSON or as
// human-readable console lines.
type ProductionLogger struct {
	logger  zerolog.Logger
	level   LogLevel
	service string
}

// NewProductionLogger creates a JSON logger writing to stdout.
func NewProductionLogger(service string) *ProductionLogger {
	return NewProductionLoggerTo(os.Stdout, service, LogLevelInfo, true)
}

// NewProductionLoggerTo creates a logger on w. structured=false selects
// zerolog's console writer for development.
func NewProductionLoggerTo(w io.Writer, service string, level LogLevel, structured bool) *ProductionLogger {
	if !structured {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		Str("service", service).
		Logger()
	return &ProductionLogger{logger: zl, level: level, service: service}
}

// SetLevel updates the logging level
func (p *ProductionLogger) SetLevel(level LogLevel) {
	p.level = level
	p.logger = p.logger.Level(level.zerolog())
}

func (p *ProductionLogger) Info(msg string, keysAndValues ...interface{}) {
	p.write(p.logger.Info(), msg, keysAndValues)
}

func (p *ProductionLogger) Error(msg string, keysAndValues ...interface{}) {
	p.write(p.logger.Error(), msg, keysAndValues)
}

func (p *ProductionLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.write(p.logger.Debug(), msg, keysAndValues)
}

func (p *ProductionLogger) Warn(msg string, keysAndValues ...interface{}) {
	p.write(p.logger.Warn(), msg, keysAndValues)
}

func (p *ProductionLogger) write(event *zerolog.Event, msg string, keysAndValues []interface{}) {
	if event == nil {
		return
	}
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, keysAndValues[i+1])
	}
	event.Msg(msg)
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}

// NewLogger builds the logger for the current environment: nothing under
// GO_ENV=test, JSON in production, console lines otherwise.
func NewLogger(service string) Logger {
	env := os.Getenv("GO_ENV")
	if env == "test" {
		return &NoOpLogger{}
	}

	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	structured := env == "production" || strings.EqualFold(os.Getenv("ENV"), "production")
	return NewProductionLoggerTo(os.Stdout, service, level, structured)
}
