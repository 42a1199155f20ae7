package authlink

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// Logger is the logging contract used by every component. Arguments after
// the message are key/value pairs. glog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the options recognized by the token lifecycle and the
// transport adapters.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetAudience() string
	GetSubject() string
	GetTokenTTL() time.Duration
	GetStateless() bool
	GetTrackUsage() bool
	GetTokenProperty() string
	GetExpiresProperty() string
	GetIncludeUserInJwtResponse() bool
	GetStoreTimeout() time.Duration
}

const (
	DefaultSigningMethod   = "HS256"
	DefaultSubject         = "authlink"
	DefaultTokenTTL        = 7 * 24 * time.Hour
	DefaultTokenProperty   = "token"
	DefaultExpiresProperty = "expires"
	DefaultStoreTimeout    = 5 * time.Second
)

// LoggerProvider hands out named loggers. *glog.BaseLogger satisfies it.
type LoggerProvider interface {
	GetLogger(name string) glog.Logger
}

// NewLogger builds the root glog logger. go-errors metadata is rendered as
// structured attributes.
func NewLogger(name, level string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(parseLevel(level)),
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

func parseLevel(level string) string {
	switch level {
	case "trace":
		return glog.Trace
	case "debug":
		return glog.Debug
	case "warn":
		return glog.Warn
	case "error":
		return glog.Error
	default:
		return glog.Info
	}
}

func defaultLogger() Logger {
	return NewLogger("authlink", "info").GetLogger("authlink")
}

// ScopedLogger resolves name from provider, falling back to fallback when the
// provider is missing or returns nil.
func ScopedLogger(provider LoggerProvider, name string, fallback Logger) Logger {
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return defaultLogger()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger discards everything.
func NoopLogger() Logger {
	return noopLogger{}
}
