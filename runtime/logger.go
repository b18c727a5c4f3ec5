package runtime

import (
	"fmt"
	"log/slog"
)

// Logger receives engine query logging when Settings.LogQueries is on.
type Logger interface {
	Logf(format string, args ...any)
}

// LoggerFunc adapts a printf style function to Logger.
type LoggerFunc func(format string, args ...any)

// Logf implements Logger.
func (f LoggerFunc) Logf(format string, args ...any) { f(format, args...) }

// SlogLogger routes engine logging to l at debug level.
func SlogLogger(l *slog.Logger) Logger {
	return LoggerFunc(func(format string, args ...any) {
		l.Debug(fmt.Sprintf(format, args...))
	})
}
