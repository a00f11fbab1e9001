// Package logger wraps zerolog.Logger with the constructors and context
// helpers used by the server.  Request-scoped loggers are stored in the
// request context by the logging middleware and read back with FromContext.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger embeds zerolog.Logger so the full zerolog API is available.
type Logger struct {
	zerolog.Logger
}

// NewLogger returns a JSON logger writing to stdout.  role is attached to
// every entry so server and consumer output can be told apart.  In the dev
// environment output is rendered with zerolog's console writer.
func NewLogger(role, env string) *Logger {
	var w io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if strings.EqualFold(env, "dev") {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
		level = zerolog.DebugLevel
	}
	return New(w, role, level)
}

// New builds a Logger on an arbitrary writer.
func New(w io.Writer, role string, level zerolog.Level) *Logger {
	l := zerolog.New(w).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}
}

// Nop returns a Logger that discards everything.  Used in tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// With returns a child logger carrying one extra string field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{l.Logger.With().Str(key, value).Logger()}
}

// FromContext returns the logger stored in ctx.  When none is attached
// zerolog hands back its disabled logger, so the result is never nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
