// Package logging provides the structured logger shared by audiocore
// components, following utils/slogx's pattern: a text handler over an
// injectable writer, with a process-wide default for components that
// aren't explicitly wired with one.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(os.Stderr, slog.LevelInfo)
)

// New builds a slog.Logger over w with AddSource enabled, matching
// utils/slogx's handler options.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *slog.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the process-wide default logger.
func Default() *slog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Err renders an error as a slog.Attr the way slogx.Error does, tolerating
// a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// WithComponent returns a logger pre-tagged with component=name, used so
// log lines from the mixer, pipeline, and monitoring hub stay attributable.
func WithComponent(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Default()
	}
	return l.With(slog.String("component", name))
}

// Discard is a logger with no backing output, used by tests that want
// silence without a nil-check at every call site.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
