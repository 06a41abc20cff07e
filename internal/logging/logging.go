// Package logging provides the engine's structured logger, gated by the
// CASCADE_DEBUG environment variable and an explicit verbosity switch
// layered on top of log/slog.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	verbose = os.Getenv("CASCADE_DEBUG") != ""
	logger  = newLogger(verbose)
)

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// SetVerbose switches the logger between info and debug level at
// runtime.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	logger = newLogger(v)
}

// Enabled reports whether debug-level logging is active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// L returns the current process-wide logger.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// With returns a child logger annotated with the given key/value pairs,
// for tagging a component (snapshot builder, simulator, experiment
// manager) on every line it emits.
func With(args ...interface{}) *slog.Logger {
	return L().With(args...)
}

// FromContext returns a logger carrying any fields injected into ctx, or
// the default logger if none were.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return L()
}

type ctxKey struct{}

// IntoContext returns a context carrying l, retrievable with FromContext.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
