package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LevelTrace sits below DEBUG and carries the per-tick progress output.
const LevelTrace = slog.LevelDebug - 4

var traceOn atomic.Bool

// SetTrace switches per-tick output on or off.
func SetTrace(on bool) { traceOn.Store(on) }

// TraceEnabled reports whether Trace writes anything.
func TraceEnabled() bool { return traceOn.Load() }

// Trace logs at LevelTrace. It returns before touching the handler when
// tracing is off, so it is safe on hot paths.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !traceOn.Load() {
		return
	}
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// TraceDefault traces to the default logger.
func TraceDefault(msg string, args ...any) {
	Trace(slog.Default(), msg, args...)
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lv, ok := a.Value.Any().(slog.Level); ok && lv == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
