// Package testutil provides shared fixtures and a test logger.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger returns a debug-level logger routed through t.Log, so
// engine and loader output only shows for failing tests or under -v.
// Timestamps are dropped.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(tbWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

type tbWriter struct {
	t testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
