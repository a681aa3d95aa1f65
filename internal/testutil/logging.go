package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Logs holds slog output captured during a test. Engine code logs from
// hotkey and macro goroutines, so writes are serialized.
type Logs struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *Logs) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

// String returns everything captured so far.
func (l *Logs) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

// Contains reports whether any captured line contains substr.
func (l *Logs) Contains(substr string) bool {
	return strings.Contains(l.String(), substr)
}

// CaptureLogs routes the default slog logger into a Logs at level and
// restores the previous logger in t.Cleanup.
func CaptureLogs(t *testing.T, level slog.Level) *Logs {
	t.Helper()
	original := slog.Default()
	logs := &Logs{}
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(original) })
	return logs
}
