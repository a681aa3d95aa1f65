package sessionlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// newTestCallback returns a callback that collects entries and a getter
// for a copy of them.
func newTestCallback() (EntryCallback, func() []Entry) {
	var mu sync.Mutex
	var entries []Entry
	cb := func(entry Entry) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, entry)
	}
	get := func() []Entry {
		mu.Lock()
		defer mu.Unlock()
		return append([]Entry(nil), entries...)
	}
	return cb, get
}

func newTestLogger(minLevel slog.Level) (*slog.Logger, *bytes.Buffer, func() []Entry) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	cb, get := newTestCallback()
	return slog.New(NewTeeHandler(base, minLevel, cb)), &buf, get
}

func TestTeeHandlerCapturesAtThreshold(t *testing.T) {
	tests := []struct {
		name string
		log  func(*slog.Logger)
		want []Entry
	}{
		{
			name: "tagged error",
			log:  func(l *slog.Logger) { l.Error("[DEBUG-MACRO] macro failed", "macro_id", "m-1") },
			want: []Entry{{
				Level:   "error",
				Tag:     "DEBUG-MACRO",
				Message: "macro failed",
				Attrs:   map[string]string{"macro_id": "m-1"},
			}},
		},
		{
			name: "untagged warning",
			log:  func(l *slog.Logger) { l.Warn("dial tcp 127.0.0.1:5432: connection refused") },
			want: []Entry{{Level: "warn", Message: "dial tcp 127.0.0.1:5432: connection refused"}},
		},
		{
			name: "info ignored",
			log:  func(l *slog.Logger) { l.Info("[DEBUG-SHORTCUT] reconciled") },
			want: nil,
		},
		{
			name: "debug ignored",
			log:  func(l *slog.Logger) { l.Debug("[hotkey] DEBUG registered") },
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _, get := newTestLogger(slog.LevelWarn)
			tt.log(logger)
			got := get()
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Entry{}, "Time")); diff != "" {
				t.Fatalf("entries mismatch (-want +got):\n%s", diff)
			}
			for _, entry := range got {
				if entry.Time.IsZero() {
					t.Fatal("entry time is zero")
				}
			}
		})
	}
}

func TestTeeHandlerDelegatesEveryLevelToBase(t *testing.T) {
	logger, buf, _ := newTestLogger(slog.LevelWarn)
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Error("error message")

	for _, want := range []string{"debug message", "info message", "error message"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("base handler output %q does not contain %q", buf.String(), want)
		}
	}
}

func TestTeeHandlerGroupsAndAttrs(t *testing.T) {
	logger, buf, get := newTestLogger(slog.LevelWarn)
	logger.With("component", "engine").WithGroup("a").WithGroup("b").
		Error("nested", slog.Group("combo", "accel", "CommandOrControl+G"))

	got := get()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Source != "a.b" {
		t.Errorf("Source = %q, want a.b", got[0].Source)
	}
	want := map[string]string{"component": "engine", "combo.accel": "CommandOrControl+G"}
	if diff := cmp.Diff(want, got[0].Attrs); diff != "" {
		t.Errorf("Attrs mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "component=engine") {
		t.Errorf("base handler output %q lost handler attrs", buf.String())
	}
}

func TestTeeHandlerWithEmptyArgsReturnsReceiver(t *testing.T) {
	h := NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelWarn, nil)
	if h.WithGroup("") != slog.Handler(h) {
		t.Error("WithGroup(\"\") should return the receiver")
	}
	if h.WithAttrs(nil) != slog.Handler(h) {
		t.Error("WithAttrs(nil) should return the receiver")
	}
}

func TestTeeHandlerNilCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(&buf, nil), slog.LevelWarn, nil))
	logger.Error("should not panic")
	if !strings.Contains(buf.String(), "should not panic") {
		t.Errorf("base handler output %q does not contain expected message", buf.String())
	}
}

// errorHandler always fails Handle.
type errorHandler struct{ err error }

func (h *errorHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h *errorHandler) Handle(context.Context, slog.Record) error { return h.err }
func (h *errorHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h *errorHandler) WithGroup(string) slog.Handler             { return h }

func TestTeeHandlerBaseErrorStillTeesAndPropagates(t *testing.T) {
	baseErr := errors.New("disk full")
	cb, get := newTestCallback()
	h := NewTeeHandler(&errorHandler{err: baseErr}, slog.LevelWarn, cb)

	record := slog.NewRecord(time.Now(), slog.LevelError, "write failed", 0)
	if err := h.Handle(context.Background(), record); !errors.Is(err, baseErr) {
		t.Fatalf("Handle() error = %v, want %v", err, baseErr)
	}
	if len(get()) != 1 {
		t.Fatalf("callback entries = %d, want 1", len(get()))
	}
}

func TestTeeHandlerCallbackPanicWritesToStderr(t *testing.T) {
	origStderr := os.Stderr
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stderr = writePipe
	t.Cleanup(func() {
		os.Stderr = origStderr
		_ = readPipe.Close()
		_ = writePipe.Close()
	})

	h := NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelInfo, func(Entry) {
		panic("stderr panic test")
	})
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	if handleErr := h.Handle(context.Background(), record); handleErr != nil {
		t.Fatalf("Handle() error = %v, want nil", handleErr)
	}
	_ = writePipe.Close()

	stderrBytes, readErr := io.ReadAll(readPipe)
	if readErr != nil {
		t.Fatalf("io.ReadAll(stderr) error = %v", readErr)
	}
	if !strings.Contains(string(stderrBytes), "[session-log] callback panicked: stderr panic test") {
		t.Fatalf("stderr output = %q, want panic diagnostic prefix", stderrBytes)
	}
}

func TestSplitTag(t *testing.T) {
	tests := []struct {
		msg     string
		wantTag string
		wantMsg string
	}{
		{msg: "[DEBUG-MACRO] started", wantTag: "DEBUG-MACRO", wantMsg: "started"},
		{msg: "[hotkey] DEBUG loop exited", wantTag: "hotkey", wantMsg: "DEBUG loop exited"},
		{msg: "plain message", wantTag: "", wantMsg: "plain message"},
		{msg: "[] empty tag", wantTag: "", wantMsg: "[] empty tag"},
		{msg: "[unterminated", wantTag: "", wantMsg: "[unterminated"},
	}
	for _, tt := range tests {
		tag, msg := SplitTag(tt.msg)
		if tag != tt.wantTag || msg != tt.wantMsg {
			t.Errorf("SplitTag(%q) = (%q, %q), want (%q, %q)", tt.msg, tag, msg, tt.wantTag, tt.wantMsg)
		}
	}
}

func TestLevelName(t *testing.T) {
	tests := map[slog.Level]string{
		slog.LevelDebug:     "debug",
		slog.LevelInfo:      "info",
		slog.LevelWarn:      "warn",
		slog.LevelWarn + 2:  "warn",
		slog.LevelError:     "error",
		slog.LevelError + 4: "error",
	}
	for level, want := range tests {
		if got := LevelName(level); got != want {
			t.Errorf("LevelName(%v) = %q, want %q", level, got, want)
		}
	}
}
