// Package sessionlog tees warn/error slog records into a per-run JSONL file
// and a bounded in-memory buffer the UI can fetch. Engine diagnostics carry
// a bracketed tag ("[DEBUG-MACRO] ..."); the tag is split off the message
// so the log panel can filter by subsystem.
package sessionlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// Entry is one teed log record.
type Entry struct {
	Seq     uint64            `json:"seq"`
	Time    time.Time         `json:"ts"`
	Level   string            `json:"level"`
	Tag     string            `json:"tag,omitempty"`
	Message string            `json:"msg"`
	Source  string            `json:"source,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// EntryCallback receives each record at or above the capture threshold.
type EntryCallback func(Entry)

// TeeHandler wraps a base [slog.Handler] and tees records at or above
// minLevel to a callback. All records reach the base handler; only the
// callback is gated by minLevel.
type TeeHandler struct {
	base     slog.Handler
	callback EntryCallback
	minLevel slog.Level
	group    string
	attrs    []slog.Attr
}

// NewTeeHandler creates a TeeHandler. A nil callback makes it a plain
// pass-through.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, callback EntryCallback) *TeeHandler {
	return &TeeHandler{
		base:     base,
		callback: callback,
		minLevel: minLevel,
	}
}

// Enabled defers to the base handler.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards the record to the base handler, then invokes the callback
// when the record meets minLevel. The callback runs even if the base
// handler failed; the base error is returned so slog can surface it.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	if h.callback != nil && record.Level >= h.minLevel {
		entry := h.entryFor(record)
		func() {
			defer func() {
				if r := recover(); r != nil {
					// stderr, not slog: logging here would re-enter this handler.
					fmt.Fprintf(os.Stderr, "[session-log] callback panicked: %v\n%s\n", r, debug.Stack())
				}
			}()
			h.callback(entry)
		}()
	}
	return err
}

func (h *TeeHandler) entryFor(record slog.Record) Entry {
	tag, msg := SplitTag(record.Message)
	entry := Entry{
		Time:    record.Time,
		Level:   LevelName(record.Level),
		Tag:     tag,
		Message: msg,
		Source:  h.group,
	}
	n := len(h.attrs) + record.NumAttrs()
	if n == 0 {
		return entry
	}
	entry.Attrs = make(map[string]string, n)
	for _, attr := range h.attrs {
		addAttr(entry.Attrs, "", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		addAttr(entry.Attrs, "", attr)
		return true
	})
	return entry
}

func addAttr(dst map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			addAttr(dst, key, child)
		}
		return
	}
	dst[key] = attr.Value.String()
}

// WithAttrs returns a TeeHandler whose base handler carries attrs. The
// attrs are also copied into teed entries.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TeeHandler{
		base:     h.base.WithAttrs(attrs),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    h.group,
		attrs:    merged,
	}
}

// WithGroup returns a TeeHandler whose entries report the dot-joined group
// path as their Source.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}
	return &TeeHandler{
		base:     h.base.WithGroup(name),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    newGroup,
		attrs:    h.attrs,
	}
}

// SplitTag separates a leading "[TAG]" from a log message. Messages without
// a tag return an empty tag and the message unchanged.
func SplitTag(msg string) (tag, rest string) {
	if !strings.HasPrefix(msg, "[") {
		return "", msg
	}
	end := strings.IndexByte(msg, ']')
	if end <= 1 {
		return "", msg
	}
	return msg[1:end], strings.TrimSpace(msg[end+1:])
}

// LevelName maps a slog level to the lowercase name used in entries.
func LevelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
