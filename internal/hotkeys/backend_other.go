//go:build !windows && !(linux && cgo)

package hotkeys

import (
	"log/slog"
	"sync"

	"gamevault/internal/shortcuts"
)

// inertBackend validates and tracks registrations but never fires. It keeps
// the engine usable on platforms without a supported hotkey API.
type inertBackend struct {
	warnOnce sync.Once
}

func newBackend() backend {
	return &inertBackend{}
}

func (b *inertBackend) register(id int32, binding Binding, _ func(shortcuts.KeyState)) error {
	b.warnOnce.Do(func() {
		slog.Warn("[hotkey] DEBUG global hotkeys are not supported on this platform; bindings are tracked but will never fire")
	})
	slog.Debug("[hotkey] DEBUG binding tracked without OS registration", "binding", binding.Normalized(), "hotkeyID", id)
	return nil
}

func (b *inertBackend) unregister(int32) error { return nil }

func (b *inertBackend) close() error { return nil }
