package main

import (
	"context"
	"log/slog"
)

// Runtime events. Every event except the session-log ping is also
// broadcast to overlay clients on the WebSocket hub.
const (
	eventShortcutTriggered   = "shortcut-triggered"
	eventShortcutRegErrors   = "shortcut-registration-error"
	eventEngineReconciled    = "engine:reconciled"
	eventEngineFlagsChanged  = "engine:flags-changed"
	eventMacroStarted        = "macro:started"
	eventMacroFinished       = "macro:finished"
	eventMacroFailed         = "macro:failed"
	eventKeymapperReplayed   = "keymapper:replayed"
	eventOverlayToggled      = "overlay:toggled"
	eventConfigUpdated       = "config:updated"
	eventConfigLoadFailed    = "config:load-failed"
	eventWorkerPanic         = "app:worker-panic"
	eventSessionLogUpdated   = "app:session-log-updated"
	eventAppActivatedByOther = "app:activated"
)

// emitRuntimeEvent emits via the app context and delegates to emitRuntimeEventWithContext.
func (a *App) emitRuntimeEvent(name string, payload any) {
	a.emitRuntimeEventWithContext(a.runtimeContext(), name, payload)
}

// emitRuntimeEventWithContext emits a runtime event to the frontend and the
// overlay hub. The frontend leg is skipped while ctx is nil; overlay
// clients still receive the event.
func (a *App) emitRuntimeEventWithContext(ctx context.Context, name string, payload any) {
	if a.wsHub != nil {
		a.wsHub.Broadcast(name, payload)
	}
	if ctx == nil {
		slog.Debug("[EVENT] runtime event not sent to frontend: app context is nil", "event", name)
		return
	}
	runtimeEventsEmitFn(ctx, name, payload)
}
