package main

import (
	"context"
	"testing"
)

func TestEmitRuntimeEventSkipsFrontendWithoutContext(t *testing.T) {
	events := captureRuntimeEvents(t)
	app := NewApp()

	app.emitRuntimeEvent(eventEngineReconciled, nil)
	if got := events.count(eventEngineReconciled); got != 0 {
		t.Fatalf("events emitted without runtime context = %d, want 0", got)
	}
}

func TestEmitRuntimeEventDeliversPayload(t *testing.T) {
	events := captureRuntimeEvents(t)
	app := NewApp()
	app.setRuntimeContext(context.Background())

	payload := map[string]bool{"visible": true}
	app.emitRuntimeEvent(eventOverlayToggled, payload)

	got := events.named(eventOverlayToggled)
	if len(got) != 1 {
		t.Fatalf("overlay:toggled events = %d, want 1", len(got))
	}
	if m, ok := got[0].payload.(map[string]bool); !ok || !m["visible"] {
		t.Fatalf("payload = %#v, want %#v", got[0].payload, payload)
	}
}

func TestEmitRuntimeEventWithContextOverridesAppContext(t *testing.T) {
	var gotCtx context.Context
	orig := runtimeEventsEmitFn
	runtimeEventsEmitFn = func(ctx context.Context, _ string, _ ...any) { gotCtx = ctx }
	t.Cleanup(func() { runtimeEventsEmitFn = orig })

	type ctxKey struct{}
	app := NewApp()
	app.setRuntimeContext(context.Background())
	want := context.WithValue(context.Background(), ctxKey{}, "explicit")

	app.emitRuntimeEventWithContext(want, eventMacroStarted, nil)
	if gotCtx != want {
		t.Fatal("emitRuntimeEventWithContext() did not use the given context")
	}
}
