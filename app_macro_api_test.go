package main

import (
	"errors"
	"testing"
	"time"

	"gamevault/internal/combo"
	"gamevault/internal/macro"
	"gamevault/internal/store"
	"gamevault/internal/testutil"
)

func TestKeyMappingCRUD(t *testing.T) {
	h := newEngineTestApp(t)

	saved := saveMapping(t, h.app, "Jump", " Ctrl+Alt+1 ", "F5")
	if saved.ID == "" || saved.SourceKey != "Ctrl+Alt+1" {
		t.Fatalf("SaveKeyMapping() = %+v, want trimmed source and an ID", saved)
	}
	if err := h.app.ToggleKeyMapping(saved.ID, false); err != nil {
		t.Fatalf("ToggleKeyMapping() error = %v", err)
	}
	list, err := h.app.GetKeyMappings()
	if err != nil {
		t.Fatalf("GetKeyMappings() error = %v", err)
	}
	if len(list) != 1 || list[0].IsActive {
		t.Fatalf("GetKeyMappings() = %+v, want one inactive mapping", list)
	}
	if report := mustReconcile(t, h.app); len(report.Registered) != 0 {
		t.Fatalf("Registered = %v, want none for an inactive mapping", report.Registered)
	}

	if err := h.app.DeleteKeyMapping(saved.ID); err != nil {
		t.Fatalf("DeleteKeyMapping() error = %v", err)
	}
	if err := h.app.DeleteKeyMapping(saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second DeleteKeyMapping() error = %v, want ErrNotFound", err)
	}
	if list, err := h.app.GetKeyMappings(); err != nil || len(list) != 0 {
		t.Fatalf("GetKeyMappings() = %v, %v; want empty", list, err)
	}
}

func TestSaveKeyMappingRejectsIncomplete(t *testing.T) {
	h := newEngineTestApp(t)
	if _, err := h.app.SaveKeyMapping(macro.KeyMapping{Name: "Half", SourceKey: "Ctrl+1"}); err == nil {
		t.Fatal("SaveKeyMapping() expected error without a target key")
	}
}

func TestMacroCRUD(t *testing.T) {
	h := newEngineTestApp(t)

	saved := saveMacro(t, h.app, "Burst", "Ctrl+Alt+2", macro.KeyTap{KeyCode: combo.VK('A')})
	if err := h.app.ToggleMacro(saved.ID, false); err != nil {
		t.Fatalf("ToggleMacro() error = %v", err)
	}
	list, err := h.app.GetMacros()
	if err != nil {
		t.Fatalf("GetMacros() error = %v", err)
	}
	if len(list) != 1 || list[0].IsActive || len(list[0].Actions) != 1 {
		t.Fatalf("GetMacros() = %+v, want one inactive macro with one action", list)
	}
	if err := h.app.DeleteMacro(saved.ID); err != nil {
		t.Fatalf("DeleteMacro() error = %v", err)
	}
	if _, err := h.app.RunMacro(saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("RunMacro(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestRunAndCancelMacro(t *testing.T) {
	h := newEngineTestApp(t)
	h.keyboard.block = make(chan struct{})
	t.Cleanup(func() { close(h.keyboard.block) })

	m := saveMacro(t, h.app, "Hold", "Ctrl+Alt+3",
		macro.KeyTap{KeyCode: combo.VK('A')},
		macro.KeyTap{KeyCode: combo.VK('B')},
	)
	// An inactive macro can still be run by hand.
	if err := h.app.ToggleMacro(m.ID, false); err != nil {
		t.Fatalf("ToggleMacro() error = %v", err)
	}

	handleID, err := h.app.RunMacro(m.ID)
	if err != nil {
		t.Fatalf("RunMacro() error = %v", err)
	}
	testutil.WaitUntil(t, 2*time.Second, "macro:started", func() bool {
		return h.events.count(eventMacroStarted) == 1
	})

	running := h.app.GetRunningMacros()
	if len(running) != 1 || running[0].HandleID != handleID || running[0].MacroID != m.ID {
		t.Fatalf("GetRunningMacros() = %+v, want handle %s", running, handleID)
	}

	if !h.app.CancelMacro(handleID) {
		t.Fatal("CancelMacro() = false for a running handle")
	}
	testutil.WaitUntil(t, 2*time.Second, "macro:finished", func() bool {
		return h.events.count(eventMacroFinished) == 1
	})
	if got := h.events.count(eventMacroFailed); got != 0 {
		t.Fatalf("macro:failed events = %d, want 0 for a cancellation", got)
	}
	if h.app.CancelMacro(handleID) {
		t.Fatal("CancelMacro() = true for a finished handle")
	}
	if got := h.app.GetRunningMacros(); len(got) != 0 {
		t.Fatalf("GetRunningMacros() = %+v, want none", got)
	}
}

func TestCancelAllMacros(t *testing.T) {
	h := newEngineTestApp(t)
	h.keyboard.block = make(chan struct{})
	t.Cleanup(func() { close(h.keyboard.block) })

	m := saveMacro(t, h.app, "Hold", "Ctrl+Alt+3", macro.KeyTap{KeyCode: combo.VK('A')})
	for range 2 {
		if _, err := h.app.RunMacro(m.ID); err != nil {
			t.Fatalf("RunMacro() error = %v", err)
		}
	}
	if got := h.app.CancelAllMacros(); got != 2 {
		t.Fatalf("CancelAllMacros() = %d, want 2", got)
	}
	testutil.WaitUntil(t, 2*time.Second, "both runs to finish", func() bool {
		return len(h.app.GetRunningMacros()) == 0
	})
}

func TestRunMacroRejectedWhileShuttingDown(t *testing.T) {
	h := newEngineTestApp(t)
	m := saveMacro(t, h.app, "Burst", "Ctrl+Alt+2", macro.KeyTap{KeyCode: combo.VK('A')})
	h.app.shuttingDown.Store(true)
	if _, err := h.app.RunMacro(m.ID); err == nil {
		t.Fatal("RunMacro() expected error during shutdown")
	}
}
