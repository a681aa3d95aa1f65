package main

import (
	"errors"
	"fmt"
	"strings"

	"gamevault/internal/macro"
)

// GetMacros returns every stored macro.
func (a *App) GetMacros() ([]macro.Macro, error) {
	if err := a.engineReady(); err != nil {
		return nil, err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	list, err := a.store.ListMacros(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []macro.Macro{}
	}
	return list, nil
}

// SaveMacro creates or updates a macro and re-registers shortcuts.
func (a *App) SaveMacro(m macro.Macro) (macro.Macro, error) {
	if err := a.engineReady(); err != nil {
		return macro.Macro{}, err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	saved, err := a.store.SaveMacro(ctx, m)
	if err != nil {
		return macro.Macro{}, err
	}
	a.requestReconcile()
	return saved, nil
}

// DeleteMacro removes a macro and re-registers shortcuts. Running
// invocations of it are left to finish.
func (a *App) DeleteMacro(id string) error {
	if err := a.engineReady(); err != nil {
		return err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	if err := a.store.DeleteMacro(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	a.requestReconcile()
	return nil
}

// ToggleMacro sets the active flag of one macro.
func (a *App) ToggleMacro(id string, active bool) error {
	if err := a.engineReady(); err != nil {
		return err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	if err := a.store.SetMacroActive(ctx, strings.TrimSpace(id), active); err != nil {
		return err
	}
	a.requestReconcile()
	return nil
}

// RunMacro starts a stored macro as if its trigger had been pressed and
// returns the invocation handle ID. Inactive macros run too; the active flag
// only governs the trigger.
func (a *App) RunMacro(id string) (string, error) {
	if err := a.engineReady(); err != nil {
		return "", err
	}
	if a.shuttingDown.Load() {
		return "", errors.New("app is shutting down")
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	m, err := a.store.GetMacro(ctx, strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	h, err := a.runner.Trigger(a.bgCtx, m)
	if err != nil {
		return "", fmt.Errorf("run macro: %w", err)
	}
	return h.ID(), nil
}

// CancelMacro stops one running invocation. It reports whether the handle
// was still running.
func (a *App) CancelMacro(handleID string) bool {
	if a.runner == nil {
		return false
	}
	return a.runner.Cancel(strings.TrimSpace(handleID))
}

// CancelAllMacros stops every running invocation and returns how many were
// running.
func (a *App) CancelAllMacros() int {
	if a.runner == nil {
		return 0
	}
	return a.runner.CancelAll()
}

// GetRunningMacros lists live invocations.
func (a *App) GetRunningMacros() []macro.Run {
	if a.runner == nil {
		return []macro.Run{}
	}
	return a.runner.Running()
}
