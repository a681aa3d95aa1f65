package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gamevault/internal/combo"
	"gamevault/internal/shortcuts"
	"gamevault/internal/store"
)

// reloadAppShortcuts registers the stored app shortcuts.
func (a *App) reloadAppShortcuts() {
	if a.engineReady() != nil {
		return
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	stored, err := a.store.ListAppShortcuts(ctx)
	if err != nil {
		slog.Warn("[DEBUG-SHORTCUT] failed to load app shortcuts", "error", err)
		return
	}
	bindings := make([]shortcuts.AppBinding, 0, len(stored))
	for _, sc := range stored {
		bindings = append(bindings, shortcuts.AppBinding{
			Action:  sc.ActionID,
			Key:     sc.Keys,
			Enabled: sc.IsActive && sc.IsGlobal,
		})
	}
	a.applyAppBindings(bindings)
}

// applyAppBindings re-registers app shortcuts. The engine first gives up any
// combo the new bindings claim, because a later engine reconcile unregisters
// everything it owns and would otherwise take the app binding down with it.
func (a *App) applyAppBindings(bindings []shortcuts.AppBinding) []string {
	a.releaseEngineCombos(bindings)
	problems := a.appShortcuts.Update(bindings)
	if len(problems) > 0 {
		a.emitRuntimeEvent(eventShortcutRegErrors, problems)
	}
	a.requestReconcile()
	return problems
}

func (a *App) releaseEngineCombos(bindings []shortcuts.AppBinding) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	if len(a.registry.Owned()) == 0 {
		return
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	in, err := a.engineInputs(ctx)
	if err != nil {
		slog.Warn("[DEBUG-SHORTCUT] failed to read engine state before app shortcut update", "error", err)
		return
	}
	for _, binding := range bindings {
		if binding.Enabled && strings.TrimSpace(binding.Key) != "" {
			in.Reserved = append(in.Reserved, binding.Key)
		}
	}
	if _, err := a.registry.ReconcileNow(in); err != nil {
		slog.Warn("[DEBUG-SHORTCUT] engine release before app shortcut update failed", "error", err)
	}
}

// GetAppShortcuts returns the stored app shortcuts.
func (a *App) GetAppShortcuts() ([]store.AppShortcut, error) {
	if err := a.engineReady(); err != nil {
		return nil, err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	list, err := a.store.ListAppShortcuts(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []store.AppShortcut{}
	}
	return list, nil
}

// UpdateShortcuts persists bindings and re-registers every app shortcut.
// Bindings that fail to register are reported through the
// shortcut-registration-error event; the rest stay active.
func (a *App) UpdateShortcuts(bindings []shortcuts.AppBinding) error {
	if err := a.engineReady(); err != nil {
		return err
	}
	ctx, cancel := a.storeContext()
	defer cancel()

	var errs []error
	for _, binding := range bindings {
		action := strings.TrimSpace(binding.Action)
		if action == "" {
			errs = append(errs, errors.New("binding without action"))
			continue
		}
		sc, err := a.store.GetAppShortcut(ctx, action)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			sc = store.AppShortcut{ActionID: action, IsGlobal: true}
		}
		sc.Keys = strings.TrimSpace(binding.Key)
		sc.IsActive = binding.Enabled
		if _, err := a.store.SaveAppShortcut(ctx, sc); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("save app shortcuts: %w", err)
	}
	a.applyAppBindings(bindings)
	return nil
}

// CheckShortcutsRegistered reports whether any app shortcut is live.
func (a *App) CheckShortcutsRegistered() bool {
	if a.appShortcuts == nil {
		return false
	}
	return a.appShortcuts.HasRegistrations()
}

// GetRegisteredShortcuts returns accelerator to action for live app shortcuts.
func (a *App) GetRegisteredShortcuts() map[string]string {
	if a.appShortcuts == nil {
		return map[string]string{}
	}
	return a.appShortcuts.Registered()
}

// ValidateShortcutKey reports whether key can be bound to an app shortcut.
func (a *App) ValidateShortcutKey(key string) (bool, error) {
	if err := shortcuts.ValidateKey(key); err != nil {
		return false, err
	}
	return true, nil
}

// ComboToAccelerator converts a recorded combo such as "Ctrl+Shift+G" to
// accelerator form.
func (a *App) ComboToAccelerator(raw string) string {
	return combo.ToAccelerator(raw)
}

// AcceleratorToDisplay converts an accelerator to the label shown in the UI.
func (a *App) AcceleratorToDisplay(accel string) string {
	return combo.ToDisplay(accel)
}

// IsComboRegisterable reports whether raw may be used as an engine trigger.
func (a *App) IsComboRegisterable(raw string) bool {
	return combo.IsRegisterable(raw)
}
