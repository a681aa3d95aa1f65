package shortcuts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gamevault/internal/combo"
)

// AppBinding binds an app-level action (toggle_overlay, quick_backup, ...)
// to a global shortcut.
type AppBinding struct {
	Action  string `json:"action"`
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// ValidateKey reports whether key can be registered as an app shortcut.
func ValidateKey(key string) error {
	key = strings.TrimSpace(key)
	if _, err := combo.ParseChord(key); err != nil {
		return fmt.Errorf("invalid shortcut %q: %w", key, err)
	}
	return nil
}

// AppRegistrar registers app-level shortcuts. Its accelerators take priority
// over the engine's and are handed to the Registry as its reserved list.
type AppRegistrar struct {
	svc      Service
	onAction func(action string)

	mu      sync.Mutex
	owned   OwnedSet
	actions map[string]string
}

// NewAppRegistrar returns a registrar that calls onAction when a bound
// shortcut is pressed.
func NewAppRegistrar(svc Service, onAction func(action string)) *AppRegistrar {
	return &AppRegistrar{svc: svc, onAction: onAction, actions: make(map[string]string)}
}

// Update replaces every registration with bindings. Disabled and blank
// bindings are skipped. The returned messages describe bindings that could
// not be registered; the rest are still applied.
func (a *AppRegistrar) Update(bindings []AppBinding) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, accel := range a.owned.List() {
		if err := a.svc.Unregister(accel); err != nil {
			slog.Warn("[DEBUG-SHORTCUT] failed to unregister app shortcut", "accelerator", accel, "error", err)
		}
	}
	a.owned = OwnedSet{}
	a.actions = make(map[string]string)

	checker, _ := a.svc.(RegistrationChecker)
	var problems []string
	for _, binding := range bindings {
		key := strings.TrimSpace(binding.Key)
		if !binding.Enabled || key == "" {
			continue
		}
		chord, err := combo.ParseChord(key)
		if err != nil {
			problems = append(problems, fmt.Sprintf("Failed to parse '%s': %v", key, err))
			continue
		}
		accel := chord.String()
		if a.owned.Has(accel) {
			problems = append(problems, fmt.Sprintf("Duplicate shortcut '%s'", key))
			continue
		}
		if checker != nil && checker.IsRegistered(accel) {
			if err := a.svc.Unregister(accel); err != nil {
				slog.Warn("[DEBUG-SHORTCUT] failed to clear stale app shortcut", "accelerator", accel, "error", err)
			}
		}

		action := binding.Action
		err = a.svc.Register(accel, func(state KeyState) {
			if state == Pressed && a.onAction != nil {
				a.onAction(action)
			}
		})
		if err != nil {
			problems = append(problems, fmt.Sprintf("Failed to register '%s' for '%s': %v", key, action, err))
			continue
		}
		a.owned.Add(accel)
		a.actions[accel] = action
	}

	if len(problems) > 0 {
		slog.Warn("[DEBUG-SHORTCUT] app shortcut registration problems", "count", len(problems), "problems", problems)
	}
	slog.Info("[DEBUG-SHORTCUT] app shortcuts registered", "count", a.owned.Len())
	return problems
}

// Registered returns accelerator to action for every live app shortcut.
func (a *AppRegistrar) Registered() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.actions))
	for accel, action := range a.actions {
		out[accel] = action
	}
	return out
}

// HasRegistrations reports whether any app shortcut is live.
func (a *AppRegistrar) HasRegistrations() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owned.Len() > 0
}

// Reserved returns the live app accelerators in registration order.
func (a *AppRegistrar) Reserved() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owned.List()
}

// Close unregisters every app shortcut.
func (a *AppRegistrar) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for _, accel := range a.owned.List() {
		if err := a.svc.Unregister(accel); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", accel, err))
		}
	}
	a.owned = OwnedSet{}
	a.actions = make(map[string]string)
	return errors.Join(errs...)
}
