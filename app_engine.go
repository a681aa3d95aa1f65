package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gamevault/internal/config"
	"gamevault/internal/macro"
	"gamevault/internal/shortcuts"
	"gamevault/internal/store"
	"gamevault/internal/workerutil"
)

// App-level actions handled in the backend. Every other action is forwarded
// to the frontend as shortcut-triggered.
const (
	actionToggleOverlay     = "toggle_overlay"
	actionToggleKeyMappings = "toggle_key_mappings"
	actionToggleMacros      = "toggle_macros"
)

const engineStoreTimeout = 5 * time.Second

var errEngineUnavailable = errors.New("shortcut engine is not running")

// EngineStatus is the engine state shown in the settings panel.
type EngineStatus struct {
	Running            bool              `json:"running"`
	KeyMappingsEnabled bool              `json:"key_mappings_enabled"`
	MacrosEnabled      bool              `json:"macros_enabled"`
	OverlapPolicy      string            `json:"overlap_policy"`
	Registered         []string          `json:"registered"`
	AppShortcuts       map[string]string `json:"app_shortcuts"`
	LastReport         shortcuts.Report  `json:"last_report"`
	RunningMacros      []macro.Run       `json:"running_macros"`
	SimulationEnabled  bool              `json:"simulation_enabled"`
}

type macroEvent struct {
	HandleID string `json:"handle_id"`
	MacroID  string `json:"macro_id"`
	Name     string `json:"name"`
	Error    string `json:"error,omitempty"`
}

type mappingReplayedEvent struct {
	MappingID string `json:"mapping_id"`
	SourceKey string `json:"source_key"`
	TargetKey string `json:"target_key"`
	Error     string `json:"error,omitempty"`
}

// initEngine builds the dispatch engine on top of svc and sim.
func (a *App) initEngine(cfg config.Config, svc hotkeyService, sim macro.Simulator) {
	policy, err := macro.ParseOverlapPolicy(cfg.Engine.OverlapPolicy)
	if err != nil {
		slog.Warn("[WARN-CONFIG] invalid overlap policy, using default", "error", err)
		policy = macro.OverlapInterleave
	}

	a.hotkeys = svc
	a.simulator = sim
	a.executor = macro.NewExecutor(sim, macro.ExecutorOptions{
		TapHold:              cfg.Engine.TapHold(),
		ComboKeyHold:         cfg.Engine.ComboKeyHold(),
		ReleaseHeldOnFailure: cfg.Engine.ReleaseHeldOnFailure,
	})
	a.runner = macro.NewRunner(a.executor, policy, macro.RunnerHooks{
		OnStart:  a.onMacroStarted,
		OnFinish: a.onMacroFinished,
	})
	a.appShortcuts = shortcuts.NewAppRegistrar(svc, a.handleAppAction)
	a.registry = shortcuts.NewRegistry(svc, shortcuts.Triggers{
		OnMapping: a.onMappingTriggered,
		OnMacro:   a.onMacroTriggered,
	}, shortcuts.RegistryOptions{
		Debounce:     cfg.Engine.ReconcileDebounce(),
		OnReconciled: a.onReconciled,
	})
}

func (a *App) engineReady() error {
	if a.store == nil || a.registry == nil || a.runner == nil {
		return errEngineUnavailable
	}
	return nil
}

func (a *App) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.bgCtx, engineStoreTimeout)
}

// engineInputs reads the desired engine state from the store. Mappings and
// macros whose kind is switched off are left out rather than filtered by
// the registry, so a disabled kind never reserves its combos.
func (a *App) engineInputs(ctx context.Context) (shortcuts.Inputs, error) {
	mappingsOn, err := a.store.GetBool(ctx, store.SettingKeyMappingsEnabled, true)
	if err != nil {
		return shortcuts.Inputs{}, err
	}
	macrosOn, err := a.store.GetBool(ctx, store.SettingMacrosEnabled, true)
	if err != nil {
		return shortcuts.Inputs{}, err
	}

	in := shortcuts.Inputs{
		Enabled:  mappingsOn || macrosOn,
		Reserved: append(a.appShortcuts.Reserved(), a.reservedFromConfig()...),
	}
	if mappingsOn {
		if in.Mappings, err = a.store.ListKeyMappings(ctx); err != nil {
			return shortcuts.Inputs{}, err
		}
	}
	if macrosOn {
		if in.Macros, err = a.store.ListMacros(ctx); err != nil {
			return shortcuts.Inputs{}, err
		}
	}
	return in, nil
}

// requestReconcile schedules a debounced reconcile from the stored state.
func (a *App) requestReconcile() {
	if a.engineReady() != nil {
		return
	}
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	ctx, cancel := a.storeContext()
	defer cancel()
	in, err := a.engineInputs(ctx)
	if err != nil {
		slog.Warn("[DEBUG-SHORTCUT] reconcile skipped: failed to read engine state", "error", err)
		return
	}
	a.registry.Update(in)
}

// reconcileNow reconciles immediately and returns the report.
func (a *App) reconcileNow() (shortcuts.Report, error) {
	if err := a.engineReady(); err != nil {
		return shortcuts.Report{}, err
	}
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	ctx, cancel := a.storeContext()
	defer cancel()
	in, err := a.engineInputs(ctx)
	if err != nil {
		return shortcuts.Report{}, fmt.Errorf("read engine state: %w", err)
	}
	return a.registry.ReconcileNow(in)
}

func (a *App) onReconciled(report shortcuts.Report) {
	a.emitRuntimeEvent(eventEngineReconciled, report)
	if len(report.Errors) > 0 {
		a.emitRuntimeEvent(eventShortcutRegErrors, report.Errors)
	}
}

// onMappingTriggered runs on the hotkey callback goroutine; the replay is
// handed to a guarded goroutine so the callback returns at once.
func (a *App) onMappingTriggered(mapping macro.KeyMapping) {
	if a.shuttingDown.Load() {
		return
	}
	workerutil.Go(&a.bgWG, "keymapper-replay", func() {
		event := mappingReplayedEvent{
			MappingID: mapping.ID,
			SourceKey: mapping.SourceKey,
			TargetKey: mapping.TargetKey,
		}
		if err := a.executor.ReplayCombo(a.bgCtx, mapping.TargetKey); err != nil {
			slog.Warn("[DEBUG-MACRO] key mapping replay failed",
				"mapping", mapping.Name, "target", mapping.TargetKey, "error", err)
			event.Error = err.Error()
		}
		a.emitRuntimeEvent(eventKeymapperReplayed, event)
	}, nil)
}

func (a *App) onMacroTriggered(m macro.Macro) {
	if a.shuttingDown.Load() {
		return
	}
	if _, err := a.runner.Trigger(a.bgCtx, m); err != nil {
		slog.Debug("[DEBUG-MACRO] macro trigger rejected", "macro", m.Name, "error", err)
	}
}

func (a *App) onMacroStarted(h *macro.Handle) {
	a.emitRuntimeEvent(eventMacroStarted, macroEventFor(h, nil))
}

func (a *App) onMacroFinished(h *macro.Handle, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		a.emitRuntimeEvent(eventMacroFailed, macroEventFor(h, err))
		return
	}
	a.emitRuntimeEvent(eventMacroFinished, macroEventFor(h, nil))
}

func macroEventFor(h *macro.Handle, err error) macroEvent {
	event := macroEvent{HandleID: h.ID(), MacroID: h.MacroID(), Name: h.Name()}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// handleAppAction dispatches a pressed app-level shortcut.
func (a *App) handleAppAction(action string) {
	slog.Debug("[DEBUG-SHORTCUT] app shortcut pressed", "action", action)
	switch action {
	case actionToggleOverlay:
		a.toggleOverlay()
	case actionToggleKeyMappings:
		a.flipEngineFlag(store.SettingKeyMappingsEnabled)
	case actionToggleMacros:
		a.flipEngineFlag(store.SettingMacrosEnabled)
	default:
		a.emitRuntimeEvent(eventShortcutTriggered, action)
	}
}

func (a *App) flipEngineFlag(key string) {
	if a.engineReady() != nil {
		return
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	current, err := a.store.GetBool(ctx, key, true)
	if err != nil {
		slog.Warn("[DEBUG-SHORTCUT] failed to read engine flag", "key", key, "error", err)
		return
	}
	if err := a.setEngineFlag(key, !current); err != nil {
		slog.Warn("[DEBUG-SHORTCUT] failed to flip engine flag", "key", key, "error", err)
	}
}

// setEngineFlag persists a kind switch, reconciles, and tells the frontend.
func (a *App) setEngineFlag(key string, enabled bool) error {
	if err := a.engineReady(); err != nil {
		return err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	if err := a.store.SetBool(ctx, key, enabled); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	a.requestReconcile()
	a.emitRuntimeEvent(eventEngineFlagsChanged, map[string]bool{key: enabled})
	return nil
}

// GetEngineStatus returns the current engine state.
func (a *App) GetEngineStatus() (EngineStatus, error) {
	status := EngineStatus{
		Registered:        []string{},
		AppShortcuts:      map[string]string{},
		RunningMacros:     []macro.Run{},
		SimulationEnabled: simulationSupportedFn(),
	}
	if a.engineReady() != nil {
		return status, nil
	}
	ctx, cancel := a.storeContext()
	defer cancel()

	var err error
	if status.KeyMappingsEnabled, err = a.store.GetBool(ctx, store.SettingKeyMappingsEnabled, true); err != nil {
		return EngineStatus{}, err
	}
	if status.MacrosEnabled, err = a.store.GetBool(ctx, store.SettingMacrosEnabled, true); err != nil {
		return EngineStatus{}, err
	}
	status.Running = true
	status.OverlapPolicy = string(a.runner.Policy())
	status.Registered = a.registry.Owned()
	status.AppShortcuts = a.appShortcuts.Registered()
	status.LastReport = a.registry.LastReport()
	status.RunningMacros = a.runner.Running()
	return status, nil
}

// SetKeyMappingsEnabled switches every key mapping on or off.
func (a *App) SetKeyMappingsEnabled(enabled bool) error {
	return a.setEngineFlag(store.SettingKeyMappingsEnabled, enabled)
}

// SetMacrosEnabled switches every macro trigger on or off.
func (a *App) SetMacrosEnabled(enabled bool) error {
	return a.setEngineFlag(store.SettingMacrosEnabled, enabled)
}

// ReconcileShortcuts re-registers engine shortcuts now and returns the report.
func (a *App) ReconcileShortcuts() (shortcuts.Report, error) {
	return a.reconcileNow()
}
