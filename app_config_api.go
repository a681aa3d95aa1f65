package main

import (
	"log/slog"
	"slices"
	"time"

	"gamevault/internal/config"
	"gamevault/internal/macro"
)

type configUpdatedEvent struct {
	Config             config.Config `json:"config"`
	Version            uint64        `json:"version"`
	UpdatedAtUnixMilli int64         `json:"updated_at_unix_milli"`
	// RestartRequired lists changed fields that only take effect after the
	// app restarts.
	RestartRequired []string `json:"restart_required,omitempty"`
	// External is true when the change came from editing config.yaml.
	External bool `json:"external,omitempty"`
}

// GetConfig returns loaded config.
func (a *App) GetConfig() config.Config {
	return a.getConfigSnapshot()
}

// GetConfigAndFlushWarnings returns loaded config and emits any pending startup warnings.
func (a *App) GetConfigAndFlushWarnings() config.Config {
	a.flushPendingConfigLoadWarnings()
	return a.getConfigSnapshot()
}

func (a *App) flushPendingConfigLoadWarnings() {
	ctx := a.runtimeContext()
	if ctx == nil {
		return
	}
	if warning := a.consumePendingConfigLoadWarning(); warning != "" {
		a.emitRuntimeEventWithContext(ctx, eventConfigLoadFailed, map[string]string{
			"message": warning,
		})
	}
}

// SaveConfig validates and persists cfg to disk, then updates in-memory config.
// The config:updated event carries the normalized config (with defaults filled).
func (a *App) SaveConfig(cfg config.Config) error {
	event, err := a.saveConfigWithLock(cfg)
	if err != nil {
		return err
	}
	a.applyEngineConfig(event)
	// Event emission happens outside cfgSaveMu. Concurrent saves are
	// ordered by Version; the highest version is authoritative.
	a.emitRuntimeEvent(eventConfigUpdated, event)
	return nil
}

// saveConfigWithLock persists cfg, updates the in-memory snapshot, and bumps event version under cfgSaveMu.
func (a *App) saveConfigWithLock(cfg config.Config) (configUpdatedEvent, error) {
	a.cfgSaveMu.Lock()
	defer a.cfgSaveMu.Unlock()

	normalized, err := config.Save(a.configPath, cfg)
	if err != nil {
		return configUpdatedEvent{}, err
	}
	if a.configWatcher != nil {
		a.configWatcher.Prime(normalized)
	}
	return a.swapConfigLocked(normalized, false), nil
}

// applyExternalConfig adopts a config.yaml edited outside the app.
func (a *App) applyExternalConfig(cfg config.Config) {
	a.cfgSaveMu.Lock()
	event := a.swapConfigLocked(cfg, true)
	a.cfgSaveMu.Unlock()

	a.applyEngineConfig(event)
	a.emitRuntimeEvent(eventConfigUpdated, event)
}

// swapConfigLocked replaces the snapshot and builds the update event.
// Caller must hold cfgSaveMu.
func (a *App) swapConfigLocked(next config.Config, external bool) configUpdatedEvent {
	prev := a.getConfigSnapshot()
	a.setConfigSnapshot(next)
	version := a.configEventVersion.Add(1)

	return configUpdatedEvent{
		Config:             config.Clone(next),
		Version:            version,
		UpdatedAtUnixMilli: time.Now().UnixMilli(),
		RestartRequired:    restartRequiredFields(prev, next),
		External:           external,
	}
}

// applyEngineConfig pushes the live-tunable engine settings to the runner
// and registry, dropping events older than the last one applied.
func (a *App) applyEngineConfig(event configUpdatedEvent) {
	a.engineCfgMu.Lock()
	defer a.engineCfgMu.Unlock()

	// <= so a duplicate event with the same version is also rejected.
	if event.Version <= a.engineCfgAppliedVersion {
		slog.Debug("[DEBUG-CONFIG] skipped stale engine config update",
			"received", event.Version, "applied", a.engineCfgAppliedVersion)
		return
	}
	a.engineCfgAppliedVersion = event.Version

	if a.runner == nil {
		slog.Debug("[DEBUG-CONFIG] engine not running, config stored only")
		return
	}
	policy, err := macro.ParseOverlapPolicy(event.Config.Engine.OverlapPolicy)
	if err != nil {
		// Save and Load validate the policy; this only fires on a logic error.
		slog.Warn("[WARN-CONFIG] invalid overlap policy kept previous value", "error", err)
	} else {
		a.runner.SetPolicy(policy)
	}
	a.requestReconcile()
}

// restartRequiredFields names the settings that differ between prev and
// next but are only read at startup.
func restartRequiredFields(prev, next config.Config) []string {
	var fields []string
	if config.DatabasePathFor(prev, "") != config.DatabasePathFor(next, "") {
		fields = append(fields, "database_path")
	}
	if prev.WebSocketPort != next.WebSocketPort {
		fields = append(fields, "websocket_port")
	}
	if prev.Engine.ReconcileDebounceMs != next.Engine.ReconcileDebounceMs {
		fields = append(fields, "engine.reconcile_debounce_ms")
	}
	if prev.Engine.TapHoldMs != next.Engine.TapHoldMs {
		fields = append(fields, "engine.tap_hold_ms")
	}
	if prev.Engine.ComboKeyHoldMs != next.Engine.ComboKeyHoldMs {
		fields = append(fields, "engine.combo_key_hold_ms")
	}
	if prev.Engine.ReleaseHeldOnFailure != next.Engine.ReleaseHeldOnFailure {
		fields = append(fields, "engine.release_held_on_failure")
	}
	return fields
}

func (a *App) getConfigSnapshot() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return config.Clone(a.cfg)
}

func (a *App) setConfigSnapshot(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = config.Clone(cfg)
	a.cfgMu.Unlock()
}

// reservedFromConfig returns the configured reserved shortcuts.
func (a *App) reservedFromConfig() []string {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return slices.Clone(a.cfg.ReservedShortcuts)
}
