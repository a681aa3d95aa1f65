// Package config loads and saves the GameVault YAML configuration and
// watches it for external edits.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"gamevault/internal/combo"
)

const (
	maxValidPort           = 65535
	maxReconcileDebounceMs = 5000
	maxHoldMs              = 2000
)

// Overlap policy names accepted by engine.overlap_policy.
const (
	OverlapInterleave = "interleave"
	OverlapIgnore     = "ignore"
	OverlapQueue      = "queue"
)

// decodeDocumentFn is a test seam for the second, untyped decode used to
// spot unknown keys.
var decodeDocumentFn = func(raw []byte, out *map[string]any) error {
	return yaml.Unmarshal(raw, out)
}

// Config is GameVault runtime configuration.
type Config struct {
	// DatabasePath is the SQLite file. Empty means gamevault.db next to
	// config.yaml. ~ and environment variables are expanded.
	DatabasePath string `yaml:"database_path,omitempty" json:"database_path,omitempty"`
	// WebSocketPort is the overlay event stream port. 0 lets the OS pick.
	WebSocketPort int `yaml:"websocket_port" json:"websocket_port"`
	// ReservedShortcuts are combos the engine must never claim, in addition
	// to the app-level shortcuts.
	ReservedShortcuts []string     `yaml:"reserved_shortcuts,omitempty" json:"reserved_shortcuts,omitempty"`
	Engine            EngineConfig `yaml:"engine" json:"engine"`
}

// EngineConfig tunes the shortcut and macro dispatch engine.
type EngineConfig struct {
	ReconcileDebounceMs int    `yaml:"reconcile_debounce_ms" json:"reconcile_debounce_ms"`
	TapHoldMs           int    `yaml:"tap_hold_ms" json:"tap_hold_ms"`
	ComboKeyHoldMs      int    `yaml:"combo_key_hold_ms" json:"combo_key_hold_ms"`
	OverlapPolicy       string `yaml:"overlap_policy" json:"overlap_policy"`
	// ReleaseHeldOnFailure lifts keys a failed macro left pressed.
	// Cancellation always releases them.
	ReleaseHeldOnFailure bool `yaml:"release_held_on_failure" json:"release_held_on_failure"`
}

// ReconcileDebounce returns the debounce as a duration.
func (e EngineConfig) ReconcileDebounce() time.Duration {
	return time.Duration(e.ReconcileDebounceMs) * time.Millisecond
}

// TapHold returns the default key-code tap hold.
func (e EngineConfig) TapHold() time.Duration {
	return time.Duration(e.TapHoldMs) * time.Millisecond
}

// ComboKeyHold returns the default hold for named combo taps.
func (e EngineConfig) ComboKeyHold() time.Duration {
	return time.Duration(e.ComboKeyHoldMs) * time.Millisecond
}

// DefaultConfig returns default values.
func DefaultConfig() Config {
	return Config{
		ReservedShortcuts: []string{},
		Engine: EngineConfig{
			ReconcileDebounceMs: 150,
			TapHoldMs:           50,
			ComboKeyHoldMs:      30,
			OverlapPolicy:       OverlapInterleave,
		},
	}
}

// Clone returns a deep copy of cfg.
func Clone(src Config) Config {
	dst := src
	if src.ReservedShortcuts != nil {
		dst.ReservedShortcuts = slices.Clone(src.ReservedShortcuts)
	}
	return dst
}

// Load reads the config file. A missing or empty file yields defaults, and
// a file that does not parse yields defaults together with the error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readCapped(path, maxConfigFileBytes)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return cfg, err
	case len(raw) == 0:
		return cfg, nil
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	var doc map[string]any
	if err := decodeDocumentFn(raw, &doc); err != nil {
		slog.Warn("[WARN-CONFIG] cannot check config for unknown fields", "error", err)
	} else {
		for _, field := range unknownFields(doc) {
			slog.Warn("[WARN-CONFIG] unknown field ignored", "field", field)
		}
	}
	return cfg, normalize(&cfg)
}

// EnsureFile loads path and writes the defaults there when it does not
// exist yet.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	return Save(path, cfg)
}

// Save normalizes cfg and atomically writes it to path, which must lie in
// the config directory. It returns the config as written.
func Save(path string, cfg Config) (Config, error) {
	target, err := resolveSavePath(path)
	if err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	if err := normalize(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := writeFileAtomic(target, raw); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", target)
	return cfg, nil
}

// normalize fills defaults and repairs out-of-range values in place. A
// hand-edited file should never stop the app from starting, so only an
// unknown overlap policy is reported as an error.
func normalize(cfg *Config) error {
	if reflect.DeepEqual(*cfg, Config{}) {
		*cfg = DefaultConfig()
		return nil
	}
	defaults := DefaultConfig().Engine

	if cfg.WebSocketPort < 0 || cfg.WebSocketPort > maxValidPort {
		slog.Warn("[WARN-CONFIG] websocket_port out of range, using 0 (auto-assign)",
			"configured", cfg.WebSocketPort, "max", maxValidPort)
		cfg.WebSocketPort = 0
	}
	cfg.DatabasePath = normalizeDatabasePath(cfg.DatabasePath)
	cfg.ReservedShortcuts = sanitizeReservedShortcuts(cfg.ReservedShortcuts)

	e := &cfg.Engine
	e.ReconcileDebounceMs = clampMillis("engine.reconcile_debounce_ms", e.ReconcileDebounceMs,
		defaults.ReconcileDebounceMs, maxReconcileDebounceMs)
	e.TapHoldMs = clampMillis("engine.tap_hold_ms", e.TapHoldMs, defaults.TapHoldMs, maxHoldMs)
	e.ComboKeyHoldMs = clampMillis("engine.combo_key_hold_ms", e.ComboKeyHoldMs,
		defaults.ComboKeyHoldMs, maxHoldMs)

	switch policy := strings.ToLower(strings.TrimSpace(e.OverlapPolicy)); policy {
	case "":
		e.OverlapPolicy = defaults.OverlapPolicy
	case OverlapInterleave, OverlapIgnore, OverlapQueue:
		e.OverlapPolicy = policy
	default:
		return fmt.Errorf("engine.overlap_policy %q is not one of interleave, ignore, queue", e.OverlapPolicy)
	}
	return nil
}

// clampMillis maps zero to def. Negative or too large values also become
// def, with a warning.
func clampMillis(field string, value, def, maxValue int) int {
	if value == 0 {
		return def
	}
	if value < 0 || value > maxValue {
		slog.Warn("[WARN-CONFIG] value out of range, using default",
			"field", field, "configured", value, "max", maxValue, "default", def)
		return def
	}
	return value
}

// sanitizeReservedShortcuts trims entries, drops empties and keeps the first
// of any entries naming the same combo.
func sanitizeReservedShortcuts(entries []string) []string {
	out := make([]string, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		canonical := combo.Canonical(entry)
		if canonical == "" {
			slog.Warn("[WARN-CONFIG] reserved_shortcuts entry is empty, skipping", "index", i)
			continue
		}
		if first, dup := seen[canonical]; dup {
			slog.Warn("[WARN-CONFIG] reserved_shortcuts entry duplicates an earlier one, skipping",
				"entry", entry, "kept", first)
			continue
		}
		seen[canonical] = entry
		out = append(out, entry)
	}
	return out
}

// knownFields lists every accepted key as a dotted path. yaml.Unmarshal
// drops anything else silently.
var knownFields = map[string]bool{
	"database_path":                  true,
	"websocket_port":                 true,
	"reserved_shortcuts":             true,
	"engine":                         true,
	"engine.reconcile_debounce_ms":   true,
	"engine.tap_hold_ms":             true,
	"engine.combo_key_hold_ms":       true,
	"engine.overlap_policy":          true,
	"engine.release_held_on_failure": true,
}

// unknownFields returns the sorted dotted paths in doc that Config does not
// define. Only the engine section is descended into.
func unknownFields(doc map[string]any) []string {
	var unknown []string
	for key, value := range doc {
		if !knownFields[key] {
			unknown = append(unknown, key)
			continue
		}
		section, ok := value.(map[string]any)
		if !ok || key != "engine" {
			continue
		}
		for child := range section {
			if path := key + "." + child; !knownFields[path] {
				unknown = append(unknown, path)
			}
		}
	}
	slices.Sort(unknown)
	return unknown
}
