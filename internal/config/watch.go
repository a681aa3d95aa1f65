package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an editor or an atomic
// rename produces for one save.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watcher reloads config.yaml when it changes on disk and reports configs
// that differ from the last one seen.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func(Config)
	onError  func(error)

	mu   sync.Mutex
	last Config
}

// NewWatcher returns a watcher for path. current is the config already in
// use; a reload producing an equal config is not reported.
func NewWatcher(path string, current Config, onChange func(Config), onError func(error)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		delay:    DefaultWatchDebounce,
		onChange: onChange,
		onError:  onError,
		last:     Clone(current),
	}
}

// Prime records cfg as current. Call it after saving from inside the app so
// the resulting file event is not reported back as an external edit.
func (w *Watcher) Prime(cfg Config) {
	w.mu.Lock()
	w.last = Clone(cfg)
	w.mu.Unlock()
}

// Run watches the config directory until ctx is cancelled. The directory is
// watched rather than the file because Save replaces the file by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	slog.Debug("[DEBUG-CONFIG] watching config", "path", w.path)

	debounced := debounce.New(w.delay)
	defer debounced(func() {})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			debounced(w.reload)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[WARN-CONFIG] config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// reload loads the file and reports it when it differs from the last config.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("[WARN-CONFIG] reload after external edit failed", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	if reflect.DeepEqual(cfg, w.last) {
		w.mu.Unlock()
		slog.Debug("[DEBUG-CONFIG] config event without changes", "path", w.path)
		return
	}
	w.last = Clone(cfg)
	w.mu.Unlock()

	slog.Info("[config] reloaded after external edit", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
