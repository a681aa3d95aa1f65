package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcherReloadReportsOnlyChanges(t *testing.T) {
	path := writeConfig(t, "websocket_port: 9100\n")
	current, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var got []Config
	w := NewWatcher(path, current, func(cfg Config) { got = append(got, cfg) }, nil)

	w.reload()
	if len(got) != 0 {
		t.Fatalf("reload() of unchanged file reported %d changes", len(got))
	}

	if err := os.WriteFile(path, []byte("websocket_port: 9200\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	w.reload()
	if len(got) != 1 || got[0].WebSocketPort != 9200 {
		t.Fatalf("reload() reported %+v, want one change to port 9200", got)
	}

	w.Prime(got[0])
	w.reload()
	if len(got) != 1 {
		t.Fatalf("reload() after Prime reported again: %d", len(got))
	}
}

func TestWatcherReloadReportsErrors(t *testing.T) {
	path := writeConfig(t, "engine:\n  overlap_policy: nope\n")
	var gotErr error
	w := NewWatcher(path, DefaultConfig(), func(Config) { t.Fatal("onChange called for invalid config") },
		func(err error) { gotErr = err })
	w.reload()
	if gotErr == nil {
		t.Fatal("reload() did not report the validation error")
	}
}

func TestWatcherRelevant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w := NewWatcher(path, DefaultConfig(), nil, nil)
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: path, Op: fsnotify.Write}, want: true},
		{name: "rename into place", event: fsnotify.Event{Name: path, Op: fsnotify.Create}, want: true},
		{name: "chmod only", event: fsnotify.Event{Name: path, Op: fsnotify.Chmod}, want: false},
		{name: "temp file", event: fsnotify.Event{Name: path + ".tmp", Op: fsnotify.Write}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Fatalf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatcherRunPicksUpExternalEdit(t *testing.T) {
	path := writeConfig(t, "websocket_port: 9300\n")
	current, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	changes := make(chan Config, 4)
	w := NewWatcher(path, current, func(cfg Config) { changes <- cfg }, nil)
	w.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() {
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	// Keep writing until the watcher is registered and reports the edit.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changes:
			if cfg.WebSocketPort != 9400 {
				t.Fatalf("reported port = %d, want 9400", cfg.WebSocketPort)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("websocket_port: 9400\n"), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
		case <-deadline:
			t.Fatal("watcher did not report the external edit")
		}
	}
}
