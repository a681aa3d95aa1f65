package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gamevault/internal/config"
	"gamevault/internal/hotkeys"
	"gamevault/internal/input"
	"gamevault/internal/ipc"
	"gamevault/internal/macro"
	"gamevault/internal/sessionlog"
	"gamevault/internal/store"
	"gamevault/internal/workerutil"
	"gamevault/internal/wsserver"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

type appRuntimeLogger interface {
	Warningf(context.Context, string, ...any)
	Infof(context.Context, string, ...any)
	Errorf(context.Context, string, ...any)
}

type wailsRuntimeLogger struct{}

func formatRuntimeLogMessage(message string, args ...any) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func (wailsRuntimeLogger) Warningf(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Warn(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogWarningf(ctx, message, args...)
}

func (wailsRuntimeLogger) Infof(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Info(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogInfof(ctx, message, args...)
}

func (wailsRuntimeLogger) Errorf(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Error(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogErrorf(ctx, message, args...)
}

var runtimeLogger appRuntimeLogger = wailsRuntimeLogger{}

var (
	runtimeEventsEmitFn           = runtime.EventsEmit
	newPipeServerFn               = ipc.NewPipeServer
	openStoreFn                   = store.Open
	newHotkeyServiceFn            = func() hotkeyService { return hotkeys.NewService() }
	newSimulatorFn                = func() macro.Simulator { return input.Keyboard{} }
	runtimeWindowIsMinimisedFn    = runtime.WindowIsMinimised
	runtimeWindowHideFn           = runtime.WindowHide
	runtimeWindowShowFn           = runtime.WindowShow
	runtimeWindowUnminimiseFn     = runtime.WindowUnminimise
	runtimeWindowSetAlwaysOnTopFn = runtime.WindowSetAlwaysOnTop
)

const (
	shutdownWaitTimeout = 10 * time.Second
	storeOpenTimeout    = 10 * time.Second
)

func (a *App) addPendingConfigLoadWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	a.startupWarnMu.Lock()
	a.configLoadWarnings = append(a.configLoadWarnings, trimmed)
	a.startupWarnMu.Unlock()
}

func (a *App) consumePendingConfigLoadWarning() string {
	a.startupWarnMu.Lock()
	defer a.startupWarnMu.Unlock()
	if len(a.configLoadWarnings) == 0 {
		return ""
	}
	message := strings.Join(a.configLoadWarnings, "\n")
	a.configLoadWarnings = nil
	return message
}

func (a *App) startup(ctx context.Context) {
	a.setRuntimeContext(ctx)
	a.setWindowVisible(true)

	a.configPath = config.DefaultPath()
	for _, message := range config.ConsumeDefaultPathWarnings() {
		a.addPendingConfigLoadWarning(message)
	}
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// Config failures are non-fatal: run with defaults and tell the user.
		cfg = config.DefaultConfig()
		a.addPendingConfigLoadWarning(
			"Failed to load config file at startup. Running with defaults. Error: " + err.Error(),
		)
		runtimeLogger.Warningf(ctx, "failed to load config from %s: %v", a.configPath, err)
	}
	a.setConfigSnapshot(cfg)

	if err := a.sessionLog.Open(filepath.Join(filepath.Dir(a.configPath), sessionlog.DirName)); err != nil {
		slog.Warn("[session-log] file persistence unavailable", "error", err)
	}

	a.startWebSocketHub(ctx, cfg)

	if err := a.openStore(cfg); err != nil {
		runtimeLogger.Errorf(ctx, "store open failed: %v", err)
		a.addPendingConfigLoadWarning(
			"Failed to open the GameVault database. Key mappings and macros are unavailable. Error: " + err.Error(),
		)
	} else {
		a.initEngine(cfg, newHotkeyServiceFn(), newSimulatorFn())
		a.reloadAppShortcuts()
		a.requestReconcile()
	}

	a.pipeServer = newPipeServerFn("", ipc.ExecutorFunc(a.executeControl))
	if err := a.pipeServer.Start(); err != nil {
		runtimeLogger.Errorf(ctx, "control pipe failed: %v", err)
		a.pipeServer = nil
	} else {
		runtimeLogger.Infof(ctx, "control pipe listening: %s", a.pipeServer.PipeName())
	}

	a.startConfigWatcher(cfg)
	a.flushPendingConfigLoadWarnings()
}

func (a *App) openStore(cfg config.Config) error {
	ctx, cancel := context.WithTimeout(a.bgCtx, storeOpenTimeout)
	defer cancel()
	st, err := openStoreFn(ctx, config.DatabasePathFor(cfg, a.configPath))
	if err != nil {
		return err
	}
	a.store = st
	return nil
}

func (a *App) startWebSocketHub(ctx context.Context, cfg config.Config) {
	hub := wsserver.NewHub(wsserver.HubOptions{
		Addr: net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.WebSocketPort)),
	})
	if err := hub.Start(a.bgCtx); err != nil {
		runtimeLogger.Warningf(ctx, "overlay event stream unavailable: %v", err)
		return
	}
	a.wsHub = hub
	runtimeLogger.Infof(ctx, "overlay event stream listening: %s", hub.URL())
}

func (a *App) startConfigWatcher(cfg config.Config) {
	a.configWatcher = config.NewWatcher(a.configPath, cfg, a.applyExternalConfig, func(err error) {
		a.emitRuntimeEvent(eventConfigLoadFailed, map[string]string{
			"message": "Config file edit was ignored: " + err.Error(),
		})
	})
	workerutil.Supervise(a.bgCtx, "config-watcher", &a.bgWG, func(ctx context.Context) {
		if err := a.configWatcher.Run(ctx); err != nil {
			slog.Warn("[WARN-CONFIG] config watcher stopped", "error", err)
		}
	}, a.workerPolicy())
}

// workerPolicy restarts panicking workers and tells the frontend about it.
func (a *App) workerPolicy() workerutil.Policy {
	return workerutil.Policy{
		Stopping: a.shuttingDown.Load,
		OnPanic: func(worker string, attempt int) {
			a.emitRuntimeEvent(eventWorkerPanic, map[string]any{"worker": worker, "attempt": attempt})
		},
	}
}

// shutdown tears the engine down before anything it depends on. Macros are
// cancelled first so held keys are released while the simulator is still
// usable.
func (a *App) shutdown(_ context.Context) {
	a.shuttingDown.Store(true)
	logCtx := a.runtimeContext()

	if a.runner != nil {
		a.runner.Shutdown()
	}
	if a.registry != nil {
		if err := a.registry.Dispose(); err != nil {
			runtimeLogger.Warningf(logCtx, "shortcut registry dispose failed: %v", err)
		}
	}
	if a.appShortcuts != nil {
		if err := a.appShortcuts.Close(); err != nil {
			runtimeLogger.Warningf(logCtx, "app shortcut unregister failed: %v", err)
		}
	}
	if a.hotkeys != nil {
		if err := a.hotkeys.Close(); err != nil {
			runtimeLogger.Warningf(logCtx, "hotkeys stop failed: %v", err)
		}
	}

	a.bgCancel()
	var g errgroup.Group
	g.Go(func() error {
		if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
			return fmt.Errorf("timed out waiting for background workers")
		}
		return nil
	})
	if a.pipeServer != nil {
		g.Go(func() error {
			if err := a.pipeServer.Stop(); err != nil {
				return fmt.Errorf("control pipe stop: %w", err)
			}
			return nil
		})
	}
	if a.wsHub != nil {
		g.Go(func() error {
			if err := a.wsHub.Stop(); err != nil {
				return fmt.Errorf("overlay event stream stop: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		runtimeLogger.Warningf(logCtx, "shutdown: %v", err)
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			runtimeLogger.Warningf(logCtx, "store close failed: %v", err)
		}
	}
	if err := a.sessionLog.Close(); err != nil {
		slog.Warn("[session-log] failed to close log file", "error", err)
	}
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	// The waiting goroutine may outlive timeout when waitFn blocks; this is
	// only used on shutdown where completion is expected.
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// bringWindowToFront shows and raises the application window.
// Used when a second instance signals the first to activate.
func (a *App) bringWindowToFront() {
	ctx := a.runtimeContext()
	if ctx == nil {
		slog.Warn("[DEBUG-IPC] bringWindowToFront dropped because runtime context is nil")
		return
	}
	a.raiseWindow(ctx)
	a.setWindowVisible(true)
}

func (a *App) raiseWindow(ctx context.Context) {
	runtimeWindowShowFn(ctx)
	runtimeWindowUnminimiseFn(ctx)
	runtimeWindowSetAlwaysOnTopFn(ctx, true)
	runtimeWindowSetAlwaysOnTopFn(ctx, false)
}

func (a *App) setWindowVisible(visible bool) {
	a.windowMu.Lock()
	a.windowVisible = visible
	a.windowMu.Unlock()
}

// toggleOverlay hides a visible window and raises a hidden or minimised
// one. It reports the new visibility and whether a toggle happened.
func (a *App) toggleOverlay() (visible bool, toggled bool) {
	if !a.windowToggling.CompareAndSwap(false, true) {
		slog.Debug("[DEBUG-SHORTCUT] overlay toggle already in progress, skipping")
		return false, false
	}
	defer a.windowToggling.Store(false)

	ctx := a.runtimeContext()
	if ctx == nil {
		return false, false
	}

	// Wails window calls stay outside windowMu.
	isMinimised := runtimeWindowIsMinimisedFn(ctx)

	a.windowMu.Lock()
	currentlyVisible := a.windowVisible && !isMinimised
	a.windowMu.Unlock()

	if currentlyVisible {
		runtimeWindowHideFn(ctx)
	} else {
		a.raiseWindow(ctx)
	}
	a.setWindowVisible(!currentlyVisible)
	a.emitRuntimeEventWithContext(ctx, eventOverlayToggled, map[string]bool{"visible": !currentlyVisible})
	return !currentlyVisible, true
}
