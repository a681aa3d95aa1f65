package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"gamevault/internal/config"
	"gamevault/internal/ipc"
	"gamevault/internal/macro"
	"gamevault/internal/sessionlog"
	"gamevault/internal/shortcuts"
	"gamevault/internal/store"
	"gamevault/internal/wsserver"
)

// hotkeyService is the OS shortcut service the engine registers through.
type hotkeyService interface {
	shortcuts.Service
	Close() error
}

// App is the Wails-bound application service.
type App struct {
	// Runtime context lifecycle.
	ctx   context.Context
	ctxMu sync.RWMutex

	// Configuration state and startup warnings.
	// Lock ordering (outer -> inner):
	//   cfgSaveMu -> cfgMu
	//   engineCfgMu -> engineMu
	//
	// Independent locks: do not assume ordering across these.
	//   windowMu, startupWarnMu, ctxMu, engineMu
	cfgMu              sync.RWMutex
	cfgSaveMu          sync.Mutex
	configEventVersion atomic.Uint64
	cfg                config.Config
	configPath         string
	configWatcher      *config.Watcher
	startupWarnMu      sync.Mutex
	configLoadWarnings []string

	// Engine. Set once during startup before any trigger can fire; nil when
	// the store failed to open.
	store        *store.Store
	hotkeys      hotkeyService
	appShortcuts *shortcuts.AppRegistrar
	registry     *shortcuts.Registry
	executor     *macro.Executor
	runner       *macro.Runner
	simulator    macro.Simulator
	// engineMu serializes reads of the persisted engine state with the
	// reconcile they feed, so a stale read never overwrites a newer one.
	engineMu sync.Mutex
	// engineCfgMu guards engineCfgAppliedVersion.
	engineCfgMu             sync.Mutex
	engineCfgAppliedVersion uint64

	// Outer surfaces. Each is nil if it failed to start.
	pipeServer *ipc.PipeServer
	wsHub      *wsserver.Hub

	// Window visibility state.
	windowMu       sync.Mutex
	windowVisible  bool
	windowToggling atomic.Bool // CAS guard against concurrent toggleOverlay
	shuttingDown   atomic.Bool // set true at the start of shutdown(); checked by worker restart policies

	sessionLog *sessionlog.Recorder

	// Background worker cancellation/waits. bgCtx outlives the Wails
	// runtime context so macros can finish while the window is hidden.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewApp creates the app service.
func NewApp() *App {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      config.DefaultConfig(),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
	a.sessionLog = sessionlog.NewRecorder(sessionlog.Options{
		// Silent when the runtime is not up: a "dropped" warning here would
		// be teed straight back into the recorder.
		Notify: func() {
			if ctx := a.runtimeContext(); ctx != nil {
				runtimeEventsEmitFn(ctx, eventSessionLogUpdated, nil)
			}
		},
	})
	return a
}

func (a *App) setRuntimeContext(ctx context.Context) {
	a.ctxMu.Lock()
	a.ctx = ctx
	a.ctxMu.Unlock()
}

func (a *App) runtimeContext() context.Context {
	a.ctxMu.RLock()
	ctx := a.ctx
	a.ctxMu.RUnlock()
	return ctx
}

// GetWebSocketURL returns the overlay event stream endpoint, or "" when the
// WebSocket server is not running.
func (a *App) GetWebSocketURL() string {
	if a.wsHub == nil {
		slog.Debug("[DEBUG-WS] wsHub is nil, WebSocket URL unavailable")
		return ""
	}
	return a.wsHub.URL()
}
