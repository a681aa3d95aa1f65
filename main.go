package main

import (
	"embed"
	"errors"
	"log/slog"
	"os"

	"gamevault/internal/ipc"
	"gamevault/internal/sessionlog"
	"gamevault/internal/singleinstance"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	// Single-instance check before any Wails initialization. A second
	// instance would fail to claim the app's global shortcuts anyway.
	mutexLock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Info("[DEBUG-SINGLE] another instance is already running, signaling activation")
		if _, sendErr := ipc.Send("", ipc.ControlRequest{Command: ipc.CommandActivateWindow}); sendErr != nil {
			slog.Warn("[DEBUG-SINGLE] failed to signal existing instance", "error", sendErr)
		}
		return
	}
	if err != nil {
		// Lock creation failed for an unexpected reason. Continue startup without the guard.
		slog.Warn("[DEBUG-SINGLE] mutex creation failed, proceeding without single-instance guard", "error", err)
	}
	if mutexLock != nil {
		defer func() {
			if releaseErr := mutexLock.Release(); releaseErr != nil {
				slog.Warn("[DEBUG-SINGLE] mutex release failed", "error", releaseErr)
			}
		}()
	}

	app := NewApp()
	slog.SetDefault(slog.New(sessionlog.NewTeeHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.LevelWarn,
		app.sessionLog.Record,
	)))

	err = wails.Run(&options.App{
		Title:     "GameVault",
		Width:     1280,
		Height:    800,
		MinWidth:  960,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 12, G: 14, B: 20, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []any{
			app,
		},
	})

	if err != nil {
		slog.Error("[DEBUG-SINGLE] wails run failed", "error", err)
	}
}
