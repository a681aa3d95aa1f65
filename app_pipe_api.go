package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"gamevault/internal/config"
	"gamevault/internal/ipc"
)

// executeControl serves one control pipe request. It runs on the pipe
// connection goroutine.
func (a *App) executeControl(_ context.Context, req ipc.ControlRequest) ipc.ControlResponse {
	slog.Debug("[DEBUG-IPC] control command", "command", req.Command, "args", req.Args)
	switch req.Command {
	case ipc.CommandActivateWindow:
		a.bringWindowToFront()
		a.emitRuntimeEvent(eventAppActivatedByOther, nil)
		return ipc.OK("")
	case ipc.CommandToggleOverlay:
		visible, toggled := a.toggleOverlay()
		if !toggled {
			return ipc.Fail("overlay toggle unavailable")
		}
		return ipc.OK(fmt.Sprintf("overlay visible: %t\n", visible))
	case ipc.CommandRunMacro:
		if len(req.Args) != 1 {
			return ipc.Fail("usage: run-macro <macro-id>")
		}
		handleID, err := a.RunMacro(req.Args[0])
		if err != nil {
			return ipc.Fail(err.Error())
		}
		return ipc.OK(handleID + "\n")
	case ipc.CommandCancelMacros:
		return ipc.OK(fmt.Sprintf("cancelled %d macro run(s)\n", a.CancelAllMacros()))
	case ipc.CommandListShortcuts:
		return ipc.OK(a.describeShortcuts())
	case ipc.CommandReload:
		return a.reloadFromControl()
	case ipc.CommandStatus:
		status, err := a.GetEngineStatus()
		if err != nil {
			return ipc.Fail(err.Error())
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return ipc.Fail(err.Error())
		}
		return ipc.OK(string(data) + "\n")
	default:
		return ipc.Fail(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

// describeShortcuts renders live registrations one per line, app shortcuts
// first.
func (a *App) describeShortcuts() string {
	var b strings.Builder
	app := a.GetRegisteredShortcuts()
	for _, accel := range slices.Sorted(maps.Keys(app)) {
		fmt.Fprintf(&b, "app\t%s\t%s\n", accel, app[accel])
	}
	if a.registry != nil {
		for _, accel := range a.registry.Owned() {
			fmt.Fprintf(&b, "engine\t%s\n", accel)
		}
	}
	return b.String()
}

// reloadFromControl re-reads config.yaml and the stored shortcuts, then
// reconciles synchronously.
func (a *App) reloadFromControl() ipc.ControlResponse {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return ipc.Fail(fmt.Sprintf("reload config: %v", err))
	}
	if a.configWatcher != nil {
		a.configWatcher.Prime(cfg)
	}
	a.applyExternalConfig(cfg)
	if err := a.engineReady(); err != nil {
		return ipc.Fail(err.Error())
	}
	a.reloadAppShortcuts()
	report, err := a.reconcileNow()
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "registered %d, skipped %d, errors %d\n",
		len(report.Registered), len(report.Skipped), len(report.Errors))
	for _, msg := range report.Errors {
		fmt.Fprintf(&b, "error: %s\n", msg)
	}
	return ipc.OK(b.String())
}
