package main

import (
	"errors"
	"time"

	"gamevault/internal/combo"
	"gamevault/internal/input"
	"gamevault/internal/macro"
)

var simulationSupportedFn = input.Supported

// maxSimulatedHold caps the hold a frontend caller may request for a tap.
const maxSimulatedHold = 5 * time.Second

// inputSimulator returns the engine simulator, or a fresh keyboard when the
// engine never started.
func (a *App) inputSimulator() macro.Simulator {
	if a.simulator != nil {
		return a.simulator
	}
	return newSimulatorFn()
}

// SimulateKeyPress presses the virtual key code vk.
func (a *App) SimulateKeyPress(vk uint16) error {
	if vk == 0 {
		return errors.New("key code is required")
	}
	return a.inputSimulator().KeyDown(a.bgCtx, combo.VK(vk))
}

// SimulateKeyRelease releases the virtual key code vk.
func (a *App) SimulateKeyRelease(vk uint16) error {
	if vk == 0 {
		return errors.New("key code is required")
	}
	return a.inputSimulator().KeyUp(a.bgCtx, combo.VK(vk))
}

// SimulateKeyTap presses vk, holds it for delayMs and releases it.
func (a *App) SimulateKeyTap(vk uint16, delayMs int) error {
	if vk == 0 {
		return errors.New("key code is required")
	}
	hold := min(time.Duration(max(delayMs, 0))*time.Millisecond, maxSimulatedHold)
	return a.inputSimulator().Tap(a.bgCtx, combo.VK(vk), hold)
}
