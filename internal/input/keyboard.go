// Package input injects synthetic keyboard events into the OS input stream.
package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gamevault/internal/combo"
	"gamevault/internal/macro"
)

// ErrUnsupported is returned on platforms without input injection.
var ErrUnsupported = errors.New("key simulation is currently only supported on Windows")

// sendKeyFn is the platform key event primitive. Tests replace it.
var sendKeyFn = sendKey

// Keyboard implements macro.Simulator.
type Keyboard struct{}

var _ macro.Simulator = Keyboard{}

// KeyDown presses vk.
func (Keyboard) KeyDown(_ context.Context, vk combo.VK) error {
	if err := sendKeyFn(vk, false); err != nil {
		return fmt.Errorf("key down 0x%02X: %w", uint16(vk), err)
	}
	return nil
}

// KeyUp releases vk.
func (Keyboard) KeyUp(_ context.Context, vk combo.VK) error {
	if err := sendKeyFn(vk, true); err != nil {
		return fmt.Errorf("key up 0x%02X: %w", uint16(vk), err)
	}
	return nil
}

// Tap presses vk, holds it for hold and releases it. The release is sent
// even when ctx is cancelled during the hold.
func (k Keyboard) Tap(ctx context.Context, vk combo.VK, hold time.Duration) error {
	if err := k.KeyDown(ctx, vk); err != nil {
		return err
	}
	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Debug("[DEBUG-INPUT] tap hold interrupted", "vk", fmt.Sprintf("0x%02X", uint16(vk)))
		case <-timer.C:
		}
	}
	return k.KeyUp(ctx, vk)
}

// Supported reports whether this platform can inject input.
func Supported() bool {
	return supported
}
