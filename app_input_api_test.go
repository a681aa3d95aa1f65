package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gamevault/internal/macro"
)

func TestSimulateKeyRejectsZeroCode(t *testing.T) {
	app := NewApp()
	app.simulator = &fakeKeyboard{}

	if err := app.SimulateKeyPress(0); err == nil {
		t.Error("SimulateKeyPress(0) expected error")
	}
	if err := app.SimulateKeyRelease(0); err == nil {
		t.Error("SimulateKeyRelease(0) expected error")
	}
	if err := app.SimulateKeyTap(0, 10); err == nil {
		t.Error("SimulateKeyTap(0) expected error")
	}
}

func TestSimulateKeyUsesEngineSimulator(t *testing.T) {
	app := NewApp()
	kb := &fakeKeyboard{}
	app.simulator = kb

	if err := app.SimulateKeyPress(0x41); err != nil {
		t.Fatalf("SimulateKeyPress() error = %v", err)
	}
	if err := app.SimulateKeyRelease(0x41); err != nil {
		t.Fatalf("SimulateKeyRelease() error = %v", err)
	}
	if err := app.SimulateKeyTap(0x42, 25); err != nil {
		t.Fatalf("SimulateKeyTap() error = %v", err)
	}

	want := []string{"down(65)", "up(65)", "tap(66,25)"}
	if diff := cmp.Diff(want, kb.snapshot()); diff != "" {
		t.Fatalf("simulator calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulateKeyTapClampsHold(t *testing.T) {
	app := NewApp()
	kb := &fakeKeyboard{}
	app.simulator = kb

	if err := app.SimulateKeyTap(0x41, -5); err != nil {
		t.Fatalf("SimulateKeyTap(negative) error = %v", err)
	}
	if err := app.SimulateKeyTap(0x41, 60_000); err != nil {
		t.Fatalf("SimulateKeyTap(huge) error = %v", err)
	}

	want := []string{"tap(65,0)", "tap(65,5000)"}
	if diff := cmp.Diff(want, kb.snapshot()); diff != "" {
		t.Fatalf("simulator calls mismatch (-want +got):\n%s", diff)
	}
}

func TestInputSimulatorFallsBackBeforeStartup(t *testing.T) {
	kb := &fakeKeyboard{}
	orig := newSimulatorFn
	newSimulatorFn = func() macro.Simulator { return kb }
	t.Cleanup(func() { newSimulatorFn = orig })

	app := NewApp()
	if err := app.SimulateKeyPress(0x20); err != nil {
		t.Fatalf("SimulateKeyPress() error = %v", err)
	}
	if diff := cmp.Diff([]string{"down(32)"}, kb.snapshot()); diff != "" {
		t.Fatalf("fallback simulator calls mismatch (-want +got):\n%s", diff)
	}
}
