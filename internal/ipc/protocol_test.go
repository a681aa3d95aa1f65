package ipc

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultPipeNameUsesCurrentUser(t *testing.T) {
	t.Setenv(PipeEnvVar, "")
	t.Setenv("USERNAME", "unit user!")

	got := DefaultPipeName()
	want := defaultPipeNameFor("unit_user_")
	if got != want {
		t.Fatalf("DefaultPipeName() = %q, want %q", got, want)
	}
	if !isTrustedPipeName(got) {
		t.Fatalf("DefaultPipeName() = %q does not pass its own validation", got)
	}
}

func TestDefaultPipeNameHonorsTrustedEnvOverride(t *testing.T) {
	override := defaultPipeNameFor("ci_pipe")
	t.Setenv(PipeEnvVar, override)

	if got := DefaultPipeName(); got != override {
		t.Fatalf("DefaultPipeName() = %q, want trusted env override %q", got, override)
	}
}

func TestDefaultPipeNameRejectsUntrustedEnvOverride(t *testing.T) {
	t.Setenv(PipeEnvVar, "other-app")
	t.Setenv("USERNAME", "unit-tester")

	got := DefaultPipeName()
	if got == "other-app" {
		t.Fatalf("DefaultPipeName() unexpectedly accepted untrusted env override")
	}
	if want := defaultPipeNameFor("unit-tester"); got != want {
		t.Fatalf("DefaultPipeName() = %q, want %q", got, want)
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ControlRequest
		wantErr string
	}{
		{
			name: "args absent become empty",
			raw:  `{"command":"status"}`,
			want: ControlRequest{Command: CommandStatus, Args: []string{}},
		},
		{
			name: "explicit args kept",
			raw:  `{"command":"run-macro","args":["m-1"]}`,
			want: ControlRequest{Command: CommandRunMacro, Args: []string{"m-1"}},
		},
		{
			name: "command trimmed",
			raw:  `{"command":"  reload \n"}`,
			want: ControlRequest{Command: CommandReload, Args: []string{}},
		},
		{name: "missing command", raw: `{"args":["x"]}`, wantErr: "command is required"},
		{name: "malformed", raw: `{"command":`, wantErr: "unexpected end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRequest([]byte(tt.raw))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("decodeRequest() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeRequest() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("decodeRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestFrameOmitsEmptyArgs(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, ControlRequest{Command: CommandCancelMacros}); err != nil {
		t.Fatalf("writeFrame() error = %v", err)
	}
	if buf.String() != `{"command":"cancel-macros"}`+"\n" {
		t.Fatalf("writeFrame() = %q", buf.String())
	}
}

func TestDecodeResponse(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"exit_code": 1, "stderr": "boom\n"})
	if err != nil {
		t.Fatalf("json.Marshal error = %v", err)
	}
	got, err := decodeResponse(raw)
	if err != nil {
		t.Fatalf("decodeResponse() error = %v", err)
	}
	if diff := cmp.Diff(ControlResponse{ExitCode: 1, Stderr: "boom\n"}, got); diff != "" {
		t.Fatalf("decodeResponse() mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseBuilders(t *testing.T) {
	if got := OK("done\n"); got.ExitCode != 0 || got.Stdout != "done\n" {
		t.Fatalf("OK() = %+v", got)
	}
	if got := Fail("no such macro"); got.ExitCode != 1 || got.Stderr != "no such macro\n" {
		t.Fatalf("Fail() = %+v", got)
	}
	if got := Fail("already terminated\n"); got.Stderr != "already terminated\n" {
		t.Fatalf("Fail() doubled the newline: %q", got.Stderr)
	}
}
