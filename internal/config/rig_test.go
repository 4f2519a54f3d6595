// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/albertorestifo/trenino/internal/store"
)

const rigYAML = `
inputs:
  - id: in-throttle
    transport: board-1
    pin: 3
    type: analog
    calibration: {raw_min: 10, raw_max: 1010}
  - id: in-horn
    transport: board-1
    pin: 10
    type: button

levers:
  - id: throttle
    element: throttle
    kind: hybrid
    endpoint: train/throttle
    notches:
      - {index: 0, kind: gate, hardware: {min: 0, max: 0.2}, sim: {min: 0, max: 0.1}}
      - {index: 1, kind: linear, hardware: {min: 0.2, max: 0.8}, sim: {min: 0.1, max: 0.9}}
      - {index: 2, kind: gate, hardware: {min: 0.8, max: 1.0}, sim: {min: 0.9, max: 1.0}}

sequences:
  - id: panto-up
    steps:
      - {endpoint: train/panto, value: 1}

vehicles:
  - id: v1
    name: Class 380
    identifier: "380"
    levers:
      - {id: b1, input: in-throttle, lever: throttle}
    buttons:
      - {id: horn, input: in-horn, mode: simple, endpoint: train/horn, on_value: 1, off_value: 0}
      - {id: panto, input: in-horn, mode: sequence, press_sequence: panto-up, disabled: true}
`

func TestParseRig(t *testing.T) {
	rig, err := ParseRig([]byte(rigYAML))
	if err != nil {
		t.Fatalf("ParseRig: %v", err)
	}

	in, ok := rig.Input("in-throttle")
	if !ok || in.Type != store.InputAnalog || in.Calibration.RawMax != 1010 {
		t.Errorf("input = %+v, %v", in, ok)
	}

	lever, ok := rig.Lever("throttle")
	if !ok || lever.Kind != store.LeverHybrid || len(lever.Notches) != 3 {
		t.Errorf("lever = %+v, %v", lever, ok)
	}

	if got := rig.ResolveIdentifier("380"); len(got) != 1 || got[0].Name != "Class 380" {
		t.Errorf("ResolveIdentifier = %+v", got)
	}
	if got := rig.ResolveIdentifier("390"); got != nil {
		t.Errorf("ResolveIdentifier(390) = %+v, want none", got)
	}

	if got := rig.LeverBindings("v1"); len(got) != 1 || got[0].LeverID != "throttle" {
		t.Errorf("LeverBindings = %+v", got)
	}

	// The disabled sequence binding is filtered at load.
	buttons := rig.ButtonBindings("v1")
	if len(buttons) != 1 || buttons[0].Mode != store.ButtonSimple || buttons[0].OnValue != 1 {
		t.Errorf("ButtonBindings = %+v", buttons)
	}
}

func TestParseRigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"analog without calibration",
			"inputs:\n  - {id: a, transport: t, pin: 1, type: analog}",
			"missing calibration",
		},
		{
			"unknown input type",
			"inputs:\n  - {id: a, transport: t, pin: 1, type: rotary}",
			"unknown type",
		},
		{
			"band out of range",
			`
levers:
  - id: l
    kind: discrete
    endpoint: e
    notches:
      - {index: 0, kind: gate, hardware: {min: 0, max: 1.5}, sim: {min: 0, max: 1}}
`,
			"outside [0, 1]",
		},
		{
			"binding to unknown lever",
			`
inputs:
  - {id: a, transport: t, pin: 1, type: button}
vehicles:
  - id: v
    identifier: x
    levers:
      - {id: b, input: a, lever: nope}
`,
			"unknown lever",
		},
		{
			"keystroke with bad combo",
			`
inputs:
  - {id: a, transport: t, pin: 1, type: button}
vehicles:
  - id: v
    identifier: x
    buttons:
      - {id: b, input: a, mode: keystroke, key: "ctrl+foobar"}
`,
			"unknown key",
		},
		{
			"vehicle without identifier",
			"vehicles:\n  - {id: v, name: n}",
			"missing identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("ParseRig accepted invalid rig")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Ident.PollInterval.Std() != 5*time.Second {
		t.Errorf("poll interval = %v, want 5s", cfg.Ident.PollInterval.Std())
	}
	if cfg.Monitor.Enabled || cfg.Bridge.Enabled {
		t.Error("monitor and bridge must default to disabled")
	}
}

func TestLoadConfigDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trenino.yaml")
	doc := `
identification:
  poll_interval: 2s
  grace_poll: 50ms
sim:
  probe_timeout: 100ms
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Ident.PollInterval.Std() != 2*time.Second {
		t.Errorf("poll interval = %v, want 2s", cfg.Ident.PollInterval.Std())
	}
	if cfg.Ident.GracePoll.Std() != 50*time.Millisecond {
		t.Errorf("grace poll = %v, want 50ms", cfg.Ident.GracePoll.Std())
	}
	// Unset fields keep their defaults.
	if cfg.Ident.GraceWindow.Std() != 30*time.Second {
		t.Errorf("grace window = %v, want the 30s default", cfg.Ident.GraceWindow.Std())
	}
	if cfg.Sim.ProbeTimeout.Std() != 100*time.Millisecond {
		t.Errorf("probe timeout = %v, want 100ms", cfg.Sim.ProbeTimeout.Std())
	}
}
