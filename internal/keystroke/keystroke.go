// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package keystroke injects OS-level keyboard events for keystroke-mode
// button bindings. The actual injection is delegated to the bundled
// keystroke helper binary, which owns the platform-specific key handling;
// this package validates and normalizes combos before shelling out.
package keystroke

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Injector issues key events for a combo like "W", "CTRL+S" or "SHIFT+F1".
type Injector interface {
	KeyDown(combo string) error
	KeyUp(combo string) error
	Tap(combo string) error
}

// modifier aliases accepted in combos, mapped to canonical names.
var modifiers = map[string]string{
	"CTRL": "CTRL", "CONTROL": "CTRL",
	"SHIFT": "SHIFT",
	"ALT":   "ALT",
	"META":  "META", "WIN": "META", "SUPER": "META",
}

// named non-modifier keys the helper understands, aliases included.
var namedKeys = map[string]string{
	"SPACE": "SPACE",
	"ENTER": "ENTER", "RETURN": "ENTER",
	"TAB":    "TAB",
	"ESCAPE": "ESC", "ESC": "ESC",
	"BACKSPACE": "BACKSPACE",
	"DELETE":    "DELETE", "DEL": "DELETE",
	"INSERT": "INSERT", "INS": "INSERT",
	"HOME": "HOME", "END": "END",
	"PAGEUP": "PAGEUP", "PGUP": "PAGEUP",
	"PAGEDOWN": "PAGEDOWN", "PGDN": "PAGEDOWN",
	"UP": "UP", "ARROWUP": "UP",
	"DOWN": "DOWN", "ARROWDOWN": "DOWN",
	"LEFT": "LEFT", "ARROWLEFT": "LEFT",
	"RIGHT": "RIGHT", "ARROWRIGHT": "RIGHT",
}

func init() {
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("F%d", i)
		namedKeys[name] = name
	}
	for i := 0; i <= 9; i++ {
		name := fmt.Sprintf("NUMPAD%d", i)
		namedKeys[name] = name
	}
}

// Normalize validates a key combo and returns its canonical form:
// uppercased, aliases resolved, modifiers before the main key.
func Normalize(combo string) (string, error) {
	if strings.TrimSpace(combo) == "" {
		return "", fmt.Errorf("empty key combo")
	}

	var mods []string
	main := ""

	for _, part := range strings.Split(combo, "+") {
		upper := strings.ToUpper(strings.TrimSpace(part))
		switch {
		case modifiers[upper] != "":
			mods = append(mods, modifiers[upper])
		case namedKeys[upper] != "":
			if main != "" {
				return "", fmt.Errorf("combo %q has more than one main key", combo)
			}
			main = namedKeys[upper]
		case len(upper) == 1:
			if main != "" {
				return "", fmt.Errorf("combo %q has more than one main key", combo)
			}
			main = upper
		default:
			return "", fmt.Errorf("unknown key %q in combo %q", part, combo)
		}
	}

	if main == "" && len(mods) == 0 {
		return "", fmt.Errorf("combo %q has no keys", combo)
	}

	parts := append(mods, main)
	if main == "" {
		parts = mods
	}
	return strings.Join(parts, "+"), nil
}

// ExecInjector runs the keystroke helper binary for each event.
type ExecInjector struct {
	binary string
	log    *logrus.Entry
}

// NewExecInjector creates an injector running the given helper binary
// ("keystroke" when empty, resolved via PATH).
func NewExecInjector(binary string, log *logrus.Entry) *ExecInjector {
	if binary == "" {
		binary = "keystroke"
	}
	return &ExecInjector{binary: binary, log: log}
}

// KeyDown presses and holds a combo.
func (e *ExecInjector) KeyDown(combo string) error { return e.run("down", combo) }

// KeyUp releases a combo.
func (e *ExecInjector) KeyUp(combo string) error { return e.run("up", combo) }

// Tap presses and releases a combo.
func (e *ExecInjector) Tap(combo string) error { return e.run("tap", combo) }

func (e *ExecInjector) run(action, combo string) error {
	normalized, err := Normalize(combo)
	if err != nil {
		return err
	}

	out, err := exec.Command(e.binary, action, normalized).CombinedOutput()
	if err != nil {
		return fmt.Errorf("keystroke %s %s: %w (%s)", action, normalized, err, strings.TrimSpace(string(out)))
	}
	return nil
}
