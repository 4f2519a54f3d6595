// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package keystroke

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		combo string
		want  string
	}{
		{"single letter", "w", "W"},
		{"modifier and letter", "ctrl+s", "CTRL+S"},
		{"control alias", "control+z", "CTRL+Z"},
		{"windows alias", "win+d", "META+D"},
		{"function key", "shift+f1", "SHIFT+F1"},
		{"named key alias", "Return", "ENTER"},
		{"spaced parts", " alt + tab ", "ALT+TAB"},
		{"modifier only", "shift", "SHIFT"},
		{"numpad", "numpad5", "NUMPAD5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.combo)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tt.combo, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.combo, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	for _, combo := range []string{"", "  ", "ctrl+", "foo", "ctrl+foobar", "a+b"} {
		if _, err := Normalize(combo); err == nil {
			t.Errorf("Normalize(%q) accepted, want error", combo)
		}
	}
}
