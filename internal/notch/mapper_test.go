// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package notch

import (
	"errors"
	"math"
	"testing"

	"github.com/albertorestifo/trenino/internal/store"
)

// threeNotchTable is a throttle-style layout: an idle gate, a linear power
// band, and a full-power gate.
func threeNotchTable() []store.Notch {
	return []store.Notch{
		{Index: 0, Kind: store.NotchGate, Hardware: store.Band{Min: 0.0, Max: 0.2}, Sim: store.Band{Min: 0.0, Max: 0.1}},
		{Index: 1, Kind: store.NotchLinear, Hardware: store.Band{Min: 0.2, Max: 0.8}, Sim: store.Band{Min: 0.1, Max: 0.9}},
		{Index: 2, Kind: store.NotchGate, Hardware: store.Band{Min: 0.8, Max: 1.0}, Sim: store.Band{Min: 0.9, Max: 1.0}},
	}
}

func TestFindNotch(t *testing.T) {
	notches := threeNotchTable()

	tests := []struct {
		name      string
		x         float64
		wantIndex int
		wantErr   bool
	}{
		{name: "start of first band", x: 0.0, wantIndex: 0},
		{name: "inside first band", x: 0.19, wantIndex: 0},
		{name: "band boundary belongs to upper notch", x: 0.2, wantIndex: 1},
		{name: "inside linear band", x: 0.5, wantIndex: 1},
		{name: "inclusive match at full travel", x: 1.0, wantIndex: 2},
		{name: "beyond full travel", x: 1.1, wantErr: true},
		{name: "below zero", x: -0.1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := FindNotch(notches, tt.x)
			if tt.wantErr {
				if !errors.Is(err, ErrNoNotch) {
					t.Errorf("got %v, want ErrNoNotch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindNotch failed: %v", err)
			}
			if n.Index != tt.wantIndex {
				t.Errorf("matched notch %d, want %d", n.Index, tt.wantIndex)
			}
		})
	}
}

func TestMapInput(t *testing.T) {
	straight := store.Lever{ID: "throttle", Notches: threeNotchTable()}

	inverted := straight
	inverted.Inverted = true

	// Reversed layout: increasing hardware position maps to decreasing
	// simulator value.
	reversed := store.Lever{
		ID: "brake",
		Notches: []store.Notch{
			{Index: 0, Kind: store.NotchGate, Hardware: store.Band{Min: 0.0, Max: 0.2}, Sim: store.Band{Min: 0.9, Max: 1.0}},
			{Index: 1, Kind: store.NotchLinear, Hardware: store.Band{Min: 0.2, Max: 0.8}, Sim: store.Band{Min: 0.1, Max: 0.9}},
			{Index: 2, Kind: store.NotchGate, Hardware: store.Band{Min: 0.8, Max: 1.0}, Sim: store.Band{Min: 0.0, Max: 0.1}},
		},
	}

	invertedReversed := reversed
	invertedReversed.Inverted = true

	tests := []struct {
		name  string
		lever store.Lever
		x     float64
		want  float64
	}{
		{name: "gate maps to midpoint", lever: straight, x: 0.1, want: 0.05},
		{name: "linear midpoint", lever: straight, x: 0.5, want: 0.5},
		{name: "linear interpolation", lever: straight, x: 0.35, want: 0.3},
		{name: "full travel hits top gate midpoint", lever: straight, x: 1.0, want: 0.95},
		{name: "inverted flips position", lever: inverted, x: 0.0, want: 0.95},
		{name: "inverted linear", lever: inverted, x: 0.35, want: 0.7},
		{name: "reversed gate", lever: reversed, x: 0.0, want: 0.95},
		{name: "reversed linear keeps plain fraction", lever: reversed, x: 0.35, want: 0.3},
		{name: "inverted reversed mirrors fraction", lever: invertedReversed, x: 0.35, want: 0.3},
		{name: "inverted reversed gate", lever: invertedReversed, x: 1.0, want: 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapInput(tt.lever, tt.x)
			if err != nil {
				t.Fatalf("MapInput failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MapInput(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestMapDetent(t *testing.T) {
	lever := store.Lever{ID: "power", Kind: store.LeverMotorHaptic, Notches: threeNotchTable()}

	tests := []struct {
		name    string
		index   int
		want    float64
		wantErr bool
	}{
		{name: "first gate", index: 0, want: 0.05},
		{name: "second gate", index: 1, want: 0.95},
		{name: "past last gate", index: 2, wantErr: true},
		{name: "negative", index: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapDetent(lever, tt.index)
			if tt.wantErr {
				if !errors.Is(err, ErrDetentOutOfRange) {
					t.Errorf("got %v, want ErrDetentOutOfRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MapDetent failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MapDetent(%d) = %v, want %v", tt.index, got, tt.want)
			}
		})
	}
}
