// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package notch maps hardware lever positions onto simulator input values
// through a lever's notch table, and builds motor-haptic profiles from the
// same table. Everything here is pure: no I/O, no state.
package notch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/albertorestifo/trenino/internal/store"
)

var (
	// ErrNoNotch means no notch's hardware band contains the position.
	ErrNoNotch = errors.New("no notch covers position")

	// ErrDetentOutOfRange means the detent index exceeds the lever's gate
	// notch count.
	ErrDetentOutOfRange = errors.New("detent index out of range")
)

// FindNotch locates the notch whose hardware band contains x. Bands are
// matched as [min, max), except that x == 1.0 also matches a notch whose
// band ends exactly at 1.0.
func FindNotch(notches []store.Notch, x float64) (store.Notch, error) {
	for _, n := range notches {
		if x >= n.Hardware.Min && x < n.Hardware.Max {
			return n, nil
		}
		if x == 1.0 && n.Hardware.Max == 1.0 {
			return n, nil
		}
	}
	return store.Notch{}, fmt.Errorf("%w: %v", ErrNoNotch, x)
}

// MapInput converts a normalized hardware position (0.0-1.0) into the
// simulator value of the lever's notch table.
//
// An inverted lever flips the position first. When the lever is inverted and
// its layout is reversed (increasing hardware position maps to decreasing
// simulator value), the intra-notch interpolation fraction is mirrored too,
// so travel direction stays consistent within a linear notch.
func MapInput(lever store.Lever, x float64) (float64, error) {
	if lever.Inverted {
		x = 1 - x
	}

	n, err := FindNotch(lever.Notches, x)
	if err != nil {
		return 0, err
	}

	if n.Kind == store.NotchGate {
		return round2(n.Sim.Mid()), nil
	}

	position := (x - n.Hardware.Min) / (n.Hardware.Max - n.Hardware.Min)
	if lever.Inverted && reversedLayout(lever.Notches) {
		position = 1 - position
	}

	return round2(n.Sim.Min + position*(n.Sim.Max-n.Sim.Min)), nil
}

// MapDetent converts a discrete detent index, as reported by a motor-haptic
// lever, into the simulator value of the matching gate notch.
func MapDetent(lever store.Lever, index int) (float64, error) {
	gates := GateNotches(lever.Notches)
	if index < 0 || index >= len(gates) {
		return 0, fmt.Errorf("%w: %d of %d", ErrDetentOutOfRange, index, len(gates))
	}
	return round2(gates[index].Sim.Mid()), nil
}

// GateNotches returns the gate notches of a table sorted by index.
func GateNotches(notches []store.Notch) []store.Notch {
	var gates []store.Notch
	for _, n := range notches {
		if n.Kind == store.NotchGate {
			gates = append(gates, n)
		}
	}
	sort.Slice(gates, func(i, j int) bool { return gates[i].Index < gates[j].Index })
	return gates
}

// reversedLayout reports whether the notch with the lowest hardware band
// maps to a higher simulator band than the notch with the highest one.
func reversedLayout(notches []store.Notch) bool {
	if len(notches) < 2 {
		return false
	}

	low, high := notches[0], notches[0]
	for _, n := range notches[1:] {
		if n.Hardware.Min < low.Hardware.Min {
			low = n
		}
		if n.Hardware.Min > high.Hardware.Min {
			high = n
		}
	}

	return low.Sim.Mid() > high.Sim.Mid()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
