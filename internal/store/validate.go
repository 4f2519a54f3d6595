// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package store

import "fmt"

// Validate checks the notch-table invariants of a lever configuration:
// hardware and simulator bands within [0, 1], a linear notch sets both its
// bands together, and a motor-haptic lever's notches all carry their haptic
// fields.
func (l Lever) Validate() error {
	for _, n := range l.Notches {
		if err := n.validate(l.Kind == LeverMotorHaptic); err != nil {
			return fmt.Errorf("lever %s notch %d: %w", l.ID, n.Index, err)
		}
	}
	return nil
}

func (n Notch) validate(motorHaptic bool) error {
	if !bandInRange(n.Hardware) {
		return fmt.Errorf("hardware band [%v, %v] outside [0, 1]", n.Hardware.Min, n.Hardware.Max)
	}
	if !bandInRange(n.Sim) {
		return fmt.Errorf("simulator band [%v, %v] outside [0, 1]", n.Sim.Min, n.Sim.Max)
	}

	switch n.Kind {
	case NotchLinear:
		if n.Hardware.Max <= n.Hardware.Min || n.Sim.Max <= n.Sim.Min {
			return fmt.Errorf("linear notch requires hardware and simulator bands set together")
		}
		if motorHaptic && n.Damping == nil {
			return fmt.Errorf("motor-haptic linear notch missing damping")
		}
	case NotchGate:
		if n.Hardware.Max < n.Hardware.Min {
			return fmt.Errorf("gate hardware band inverted")
		}
		if motorHaptic && n.Haptics == nil {
			return fmt.Errorf("motor-haptic gate notch missing force levels")
		}
	}

	return nil
}

func bandInRange(b Band) bool {
	return b.Min >= 0 && b.Min <= 1 && b.Max >= 0 && b.Max <= 1
}
