// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package notch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/albertorestifo/trenino/internal/store"
	"github.com/albertorestifo/trenino/pkg/cablink"
)

var (
	// ErrNotMotorHaptic means a profile was requested for a lever whose
	// kind carries no haptic information.
	ErrNotMotorHaptic = errors.New("lever is not motor-haptic")

	// ErrMissingHaptics means a notch of a motor-haptic lever lacks its
	// required haptic fields.
	ErrMissingHaptics = errors.New("notch missing haptic fields")
)

// BuildProfile converts a motor-haptic lever's notch table into the profile
// load command for its firmware. The caller fills in the target pin.
//
// Gate notches become detents on the firmware's 0-100 travel scale; linear
// notches become damped ranges between the detents that bracket them.
func BuildProfile(lever store.Lever) (cablink.LoadBLDCProfile, error) {
	if lever.Kind != store.LeverMotorHaptic {
		return cablink.LoadBLDCProfile{}, fmt.Errorf("%w: lever %s is %s", ErrNotMotorHaptic, lever.ID, lever.Kind)
	}

	var profile cablink.LoadBLDCProfile

	for _, n := range GateNotches(lever.Notches) {
		if n.Haptics == nil {
			return cablink.LoadBLDCProfile{}, fmt.Errorf("%w: lever %s notch %d", ErrMissingHaptics, lever.ID, n.Index)
		}
		profile.Detents = append(profile.Detents, cablink.ProfileDetent{
			Position:   uint8(math.Round(n.Hardware.Min * 100)),
			Engagement: n.Haptics.Engagement,
			Hold:       n.Haptics.Hold,
			Exit:       n.Haptics.Exit,
			SpringBack: n.Haptics.SpringBack,
		})
	}

	sorted := append([]store.Notch(nil), lever.Notches...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	detentsBefore := 0
	for _, n := range sorted {
		if n.Kind == store.NotchGate {
			detentsBefore++
			continue
		}
		if n.Damping == nil {
			return cablink.LoadBLDCProfile{}, fmt.Errorf("%w: lever %s notch %d", ErrMissingHaptics, lever.ID, n.Index)
		}

		start := detentsBefore - 1
		if start < 0 {
			start = 0
		}
		profile.Ranges = append(profile.Ranges, cablink.ProfileRange{
			StartDetent: uint8(start),
			EndDetent:   uint8(detentsBefore),
			Damping:     *n.Damping,
		})
	}

	return profile, nil
}
