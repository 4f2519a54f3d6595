// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package store defines the configuration data model shared by the
// identification and dispatch engines, and the lookup interface through
// which they consume it. Persistence lives elsewhere; this package only
// knows shapes and invariants.
package store

import "time"

// InputType classifies a hardware input.
type InputType int

const (
	InputAnalog InputType = iota
	InputButton
	InputMotorLever
)

func (t InputType) String() string {
	switch t {
	case InputAnalog:
		return "analog"
	case InputButton:
		return "button"
	case InputMotorLever:
		return "motor-lever"
	default:
		return "unknown"
	}
}

// Calibration holds the raw ADC bounds used to normalize analog readings
// into the 0.0-1.0 range.
type Calibration struct {
	RawMin int
	RawMax int
}

// Input identifies one hardware input: which transport it lives on, which
// pin, and how its readings are interpreted.
type Input struct {
	ID          string
	Transport   string
	Pin         uint8
	Type        InputType
	Calibration *Calibration // analog inputs only
}

// LeverKind selects how a lever's notch table is interpreted.
type LeverKind int

const (
	LeverDiscrete LeverKind = iota
	LeverContinuous
	LeverHybrid
	LeverMotorHaptic
)

func (k LeverKind) String() string {
	switch k {
	case LeverDiscrete:
		return "discrete"
	case LeverContinuous:
		return "continuous"
	case LeverHybrid:
		return "hybrid"
	case LeverMotorHaptic:
		return "motor-haptic"
	default:
		return "unknown"
	}
}

// NotchKind discriminates gate and linear notches.
type NotchKind int

const (
	NotchGate NotchKind = iota
	NotchLinear
)

// Band is a closed-open interval on the 0.0-1.0 scale. Both the hardware
// travel of a notch and its simulator value span are bands.
type Band struct {
	Min float64
	Max float64
}

// Mid returns the band midpoint.
func (b Band) Mid() float64 {
	return (b.Min + b.Max) / 2
}

// GateHaptics holds the detent force levels of a gate notch on a
// motor-haptic lever.
type GateHaptics struct {
	Engagement uint8
	Hold       uint8
	Exit       uint8
	SpringBack uint8
}

// Notch is one entry in a lever's notch table.
//
// A gate notch maps its whole hardware band to the midpoint of its simulator
// band; on motor-haptic levers it also carries the detent force levels. A
// linear notch maps its hardware band onto its simulator band by
// interpolation; on motor-haptic levers it carries a damping level.
type Notch struct {
	Index    int
	Kind     NotchKind
	Hardware Band
	Sim      Band

	// Motor-haptic fields: nil when the lever is not motor-haptic.
	Haptics *GateHaptics // gate notches
	Damping *uint8       // linear notches
}

// Lever is one configured lever belonging to a vehicle element.
type Lever struct {
	ID       string
	Element  string
	Kind     LeverKind
	Inverted bool
	Endpoint string // simulator write target
	Notches  []Notch
}

// LeverBinding links a hardware input to a lever configuration.
type LeverBinding struct {
	ID      string
	InputID string
	LeverID string
	Enabled bool
}

// ButtonMode selects the dispatch behavior of a button binding.
type ButtonMode int

const (
	// ButtonSimple sends the on value on press and the off value on
	// release, deduplicated against the last value sent.
	ButtonSimple ButtonMode = iota
	// ButtonMomentary re-issues the on value continuously while held.
	ButtonMomentary
	// ButtonSequence runs a command sequence on press and, depending on
	// the hardware type, another on release.
	ButtonSequence
	// ButtonKeystroke injects an OS-level key down on press and key up on
	// release.
	ButtonKeystroke
)

func (m ButtonMode) String() string {
	switch m {
	case ButtonSimple:
		return "simple"
	case ButtonMomentary:
		return "momentary"
	case ButtonSequence:
		return "sequence"
	case ButtonKeystroke:
		return "keystroke"
	default:
		return "unknown"
	}
}

// HardwareType describes the physical switch behind a button binding.
type HardwareType int

const (
	HardwareMomentary HardwareType = iota
	HardwareLatching
)

// ButtonBinding links a binary input to an element with its dispatch mode.
type ButtonBinding struct {
	ID       string
	Element  string
	InputID  string
	Mode     ButtonMode
	Hardware HardwareType
	Enabled  bool

	// simple / momentary
	Endpoint string
	OnValue  float64
	OffValue float64

	// RepeatDelay spaces out the re-sends of a held momentary button.
	// Zero re-sends as fast as the simulator accepts writes.
	RepeatDelay time.Duration

	// sequence
	PressSequenceID   string
	ReleaseSequenceID string

	// keystroke
	Key string
}

// Step is one entry of a command sequence: write Value to Endpoint, then
// wait Delay before the next step.
type Step struct {
	Endpoint string
	Value    float64
	Delay    time.Duration
}

// Sequence is an ordered, cancellable list of simulator writes.
type Sequence struct {
	ID    string
	Steps []Step
}

// Vehicle is one stored vehicle configuration. Identifier is matched
// against the identity derived from live formation data.
type Vehicle struct {
	ID         string
	Name       string
	Identifier string
}

// Store resolves stored configuration for the engines. Implementations must
// be safe for concurrent readers; the engines never write through it.
type Store interface {
	// ResolveIdentifier returns every stored vehicle whose identifier
	// matches: zero, one, or several.
	ResolveIdentifier(identifier string) []Vehicle

	// Inputs lists every configured hardware input.
	Inputs() []Input

	// Input returns one input by id.
	Input(id string) (Input, bool)

	// Lever returns one lever configuration by id.
	Lever(id string) (Lever, bool)

	// LeverBindings lists the enabled lever bindings of a vehicle.
	LeverBindings(vehicleID string) []LeverBinding

	// ButtonBindings lists the enabled button bindings of a vehicle.
	ButtonBindings(vehicleID string) []ButtonBinding

	// Sequence returns one command sequence by id.
	Sequence(id string) (Sequence, bool)
}
