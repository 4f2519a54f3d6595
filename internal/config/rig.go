// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/albertorestifo/trenino/internal/keystroke"
	"github.com/albertorestifo/trenino/internal/store"
)

// Rig is the YAML-backed store.Store implementation. It is immutable after
// load: changing the rig means reloading the file.
type Rig struct {
	inputs         map[string]store.Input
	levers         map[string]store.Lever
	sequences      map[string]store.Sequence
	vehicles       []store.Vehicle
	leverBindings  map[string][]store.LeverBinding
	buttonBindings map[string][]store.ButtonBinding
}

type rigFile struct {
	Inputs    []rigInput    `yaml:"inputs"`
	Levers    []rigLever    `yaml:"levers"`
	Sequences []rigSequence `yaml:"sequences"`
	Vehicles  []rigVehicle  `yaml:"vehicles"`
}

type rigInput struct {
	ID          string          `yaml:"id"`
	Transport   string          `yaml:"transport"`
	Pin         uint8           `yaml:"pin"`
	Type        string          `yaml:"type"`
	Calibration *rigCalibration `yaml:"calibration"`
}

type rigCalibration struct {
	RawMin int `yaml:"raw_min"`
	RawMax int `yaml:"raw_max"`
}

type rigLever struct {
	ID       string     `yaml:"id"`
	Element  string     `yaml:"element"`
	Kind     string     `yaml:"kind"`
	Inverted bool       `yaml:"inverted"`
	Endpoint string     `yaml:"endpoint"`
	Notches  []rigNotch `yaml:"notches"`
}

type rigNotch struct {
	Index    int         `yaml:"index"`
	Kind     string      `yaml:"kind"`
	Hardware rigBand     `yaml:"hardware"`
	Sim      rigBand     `yaml:"sim"`
	Haptics  *rigHaptics `yaml:"haptics"`
	Damping  *uint8      `yaml:"damping"`
}

type rigBand struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type rigHaptics struct {
	Engagement uint8 `yaml:"engagement"`
	Hold       uint8 `yaml:"hold"`
	Exit       uint8 `yaml:"exit"`
	SpringBack uint8 `yaml:"spring_back"`
}

type rigVehicle struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Identifier string             `yaml:"identifier"`
	Levers     []rigLeverBinding  `yaml:"levers"`
	Buttons    []rigButtonBinding `yaml:"buttons"`
}

type rigLeverBinding struct {
	ID       string `yaml:"id"`
	Input    string `yaml:"input"`
	Lever    string `yaml:"lever"`
	Disabled bool   `yaml:"disabled"`
}

type rigButtonBinding struct {
	ID          string        `yaml:"id"`
	Element     string        `yaml:"element"`
	Input       string        `yaml:"input"`
	Mode        string        `yaml:"mode"`
	Hardware    string        `yaml:"hardware"`
	Endpoint    string        `yaml:"endpoint"`
	On          float64       `yaml:"on_value"`
	Off         float64       `yaml:"off_value"`
	RepeatDelay Duration      `yaml:"repeat_delay"`
	Press       string        `yaml:"press_sequence"`
	Release     string        `yaml:"release_sequence"`
	Key         string        `yaml:"key"`
	Disabled    bool          `yaml:"disabled"`
}

type rigSequence struct {
	ID    string    `yaml:"id"`
	Steps []rigStep `yaml:"steps"`
}

type rigStep struct {
	Endpoint string   `yaml:"endpoint"`
	Value    float64  `yaml:"value"`
	Delay    Duration `yaml:"delay"`
}

// LoadRig reads and validates a rig definition.
func LoadRig(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rig: %w", err)
	}
	return ParseRig(data)
}

// ParseRig builds a Rig from YAML. Every reference is resolved and every
// lever's notch table validated: a rig that loads is a rig that dispatches.
func ParseRig(data []byte) (*Rig, error) {
	var file rigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rig: %w", err)
	}

	rig := &Rig{
		inputs:         make(map[string]store.Input),
		levers:         make(map[string]store.Lever),
		sequences:      make(map[string]store.Sequence),
		leverBindings:  make(map[string][]store.LeverBinding),
		buttonBindings: make(map[string][]store.ButtonBinding),
	}

	for _, in := range file.Inputs {
		input, err := in.toStore()
		if err != nil {
			return nil, err
		}
		if _, dup := rig.inputs[input.ID]; dup {
			return nil, fmt.Errorf("duplicate input id %q", input.ID)
		}
		rig.inputs[input.ID] = input
	}

	for _, l := range file.Levers {
		lever, err := l.toStore()
		if err != nil {
			return nil, err
		}
		if err := lever.Validate(); err != nil {
			return nil, err
		}
		if _, dup := rig.levers[lever.ID]; dup {
			return nil, fmt.Errorf("duplicate lever id %q", lever.ID)
		}
		rig.levers[lever.ID] = lever
	}

	for _, s := range file.Sequences {
		seq := store.Sequence{ID: s.ID}
		for _, step := range s.Steps {
			seq.Steps = append(seq.Steps, store.Step{Endpoint: step.Endpoint, Value: step.Value, Delay: step.Delay.Std()})
		}
		if _, dup := rig.sequences[seq.ID]; dup {
			return nil, fmt.Errorf("duplicate sequence id %q", seq.ID)
		}
		rig.sequences[seq.ID] = seq
	}

	for _, v := range file.Vehicles {
		if v.Identifier == "" {
			return nil, fmt.Errorf("vehicle %q missing identifier", v.ID)
		}
		rig.vehicles = append(rig.vehicles, store.Vehicle{ID: v.ID, Name: v.Name, Identifier: v.Identifier})

		for _, b := range v.Levers {
			if b.Disabled {
				continue
			}
			binding, err := rig.leverBinding(v.ID, b)
			if err != nil {
				return nil, err
			}
			rig.leverBindings[v.ID] = append(rig.leverBindings[v.ID], binding)
		}

		for _, b := range v.Buttons {
			if b.Disabled {
				continue
			}
			binding, err := rig.buttonBinding(v.ID, b)
			if err != nil {
				return nil, err
			}
			rig.buttonBindings[v.ID] = append(rig.buttonBindings[v.ID], binding)
		}
	}

	return rig, nil
}

func (in rigInput) toStore() (store.Input, error) {
	var typ store.InputType
	switch in.Type {
	case "analog":
		typ = store.InputAnalog
	case "button":
		typ = store.InputButton
	case "motor-lever":
		typ = store.InputMotorLever
	default:
		return store.Input{}, fmt.Errorf("input %q: unknown type %q", in.ID, in.Type)
	}

	input := store.Input{ID: in.ID, Transport: in.Transport, Pin: in.Pin, Type: typ}
	if in.Calibration != nil {
		input.Calibration = &store.Calibration{RawMin: in.Calibration.RawMin, RawMax: in.Calibration.RawMax}
	}

	if typ == store.InputAnalog {
		if input.Calibration == nil {
			return store.Input{}, fmt.Errorf("analog input %q missing calibration", in.ID)
		}
		if input.Calibration.RawMax <= input.Calibration.RawMin {
			return store.Input{}, fmt.Errorf("analog input %q: raw_max must exceed raw_min", in.ID)
		}
	}

	return input, nil
}

func (l rigLever) toStore() (store.Lever, error) {
	var kind store.LeverKind
	switch l.Kind {
	case "discrete":
		kind = store.LeverDiscrete
	case "continuous":
		kind = store.LeverContinuous
	case "hybrid":
		kind = store.LeverHybrid
	case "motor-haptic":
		kind = store.LeverMotorHaptic
	default:
		return store.Lever{}, fmt.Errorf("lever %q: unknown kind %q", l.ID, l.Kind)
	}

	lever := store.Lever{
		ID:       l.ID,
		Element:  l.Element,
		Kind:     kind,
		Inverted: l.Inverted,
		Endpoint: l.Endpoint,
	}
	if lever.Endpoint == "" {
		return store.Lever{}, fmt.Errorf("lever %q missing endpoint", l.ID)
	}

	for _, n := range l.Notches {
		var notchKind store.NotchKind
		switch n.Kind {
		case "gate":
			notchKind = store.NotchGate
		case "linear":
			notchKind = store.NotchLinear
		default:
			return store.Lever{}, fmt.Errorf("lever %q notch %d: unknown kind %q", l.ID, n.Index, n.Kind)
		}

		notch := store.Notch{
			Index:    n.Index,
			Kind:     notchKind,
			Hardware: store.Band{Min: n.Hardware.Min, Max: n.Hardware.Max},
			Sim:      store.Band{Min: n.Sim.Min, Max: n.Sim.Max},
			Damping:  n.Damping,
		}
		if n.Haptics != nil {
			notch.Haptics = &store.GateHaptics{
				Engagement: n.Haptics.Engagement,
				Hold:       n.Haptics.Hold,
				Exit:       n.Haptics.Exit,
				SpringBack: n.Haptics.SpringBack,
			}
		}
		lever.Notches = append(lever.Notches, notch)
	}

	return lever, nil
}

func (r *Rig) leverBinding(vehicleID string, b rigLeverBinding) (store.LeverBinding, error) {
	if _, ok := r.inputs[b.Input]; !ok {
		return store.LeverBinding{}, fmt.Errorf("vehicle %q lever binding %q: unknown input %q", vehicleID, b.ID, b.Input)
	}
	if _, ok := r.levers[b.Lever]; !ok {
		return store.LeverBinding{}, fmt.Errorf("vehicle %q lever binding %q: unknown lever %q", vehicleID, b.ID, b.Lever)
	}
	return store.LeverBinding{ID: b.ID, InputID: b.Input, LeverID: b.Lever, Enabled: true}, nil
}

func (r *Rig) buttonBinding(vehicleID string, b rigButtonBinding) (store.ButtonBinding, error) {
	if _, ok := r.inputs[b.Input]; !ok {
		return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: unknown input %q", vehicleID, b.ID, b.Input)
	}

	var mode store.ButtonMode
	switch b.Mode {
	case "simple", "":
		mode = store.ButtonSimple
	case "momentary":
		mode = store.ButtonMomentary
	case "sequence":
		mode = store.ButtonSequence
	case "keystroke":
		mode = store.ButtonKeystroke
	default:
		return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: unknown mode %q", vehicleID, b.ID, b.Mode)
	}

	var hardware store.HardwareType
	switch b.Hardware {
	case "momentary", "":
		hardware = store.HardwareMomentary
	case "latching":
		hardware = store.HardwareLatching
	default:
		return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: unknown hardware %q", vehicleID, b.ID, b.Hardware)
	}

	switch mode {
	case store.ButtonSimple, store.ButtonMomentary:
		if b.Endpoint == "" {
			return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: missing endpoint", vehicleID, b.ID)
		}
	case store.ButtonSequence:
		if b.Press == "" {
			return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: missing press sequence", vehicleID, b.ID)
		}
		if _, ok := r.sequences[b.Press]; !ok {
			return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: unknown sequence %q", vehicleID, b.ID, b.Press)
		}
		if b.Release != "" {
			if _, ok := r.sequences[b.Release]; !ok {
				return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: unknown sequence %q", vehicleID, b.ID, b.Release)
			}
		}
	case store.ButtonKeystroke:
		if _, err := keystroke.Normalize(b.Key); err != nil {
			return store.ButtonBinding{}, fmt.Errorf("vehicle %q button binding %q: %w", vehicleID, b.ID, err)
		}
	}

	return store.ButtonBinding{
		ID:                b.ID,
		Element:           b.Element,
		InputID:           b.Input,
		Mode:              mode,
		Hardware:          hardware,
		Enabled:           true,
		Endpoint:          b.Endpoint,
		OnValue:           b.On,
		OffValue:          b.Off,
		RepeatDelay:       b.RepeatDelay.Std(),
		PressSequenceID:   b.Press,
		ReleaseSequenceID: b.Release,
		Key:               b.Key,
	}, nil
}

// ResolveIdentifier returns every vehicle whose identifier matches.
func (r *Rig) ResolveIdentifier(identifier string) []store.Vehicle {
	var matches []store.Vehicle
	for _, v := range r.vehicles {
		if v.Identifier == identifier {
			matches = append(matches, v)
		}
	}
	return matches
}

// Inputs lists every configured input.
func (r *Rig) Inputs() []store.Input {
	all := make([]store.Input, 0, len(r.inputs))
	for _, in := range r.inputs {
		all = append(all, in)
	}
	return all
}

// Input returns one input by id.
func (r *Rig) Input(id string) (store.Input, bool) {
	in, ok := r.inputs[id]
	return in, ok
}

// Lever returns one lever by id.
func (r *Rig) Lever(id string) (store.Lever, bool) {
	l, ok := r.levers[id]
	return l, ok
}

// LeverBindings lists the enabled lever bindings of a vehicle.
func (r *Rig) LeverBindings(vehicleID string) []store.LeverBinding {
	return r.leverBindings[vehicleID]
}

// ButtonBindings lists the enabled button bindings of a vehicle.
func (r *Rig) ButtonBindings(vehicleID string) []store.ButtonBinding {
	return r.buttonBindings[vehicleID]
}

// Sequence returns one sequence by id.
func (r *Rig) Sequence(id string) (store.Sequence, bool) {
	seq, ok := r.sequences[id]
	return seq, ok
}

// Vehicles lists every stored vehicle.
func (r *Rig) Vehicles() []store.Vehicle {
	return append([]store.Vehicle(nil), r.vehicles...)
}
