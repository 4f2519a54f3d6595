// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package dispatch

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/albertorestifo/trenino/internal/monitor"
	"github.com/albertorestifo/trenino/internal/notch"
	"github.com/albertorestifo/trenino/internal/store"
	"github.com/albertorestifo/trenino/internal/transport"
	"github.com/albertorestifo/trenino/pkg/cablink"
)

// leverRoute binds one hardware input to one lever of the active vehicle.
type leverRoute struct {
	input store.Input
	lever store.Lever
}

// LeverEngine maps lever movements onto simulator writes. It owns the
// motor-haptic profile lifecycle: profiles are loaded on vehicle activation
// and deactivated when the vehicle goes away or changes.
type LeverEngine struct {
	writer  SimWriter
	hub     TransportHub
	store   store.Store
	metrics *monitor.Metrics
	log     *logrus.Entry

	events   <-chan transport.RawEvent
	changes  <-chan []string
	vehicles <-chan *store.Vehicle

	// Loop-owned state.
	inputs     map[inputKey]store.Input
	routes     map[string]leverRoute // by input id
	lastSent   map[string]float64    // by lever id, updated only on send success
	loadedPins []uint8
}

// NewLeverEngine wires a lever engine to its inputs. The vehicles channel
// carries the active vehicle, nil meaning none.
func NewLeverEngine(writer SimWriter, hub TransportHub, st store.Store, events <-chan transport.RawEvent, changes <-chan []string, vehicles <-chan *store.Vehicle, metrics *monitor.Metrics, log *logrus.Entry) *LeverEngine {
	return &LeverEngine{
		writer:   writer,
		hub:      hub,
		store:    st,
		metrics:  metrics,
		log:      log,
		events:   events,
		changes:  changes,
		vehicles: vehicles,
		inputs:   make(map[inputKey]store.Input),
		routes:   make(map[string]leverRoute),
		lastSent: make(map[string]float64),
	}
}

// Run drives the engine until the context is cancelled. All state is owned
// by this goroutine.
func (e *LeverEngine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.deactivateProfiles()
			return
		case ids, ok := <-e.changes:
			if !ok {
				return
			}
			e.rebuildInputs(ids)
		case v, ok := <-e.vehicles:
			if !ok {
				return
			}
			e.onVehicle(v)
		case raw, ok := <-e.events:
			if !ok {
				return
			}
			e.onEvent(ctx, raw)
		}
	}
}

// rebuildInputs replaces the (transport, pin) lookup with the stored inputs
// that live on a currently connected transport.
func (e *LeverEngine) rebuildInputs(connected []string) {
	up := make(map[string]bool, len(connected))
	for _, id := range connected {
		up[id] = true
	}

	e.inputs = make(map[inputKey]store.Input)
	for _, in := range e.store.Inputs() {
		if !up[in.Transport] {
			continue
		}
		e.inputs[inputKey{transport: in.Transport, pin: in.Pin}] = in
	}

	e.log.WithField("inputs", len(e.inputs)).Debug("lever input table rebuilt")
}

func (e *LeverEngine) onVehicle(v *store.Vehicle) {
	e.deactivateProfiles()
	e.routes = make(map[string]leverRoute)
	e.lastSent = make(map[string]float64)

	if v == nil {
		return
	}

	for _, binding := range e.store.LeverBindings(v.ID) {
		input, ok := e.store.Input(binding.InputID)
		if !ok {
			e.log.WithField("binding", binding.ID).Warn("lever binding references unknown input")
			continue
		}
		lever, ok := e.store.Lever(binding.LeverID)
		if !ok {
			e.log.WithField("binding", binding.ID).Warn("lever binding references unknown lever")
			continue
		}

		e.routes[input.ID] = leverRoute{input: input, lever: lever}

		if lever.Kind == store.LeverMotorHaptic {
			e.loadProfile(input, lever)
		}
	}

	e.log.WithFields(logrus.Fields{"vehicle": v.ID, "levers": len(e.routes)}).Info("lever routes rebuilt")
}

// loadProfile builds and sends the haptic profile of one motor lever to the
// first connected transport. Failures are logged; the lever still routes its
// detent events.
func (e *LeverEngine) loadProfile(input store.Input, lever store.Lever) {
	profile, err := notch.BuildProfile(lever)
	if err != nil {
		e.log.WithError(err).WithField("lever", lever.ID).Error("haptic profile build failed")
		e.metrics.DispatchError("lever")
		return
	}
	profile.Pin = input.Pin

	target := e.hub.First()
	if target == nil {
		e.log.WithField("lever", lever.ID).Warn("no transport connected, skipping haptic profile load")
		return
	}

	if err := target.Send(profile); err != nil {
		e.log.WithError(err).WithField("lever", lever.ID).Error("haptic profile load failed")
		e.metrics.DispatchError("lever")
		return
	}

	e.loadedPins = append(e.loadedPins, input.Pin)
	e.metrics.ProfileCommand("load")
	e.log.WithFields(logrus.Fields{"lever": lever.ID, "pin": input.Pin}).Info("haptic profile loaded")
}

// deactivateProfiles clears every loaded haptic profile from the firmware.
func (e *LeverEngine) deactivateProfiles() {
	if len(e.loadedPins) == 0 {
		return
	}

	target := e.hub.First()
	for _, pin := range e.loadedPins {
		if target == nil {
			break
		}
		if err := target.Send(cablink.DeactivateBLDCProfile{Pin: pin}); err != nil {
			e.log.WithError(err).WithField("pin", pin).Error("haptic profile deactivation failed")
			continue
		}
		e.metrics.ProfileCommand("deactivate")
	}
	e.loadedPins = nil
}

func (e *LeverEngine) onEvent(ctx context.Context, raw transport.RawEvent) {
	input, ok := e.inputs[inputKey{transport: raw.Transport, pin: raw.Pin}]
	if !ok {
		return
	}
	route, ok := e.routes[input.ID]
	if !ok {
		return
	}
	e.metrics.InputEvent()

	value, err := e.mapValue(route, raw.Value)
	if err != nil {
		e.log.WithError(err).WithField("lever", route.lever.ID).Debug("lever value unmappable")
		return
	}

	if last, ok := e.lastSent[route.lever.ID]; ok && last == value {
		return
	}

	if err := e.writer.Write(ctx, route.lever.Endpoint, value); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"lever":    route.lever.ID,
			"endpoint": route.lever.Endpoint,
		}).Error("simulator write failed")
		e.metrics.SimWrite(false)
		e.metrics.DispatchError("lever")
		return
	}

	e.metrics.SimWrite(true)
	e.lastSent[route.lever.ID] = value
}

// mapValue converts a raw reading into the simulator value for the route.
// Motor levers report the detent index directly; analog inputs report an ADC
// reading normalized through the input's calibration.
func (e *LeverEngine) mapValue(route leverRoute, raw uint16) (float64, error) {
	if route.input.Type == store.InputMotorLever {
		return notch.MapDetent(route.lever, int(raw))
	}
	return notch.MapInput(route.lever, normalize(route.input.Calibration, raw))
}

// normalize converts a raw ADC reading to the 0.0-1.0 scale through the
// calibration bounds, clamped and rounded to 2 decimals. A missing or
// degenerate calibration yields 0.
func normalize(cal *store.Calibration, raw uint16) float64 {
	if cal == nil || cal.RawMax <= cal.RawMin {
		return 0
	}

	x := (float64(raw) - float64(cal.RawMin)) / float64(cal.RawMax-cal.RawMin)
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return math.Round(x*100) / 100
}
