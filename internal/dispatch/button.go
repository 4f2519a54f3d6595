// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/albertorestifo/trenino/internal/keystroke"
	"github.com/albertorestifo/trenino/internal/monitor"
	"github.com/albertorestifo/trenino/internal/store"
	"github.com/albertorestifo/trenino/internal/transport"
)

// seqHandle tracks one running sequence goroutine so the engine can cancel
// it and wait for it to finish.
type seqHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ButtonEngine maps binary input edges onto simulator writes, command
// sequences, and OS keystrokes. Like the lever engine it is a single
// goroutine; sequence executions are the only spawned work, and the engine
// owns their lifetime.
type ButtonEngine struct {
	writer   SimWriter
	injector keystroke.Injector
	store    store.Store
	metrics  *monitor.Metrics
	log      *logrus.Entry

	events   <-chan transport.RawEvent
	changes  <-chan []string
	vehicles <-chan *store.Vehicle

	// repeats re-delivers a held momentary key to the loop so it keeps
	// re-issuing the on value without blocking other inputs.
	repeats chan inputKey

	// Loop-owned state.
	inputs      map[inputKey]store.Input
	routes      map[string]store.ButtonBinding // by input id
	pressed     map[inputKey]bool
	interacting map[inputKey]bool
	lastSent    map[string]float64 // by binding id, updated only on send success
	sequences   map[inputKey]*seqHandle
	wg          sync.WaitGroup
}

// NewButtonEngine wires a button engine to its inputs.
func NewButtonEngine(writer SimWriter, injector keystroke.Injector, st store.Store, events <-chan transport.RawEvent, changes <-chan []string, vehicles <-chan *store.Vehicle, metrics *monitor.Metrics, log *logrus.Entry) *ButtonEngine {
	return &ButtonEngine{
		writer:      writer,
		injector:    injector,
		store:       st,
		metrics:     metrics,
		log:         log,
		events:      events,
		changes:     changes,
		vehicles:    vehicles,
		repeats:     make(chan inputKey, 64),
		inputs:      make(map[inputKey]store.Input),
		routes:      make(map[string]store.ButtonBinding),
		pressed:     make(map[inputKey]bool),
		interacting: make(map[inputKey]bool),
		lastSent:    make(map[string]float64),
		sequences:   make(map[inputKey]*seqHandle),
	}
}

// Run drives the engine until the context is cancelled, then cancels and
// waits for every in-flight sequence.
func (e *ButtonEngine) Run(ctx context.Context) {
	defer e.stopSequences()

	for {
		select {
		case <-ctx.Done():
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
		case key := <-e.repeats:
			e.onRepeat(ctx, key)
		}
	}
}

func (e *ButtonEngine) rebuildInputs(connected []string) {
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

	e.log.WithField("inputs", len(e.inputs)).Debug("button input table rebuilt")
}

// onVehicle replaces the routing table. Every in-flight momentary loop and
// sequence is cancelled and waited for before the new bindings apply, so a
// stale task can never write through a new vehicle's bindings.
func (e *ButtonEngine) onVehicle(v *store.Vehicle) {
	e.stopSequences()
	e.routes = make(map[string]store.ButtonBinding)
	e.pressed = make(map[inputKey]bool)
	e.interacting = make(map[inputKey]bool)
	e.lastSent = make(map[string]float64)

	if v == nil {
		return
	}

	for _, binding := range e.store.ButtonBindings(v.ID) {
		if _, ok := e.store.Input(binding.InputID); !ok {
			e.log.WithField("binding", binding.ID).Warn("button binding references unknown input")
			continue
		}
		e.routes[binding.InputID] = binding
	}

	e.log.WithFields(logrus.Fields{"vehicle": v.ID, "buttons": len(e.routes)}).Info("button routes rebuilt")
}

func (e *ButtonEngine) onEvent(ctx context.Context, raw transport.RawEvent) {
	key := inputKey{transport: raw.Transport, pin: raw.Pin}
	input, ok := e.inputs[key]
	if !ok {
		return
	}
	binding, ok := e.routes[input.ID]
	if !ok {
		return
	}
	e.metrics.InputEvent()

	down := raw.Value != 0
	if e.pressed[key] == down {
		return
	}
	e.pressed[key] = down

	switch binding.Mode {
	case store.ButtonSimple:
		e.sendSimple(ctx, binding, down)
	case store.ButtonMomentary:
		e.onMomentaryEdge(ctx, key, binding, down)
	case store.ButtonSequence:
		e.onSequenceEdge(ctx, key, binding, down)
	case store.ButtonKeystroke:
		e.onKeystrokeEdge(binding, down)
	}
}

// sendSimple writes the edge value, deduplicated against the last value
// successfully sent for this binding.
func (e *ButtonEngine) sendSimple(ctx context.Context, binding store.ButtonBinding, down bool) {
	value := binding.OffValue
	if down {
		value = binding.OnValue
	}

	if last, ok := e.lastSent[binding.ID]; ok && last == value {
		return
	}
	e.send(ctx, binding, value)
}

// onMomentaryEdge starts or stops the repeat loop for a held button. The
// repeat is a message to the engine itself: the loop stays free to handle
// other inputs between re-sends.
func (e *ButtonEngine) onMomentaryEdge(ctx context.Context, key inputKey, binding store.ButtonBinding, down bool) {
	if down {
		e.interacting[key] = true
		e.send(ctx, binding, binding.OnValue)
		e.scheduleRepeat(key, binding.RepeatDelay)
		return
	}

	e.interacting[key] = false
	e.send(ctx, binding, binding.OffValue)
}

// onRepeat re-issues the on value while the key is still held. A repeat for
// a key that was released, re-routed, or cleared by a vehicle change is a
// no-op.
func (e *ButtonEngine) onRepeat(ctx context.Context, key inputKey) {
	if !e.interacting[key] {
		return
	}
	input, ok := e.inputs[key]
	if !ok {
		return
	}
	binding, ok := e.routes[input.ID]
	if !ok || binding.Mode != store.ButtonMomentary {
		return
	}

	e.send(ctx, binding, binding.OnValue)
	e.scheduleRepeat(key, binding.RepeatDelay)
}

// scheduleRepeat re-delivers the key to the loop, immediately or after the
// binding's repeat delay. Sends never block; a full queue means a repeat for
// this key is already pending.
func (e *ButtonEngine) scheduleRepeat(key inputKey, delay time.Duration) {
	enqueue := func() {
		select {
		case e.repeats <- key:
		default:
		}
	}

	if delay <= 0 {
		enqueue()
		return
	}
	time.AfterFunc(delay, enqueue)
}

// onSequenceEdge runs the press sequence on press. On release, latching
// hardware runs the release sequence; momentary hardware cancels whatever
// the press started.
func (e *ButtonEngine) onSequenceEdge(ctx context.Context, key inputKey, binding store.ButtonBinding, down bool) {
	if down {
		e.startSequence(ctx, key, binding.PressSequenceID)
		return
	}

	if binding.Hardware == store.HardwareLatching {
		e.startSequence(ctx, key, binding.ReleaseSequenceID)
		return
	}
	e.cancelSequence(key)
}

// startSequence cancels any sequence already running on the key, then runs
// the named sequence in a goroutine scoped to the engine's context.
func (e *ButtonEngine) startSequence(ctx context.Context, key inputKey, id string) {
	e.cancelSequence(key)

	if id == "" {
		return
	}
	seq, ok := e.store.Sequence(id)
	if !ok {
		e.log.WithField("sequence", id).Warn("unknown sequence")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &seqHandle{cancel: cancel, done: make(chan struct{})}
	e.sequences[key] = handle
	e.metrics.SequenceRun()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(handle.done)
		defer cancel()
		e.runSequence(runCtx, seq)
	}()
}

// runSequence executes the steps in order, honoring the per-step delay and
// stopping as soon as the context is cancelled.
func (e *ButtonEngine) runSequence(ctx context.Context, seq store.Sequence) {
	for _, step := range seq.Steps {
		if ctx.Err() != nil {
			return
		}

		if err := e.writer.Write(ctx, step.Endpoint, step.Value); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"sequence": seq.ID,
				"endpoint": step.Endpoint,
			}).Error("sequence write failed")
			e.metrics.SimWrite(false)
			e.metrics.DispatchError("button")
			return
		}
		e.metrics.SimWrite(true)

		if step.Delay <= 0 {
			continue
		}
		timer := time.NewTimer(step.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cancelSequence stops the sequence running on a key, waiting for it to
// finish. Cancelling a key with no running sequence is a no-op.
func (e *ButtonEngine) cancelSequence(key inputKey) {
	handle, ok := e.sequences[key]
	if !ok {
		return
	}
	delete(e.sequences, key)
	handle.cancel()
	<-handle.done
}

// stopSequences cancels every running sequence and waits for them all.
func (e *ButtonEngine) stopSequences() {
	for key, handle := range e.sequences {
		handle.cancel()
		delete(e.sequences, key)
	}
	e.wg.Wait()
}

func (e *ButtonEngine) onKeystrokeEdge(binding store.ButtonBinding, down bool) {
	var err error
	if down {
		err = e.injector.KeyDown(binding.Key)
	} else {
		err = e.injector.KeyUp(binding.Key)
	}
	if err != nil {
		e.log.WithError(err).WithField("binding", binding.ID).Error("keystroke injection failed")
		e.metrics.DispatchError("button")
	}
}

// send writes a value for a binding and records it as last-sent only when
// the write succeeded, so a failed send is retried on the next edge.
func (e *ButtonEngine) send(ctx context.Context, binding store.ButtonBinding, value float64) {
	if err := e.writer.Write(ctx, binding.Endpoint, value); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"binding":  binding.ID,
			"endpoint": binding.Endpoint,
		}).Error("simulator write failed")
		e.metrics.SimWrite(false)
		e.metrics.DispatchError("button")
		return
	}

	e.metrics.SimWrite(true)
	e.lastSent[binding.ID] = value
}
