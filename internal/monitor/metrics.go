// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package monitor exposes Prometheus metrics for the bridge. A nil *Metrics
// is valid and records nothing, so metrics stay optional.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics aggregates the bridge's instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	framesDropped  prometheus.Counter
	decodeErrors   prometheus.Counter
	inputEvents    prometheus.Counter
	simWrites      *prometheus.CounterVec
	profileLoads   *prometheus.CounterVec
	sequenceRuns   prometheus.Counter
	dispatchErrors *prometheus.CounterVec
	activeVehicle  *prometheus.GaugeVec
	identState     *prometheus.GaugeVec
}

// New registers the bridge metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.framesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trenino_frames_dropped_total",
		Help: "Malformed frames discarded by the framing decoder",
	})
	m.decodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trenino_decode_errors_total",
		Help: "Frame payloads that failed message decoding",
	})
	m.inputEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trenino_input_events_total",
		Help: "Raw input events received from hardware",
	})
	m.simWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trenino_sim_writes_total",
		Help: "Simulator endpoint writes by result",
	}, []string{"result"})
	m.profileLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trenino_haptic_profile_commands_total",
		Help: "Haptic profile load/deactivate commands by kind",
	}, []string{"kind"})
	m.sequenceRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trenino_sequence_runs_total",
		Help: "Button command sequences started",
	})
	m.dispatchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trenino_dispatch_errors_total",
		Help: "Per-item dispatch failures by engine",
	}, []string{"engine"})
	m.activeVehicle = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trenino_active_vehicle",
		Help: "1 for the currently active vehicle configuration",
	}, []string{"vehicle"})
	m.identState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trenino_identification_state",
		Help: "1 for the current identification state",
	}, []string{"state"})

	m.registry.MustRegister(
		m.framesDropped, m.decodeErrors, m.inputEvents,
		m.simWrites, m.profileLoads, m.sequenceRuns, m.dispatchErrors,
		m.activeVehicle, m.identState,
	)
	return m
}

// Gatherer exposes the registry backing the /metrics endpoint.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.registry
}

// Serve exposes /metrics on addr until the listener fails.
func (m *Metrics) Serve(addr string, log *logrus.Entry) {
	if m == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics endpoint failed")
	}
}

// FrameDropped records malformed frames discarded by a transport.
func (m *Metrics) FrameDropped(n uint64) {
	if m == nil {
		return
	}
	m.framesDropped.Add(float64(n))
}

// DecodeError records a payload that failed message decoding.
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// InputEvent records a raw hardware input event.
func (m *Metrics) InputEvent() {
	if m == nil {
		return
	}
	m.inputEvents.Inc()
}

// SimWrite records the outcome of one simulator write.
func (m *Metrics) SimWrite(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.simWrites.WithLabelValues(result).Inc()
}

// ProfileCommand records a haptic profile load or deactivate.
func (m *Metrics) ProfileCommand(kind string) {
	if m == nil {
		return
	}
	m.profileLoads.WithLabelValues(kind).Inc()
}

// SequenceRun records a started command sequence.
func (m *Metrics) SequenceRun() {
	if m == nil {
		return
	}
	m.sequenceRuns.Inc()
}

// DispatchError records a per-item dispatch failure.
func (m *Metrics) DispatchError(engine string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(engine).Inc()
}

// ActiveVehicle flips the active-vehicle gauge to the given id, clearing the
// previous one. Empty means none.
func (m *Metrics) ActiveVehicle(id string) {
	if m == nil {
		return
	}
	m.activeVehicle.Reset()
	if id != "" {
		m.activeVehicle.WithLabelValues(id).Set(1)
	}
}

// IdentState flips the identification-state gauge.
func (m *Metrics) IdentState(state string) {
	if m == nil {
		return
	}
	m.identState.Reset()
	m.identState.WithLabelValues(state).Set(1)
}
