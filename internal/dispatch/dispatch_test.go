// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/albertorestifo/trenino/internal/store"
	"github.com/albertorestifo/trenino/internal/transport"
	"github.com/albertorestifo/trenino/pkg/cablink"
)

type simWrite struct {
	endpoint string
	value    float64
}

type fakeWriter struct {
	mu       sync.Mutex
	failing  bool
	attempts int
	writes   []simWrite
}

func (w *fakeWriter) Write(_ context.Context, endpoint string, value float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.failing {
		return errors.New("simulator unreachable")
	}
	w.writes = append(w.writes, simWrite{endpoint: endpoint, value: value})
	return nil
}

func (w *fakeWriter) setFailing(failing bool) {
	w.mu.Lock()
	w.failing = failing
	w.mu.Unlock()
}

func (w *fakeWriter) snapshot() []simWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]simWrite(nil), w.writes...)
}

type fakeTransport struct {
	mu   sync.Mutex
	id   string
	sent []cablink.Message
}

func (f *fakeTransport) ID() string { return f.id }

func (f *fakeTransport) Send(m cablink.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) messages() []cablink.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cablink.Message(nil), f.sent...)
}

type fakeHub struct {
	first *fakeTransport
}

func (h *fakeHub) First() transport.Transport {
	if h.first == nil {
		return nil
	}
	return h.first
}

func (h *fakeHub) Get(id string) (transport.Transport, bool) {
	if h.first != nil && h.first.id == id {
		return h.first, true
	}
	return nil, false
}

type fakeStore struct {
	inputs         map[string]store.Input
	levers         map[string]store.Lever
	leverBindings  map[string][]store.LeverBinding
	buttonBindings map[string][]store.ButtonBinding
	sequences      map[string]store.Sequence
}

func (s *fakeStore) ResolveIdentifier(string) []store.Vehicle { return nil }

func (s *fakeStore) Inputs() []store.Input {
	var all []store.Input
	for _, in := range s.inputs {
		all = append(all, in)
	}
	return all
}

func (s *fakeStore) Input(id string) (store.Input, bool) {
	in, ok := s.inputs[id]
	return in, ok
}

func (s *fakeStore) Lever(id string) (store.Lever, bool) {
	l, ok := s.levers[id]
	return l, ok
}

func (s *fakeStore) LeverBindings(vehicleID string) []store.LeverBinding {
	return s.leverBindings[vehicleID]
}

func (s *fakeStore) ButtonBindings(vehicleID string) []store.ButtonBinding {
	return s.buttonBindings[vehicleID]
}

func (s *fakeStore) Sequence(id string) (store.Sequence, bool) {
	seq, ok := s.sequences[id]
	return seq, ok
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
