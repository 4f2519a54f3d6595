// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package transport owns the hardware side of the bridge: serial links to
// the cab boards, frame reassembly, and fan-out of decoded input events to
// the dispatch engines.
package transport

import (
	"sync"

	"github.com/albertorestifo/trenino/internal/monitor"
	"github.com/albertorestifo/trenino/pkg/cablink"
)

// RawEvent is one raw input change reported by a board.
type RawEvent struct {
	Transport string
	Pin       uint8
	Value     uint16
}

// Transport is one connected hardware link.
type Transport interface {
	ID() string
	Send(m cablink.Message) error
	Close() error
}

// Manager tracks the set of connected transports and distributes their
// input events. Connection and disconnection are driven by the serial
// supervisors in this package; consumers only observe snapshots.
type Manager struct {
	metrics *monitor.Metrics

	mu         sync.Mutex
	transports map[string]Transport
	order      []string
	eventSubs  []chan RawEvent
	changeSubs []chan []string
}

// NewManager creates an empty transport manager. A nil metrics is valid and
// records nothing.
func NewManager(metrics *monitor.Metrics) *Manager {
	return &Manager{metrics: metrics, transports: make(map[string]Transport)}
}

// Events returns a channel of raw input events from every transport.
// Register before transports connect.
func (m *Manager) Events() <-chan RawEvent {
	ch := make(chan RawEvent, 64)
	m.mu.Lock()
	m.eventSubs = append(m.eventSubs, ch)
	m.mu.Unlock()
	return ch
}

// Changes returns a channel receiving a snapshot of connected transport ids
// every time the set changes.
func (m *Manager) Changes() <-chan []string {
	ch := make(chan []string, 4)
	m.mu.Lock()
	m.changeSubs = append(m.changeSubs, ch)
	m.mu.Unlock()
	return ch
}

// Get returns a connected transport by id.
func (m *Manager) Get(id string) (Transport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transports[id]
	return t, ok
}

// First returns the earliest-connected transport, or nil when none is
// connected. Haptic profile commands target this transport: rigs carry at
// most one motor-haptic board.
func (m *Manager) First() Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil
	}
	return m.transports[m.order[0]]
}

// Connected returns the ids of the connected transports in connection order.
func (m *Manager) Connected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) add(t Transport) {
	m.mu.Lock()
	m.transports[t.ID()] = t
	m.order = append(m.order, t.ID())
	m.mu.Unlock()
	m.notifyChanged()
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.transports, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.notifyChanged()
}

func (m *Manager) publish(ev RawEvent) {
	m.mu.Lock()
	subs := append([]chan RawEvent(nil), m.eventSubs...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than stall the read loop.
		}
	}
}

func (m *Manager) notifyChanged() {
	snapshot := m.Connected()
	m.mu.Lock()
	subs := append([]chan []string(nil), m.changeSubs...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
