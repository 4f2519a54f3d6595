// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package transport

import (
	"reflect"
	"testing"

	"github.com/albertorestifo/trenino/pkg/cablink"
)

type stubTransport struct {
	id   string
	sent []cablink.Message
}

func (s *stubTransport) ID() string                   { return s.id }
func (s *stubTransport) Send(m cablink.Message) error { s.sent = append(s.sent, m); return nil }
func (s *stubTransport) Close() error                 { return nil }

func TestManagerConnectionOrder(t *testing.T) {
	m := NewManager(nil)
	if got := m.First(); got != nil {
		t.Fatalf("First on empty manager = %v, want nil", got)
	}

	a := &stubTransport{id: "desk"}
	b := &stubTransport{id: "panel"}
	m.add(a)
	m.add(b)

	if got := m.First(); got != Transport(a) {
		t.Fatalf("First = %v, want desk", got)
	}
	if got := m.Connected(); !reflect.DeepEqual(got, []string{"desk", "panel"}) {
		t.Fatalf("Connected = %v", got)
	}

	tr, ok := m.Get("panel")
	if !ok || tr.ID() != "panel" {
		t.Fatalf("Get(panel) = %v, %v", tr, ok)
	}

	m.remove("desk")
	if got := m.First(); got != Transport(b) {
		t.Fatalf("First after remove = %v, want panel", got)
	}
	if _, ok := m.Get("desk"); ok {
		t.Fatal("Get(desk) succeeded after remove")
	}
}

func TestManagerChangeSnapshots(t *testing.T) {
	m := NewManager(nil)
	changes := m.Changes()

	m.add(&stubTransport{id: "desk"})
	if got := <-changes; !reflect.DeepEqual(got, []string{"desk"}) {
		t.Fatalf("first snapshot = %v", got)
	}

	m.add(&stubTransport{id: "panel"})
	if got := <-changes; !reflect.DeepEqual(got, []string{"desk", "panel"}) {
		t.Fatalf("second snapshot = %v", got)
	}

	m.remove("desk")
	if got := <-changes; !reflect.DeepEqual(got, []string{"panel"}) {
		t.Fatalf("third snapshot = %v", got)
	}
}

func TestManagerPublishFanOut(t *testing.T) {
	m := NewManager(nil)
	first := m.Events()
	second := m.Events()

	ev := RawEvent{Transport: "desk", Pin: 3, Value: 512}
	m.publish(ev)

	for i, ch := range []<-chan RawEvent{first, second} {
		select {
		case got := <-ch:
			if got != ev {
				t.Fatalf("subscriber %d received %v, want %v", i, got, ev)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestManagerPublishDropsWhenFull(t *testing.T) {
	m := NewManager(nil)
	events := m.Events()

	// Overfill the subscriber buffer; publish must not block.
	for i := 0; i < 100; i++ {
		m.publish(RawEvent{Transport: "desk", Pin: 1, Value: uint16(i)})
	}
	if got := len(events); got != cap(events) {
		t.Fatalf("buffered %d events, want %d", got, cap(events))
	}
}
