// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/albertorestifo/trenino/internal/store"
	"github.com/albertorestifo/trenino/internal/transport"
	"github.com/albertorestifo/trenino/pkg/cablink"
)

func u8(v uint8) *uint8 { return &v }

// throttleLever is a three-notch table: gate, linear, gate.
func throttleLever() store.Lever {
	return store.Lever{
		ID:       "throttle",
		Kind:     store.LeverHybrid,
		Endpoint: "train/throttle",
		Notches: []store.Notch{
			{Index: 0, Kind: store.NotchGate, Hardware: store.Band{Min: 0, Max: 0.2}, Sim: store.Band{Min: 0, Max: 0.1}},
			{Index: 1, Kind: store.NotchLinear, Hardware: store.Band{Min: 0.2, Max: 0.8}, Sim: store.Band{Min: 0.1, Max: 0.9}},
			{Index: 2, Kind: store.NotchGate, Hardware: store.Band{Min: 0.8, Max: 1.0}, Sim: store.Band{Min: 0.9, Max: 1.0}},
		},
	}
}

func brakeLever() store.Lever {
	return store.Lever{
		ID:       "brake",
		Kind:     store.LeverMotorHaptic,
		Endpoint: "train/brake",
		Notches: []store.Notch{
			{Index: 0, Kind: store.NotchGate, Hardware: store.Band{Min: 0, Max: 0.1}, Sim: store.Band{Min: 0, Max: 0.2},
				Haptics: &store.GateHaptics{Engagement: 40, Hold: 60, Exit: 40, SpringBack: 10}},
			{Index: 1, Kind: store.NotchLinear, Hardware: store.Band{Min: 0.1, Max: 0.9}, Sim: store.Band{Min: 0.2, Max: 0.8},
				Damping: u8(30)},
			{Index: 2, Kind: store.NotchGate, Hardware: store.Band{Min: 0.9, Max: 1.0}, Sim: store.Band{Min: 0.8, Max: 1.0},
				Haptics: &store.GateHaptics{Engagement: 50, Hold: 70, Exit: 50, SpringBack: 15}},
		},
	}
}

func leverStore() *fakeStore {
	return &fakeStore{
		inputs: map[string]store.Input{
			"in-throttle": {ID: "in-throttle", Transport: "board-1", Pin: 3, Type: store.InputAnalog,
				Calibration: &store.Calibration{RawMin: 0, RawMax: 1000}},
			"in-brake": {ID: "in-brake", Transport: "board-1", Pin: 7, Type: store.InputMotorLever},
		},
		levers: map[string]store.Lever{
			"throttle": throttleLever(),
			"brake":    brakeLever(),
		},
		leverBindings: map[string][]store.LeverBinding{
			"v1": {
				{ID: "b1", InputID: "in-throttle", LeverID: "throttle", Enabled: true},
				{ID: "b2", InputID: "in-brake", LeverID: "brake", Enabled: true},
			},
		},
	}
}

// startLeverEngine runs an engine with one connected transport and the v1
// vehicle active, returning the channels that drive it.
func startLeverEngine(t *testing.T, writer *fakeWriter, hub *fakeHub, st *fakeStore) (chan transport.RawEvent, chan []string, chan *store.Vehicle, func()) {
	t.Helper()

	events := make(chan transport.RawEvent, 16)
	changes := make(chan []string, 4)
	vehicles := make(chan *store.Vehicle, 4)

	engine := NewLeverEngine(writer, hub, st, events, changes, vehicles, nil, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	changes <- []string{"board-1"}
	vehicles <- &store.Vehicle{ID: "v1", Name: "Test unit"}

	return events, changes, vehicles, func() {
		cancel()
		<-done
	}
}

func TestLeverAnalogDispatch(t *testing.T) {
	writer := &fakeWriter{}
	hub := &fakeHub{first: &fakeTransport{id: "board-1"}}
	events, _, _, stop := startLeverEngine(t, writer, hub, leverStore())
	defer stop()

	// Raw 500 of 1000 normalizes to 0.5, the middle of the linear notch.
	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 500}

	waitFor(t, func() bool { return len(writer.snapshot()) == 1 }, "throttle write")
	got := writer.snapshot()[0]
	if got.endpoint != "train/throttle" || got.value != 0.5 {
		t.Errorf("wrote %+v, want train/throttle=0.5", got)
	}
}

func TestLeverUnknownInputIgnored(t *testing.T) {
	writer := &fakeWriter{}
	hub := &fakeHub{first: &fakeTransport{id: "board-1"}}
	events, _, _, stop := startLeverEngine(t, writer, hub, leverStore())
	defer stop()

	events <- transport.RawEvent{Transport: "board-1", Pin: 99, Value: 500}
	events <- transport.RawEvent{Transport: "board-2", Pin: 3, Value: 500}
	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 0}

	waitFor(t, func() bool { return len(writer.snapshot()) == 1 }, "gate write")
	if got := writer.snapshot()[0]; got.value != 0.05 {
		t.Errorf("wrote %v, want the low gate midpoint 0.05", got.value)
	}
}

func TestLeverDedupAgainstLastSent(t *testing.T) {
	writer := &fakeWriter{}
	hub := &fakeHub{first: &fakeTransport{id: "board-1"}}
	events, _, _, stop := startLeverEngine(t, writer, hub, leverStore())
	defer stop()

	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 500}
	waitFor(t, func() bool { return len(writer.snapshot()) == 1 }, "first write")

	// Same mapped value again: no second write.
	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 500}
	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 501}
	time.Sleep(20 * time.Millisecond)
	if n := len(writer.snapshot()); n != 1 {
		t.Fatalf("got %d writes, want 1 after duplicate values", n)
	}

	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 800}
	waitFor(t, func() bool { return len(writer.snapshot()) == 2 }, "changed value write")
}

func TestLeverFailedSendIsRetried(t *testing.T) {
	writer := &fakeWriter{}
	hub := &fakeHub{first: &fakeTransport{id: "board-1"}}
	events, _, _, stop := startLeverEngine(t, writer, hub, leverStore())
	defer stop()

	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 500}
	waitFor(t, func() bool { return len(writer.snapshot()) == 1 }, "initial write")

	writer.setFailing(true)
	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 800}
	waitFor(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()
		return writer.attempts >= 2
	}, "failed attempt")

	// The failed value was not cached, so the same reading dispatches again
	// once the link recovers.
	writer.setFailing(false)
	events <- transport.RawEvent{Transport: "board-1", Pin: 3, Value: 800}
	waitFor(t, func() bool { return len(writer.snapshot()) == 2 }, "retried write")
	if got := writer.snapshot()[1]; got.value != 0.95 {
		t.Errorf("retried value %v, want the high gate midpoint 0.95", got.value)
	}
}

func TestLeverMotorDetentDispatch(t *testing.T) {
	writer := &fakeWriter{}
	hub := &fakeHub{first: &fakeTransport{id: "board-1"}}
	events, _, _, stop := startLeverEngine(t, writer, hub, leverStore())
	defer stop()

	// Motor levers report the detent index, not a position.
	events <- transport.RawEvent{Transport: "board-1", Pin: 7, Value: 1}

	waitFor(t, func() bool { return len(writer.snapshot()) == 1 }, "detent write")
	got := writer.snapshot()[0]
	if got.endpoint != "train/brake" || got.value != 0.9 {
		t.Errorf("wrote %+v, want train/brake=0.9", got)
	}
}

func TestLeverProfileLifecycle(t *testing.T) {
	writer := &fakeWriter{}
	board := &fakeTransport{id: "board-1"}
	hub := &fakeHub{first: board}
	_, _, vehicles, stop := startLeverEngine(t, writer, hub, leverStore())
	defer stop()

	waitFor(t, func() bool { return len(board.messages()) == 1 }, "profile load")
	load, ok := board.messages()[0].(cablink.LoadBLDCProfile)
	if !ok {
		t.Fatalf("first command is %T, want LoadBLDCProfile", board.messages()[0])
	}
	if load.Pin != 7 {
		t.Errorf("profile targets pin %d, want 7", load.Pin)
	}
	if len(load.Detents) != 2 || len(load.Ranges) != 1 {
		t.Errorf("profile has %d detents and %d ranges, want 2 and 1", len(load.Detents), len(load.Ranges))
	}

	vehicles <- nil
	waitFor(t, func() bool { return len(board.messages()) == 2 }, "profile deactivation")
	deact, ok := board.messages()[1].(cablink.DeactivateBLDCProfile)
	if !ok {
		t.Fatalf("second command is %T, want DeactivateBLDCProfile", board.messages()[1])
	}
	if deact.Pin != 7 {
		t.Errorf("deactivated pin %d, want 7", deact.Pin)
	}
}

func TestLeverVehicleSwitchReloadsProfiles(t *testing.T) {
	st := leverStore()
	st.leverBindings["v2"] = []store.LeverBinding{
		{ID: "b3", InputID: "in-brake", LeverID: "brake", Enabled: true},
	}

	writer := &fakeWriter{}
	board := &fakeTransport{id: "board-1"}
	hub := &fakeHub{first: board}
	_, _, vehicles, stop := startLeverEngine(t, writer, hub, st)
	defer stop()

	waitFor(t, func() bool { return len(board.messages()) == 1 }, "initial profile load")

	vehicles <- &store.Vehicle{ID: "v2", Name: "Other unit"}
	waitFor(t, func() bool { return len(board.messages()) == 3 }, "deactivate and reload")

	if _, ok := board.messages()[1].(cablink.DeactivateBLDCProfile); !ok {
		t.Errorf("switch command is %T, want DeactivateBLDCProfile", board.messages()[1])
	}
	if _, ok := board.messages()[2].(cablink.LoadBLDCProfile); !ok {
		t.Errorf("reload command is %T, want LoadBLDCProfile", board.messages()[2])
	}
}
