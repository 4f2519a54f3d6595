// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package transport

import (
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/albertorestifo/trenino/internal/monitor"
	"github.com/albertorestifo/trenino/pkg/cablink"
)

func testSerial(id string) *Serial {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Serial{
		id:      id,
		log:     logrus.NewEntry(log),
		decoder: cablink.NewFrameDecoder(),
	}
}

func mustFrame(t *testing.T, msg cablink.Message) []byte {
	t.Helper()
	payload, err := cablink.Encode(msg)
	if err != nil {
		t.Fatalf("encoding %T: %v", msg, err)
	}
	return cablink.EncodeFrame(payload)
}

func TestSerialConsumeRecordsCodecMetrics(t *testing.T) {
	metrics := monitor.New()
	m := NewManager(metrics)
	events := m.Events()
	s := testSerial("desk")

	// One malformed frame (the run claims more bytes than the frame holds),
	// one frame carrying an unknown discriminator, one good input value.
	chunk := []byte{0x0A, 0x11, 0x22, cablink.Delimiter}
	chunk = append(chunk, cablink.EncodeFrame([]byte{0xFE})...)
	chunk = append(chunk, mustFrame(t, cablink.InputValue{Pin: 3, Value: 512})...)
	s.consume(m, chunk)

	select {
	case ev := <-events:
		want := RawEvent{Transport: "desk", Pin: 3, Value: 512}
		if ev != want {
			t.Fatalf("published %v, want %v", ev, want)
		}
	default:
		t.Fatal("good frame was not published")
	}

	expected := `
# HELP trenino_decode_errors_total Frame payloads that failed message decoding
# TYPE trenino_decode_errors_total counter
trenino_decode_errors_total 1
# HELP trenino_frames_dropped_total Malformed frames discarded by the framing decoder
# TYPE trenino_frames_dropped_total counter
trenino_frames_dropped_total 1
`
	if err := testutil.GatherAndCompare(metrics.Gatherer(), strings.NewReader(expected),
		"trenino_frames_dropped_total", "trenino_decode_errors_total"); err != nil {
		t.Fatal(err)
	}

	// Drops are reported as deltas: a later chunk adds to the counter
	// instead of re-reporting the decoder's running total.
	s.consume(m, []byte{0x0A, 0x11, 0x22, cablink.Delimiter})

	expected = `
# HELP trenino_frames_dropped_total Malformed frames discarded by the framing decoder
# TYPE trenino_frames_dropped_total counter
trenino_frames_dropped_total 2
`
	if err := testutil.GatherAndCompare(metrics.Gatherer(), strings.NewReader(expected),
		"trenino_frames_dropped_total"); err != nil {
		t.Fatal(err)
	}
}

func TestSerialConsumeNilMetrics(t *testing.T) {
	m := NewManager(nil)
	s := testSerial("desk")

	// Must not panic without a metrics sink.
	chunk := []byte{0x0A, 0x11, 0x22, cablink.Delimiter}
	chunk = append(chunk, cablink.EncodeFrame([]byte{0xFE})...)
	s.consume(m, chunk)
}
