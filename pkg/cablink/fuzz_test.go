// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cablink

import (
	"bytes"
	"testing"
)

// FuzzFrameRoundTrip verifies that any byte string survives framing intact
// and that the frame body never contains the delimiter.
func FuzzFrameRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0x01, 0x00, 0x02})
	f.Add(bytes.Repeat([]byte{0xAB}, 254))
	f.Add(bytes.Repeat([]byte{0x00}, 300))

	f.Fuzz(func(t *testing.T, payload []byte) {
		if len(payload) > MaxFrameSize-4 {
			t.Skip("payload larger than one frame")
		}

		frame := EncodeFrame(payload)
		if i := bytes.IndexByte(frame[:len(frame)-1], Delimiter); i >= 0 {
			t.Fatalf("delimiter inside frame at offset %d", i)
		}

		payloads := NewFrameDecoder().Push(frame)
		if len(payloads) != 1 {
			t.Fatalf("expected 1 payload, got %d", len(payloads))
		}
		if !bytes.Equal(payloads[0], payload) {
			t.Fatalf("round trip mismatch")
		}
	})
}

// FuzzDecode verifies the message decoder returns errors, never panics, on
// arbitrary payloads, and that whatever decodes also re-encodes.
func FuzzDecode(f *testing.F) {
	f.Add([]byte{MsgHeartbeat})
	f.Add([]byte{MsgInputValue, 3, 0xE8, 0x03})
	f.Add([]byte{MsgConfigure, 1, 0, 1, 0, 0, 0, InputTypeMotorLever, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	f.Add([]byte{MsgLoadBLDCProfile, 1, 1, 1, 0, 1, 2, 3, 4, 0, 1, 2})

	f.Fuzz(func(t *testing.T, payload []byte) {
		msg, err := Decode(payload)
		if err != nil {
			return
		}
		if _, err := Encode(msg); err != nil {
			t.Fatalf("decoded message failed to re-encode: %v", err)
		}
	})
}
