// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cablink

// EncodeFrame wraps a message payload in the delimiter-free framing scheme.
//
// The payload is split into runs of non-delimiter bytes. Each run is prefixed
// by a length code (run length + 1, so the code itself is never zero); code
// 0xFF marks a maximum-length run of 254 bytes with no implicit delimiter
// following it. The encoded frame is terminated by the delimiter byte, which
// is guaranteed not to occur anywhere before the terminator.
func EncodeFrame(payload []byte) []byte {
	// Worst case: one extra code byte per 254 payload bytes, plus the
	// leading code and the terminator.
	frame := make([]byte, 1, len(payload)+len(payload)/maxRun+2)

	codeIdx := 0
	code := byte(1)

	for _, b := range payload {
		if b == Delimiter {
			frame[codeIdx] = code
			codeIdx = len(frame)
			frame = append(frame, 0)
			code = 1
			continue
		}
		frame = append(frame, b)
		code++
		if code == 0xFF {
			frame[codeIdx] = code
			codeIdx = len(frame)
			frame = append(frame, 0)
			code = 1
		}
	}

	frame[codeIdx] = code
	return append(frame, Delimiter)
}

// FrameDecoder reassembles frames from a byte stream delivered in
// arbitrary-sized chunks. State persists across calls to Push on one
// transport connection; call Reset when the connection is reopened.
type FrameDecoder struct {
	buf      []byte
	overflow bool
	dropped  uint64
}

// NewFrameDecoder creates a stream decoder with an empty partial buffer.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{buf: make([]byte, 0, MaxFrameSize)}
}

// Push feeds a chunk of raw bytes into the decoder and returns the payloads
// of every frame completed by this chunk, in arrival order. An empty result
// means no delimiter has been seen yet and the partial frame is carried in
// the decoder state.
//
// Push never fails: a malformed frame (truncated run, oversized frame) is
// counted, dropped, and decoding resumes after its delimiter.
func (d *FrameDecoder) Push(chunk []byte) [][]byte {
	var payloads [][]byte

	for _, b := range chunk {
		if b != Delimiter {
			if len(d.buf) >= MaxFrameSize {
				d.overflow = true
				continue
			}
			d.buf = append(d.buf, b)
			continue
		}

		switch {
		case d.overflow:
			d.dropped++
		case len(d.buf) == 0:
			// Idle delimiter between frames; nothing to reassemble.
		default:
			if payload, ok := unstuffBlock(d.buf); ok {
				payloads = append(payloads, payload)
			} else {
				d.dropped++
			}
		}

		d.buf = d.buf[:0]
		d.overflow = false
	}

	return payloads
}

// Reset discards any partial frame. Used when a transport reconnects and the
// stream position is unknown.
func (d *FrameDecoder) Reset() {
	d.buf = d.buf[:0]
	d.overflow = false
}

// Dropped returns the number of malformed frames discarded so far.
func (d *FrameDecoder) Dropped() uint64 {
	return d.dropped
}

// unstuffBlock reverses the run-length stuffing of a single frame body (the
// bytes between two delimiters). It reports ok=false when a run claims more
// bytes than the block holds.
func unstuffBlock(block []byte) ([]byte, bool) {
	payload := make([]byte, 0, len(block))

	i := 0
	for i < len(block) {
		code := block[i]
		i++
		n := int(code) - 1
		if i+n > len(block) {
			return nil, false
		}
		payload = append(payload, block[i:i+n]...)
		i += n
		if code != 0xFF && i < len(block) {
			payload = append(payload, Delimiter)
		}
	}

	return payload, true
}
