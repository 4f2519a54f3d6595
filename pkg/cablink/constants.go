// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package cablink implements the serial wire protocol spoken between the
// bridge and the cab hardware boards.
//
// The protocol has two layers: a zero-byte-free framing scheme that makes
// every message self-delimiting on a byte stream (frames are terminated by a
// reserved delimiter byte that never appears inside an encoded frame), and a
// discriminated message format where the first payload byte selects the
// variant. All multi-byte integers are little-endian.
package cablink

// Framing
const (
	// Delimiter terminates every frame and never appears inside one.
	Delimiter = 0x00

	// maxRun is the longest run of frame bytes a single length code can
	// describe. Code 0xFF is reserved to mean "254 bytes, no delimiter".
	maxRun = 254

	// MaxFrameSize bounds the partial-frame buffer so a stream that never
	// produces a delimiter cannot grow it without limit.
	MaxFrameSize = 512
)

// Message discriminators (board ↔ host)
const (
	MsgHeartbeat             = 0x00
	MsgIdentity              = 0x01
	MsgConfigure             = 0x02
	MsgInputValue            = 0x03
	MsgRetryCalibration      = 0x08
	MsgCalibrationError      = 0x09
	MsgEncoderError          = 0x0A
	MsgLoadBLDCProfile       = 0x0B
	MsgDeactivateBLDCProfile = 0x0C
)

// Configure input types
const (
	InputTypeAnalog     = 0
	InputTypeButton     = 1
	InputTypeMatrix     = 2
	InputTypeMotorLever = 3
)

// Fixed payload sizes
const (
	configureHeaderSize  = 7 // message id + total parts + part number (u16 each) + input type
	analogConfigSize     = 2
	buttonConfigSize     = 2
	motorLeverConfigSize = 10
	detentSize           = 5
	rangeSize            = 3
)
