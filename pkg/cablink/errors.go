// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cablink

import "errors"

var (
	// ErrInvalidMessage is returned when a payload is too short for the
	// selected variant or a field is out of range.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownMessageType is returned when the discriminator byte, or the
	// input-type byte of a Configure message, is not recognized.
	ErrUnknownMessageType = errors.New("unknown message type")
)
