// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package dispatch turns raw hardware input events into simulator writes.
// Two engines share the same shape: a single goroutine looping over
// channels, holding lookup tables that are rebuilt wholesale whenever the
// connected transports or the active vehicle change. Nothing in here is
// touched from outside the owning loop.
package dispatch

import (
	"context"

	"github.com/albertorestifo/trenino/internal/transport"
)

// SimWriter issues input writes to the simulator. Satisfied by *sim.Client.
type SimWriter interface {
	Write(ctx context.Context, endpoint string, value float64) error
}

// TransportHub resolves connected hardware transports. Satisfied by
// *transport.Manager.
type TransportHub interface {
	First() transport.Transport
	Get(id string) (transport.Transport, bool)
}

// inputKey addresses one hardware input across transports.
type inputKey struct {
	transport string
	pin       uint8
}
