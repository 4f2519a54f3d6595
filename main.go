// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo
//
// Trenino - Train Cab Hardware Bridge
//
// Bridges physical cab hardware (levers, buttons, motor-haptic controls)
// to a train simulator's network API.

package main

import (
	"os"

	"github.com/albertorestifo/trenino/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
