// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertorestifo/trenino/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trenino",
	Short: "Train cab hardware bridge",
	Long: `Trenino bridges a physical train cab to a simulator.

It talks to the cab boards over serial, identifies which stored vehicle
configuration matches the simulator's live formation, and dispatches lever
movements and button presses as simulator input writes. Motor-haptic levers
get their force-feedback profile loaded whenever a vehicle activates.

The simulator password is read from the TRENINO_PASSWORD environment
variable, or prompted interactively when a username is configured. There is
intentionally no password flag or config key, so credentials never end up in
shell history or dotfiles.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "trenino.yaml", "Configuration file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configured file, falling back to the defaults when it
// does not exist.
func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config %s unavailable (%v), using defaults\n", configPath, err)
		return config.DefaultConfig()
	}
	return cfg
}
