// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/albertorestifo/trenino/pkg/cablink"
)

var probeBaudRate int

var probeCmd = &cobra.Command{
	Use:   "probe <port>",
	Short: "Decode and print cab board traffic",
	Long: `Open a serial port and print every decoded message with a timestamp.

Useful when wiring up a new board or chasing a flaky input: the output shows
exactly what the firmware is sending, including malformed frames.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVarP(&probeBaudRate, "baud", "b", 115200, "Baud rate")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	port, err := serial.Open(args[0], &serial.Mode{
		BaudRate: probeBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer port.Close()

	fmt.Printf("Probing %s @ %d baud\n", args[0], probeBaudRate)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := cablink.NewFrameDecoder()
	buf := make([]byte, 256)
	dropped := uint64(0)

	for {
		n, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		for _, payload := range decoder.Push(buf[:n]) {
			stamp := time.Now().Format("15:04:05.000")

			msg, err := cablink.Decode(payload)
			if err != nil {
				fmt.Printf("[%s] DECODE ERROR: %v (% X)\n", stamp, err, payload)
				continue
			}
			fmt.Printf("[%s] %s\n", stamp, cablink.FormatMessage(msg))
		}

		if d := decoder.Dropped(); d != dropped {
			fmt.Printf("[%s] dropped %d malformed frame(s)\n", time.Now().Format("15:04:05.000"), d-dropped)
			dropped = d
		}
	}
}
