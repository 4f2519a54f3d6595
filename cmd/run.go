// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/albertorestifo/trenino/internal/bridge"
	"github.com/albertorestifo/trenino/internal/config"
	"github.com/albertorestifo/trenino/internal/dispatch"
	"github.com/albertorestifo/trenino/internal/ident"
	"github.com/albertorestifo/trenino/internal/keystroke"
	"github.com/albertorestifo/trenino/internal/monitor"
	"github.com/albertorestifo/trenino/internal/sim"
	"github.com/albertorestifo/trenino/internal/store"
	"github.com/albertorestifo/trenino/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cab bridge daemon",
	Long: `Start the bridge: open the configured serial ports, connect to the
simulator, and keep dispatching until interrupted.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := config.SetupLogger(cfg.Log)
	log := logrus.NewEntry(logger)

	rig, err := config.LoadRig(cfg.Rig)
	if err != nil {
		return err
	}

	password := ""
	if cfg.Sim.Username != "" {
		if password, err = getPassword(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *monitor.Metrics
	if cfg.Monitor.Enabled {
		metrics = monitor.New()
		go metrics.Serve(cfg.Monitor.Addr, log)
	}

	var pub *bridge.Publisher
	if cfg.Bridge.Enabled {
		pub = bridge.New(cfg.Bridge.Config, log)
		defer pub.Close()
	}

	client := sim.New(cfg.Sim.URL, cfg.Sim.Username, password, log)
	connectivity := client.Connectivity()

	manager := transport.NewManager(metrics)
	leverEvents := manager.Events()
	buttonEvents := manager.Events()
	leverChanges := manager.Changes()
	buttonChanges := manager.Changes()

	var bridgeEvents <-chan transport.RawEvent
	if pub != nil {
		bridgeEvents = manager.Events()
	}

	if len(cfg.Serial) == 0 {
		return fmt.Errorf("no serial ports configured")
	}

	var wg sync.WaitGroup
	for _, sc := range cfg.Serial {
		port := transport.PortConfig{ID: sc.ID, Device: sc.Port, BaudRate: sc.BaudRate}
		if port.ID == "" {
			port.ID = filepath.Base(sc.Port)
		}
		if port.BaudRate == 0 {
			port.BaudRate = 115200
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.Supervise(ctx, port, log)
		}()
	}

	probeTimeout := cfg.Sim.ProbeTimeout.Std()
	if probeTimeout <= 0 {
		probeTimeout = 150 * time.Millisecond
	}
	tracker := ident.New(identConfig(cfg.Ident), client,
		client.WithTimeout(probeTimeout), rig, connectivity, log)
	identEvents := tracker.Subscribe()

	leverVehicles := make(chan *store.Vehicle, 4)
	buttonVehicles := make(chan *store.Vehicle, 4)

	// Fan identification events out to both engines and the bridge. The
	// identification state gauge piggybacks on the same stream.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-identEvents:
				metrics.IdentState(tracker.State().String())
				if ev.Ambiguous != nil {
					pub.Ambiguity(ctx, ev.Ambiguous[0].Identifier, ev.Ambiguous)
					continue
				}

				if ev.Vehicle != nil {
					metrics.ActiveVehicle(ev.Vehicle.ID)
				} else {
					metrics.ActiveVehicle("")
				}
				pub.VehicleChanged(ctx, ev.Vehicle)
				leverVehicles <- ev.Vehicle
				buttonVehicles <- ev.Vehicle
			}
		}
	}()

	if pub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-bridgeEvents:
					pub.Input(ctx, ev.Transport, ev.Pin, ev.Value)
				}
			}
		}()
	}

	lever := dispatch.NewLeverEngine(client, manager, rig,
		leverEvents, leverChanges, leverVehicles, metrics, log)
	button := dispatch.NewButtonEngine(client, keystroke.NewExecInjector("", log), rig,
		buttonEvents, buttonChanges, buttonVehicles, metrics, log)

	for _, run := range []func(context.Context){client.Run, tracker.Run, lever.Run, button.Run} {
		run := run
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	log.WithFields(logrus.Fields{
		"simulator": cfg.Sim.URL,
		"ports":     len(cfg.Serial),
		"vehicles":  len(rig.Vehicles()),
	}).Info("bridge running")

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	return nil
}

func identConfig(cfg config.IdentConfig) ident.Config {
	out := ident.DefaultConfig()
	if d := cfg.PollInterval.Std(); d > 0 {
		out.PollInterval = d
	}
	if d := cfg.GracePoll.Std(); d > 0 {
		out.GracePoll = d
	}
	if d := cfg.GraceWindow.Std(); d > 0 {
		out.GraceWindow = d
	}
	return out
}
