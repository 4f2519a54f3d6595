// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package config loads the runtime configuration and the rig definition
// from YAML, and provides the logrus setup shared by every command.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/albertorestifo/trenino/internal/bridge"
)

// Config is the runtime configuration of the bridge daemon.
type Config struct {
	Sim     SimConfig      `yaml:"sim"`
	Serial  []SerialConfig `yaml:"serial"`
	Ident   IdentConfig    `yaml:"identification"`
	Log     LogConfig      `yaml:"log"`
	Monitor MonitorConfig  `yaml:"monitor"`
	Bridge  BridgeConfig   `yaml:"bridge"`

	// Rig is the path of the rig definition file: inputs, levers,
	// vehicles, bindings, sequences.
	Rig string `yaml:"rig"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
// or "200ms". yaml.v3 only handles integer nanoseconds natively, which no
// one wants to write in a config file.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"200ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SimConfig selects the simulator endpoint. The password is deliberately
// not part of the file: it comes from the environment or a prompt.
type SimConfig struct {
	URL          string   `yaml:"url"`
	Username     string   `yaml:"username"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// SerialConfig is one cab board port. The ID is how rig inputs refer to the
// transport.
type SerialConfig struct {
	ID       string `yaml:"id"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// IdentConfig holds the identification cadences.
type IdentConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	GracePoll    Duration `yaml:"grace_poll"`
	GraceWindow  Duration `yaml:"grace_window"`
}

// LogConfig selects level, format and destination of the logs.
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// MonitorConfig enables the Prometheus endpoint.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// BridgeConfig enables the Redis event bridge.
type BridgeConfig struct {
	Enabled       bool `yaml:"enabled"`
	bridge.Config `yaml:",inline"`
}

// LoadConfig reads a configuration file, layered over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Sim: SimConfig{
			URL:          "ws://localhost:8086/api",
			ProbeTimeout: Duration(150 * time.Millisecond),
		},
		Ident: IdentConfig{
			PollInterval: Duration(5 * time.Second),
			GracePoll:    Duration(200 * time.Millisecond),
			GraceWindow:  Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Bridge: BridgeConfig{
			Enabled: false,
			Config: bridge.Config{
				Addr: "localhost:6379",
			},
		},
		Rig: "rig.yaml",
	}
}
