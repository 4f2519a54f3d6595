// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogger builds the process logger from the log configuration.
// Unparseable settings fall back to sane defaults rather than failing: a
// broken log config should never keep the bridge from running.
func SetupLogger(cfg LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.WithError(err).Warn("log file unavailable, using stdout")
		}
	}

	return log
}
