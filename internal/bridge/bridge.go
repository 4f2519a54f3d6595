// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package bridge publishes bridge events to Redis pub/sub channels for
// external consumers: the admin UI and the automation subsystem both follow
// the cab through these instead of talking to the hardware directly.
// Publishing is fire and forget; a missing or unreachable Redis never
// affects dispatch.
package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/albertorestifo/trenino/internal/store"
)

// Config selects the Redis endpoint and the channel prefix.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Publisher emits JSON events. A nil Publisher discards everything, so
// callers never need to care whether the bridge is configured.
type Publisher struct {
	client *redis.Client
	prefix string
	log    *logrus.Entry
}

// New connects a publisher. The connection is lazy; a Redis that is down at
// startup only surfaces as logged publish failures.
func New(cfg Config, log *logrus.Entry) *Publisher {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "trenino"
	}

	return &Publisher{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: prefix,
		log:    log,
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}

type vehicleEvent struct {
	Vehicle *store.Vehicle `json:"vehicle"` // null on deactivation
	At      time.Time      `json:"at"`
}

type ambiguityEvent struct {
	Identifier string          `json:"identifier"`
	Candidates []store.Vehicle `json:"candidates"`
	At         time.Time       `json:"at"`
}

type inputEvent struct {
	Transport string    `json:"transport"`
	Pin       uint8     `json:"pin"`
	Value     uint16    `json:"value"`
	At        time.Time `json:"at"`
}

// VehicleChanged announces activation (vehicle set) or deactivation (nil).
func (p *Publisher) VehicleChanged(ctx context.Context, v *store.Vehicle) {
	p.publish(ctx, "vehicle", vehicleEvent{Vehicle: v, At: time.Now()})
}

// Ambiguity announces an identifier matching several stored vehicles.
func (p *Publisher) Ambiguity(ctx context.Context, identifier string, candidates []store.Vehicle) {
	p.publish(ctx, "ambiguity", ambiguityEvent{Identifier: identifier, Candidates: candidates, At: time.Now()})
}

// Input mirrors one raw hardware input event.
func (p *Publisher) Input(ctx context.Context, transport string, pin uint8, value uint16) {
	p.publish(ctx, "input", inputEvent{Transport: transport, Pin: pin, Value: value, At: time.Now()})
}

func (p *Publisher) publish(ctx context.Context, channel string, payload any) {
	if p == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.log.WithError(err).WithField("channel", channel).Error("bridge event marshal failed")
		return
	}

	if err := p.client.Publish(ctx, p.prefix+":"+channel, body).Err(); err != nil {
		p.log.WithError(err).WithField("channel", channel).Warn("bridge publish failed")
	}
}
