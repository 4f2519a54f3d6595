// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package ident continuously determines which stored vehicle configuration
// is active by polling the simulator's live formation data, tolerating
// transient link loss through a bounded grace period before deactivating.
package ident

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/albertorestifo/trenino/internal/sim"
	"github.com/albertorestifo/trenino/internal/store"
)

// State of the identification machine.
type State int

const (
	// StateIdle: no simulator link has been seen yet.
	StateIdle State = iota
	// StatePolling: link healthy, polling at the normal interval.
	StatePolling
	// StateGrace: link lost while a vehicle was active; fast probing
	// within the grace window before giving the vehicle up.
	StateGrace
	// StateInactive: link lost and no vehicle active.
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateGrace:
		return "grace"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Event is one identification change. Vehicle is nil on deactivation.
// Ambiguous lists the candidates when an identifier matched more than one
// stored configuration.
type Event struct {
	Vehicle   *store.Vehicle
	Ambiguous []store.Vehicle
}

// Config holds the polling cadences.
type Config struct {
	PollInterval time.Duration // normal polling
	GracePoll    time.Duration // fast probing during grace
	GraceWindow  time.Duration // how long grace may last
}

// DefaultConfig returns the standard cadences.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		GracePoll:    200 * time.Millisecond,
		GraceWindow:  30 * time.Second,
	}
}

// Tracker is the identification loop. It owns the active-vehicle identity;
// everyone else observes it through events.
type Tracker struct {
	cfg          Config
	client       sim.Prober // normal polling
	probe        sim.Prober // short-timeout grace probing
	store        store.Store
	connectivity <-chan bool
	log          *logrus.Entry

	mu            sync.Mutex
	state         State
	active        *store.Vehicle
	lastContact   time.Time // last successful simulator contact
	lastChecked   time.Time // last time the active identity was confirmed
	lastAmbiguous string
	subs          []chan Event
}

// New creates a tracker. The probe should be a short-timeout variant of the
// client so a hung probe cannot mask recovery; connectivity delivers link
// up/down notifications from the simulator client.
func New(cfg Config, client, probe sim.Prober, st store.Store, connectivity <-chan bool, log *logrus.Entry) *Tracker {
	return &Tracker{
		cfg:          cfg,
		client:       client,
		probe:        probe,
		store:        st,
		connectivity: connectivity,
		log:          log,
		state:        StateIdle,
	}
}

// Subscribe registers an event consumer. Register before Run.
func (t *Tracker) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

// State returns the current machine state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active returns the currently active vehicle, or nil.
func (t *Tracker) Active() *store.Vehicle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Run drives the state machine until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	timer := time.NewTimer(t.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case up := <-t.connectivity:
			t.onConnectivity(ctx, up)

		case <-timer.C:
			t.tick(ctx)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(t.interval())
	}
}

func (t *Tracker) interval() time.Duration {
	if t.State() == StateGrace {
		return t.cfg.GracePoll
	}
	return t.cfg.PollInterval
}

func (t *Tracker) onConnectivity(ctx context.Context, up bool) {
	state := t.State()

	switch {
	case up && (state == StateIdle || state == StateInactive):
		t.setState(StatePolling)
		t.tick(ctx)

	case up && state == StateGrace:
		// Recovery during grace: the vehicle never deactivates.
		t.log.Info("simulator link recovered within grace window")
		t.setState(StatePolling)
		t.tick(ctx)

	case !up && state == StatePolling:
		t.onPollFailure()
	}
}

func (t *Tracker) tick(ctx context.Context) {
	switch t.State() {
	case StatePolling:
		formation, err := t.client.Formation(ctx)
		if err != nil {
			t.log.WithError(err).Debug("identification poll failed")
			t.onPollFailure()
			return
		}
		t.markContact()
		t.resolve(formation.Identifier())

	case StateGrace:
		formation, err := t.probe.Formation(ctx)
		if err != nil {
			t.checkGraceExpiry()
			return
		}
		// A reachable simulator during grace refreshes the window but
		// does not end it; only a connectivity notification does.
		t.markContact()
		t.resolve(formation.Identifier())
	}
}

func (t *Tracker) onPollFailure() {
	t.mu.Lock()
	hadActive := t.active != nil
	t.mu.Unlock()

	if hadActive {
		t.markContact()
		t.setState(StateGrace)
		t.log.WithField("window", t.cfg.GraceWindow).Warn("simulator lost with active vehicle, starting grace period")
	} else {
		t.setState(StateInactive)
	}
}

func (t *Tracker) checkGraceExpiry() {
	t.mu.Lock()
	expired := time.Since(t.lastContact) >= t.cfg.GraceWindow
	t.mu.Unlock()

	if !expired {
		return
	}

	t.log.Warn("grace window elapsed without simulator contact, deactivating vehicle")
	t.deactivate()
	t.setState(StateInactive)
}

// resolve matches a derived identifier against the stored vehicle
// configurations and applies the outcome.
func (t *Tracker) resolve(identifier string) {
	if identifier == "" {
		t.deactivate()
		return
	}

	matches := t.store.ResolveIdentifier(identifier)
	switch len(matches) {
	case 1:
		t.activate(matches[0])

	case 0:
		t.log.WithField("identifier", identifier).Debug("no stored vehicle matches")
		t.deactivate()

	default:
		t.mu.Lock()
		repeat := t.lastAmbiguous == identifier
		t.lastAmbiguous = identifier
		t.mu.Unlock()

		if !repeat {
			t.log.WithFields(logrus.Fields{"identifier": identifier, "candidates": len(matches)}).
				Warn("identifier matches multiple stored vehicles")
			t.notify(Event{Ambiguous: matches})
		}
		t.deactivate()
	}
}

func (t *Tracker) activate(v store.Vehicle) {
	t.mu.Lock()
	t.lastAmbiguous = ""
	if t.active != nil && t.active.ID == v.ID {
		// Same identity re-observed: refresh only.
		t.lastChecked = time.Now()
		t.mu.Unlock()
		return
	}
	t.active = &v
	t.lastChecked = time.Now()
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{"vehicle": v.ID, "name": v.Name}).Info("vehicle activated")
	t.notify(Event{Vehicle: &v})
}

func (t *Tracker) deactivate() {
	t.mu.Lock()
	wasActive := t.active != nil
	t.active = nil
	t.mu.Unlock()

	if wasActive {
		t.log.Info("vehicle deactivated")
		t.notify(Event{})
	}
}

func (t *Tracker) markContact() {
	t.mu.Lock()
	t.lastContact = time.Now()
	t.mu.Unlock()
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	changed := t.state != s
	t.state = s
	t.mu.Unlock()
	if changed {
		t.log.WithField("state", s).Debug("identification state changed")
	}
}

func (t *Tracker) notify(ev Event) {
	t.mu.Lock()
	subs := append([]chan Event(nil), t.subs...)
	t.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			t.log.Warn("identification subscriber lagging, event dropped")
		}
	}
}
