// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

// Package sim is the client for the simulator's WebSocket API. It exposes
// the three operations the core needs: reading live formation data, writing
// numeric values to named endpoints, and subscribing to endpoint changes.
package sim

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned while the simulator link is down.
var ErrNotConnected = errors.New("simulator not connected")

const (
	handshakeTimeout = 10 * time.Second
	defaultTimeout   = 3 * time.Second
	reconnectDelay   = 2 * time.Second
)

// Unit is one vehicle of the live formation.
type Unit struct {
	Class  string `json:"class"`
	Number string `json:"number"`
}

// Formation is the simulator's live consist data.
type Formation struct {
	Units []Unit `json:"units"`
}

// Identifier derives the vehicle identity from the formation: the class of
// the head unit. Empty when no formation is loaded.
func (f Formation) Identifier() string {
	if len(f.Units) == 0 {
		return ""
	}
	return f.Units[0].Class
}

// Update is one pushed endpoint change on a subscription.
type Update struct {
	Endpoint string
	Value    float64
}

// Prober is the read-only slice of the client used by grace-period probing.
type Prober interface {
	Formation(ctx context.Context) (Formation, error)
}

type request struct {
	ID       uint64   `json:"id"`
	Method   string   `json:"method"`
	Endpoint string   `json:"endpoint,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

type response struct {
	ID       uint64          `json:"id"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Endpoint string          `json:"endpoint,omitempty"`
	Value    *float64        `json:"value,omitempty"`
}

// Client talks to the simulator over one WebSocket connection, correlating
// replies to requests by id. It reconnects on its own; operations issued
// while the link is down fail fast with ErrNotConnected.
type Client struct {
	url      string
	username string
	password string
	timeout  time.Duration
	log      *logrus.Entry

	mu        sync.Mutex
	conn      *websocket.Conn
	nextID    uint64
	pending   map[uint64]chan response
	subs      map[string][]chan Update
	connected bool
	listeners []chan bool
}

// New creates a client for the given ws:// or wss:// URL. Credentials are
// sent as HTTP Basic auth on the handshake when non-empty.
func New(url, username, password string, log *logrus.Entry) *Client {
	return &Client{
		url:      url,
		username: username,
		password: password,
		timeout:  defaultTimeout,
		log:      log,
		pending:  make(map[uint64]chan response),
		subs:     make(map[string][]chan Update),
	}
}

// Run dials the simulator and keeps the connection alive until the context
// is cancelled, redialing with a fixed delay after failures.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.dial(ctx); err != nil {
			c.log.WithError(err).Warn("simulator dial failed")
		} else {
			c.notifyConnectivity(true)
			c.readLoop()
			c.notifyConnectivity(false)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// Connectivity returns a channel receiving true on connect and false on
// disconnect. Register before calling Run.
func (c *Client) Connectivity() <-chan bool {
	ch := make(chan bool, 4)
	c.mu.Lock()
	c.listeners = append(c.listeners, ch)
	c.mu.Unlock()
	return ch
}

// WithTimeout returns a probe view of the client whose requests give up
// after d instead of the default timeout. The underlying connection is
// shared, so a hung probe cannot wedge the client itself.
func (c *Client) WithTimeout(d time.Duration) Prober {
	return &probeClient{client: c, timeout: d}
}

type probeClient struct {
	client  *Client
	timeout time.Duration
}

func (p *probeClient) Formation(ctx context.Context) (Formation, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Formation(ctx)
}

// Formation reads the simulator's live formation data.
func (c *Client) Formation(ctx context.Context) (Formation, error) {
	resp, err := c.roundTrip(ctx, request{Method: "formation"})
	if err != nil {
		return Formation{}, err
	}

	var formation Formation
	if err := json.Unmarshal(resp.Result, &formation); err != nil {
		return Formation{}, fmt.Errorf("decoding formation: %w", err)
	}
	return formation, nil
}

// Write sets a named simulator endpoint to a numeric value.
func (c *Client) Write(ctx context.Context, endpoint string, value float64) error {
	_, err := c.roundTrip(ctx, request{Method: "write", Endpoint: endpoint, Value: &value})
	return err
}

// Subscribe asks the simulator to push changes of one endpoint. The returned
// cancel function stops the subscription.
func (c *Client) Subscribe(ctx context.Context, endpoint string) (<-chan Update, func(), error) {
	if _, err := c.roundTrip(ctx, request{Method: "subscribe", Endpoint: endpoint}); err != nil {
		return nil, nil, err
	}

	ch := make(chan Update, 16)
	c.mu.Lock()
	c.subs[endpoint] = append(c.subs[endpoint], ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		chans := c.subs[endpoint]
		for i, existing := range chans {
			if existing == ch {
				c.subs[endpoint] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}
	return ch, cancel, nil
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	headers := http.Header{}
	if c.username != "" && c.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, _, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.WithField("url", c.url).Info("simulator connected")
	return nil
}

// readLoop dispatches replies to their pending waiters and pushed updates to
// subscribers. Returns when the connection dies.
func (c *Client) readLoop() {
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.teardown(err)
			return
		}

		if resp.ID != 0 {
			c.mu.Lock()
			waiter, ok := c.pending[resp.ID]
			delete(c.pending, resp.ID)
			c.mu.Unlock()
			if ok {
				waiter <- resp
			}
			continue
		}

		if resp.Endpoint != "" && resp.Value != nil {
			c.mu.Lock()
			chans := append([]chan Update(nil), c.subs[resp.Endpoint]...)
			c.mu.Unlock()
			for _, ch := range chans {
				select {
				case ch <- Update{Endpoint: resp.Endpoint, Value: *resp.Value}:
				default:
					// Slow subscriber; drop rather than block the pump.
				}
			}
		}
	}
}

// teardown fails every pending request after a read error so waiters do not
// hang for their full timeout.
func (c *Client) teardown(err error) {
	c.mu.Lock()
	c.connected = false
	c.conn.Close()
	pending := c.pending
	c.pending = make(map[uint64]chan response)
	c.mu.Unlock()

	c.log.WithError(err).Warn("simulator connection lost")
	for _, waiter := range pending {
		close(waiter)
	}
}

func (c *Client) roundTrip(ctx context.Context, req request) (response, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return response{}, ErrNotConnected
	}
	c.nextID++
	req.ID = c.nextID
	waiter := make(chan response, 1)
	c.pending[req.ID] = waiter
	conn := c.conn
	err := conn.WriteJSON(req)
	c.mu.Unlock()

	if err != nil {
		c.dropPending(req.ID)
		return response{}, fmt.Errorf("sending %s: %w", req.Method, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-waiter:
		if !ok {
			return response{}, ErrNotConnected
		}
		if resp.Error != "" {
			return response{}, fmt.Errorf("simulator: %s", resp.Error)
		}
		return resp, nil
	case <-timer.C:
		c.dropPending(req.ID)
		return response{}, fmt.Errorf("%s: timeout after %v", req.Method, c.timeout)
	case <-ctx.Done():
		c.dropPending(req.ID)
		return response{}, ctx.Err()
	}
}

func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) notifyConnectivity(up bool) {
	c.mu.Lock()
	listeners := append([]chan bool(nil), c.listeners...)
	c.mu.Unlock()
	for _, ch := range listeners {
		select {
		case ch <- up:
		default:
		}
	}
}
