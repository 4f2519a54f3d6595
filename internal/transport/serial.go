// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/albertorestifo/trenino/pkg/cablink"
)

const (
	readBufferSize = 256
	reopenDelay    = 2 * time.Second
)

// Serial is one cab board attached over a serial port. Outbound messages
// are framed before transmission; the inbound byte stream is reassembled by
// a per-connection frame decoder.
type Serial struct {
	id   string
	port serial.Port
	log  *logrus.Entry

	writeMu sync.Mutex
	decoder *cablink.FrameDecoder
	dropped uint64
}

// OpenSerial opens a serial port in the 8N1 mode the boards use.
func OpenSerial(id, device string, baudRate int, log *logrus.Entry) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}

	return &Serial{
		id:      id,
		port:    port,
		log:     log.WithField("transport", id),
		decoder: cablink.NewFrameDecoder(),
	}, nil
}

// ID returns the transport id.
func (s *Serial) ID() string { return s.id }

// Send encodes, frames, and writes one message.
func (s *Serial) Send(m cablink.Message) error {
	payload, err := cablink.Encode(m)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.port.Write(cablink.EncodeFrame(payload)); err != nil {
		return fmt.Errorf("writing %s: %w", cablink.MessageName(m.Type()), err)
	}
	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error { return s.port.Close() }

// readLoop decodes the inbound stream until the port errors. Input values
// are published to the manager; housekeeping messages are logged.
func (s *Serial) readLoop(m *Manager) error {
	buf := make([]byte, readBufferSize)

	for {
		n, err := s.port.Read(buf)
		if err != nil {
			return err
		}
		s.consume(m, buf[:n])
	}
}

// consume runs one read chunk through the frame decoder, recording framing
// drops and decode failures, and dispatches the decoded messages.
func (s *Serial) consume(m *Manager, chunk []byte) {
	for _, payload := range s.decoder.Push(chunk) {
		msg, err := cablink.Decode(payload)
		if err != nil {
			m.metrics.DecodeError()
			s.log.WithError(err).Debug("dropping undecodable frame")
			continue
		}
		s.handle(m, msg)
	}

	if dropped := s.decoder.Dropped(); dropped != s.dropped {
		m.metrics.FrameDropped(dropped - s.dropped)
		s.dropped = dropped
	}
}

func (s *Serial) handle(m *Manager, msg cablink.Message) {
	switch v := msg.(type) {
	case cablink.InputValue:
		m.publish(RawEvent{Transport: s.id, Pin: v.Pin, Value: v.Value})
	case cablink.Heartbeat:
		s.log.Debug("heartbeat")
	case cablink.Identity:
		s.log.WithFields(logrus.Fields{"version": v.Version, "name": v.Name}).Info("board identified")
	case cablink.CalibrationError:
		s.log.WithField("pin", v.Pin).Warn("calibration error reported")
	case cablink.EncoderError:
		s.log.WithField("pin", v.Pin).Warn("encoder error reported")
	default:
		s.log.WithField("type", cablink.MessageName(msg.Type())).Debug("ignoring message")
	}
}

// PortConfig describes one serial port to supervise.
type PortConfig struct {
	ID       string
	Device   string
	BaudRate int
}

// Supervise keeps one serial transport connected until the context is
// cancelled: open, register, pump, deregister, wait, reopen.
func (m *Manager) Supervise(ctx context.Context, cfg PortConfig, log *logrus.Entry) {
	log = log.WithField("transport", cfg.ID)

	for {
		if ctx.Err() != nil {
			return
		}

		s, err := OpenSerial(cfg.ID, cfg.Device, cfg.BaudRate, log)
		if err != nil {
			log.WithError(err).Warn("serial open failed")
		} else {
			// Unblock the pending Read when the context is cancelled.
			stop := context.AfterFunc(ctx, func() { s.Close() })

			m.add(s)
			err = s.readLoop(m)
			m.remove(cfg.ID)
			stop()
			s.Close()
			if ctx.Err() == nil {
				log.WithError(err).Warn("serial link lost")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reopenDelay):
		}
	}
}
