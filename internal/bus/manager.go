// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus owns the shared two-wire sensor bus.
//
// Manager implements i2c.Bus and forwards every transaction to the bus that is
// currently open, so device handles built on top of it stay valid across a
// Reset. Only one goroutine (the node control loop) may drive a Manager.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Optical transceiver soft-reset sequence (MAX30100 MODE_CONFIG.RESET).
const (
	softResetAddr = 0x57
	regModeConfig = 0x06
	modeReset     = 0x40
)

// DefaultSpeed is the conservative clock used after every reset.
const DefaultSpeed = 100 * physic.KiloHertz

// ErrClosed is returned by Tx while the underlying bus is not open.
var ErrClosed = errors.New("bus: i2c bus is not open")

// PowerDowner is a live sensor handle that can be put into its powered-down state.
type PowerDowner interface {
	PowerDown() error
}

// Opener opens the physical bus.
type Opener func() (i2c.BusCloser, error)

// OpenerFor returns an Opener for the named periph I2C bus ("" picks the first one).
func OpenerFor(name string) Opener {
	return func() (i2c.BusCloser, error) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init: %w", err)
		}
		b, err := i2creg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("i2c open %q: %w", name, err)
		}
		return b, nil
	}
}

// Settle holds the fixed delays observed between reset steps.
type Settle struct {
	PowerDown time.Duration
	Release   time.Duration
	Init      time.Duration
	SoftReset time.Duration
}

// DefaultSettle matches the timings the sensor board was characterised with.
var DefaultSettle = Settle{
	PowerDown: 50 * time.Millisecond,
	Release:   100 * time.Millisecond,
	Init:      50 * time.Millisecond,
	SoftReset: 100 * time.Millisecond,
}

// Options configures a Manager.
type Options struct {
	Speed     physic.Frequency
	ResetAddr uint16
	Settle    Settle
	// Sleep is used for every settle delay; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Manager is the shared bus proxy.
type Manager struct {
	open   Opener
	cur    i2c.BusCloser
	owner  PowerDowner
	opts   Options
	resets int
	log    *logrus.Entry
}

// New opens the bus once and returns a Manager for it.
func New(open Opener, opts Options, logger *logrus.Logger) (*Manager, error) {
	if opts.Speed == 0 {
		opts.Speed = DefaultSpeed
	}
	if opts.ResetAddr == 0 {
		opts.ResetAddr = softResetAddr
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	m := &Manager{
		open: open,
		opts: opts,
		log:  logger.WithField("component", "bus"),
	}

	b, err := open()
	if err != nil {
		return nil, fmt.Errorf("bus: initial open: %w", err)
	}
	m.cur = b
	if err := b.SetSpeed(opts.Speed); err != nil {
		m.log.Warnf("set speed %s: %v", opts.Speed, err)
	}
	return m, nil
}

// String implements i2c.Bus.
func (m *Manager) String() string {
	if m.cur == nil {
		return "bus(closed)"
	}
	return m.cur.String()
}

// Tx implements i2c.Bus.
func (m *Manager) Tx(addr uint16, w, r []byte) error {
	if m.cur == nil {
		return ErrClosed
	}
	return m.cur.Tx(addr, w, r)
}

// SetSpeed implements i2c.Bus.
func (m *Manager) SetSpeed(f physic.Frequency) error {
	if m.cur == nil {
		return ErrClosed
	}
	return m.cur.SetSpeed(f)
}

// Acquire records owner as the single live handle using the bus.
func (m *Manager) Acquire(owner PowerDowner) {
	m.owner = owner
}

// Owner returns the handle recorded by Acquire, nil after a Reset.
func (m *Manager) Owner() PowerDowner {
	return m.owner
}

// Resets returns how many times Reset has run.
func (m *Manager) Resets() int {
	return m.resets
}

// Reset powers down the current owner, reopens the bus at the conservative
// clock and soft-resets the optical transceiver. It never fails: every step is
// best-effort and problems are only logged. On return no handle owns the bus.
func (m *Manager) Reset() {
	m.resets++
	m.log.Debug("resetting sensor bus")

	if m.owner != nil {
		if err := m.owner.PowerDown(); err != nil {
			m.log.Debugf("power down before reset: %v", err)
		}
		m.owner = nil
		m.opts.Sleep(m.opts.Settle.PowerDown)
	}

	if m.cur != nil {
		if err := m.cur.Close(); err != nil {
			m.log.Debugf("close bus: %v", err)
		}
		m.cur = nil
	}
	m.opts.Sleep(m.opts.Settle.Release)

	b, err := m.open()
	if err != nil {
		m.log.Warnf("reopen bus: %v", err)
		return
	}
	m.cur = b
	if err := b.SetSpeed(m.opts.Speed); err != nil {
		m.log.Warnf("set speed %s: %v", m.opts.Speed, err)
	}
	m.opts.Sleep(m.opts.Settle.Init)

	// A missing ACK here just means the transceiver is absent or still asleep.
	if err := b.Tx(m.opts.ResetAddr, []byte{regModeConfig, modeReset}, nil); err != nil {
		m.log.Debugf("optical soft reset: %v", err)
	}
	m.opts.Sleep(m.opts.Settle.SoftReset)

	m.log.Debug("sensor bus reset complete")
}

// Close releases the bus. The Manager must not be used afterwards.
func (m *Manager) Close() error {
	m.owner = nil
	if m.cur == nil {
		return nil
	}
	err := m.cur.Close()
	m.cur = nil
	return err
}

var _ i2c.Bus = (*Manager)(nil)
