// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package machine is the operating-mode state machine of the node. A Machine
// is the single owner of the mode, the sensors and the active acquisition
// strategy; it is driven by commands and by the periodic tick, both from one
// goroutine.
package machine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/acquisition"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/command"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

// Sensors is the sensor lifecycle the machine drives. *sensors.Controller
// implements it.
type Sensors interface {
	Reset()
	Prime(v sensors.Variant) error
	InitializeMotion()
	Poll(now time.Time)
	Sample(needs sensors.Needs) sensors.Reading
	Thermometer() sensors.Thermometer
	Live() sensors.Variant
	Memory() uint64
}

// Options configures a Machine.
type Options struct {
	// UnifiedPeriod, when positive, replaces every per-mode report period.
	UnifiedPeriod time.Duration
	Acquisition   acquisition.Options
}

// active is swapped as a whole so mode, period and strategy always agree.
type active struct {
	mode     mode.OperatingMode
	period   time.Duration
	needs    sensors.Needs
	strategy acquisition.Strategy
}

// Machine is the node's SystemState.
type Machine struct {
	sensors Sensors
	opts    Options
	log     *logrus.Entry

	cur        active
	started    time.Time
	lastReport time.Time
}

// New returns a machine in IDLE. started is the reference for uptime.
func New(s Sensors, opts Options, started time.Time, logger *logrus.Logger) *Machine {
	m := &Machine{
		sensors: s,
		opts:    opts,
		log:     logger.WithField("component", "machine"),
		started: started,
	}
	m.cur = m.enter(mode.Idle)
	return m
}

func (m *Machine) enter(to mode.OperatingMode) active {
	req := mode.For(to, m.opts.UnifiedPeriod)
	return active{
		mode:     to,
		period:   req.Period,
		needs:    req.Needs(),
		strategy: acquisition.New(to, m.opts.Acquisition, m.log.WithField("mode", to.String())),
	}
}

// Start brings up the always-on motion sensor.
func (m *Machine) Start() {
	m.sensors.InitializeMotion()
}

// Mode returns the current operating mode.
func (m *Machine) Mode() mode.OperatingMode { return m.cur.mode }

// Period returns the current report period.
func (m *Machine) Period() time.Duration { return m.cur.period }

// Strategy returns the active acquisition strategy.
func (m *Machine) Strategy() acquisition.Strategy { return m.cur.strategy }

// Switch resolves name and transitions to it. Unknown names select IDLE.
func (m *Machine) Switch(name string) {
	m.SwitchTo(mode.Parse(name))
}

// SwitchTo transitions to the given mode. Switching to the current mode does
// nothing.
func (m *Machine) SwitchTo(to mode.OperatingMode) {
	if to == m.cur.mode {
		m.log.Debugf("already in %s mode", to)
		return
	}
	m.log.WithFields(logrus.Fields{"from": m.cur.mode.String(), "to": to.String()}).Info("switching mode")

	req := mode.For(to, m.opts.UnifiedPeriod)
	if to == mode.Idle {
		m.sensors.Reset()
	} else {
		if err := m.sensors.Prime(req.Optical); err != nil {
			// The mode still runs; reads report stale or zero values.
			m.log.WithError(err).Errorf("%s sensor unavailable", req.Optical)
		}
		if req.Motion {
			m.sensors.InitializeMotion()
		}
	}

	m.cur = m.enter(to)
	m.lastReport = time.Time{}
}

// ResetBus forces a bus reset. The mode is kept but no optical sensor is
// live afterwards.
func (m *Machine) ResetBus() {
	m.sensors.Reset()
}

// Disconnect tears everything down to IDLE and drops any session, even when
// already idle.
func (m *Machine) Disconnect() {
	m.log.Info("client disconnected, returning to idle")
	m.sensors.Reset()
	m.cur = m.enter(mode.Idle)
	m.lastReport = time.Time{}
}

// Handle applies one command. Ignored commands and commands that do not
// apply to the current mode have no effect.
func (m *Machine) Handle(cmd command.Command, now time.Time) {
	m.log.WithField("command", cmd.Raw).Debug("command received")

	switch cmd.Kind {
	case command.Mode:
		m.Switch(cmd.Arg)
	case command.Label:
		if l, ok := m.cur.strategy.(acquisition.Labeler); ok {
			l.StartLabel(cmd.Arg, now)
		}
	case command.Start:
		if r, ok := m.cur.strategy.(acquisition.Ranger); ok {
			r.StartTarget(cmd.Arg, cmd.DistanceMM)
		}
	case command.Stop:
		if s, ok := m.cur.strategy.(acquisition.Stopper); ok {
			s.Stop()
			m.log.Info("collection stopped")
		}
	case command.Reset:
		m.ResetBus()
	case command.Status:
		// Status goes out after every command; nothing else to do.
	default:
		m.log.WithField("command", cmd.Raw).Debugf("ignoring %s command", cmd.Kind)
	}
}

// Tick services the sensors and, when the report period has elapsed, returns
// the payloads of the current mode. The first tick after a transition always
// reports.
func (m *Machine) Tick(now time.Time) []telemetry.Payload {
	m.sensors.Poll(now)
	if o, ok := m.cur.strategy.(acquisition.Observer); ok {
		if err := o.Observe(now, m.sensors.Thermometer()); err != nil {
			m.log.Debugf("observe: %v", err)
		}
	}

	if !m.lastReport.IsZero() && now.Sub(m.lastReport) < m.cur.period {
		return nil
	}
	m.lastReport = now

	r := m.sensors.Sample(m.cur.needs)
	return m.cur.strategy.Report(m.tick(now), r)
}

func (m *Machine) tick(now time.Time) acquisition.Tick {
	return acquisition.Tick{Now: now, Uptime: now.Sub(m.started), FreeHeap: m.sensors.Memory()}
}

// Status returns the status payload for now.
func (m *Machine) Status(now time.Time) telemetry.StatusPayload {
	t := m.tick(now)
	return telemetry.StatusPayload{
		Status:    "ready",
		Mode:      m.cur.mode.String(),
		Uptime:    t.Timestamp(),
		FreeHeap:  t.FreeHeap,
		Timestamp: t.Timestamp(),
	}
}
