// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/acquisition"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/bus"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/config"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/gateway"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/machine"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/max30100"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/quality"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport/ble"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport/mqtt"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport/serial"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport/ws"
)

// Node is the running sensor node: one loop owning the machine and the gateway.
type Node struct {
	cfg     *config.Config
	log     *logrus.Logger
	bus     *bus.Manager
	sensors *sensors.Controller
	machine *machine.Machine
	link    transport.Transport
	gateway *gateway.Gateway
	display *Display
	analog  halter

	now func() time.Time
}

// NewNode wires the sensors, the state machine and the gateway on top of an
// open bus and a transport. Missing secondary sensors are logged, not fatal.
func NewNode(cfg *config.Config, logger *logrus.Logger, b *bus.Manager, link transport.Transport) (*Node, error) {
	enc, err := telemetry.NewEncoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	motion, force, afe := secondarySensors(cfg, b, logger)
	ctrl := sensors.NewController(b, motion, force, ControllerOptions(cfg), logger)
	m := machine.New(ctrl, MachineOptions(cfg), time.Now(), logger)

	n := &Node{
		cfg:     cfg,
		log:     logger,
		bus:     b,
		sensors: ctrl,
		machine: m,
		link:    link,
		gateway: gateway.New(m, link, enc, logger),
		now:     time.Now,
	}
	if afe != nil {
		n.analog = afe
	}
	return n, nil
}

// halter is a device that can stop conversions it started.
type halter interface {
	Halt() error
}

// ControllerOptions maps the configuration onto sensor lifecycle options.
func ControllerOptions(cfg *config.Config) sensors.Options {
	return sensors.Options{
		OpticalAddr:     cfg.OpticalI2CAddr,
		LEDCurrent:      max30100.CurrentFor(cfg.OpticalLEDCurrentMA),
		PrimeAttempts:   cfg.PrimeAttempts,
		DummyReads:      cfg.PrimeDummyReads,
		ReadInterval:    config.Millis(cfg.PrimeReadIntervalMS),
		PrimeTimeout:    config.Millis(cfg.PrimeTimeoutMS),
		RetryDelay:      config.Millis(cfg.PrimeRetryDelayMS),
		PulseOxSettle:   config.Millis(cfg.PulseOxSettleDelayMS),
		MemoryWarnBytes: cfg.MemoryWarnBytes,
	}
}

// MachineOptions maps the configuration onto state machine options.
func MachineOptions(cfg *config.Config) machine.Options {
	return machine.Options{
		UnifiedPeriod: config.Millis(cfg.ReportPeriodMS),
		Acquisition: acquisition.Options{
			ForceDuration:     config.Millis(cfg.ForceDurationMS),
			DistanceBatch:     cfg.DistanceBatchSize,
			TemperaturePeriod: config.Millis(cfg.TemperaturePeriodMS),
			Model:             quality.Default,
		},
	}
}

// secondarySensors builds the motion sensor and the FSR, plus the ADC behind
// them. Any of them may come back nil.
func secondarySensors(cfg *config.Config, b *bus.Manager, logger *logrus.Logger) (sensors.Motion, *sensors.ForceSensor, *sensors.AnalogFrontEnd) {
	var (
		motion sensors.Motion
		force  *sensors.ForceSensor
	)

	if cfg.MotionDriver == "mpu9250" {
		motion = sensors.NewMPU9250Motion(cfg.IMUSPIDevice, cfg.IMUCSPin)
	}

	afe, err := sensors.NewAnalogFrontEnd(b, cfg.ADCI2CAddr, cfg.ADCMaxMillivolts)
	if err != nil {
		logger.Warnf("analog front end unavailable, no force sensing: %v", err)
		return motion, nil, nil
	}

	if fsr, err := afe.Channel(cfg.FSRChannel); err != nil {
		logger.Warnf("FSR channel: %v", err)
	} else {
		force = sensors.NewForceSensor(fsr)
	}

	if cfg.MotionDriver == "adxl335" {
		var axes [3]sensors.AnalogInput
		for i, ch := range []int{cfg.AccelChannelX, cfg.AccelChannelY, cfg.AccelChannelZ} {
			if axes[i], err = afe.Channel(ch); err != nil {
				logger.Warnf("accelerometer channel %d: %v", ch, err)
				return nil, force, afe
			}
		}
		zero := [3]float64{cfg.AccelZeroX, cfg.AccelZeroY, cfg.AccelZeroZ}
		motion = sensors.NewADXL335(axes[0], axes[1], axes[2], zero, cfg.AccelSensitivity)
	}
	return motion, force, afe
}

// NewTransport returns the host link selected by cfg.Transport.
func NewTransport(cfg *config.Config, logger *logrus.Logger) (transport.Transport, error) {
	switch cfg.Transport {
	case "ble":
		return ble.New(cfg.DeviceName, logger), nil
	case "mqtt":
		return mqtt.New(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger), nil
	case "ws":
		return ws.New(cfg.WSListenAddr, logger), nil
	case "serial":
		return serial.New(serial.Config{Port: cfg.SerialPort, BaudRate: uint(cfg.SerialBaudRate)}, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// RunNode opens the hardware, starts the configured transport and runs the
// node until ctx is cancelled.
func RunNode(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	logger.Infof("starting vitals node %s (transport=%s, encoding=%s)", cfg.DeviceName, cfg.Transport, cfg.Encoding)

	b, err := bus.New(bus.OpenerFor(cfg.I2CBus), bus.Options{
		Speed: physic.Frequency(cfg.I2CSpeedHz) * physic.Hertz,
	}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	link, err := NewTransport(cfg, logger)
	if err != nil {
		return err
	}

	n, err := NewNode(cfg, logger, b, link)
	if err != nil {
		return err
	}

	if cfg.DisplayEnabled {
		d, err := OpenDisplay(cfg.DisplayI2CBus, cfg.DisplayI2CAddr)
		if err != nil {
			logger.Warnf("display disabled: %v", err)
		} else {
			defer d.Close()
			n.display = d
		}
	}

	return n.Run(ctx)
}

// Run is the node loop. Transport events, sensor polling, periodic status
// and the display all run from here, so commands are applied between ticks.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.machine.Start()
	n.sensors.CheckMemory("startup")

	events := make(chan transport.Event, 32)
	linkErr := make(chan error, 1)
	go func() { linkErr <- n.link.Run(ctx, events) }()

	poll := time.NewTicker(config.Millis(n.cfg.PollIntervalMS))
	defer poll.Stop()
	memory := newTicker(config.Millis(n.cfg.MemoryLogIntervalMS))
	defer memory.Stop()
	status := newTicker(config.Millis(n.cfg.StatusIntervalMS))
	defer status.Stop()
	screen := newTicker(0)
	if n.display != nil {
		screen = newTicker(config.Millis(n.cfg.DisplayUpdateInterval))
	}
	defer screen.Stop()

	n.log.Infof("node ready, mode %s", n.machine.Mode())
	for {
		select {
		case <-ctx.Done():
			n.log.Info("node stopping")
			n.machine.Disconnect()
			n.halt()
			if err := <-linkErr; err != nil {
				n.log.Warnf("%s transport: %v", n.link.Name(), err)
			}
			return nil
		case err := <-linkErr:
			if err != nil {
				return fmt.Errorf("%s transport: %w", n.link.Name(), err)
			}
			return nil
		case ev := <-events:
			n.gateway.HandleEvent(ev, n.now())
		case <-poll.C:
			n.gateway.Tick(n.now())
		case <-status.C:
			n.gateway.SendStatus(n.now())
		case <-memory.C:
			n.log.WithFields(logrus.Fields{
				"free_bytes": n.sensors.Memory(),
				"mode":       n.machine.Mode().String(),
			}).Info("memory")
		case <-screen.C:
			n.refreshDisplay()
		}
	}
}

func (n *Node) halt() {
	if n.analog == nil {
		return
	}
	if err := n.analog.Halt(); err != nil {
		n.log.Warnf("halting analog front end: %v", err)
	}
}

func (n *Node) refreshDisplay() {
	s := Snapshot{
		Mode:      n.machine.Mode().String(),
		Transport: n.link.Name(),
		Connected: n.gateway.Connected(),
		Last:      n.gateway.Last,
	}
	if err := n.display.Show(s); err != nil {
		n.log.Debugf("display: %v", err)
	}
}

// ticker is a time.Ticker that never fires when its interval is zero.
type ticker struct {
	*time.Ticker
	C <-chan time.Time
}

func newTicker(d time.Duration) *ticker {
	if d <= 0 {
		return &ticker{}
	}
	t := time.NewTicker(d)
	return &ticker{Ticker: t, C: t.C}
}

func (t *ticker) Stop() {
	if t.Ticker != nil {
		t.Ticker.Stop()
	}
}
