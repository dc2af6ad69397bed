// Package gateway connects a transport to the mode state machine: inbound
// events become commands and connection changes, outbound payloads are
// encoded and sent only while a host is attached.
package gateway

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/command"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

// Machine is the part of *machine.Machine the gateway drives.
type Machine interface {
	Handle(cmd command.Command, now time.Time)
	Tick(now time.Time) []telemetry.Payload
	Status(now time.Time) telemetry.StatusPayload
	Disconnect()
	Mode() mode.OperatingMode
}

// Gateway is owned by the node loop and is not safe for concurrent use.
type Gateway struct {
	machine   Machine
	link      transport.Transport
	enc       telemetry.Encoder
	log       *logrus.Entry
	connected bool

	// Last holds the most recent data payload produced, sent or not.
	Last telemetry.Payload
}

// New returns a gateway with no host attached.
func New(m Machine, link transport.Transport, enc telemetry.Encoder, logger *logrus.Logger) *Gateway {
	return &Gateway{
		machine: m,
		link:    link,
		enc:     enc,
		log:     logger.WithFields(logrus.Fields{"component": "gateway", "transport": link.Name()}),
	}
}

// Connected reports whether a host is attached.
func (g *Gateway) Connected() bool { return g.connected }

// HandleEvent applies one transport event.
func (g *Gateway) HandleEvent(ev transport.Event, now time.Time) {
	switch ev.Kind {
	case transport.Connected:
		g.connected = true
		g.log.Info("host connected")
		g.SendStatus(now)
	case transport.Disconnected:
		g.connected = false
		g.log.Info("host disconnected, returning to idle")
		g.machine.Disconnect()
	case transport.Command:
		cmd := command.Parse(ev.Data)
		if cmd.Ignored() {
			g.log.WithField("command", cmd.Raw).Debugf("%s command ignored", cmd.Kind)
		}
		g.machine.Handle(cmd, now)
		g.SendStatus(now)
	}
}

// Tick advances the machine and forwards whatever it reports. Payloads are
// dropped while no host is attached.
func (g *Gateway) Tick(now time.Time) {
	for _, p := range g.machine.Tick(now) {
		g.Last = p
		g.send(p)
	}
}

// SendStatus emits the status payload if a host is attached.
func (g *Gateway) SendStatus(now time.Time) {
	g.send(g.machine.Status(now))
}

func (g *Gateway) send(p telemetry.Payload) {
	if !g.connected {
		return
	}
	frame, err := g.enc.Encode(p)
	if err != nil {
		g.log.Errorf("encode: %v", err)
		return
	}
	if err := g.link.Send(p.Channel(), frame); err != nil {
		g.log.Debugf("send %s: %v", p.Channel(), err)
	}
}
