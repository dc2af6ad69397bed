package gateway

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/command"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

type fakeMachine struct {
	mode        mode.OperatingMode
	handled     []command.Command
	disconnects int
	report      []telemetry.Payload
}

func (f *fakeMachine) Handle(cmd command.Command, _ time.Time) {
	f.handled = append(f.handled, cmd)
	if cmd.Kind == command.Mode {
		f.mode = mode.Parse(cmd.Arg)
	}
}

func (f *fakeMachine) Tick(time.Time) []telemetry.Payload { return f.report }

func (f *fakeMachine) Status(now time.Time) telemetry.StatusPayload {
	return telemetry.StatusPayload{Status: "ready", Mode: f.mode.String(), Timestamp: now.UnixMilli()}
}

func (f *fakeMachine) Disconnect() {
	f.disconnects++
	f.mode = mode.Idle
}

func (f *fakeMachine) Mode() mode.OperatingMode { return f.mode }

type frame struct {
	ch   telemetry.Channel
	body string
}

type fakeLink struct {
	sent []frame
	err  error
}

func (f *fakeLink) Name() string { return "fake" }

func (f *fakeLink) Run(ctx context.Context, _ chan<- transport.Event) error {
	<-ctx.Done()
	return nil
}

func (f *fakeLink) Send(ch telemetry.Channel, b []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, frame{ch, string(b)})
	return nil
}

func setup() (*Gateway, *fakeMachine, *fakeLink) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := &fakeMachine{}
	link := &fakeLink{}
	return New(m, link, telemetry.JSON{}, logger), m, link
}

var t0 = time.UnixMilli(1_000)

func TestNothingIsSentBeforeConnect(t *testing.T) {
	g, m, link := setup()
	m.report = []telemetry.Payload{telemetry.TemperaturePayload{Temperature: 30}}

	g.Tick(t0)
	g.SendStatus(t0)
	g.HandleEvent(transport.Event{Kind: transport.Command, Data: []byte("MODE:TEMPERATURE")}, t0)

	assert.False(t, g.Connected())
	assert.Empty(t, link.sent)
	assert.Equal(t, mode.Temperature, m.mode)
	assert.Equal(t, m.report[0], g.Last)
}

func TestConnectSendsStatus(t *testing.T) {
	g, _, link := setup()
	g.HandleEvent(transport.Event{Kind: transport.Connected}, t0)

	require.True(t, g.Connected())
	require.Len(t, link.sent, 1)
	assert.Equal(t, telemetry.Status, link.sent[0].ch)
	assert.JSONEq(t, `{"status":"ready","mode":"IDLE","uptime":0,"free_heap":0,"timestamp":1000}`, link.sent[0].body)
}

func TestEveryCommandIsFollowedByStatus(t *testing.T) {
	g, m, link := setup()
	g.HandleEvent(transport.Event{Kind: transport.Connected}, t0)
	link.sent = nil

	for _, raw := range []string{"MODE:FORCE_TEST", "BOGUS", "LABEL:squeeze"} {
		g.HandleEvent(transport.Event{Kind: transport.Command, Data: []byte(raw)}, t0)
	}

	require.Len(t, m.handled, 3)
	assert.Equal(t, command.Unknown, m.handled[1].Kind)
	require.Len(t, link.sent, 3)
	for _, f := range link.sent {
		assert.Equal(t, telemetry.Status, f.ch)
		assert.Contains(t, f.body, `"mode":"FORCE_TEST"`)
	}
}

func TestTickForwardsPayloads(t *testing.T) {
	g, m, link := setup()
	g.HandleEvent(transport.Event{Kind: transport.Connected}, t0)
	link.sent = nil

	m.report = []telemetry.Payload{
		telemetry.DistancePayload{IR: 1, Red: 2, LED: "a", DistanceMM: 10, Collecting: true},
		telemetry.DistanceAveragePayload{Type: "average", LED: "a", DistanceMM: 10, Samples: 10},
	}
	g.Tick(t0)

	require.Len(t, link.sent, 2)
	assert.Equal(t, telemetry.Data, link.sent[0].ch)
	assert.Contains(t, link.sent[1].body, `"type":"average"`)
	assert.Equal(t, m.report[1], g.Last)
}

func TestDisconnectReturnsToIdle(t *testing.T) {
	g, m, link := setup()
	g.HandleEvent(transport.Event{Kind: transport.Connected}, t0)
	g.HandleEvent(transport.Event{Kind: transport.Command, Data: []byte("MODE:HR_SPO2")}, t0)
	link.sent = nil

	g.HandleEvent(transport.Event{Kind: transport.Disconnected}, t0)
	assert.False(t, g.Connected())
	assert.Equal(t, 1, m.disconnects)
	assert.Equal(t, mode.Idle, m.Mode())

	m.report = []telemetry.Payload{telemetry.IdlePayload{Status: "idle"}}
	g.Tick(t0)
	assert.Empty(t, link.sent)
}

func TestSendErrorsAreNotFatal(t *testing.T) {
	g, m, link := setup()
	g.HandleEvent(transport.Event{Kind: transport.Connected}, t0)
	link.err = errors.New("link busy")

	m.report = []telemetry.Payload{telemetry.IdlePayload{Status: "idle"}}
	assert.NotPanics(t, func() { g.Tick(t0) })
	assert.True(t, g.Connected())
}
