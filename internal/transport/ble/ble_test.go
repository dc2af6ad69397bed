package ble

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

type request struct {
	ble.Request
	data []byte
}

func (r request) Data() []byte { return r.data }

type response struct {
	ble.ResponseWriter
	got []byte
}

func (r *response) Write(b []byte) (int, error) {
	r.got = append(r.got, b...)
	return len(b), nil
}

type notifier struct {
	ble.Notifier
	ctx context.Context

	mu   sync.Mutex
	sent [][]byte
}

func (n *notifier) Context() context.Context { return n.ctx }
func (n *notifier) Cap() int                 { return 20 }

func (n *notifier) Write(b []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, b)
	return len(b), nil
}

func characteristic(t *testing.T, svc *ble.Service, u ble.UUID) *ble.Characteristic {
	t.Helper()
	for _, c := range svc.Characteristics {
		if c.UUID.Equal(u) {
			return c
		}
	}
	t.Fatalf("characteristic %s not found", u)
	return nil
}

func newTransport() (*Transport, chan transport.Event) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tr := New("ESP32_Unified_Sensor", logger)
	events := make(chan transport.Event, 8)
	tr.ctx, tr.events = context.Background(), events
	return tr, events
}

func next(t *testing.T, events <-chan transport.Event) transport.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return transport.Event{}
	}
}

func TestService_Layout(t *testing.T) {
	tr, _ := newTransport()
	svc := tr.Service()
	assert.True(t, svc.UUID.Equal(ServiceUUID))
	assert.Len(t, svc.Characteristics, 3)
	assert.NotNil(t, characteristic(t, svc, DataUUID).NotifyHandler)
	assert.NotNil(t, characteristic(t, svc, ControlUUID).WriteHandler)
	assert.NotNil(t, characteristic(t, svc, StatusUUID).ReadHandler)
}

func TestControlWrite(t *testing.T) {
	tr, events := newTransport()
	c := characteristic(t, tr.Service(), ControlUUID)

	c.WriteHandler.ServeWrite(request{data: []byte("MODE:FORCE_TEST")}, &response{})
	ev := next(t, events)
	assert.Equal(t, transport.Command, ev.Kind)
	assert.Equal(t, "MODE:FORCE_TEST", string(ev.Data))

	c.WriteHandler.ServeWrite(request{data: make([]byte, 100)}, &response{})
	assert.Empty(t, events)
}

func TestDataSubscriptionIsTheConnection(t *testing.T) {
	tr, events := newTransport()
	svc := tr.Service()
	assert.ErrorIs(t, tr.Send(telemetry.Data, []byte("{}")), transport.ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	n := &notifier{ctx: ctx}
	go characteristic(t, svc, DataUUID).NotifyHandler.ServeNotify(request{}, n)
	assert.Equal(t, transport.Connected, next(t, events).Kind)

	require.NoError(t, tr.Send(telemetry.Data, []byte(`{"hr":72}`)))
	assert.Error(t, tr.Send(telemetry.Data, make([]byte, 21)))
	n.mu.Lock()
	assert.Equal(t, [][]byte{[]byte(`{"hr":72}`)}, n.sent)
	n.mu.Unlock()

	rsp := &response{}
	characteristic(t, svc, DataUUID).ReadHandler.ServeRead(request{}, rsp)
	assert.Len(t, rsp.got, 21)

	cancel()
	assert.Equal(t, transport.Disconnected, next(t, events).Kind)
	assert.ErrorIs(t, tr.Send(telemetry.Data, []byte("{}")), transport.ErrNotConnected)
}

func TestStatusSubscriptionDoesNotConnect(t *testing.T) {
	tr, events := newTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := &notifier{ctx: ctx}
	go characteristic(t, tr.Service(), StatusUUID).NotifyHandler.ServeNotify(request{}, n)
	assert.Eventually(t, func() bool {
		return tr.Send(telemetry.Status, []byte(`{}`)) == nil
	}, time.Second, time.Millisecond)
	assert.Empty(t, events)
}
