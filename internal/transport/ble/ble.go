// Package ble exposes the node as a BLE GATT peripheral.
//
// The service has three characteristics: data (read/notify), control (write)
// and status (read/notify). A host counts as connected while it is
// subscribed to data notifications.
package ble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/command"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

var (
	ServiceUUID = ble.MustParse("12345678-1234-5678-1234-56789abcdef0")
	DataUUID    = ble.MustParse("abcdefab-1234-5678-1234-56789abcdef1")
	ControlUUID = ble.MustParse("abcdefab-1234-5678-1234-56789abcdef2")
	StatusUUID  = ble.MustParse("abcdefab-1234-5678-1234-56789abcdef3")
)

// Transport is the BLE peripheral adapter.
type Transport struct {
	name      string
	log       *logrus.Entry
	newDevice func() (ble.Device, error)

	mu        sync.Mutex
	ctx       context.Context
	events    chan<- transport.Event
	notifiers map[telemetry.Channel]ble.Notifier
	last      map[telemetry.Channel][]byte
}

// New returns a peripheral advertising under name.
func New(name string, logger *logrus.Logger) *Transport {
	return &Transport{
		name:      name,
		log:       logger.WithField("transport", "ble"),
		newDevice: defaultDevice,
		notifiers: make(map[telemetry.Channel]ble.Notifier),
		last:      make(map[telemetry.Channel][]byte),
	}
}

func (t *Transport) Name() string { return "ble" }

// Run registers the service and advertises until ctx is done.
func (t *Transport) Run(ctx context.Context, events chan<- transport.Event) error {
	t.mu.Lock()
	t.ctx, t.events = ctx, events
	t.mu.Unlock()

	dev, err := t.newDevice()
	if err != nil {
		return fmt.Errorf("ble: create device: %w", err)
	}
	ble.SetDefaultDevice(dev)
	defer dev.Stop()

	if err := dev.AddService(t.Service()); err != nil {
		return fmt.Errorf("ble: add service: %w", err)
	}

	t.log.Infof("BLE advertising started as %s", t.name)
	err = dev.AdvertiseNameAndServices(ctx, t.name, ServiceUUID)
	if ctx.Err() != nil {
		t.log.Info("BLE advertising stopped")
		return nil
	}
	return fmt.Errorf("ble: advertise: %w", err)
}

// Service builds the GATT service.
func (t *Transport) Service() *ble.Service {
	svc := ble.NewService(ServiceUUID)

	data := svc.NewCharacteristic(DataUUID)
	data.HandleRead(t.reader(telemetry.Data))
	data.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		t.subscribe(telemetry.Data, n, true)
	}))

	control := svc.NewCharacteristic(ControlUUID)
	control.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		b := req.Data()
		if len(b) > command.MaxLength {
			t.log.Debugf("dropping oversized write (%d bytes)", len(b))
			return
		}
		t.emit(transport.Event{Kind: transport.Command, Data: append([]byte(nil), b...)})
	}))

	status := svc.NewCharacteristic(StatusUUID)
	status.HandleRead(t.reader(telemetry.Status))
	status.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		t.subscribe(telemetry.Status, n, false)
	}))

	return svc
}

func (t *Transport) reader(ch telemetry.Channel) ble.ReadHandler {
	return ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		t.mu.Lock()
		b := t.last[ch]
		t.mu.Unlock()
		if _, err := rsp.Write(b); err != nil {
			t.log.Debugf("read %s: %v", ch, err)
		}
	})
}

// subscribe holds a notification subscription until the central drops it.
// The data subscription defines the connection.
func (t *Transport) subscribe(ch telemetry.Channel, n ble.Notifier, defines bool) {
	t.mu.Lock()
	t.notifiers[ch] = n
	t.mu.Unlock()
	t.log.Debugf("%s notifications enabled", ch)
	if defines {
		t.log.Info("client connected")
		t.emit(transport.Event{Kind: transport.Connected})
	}

	<-n.Context().Done()

	t.mu.Lock()
	if t.notifiers[ch] == n {
		delete(t.notifiers, ch)
	}
	t.mu.Unlock()
	t.log.Debugf("%s notifications disabled", ch)
	if defines {
		t.log.Info("client disconnected")
		t.emit(transport.Event{Kind: transport.Disconnected})
	}
}

func (t *Transport) emit(ev transport.Event) {
	t.mu.Lock()
	ctx, events := t.ctx, t.events
	t.mu.Unlock()
	if events == nil {
		return
	}
	transport.Emit(ctx, events, ev)
}

// Send notifies subscribers of ch and keeps frame for reads.
func (t *Transport) Send(ch telemetry.Channel, frame []byte) error {
	t.mu.Lock()
	t.last[ch] = frame
	n := t.notifiers[ch]
	t.mu.Unlock()
	if n == nil {
		return transport.ErrNotConnected
	}
	if c := n.Cap(); c > 0 && len(frame) > c {
		return fmt.Errorf("ble: %d byte frame exceeds notification size %d", len(frame), c)
	}
	if _, err := n.Write(frame); err != nil {
		return fmt.Errorf("ble: notify %s: %w", ch, err)
	}
	return nil
}
