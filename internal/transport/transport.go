// Package transport defines the link between the node and its host. Each
// adapter (BLE, MQTT, WebSocket, serial) runs its own goroutines but only ever
// reports what happened as Events; the node loop is the single consumer.
package transport

import (
	"context"
	"errors"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

// ErrNotConnected is returned by Send when no host is attached.
var ErrNotConnected = errors.New("transport: not connected")

// EventKind is what happened on the link.
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
	Command
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Command:
		return "command"
	default:
		return "unknown"
	}
}

// Event is delivered to the node loop. Data holds the raw command bytes for
// Command events.
type Event struct {
	Kind EventKind
	Data []byte
}

// Transport is one host link.
type Transport interface {
	Name() string
	// Run serves the link and pushes events until ctx is cancelled.
	Run(ctx context.Context, events chan<- Event) error
	// Send writes one encoded frame on the given channel.
	Send(ch telemetry.Channel, frame []byte) error
}

// Emit delivers ev unless ctx is done first.
func Emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
