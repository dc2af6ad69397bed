// Package bustest provides an in-memory I2C bus and a register-level
// MAX30100 model for tests.
package bustest

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrNACK is returned for transactions addressed to a device that is not attached.
var ErrNACK = errors.New("bustest: no acknowledge")

// Device is one peripheral attached to a Bus.
type Device interface {
	Tx(w, r []byte) error
}

// Tx is a recorded transaction.
type Tx struct {
	Addr uint16
	W    []byte
	R    int
}

// Bus is an i2c.BusCloser routing transactions to attached devices by address.
// Closing it only flips a flag so the same Bus can be handed out again by an
// Opener after a reset.
type Bus struct {
	Devices map[uint16]Device
	Log     []Tx
	Speed   physic.Frequency
	Closed  bool
	Opens   int
	Closes  int
	// OpenErr, when set, makes Opener fail.
	OpenErr error
}

// New returns an open Bus with the given devices attached.
func New(devs map[uint16]Device) *Bus {
	if devs == nil {
		devs = map[uint16]Device{}
	}
	return &Bus{Devices: devs}
}

// Opener returns a function that reopens b, suitable for bus.New.
func (b *Bus) Opener() func() (i2c.BusCloser, error) {
	return func() (i2c.BusCloser, error) {
		if b.OpenErr != nil {
			return nil, b.OpenErr
		}
		b.Opens++
		b.Closed = false
		return b, nil
	}
}

func (b *Bus) String() string { return "bustest" }

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if b.Closed {
		return fmt.Errorf("bustest: tx on closed bus")
	}
	b.Log = append(b.Log, Tx{Addr: addr, W: append([]byte(nil), w...), R: len(r)})
	d, ok := b.Devices[addr]
	if !ok {
		return ErrNACK
	}
	return d.Tx(w, r)
}

func (b *Bus) SetSpeed(f physic.Frequency) error {
	b.Speed = f
	return nil
}

func (b *Bus) Close() error {
	b.Closed = true
	b.Closes++
	return nil
}

// Writes returns the register writes (len(W) > 1) sent to addr.
func (b *Bus) Writes(addr uint16) [][]byte {
	var out [][]byte
	for _, tx := range b.Log {
		if tx.Addr == addr && len(tx.W) > 1 {
			out = append(out, tx.W)
		}
	}
	return out
}

// ResetLog forgets recorded transactions.
func (b *Bus) ResetLog() {
	b.Log = nil
}

var _ i2c.BusCloser = (*Bus)(nil)
