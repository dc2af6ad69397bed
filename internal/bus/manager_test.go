package bus

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/bus/bustest"
)

type fakeOwner struct {
	downs int
	err   error
}

func (f *fakeOwner) PowerDown() error {
	f.downs++
	return f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestManager(t *testing.T, fb *bustest.Bus) (*Manager, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	m, err := New(fb.Opener(), Options{
		Settle: DefaultSettle,
		Sleep:  func(d time.Duration) { slept = append(slept, d) },
	}, quietLogger())
	require.NoError(t, err)
	return m, &slept
}

func TestNew_OpensAtDefaultSpeed(t *testing.T) {
	fb := bustest.New(nil)
	m, _ := newTestManager(t, fb)

	assert.Equal(t, 1, fb.Opens)
	assert.Equal(t, DefaultSpeed, fb.Speed)
	assert.Equal(t, "bustest", m.String())
}

func TestNew_OpenError(t *testing.T) {
	fb := bustest.New(nil)
	fb.OpenErr = errors.New("no such bus")

	_, err := New(fb.Opener(), Options{}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such bus")
}

func TestReset_PowersDownOwnerAndSoftResets(t *testing.T) {
	optical := bustest.NewMAX30100(nil)
	fb := bustest.New(map[uint16]bustest.Device{softResetAddr: optical})
	m, slept := newTestManager(t, fb)

	owner := &fakeOwner{}
	m.Acquire(owner)
	fb.Speed = 400 * physic.KiloHertz

	m.Reset()

	assert.Equal(t, 1, owner.downs)
	assert.Nil(t, m.Owner())
	assert.Equal(t, 1, fb.Closes)
	assert.Equal(t, 2, fb.Opens)
	assert.False(t, fb.Closed)
	assert.Equal(t, DefaultSpeed, fb.Speed)
	assert.Equal(t, [][]byte{{regModeConfig, modeReset}}, fb.Writes(softResetAddr))
	assert.Equal(t, 1, optical.Resets)
	assert.Equal(t, []time.Duration{
		DefaultSettle.PowerDown,
		DefaultSettle.Release,
		DefaultSettle.Init,
		DefaultSettle.SoftReset,
	}, *slept)
	assert.Equal(t, 1, m.Resets())
}

func TestReset_Idempotent(t *testing.T) {
	fb := bustest.New(map[uint16]bustest.Device{softResetAddr: bustest.NewMAX30100(nil)})
	m, _ := newTestManager(t, fb)
	m.Acquire(&fakeOwner{})

	m.Reset()
	m.Reset()

	assert.Equal(t, 2, m.Resets())
	assert.Nil(t, m.Owner())
	assert.False(t, fb.Closed)
	require.NoError(t, m.Tx(softResetAddr, []byte{0xFF}, make([]byte, 1)))
}

func TestReset_ToleratesMissingDevice(t *testing.T) {
	fb := bustest.New(nil)
	m, _ := newTestManager(t, fb)
	owner := &fakeOwner{err: errors.New("nack")}
	m.Acquire(owner)

	assert.NotPanics(t, m.Reset)
	assert.Equal(t, 1, owner.downs)
	assert.Nil(t, m.Owner())
}

func TestReset_ReopenFailureLeavesBusClosed(t *testing.T) {
	fb := bustest.New(nil)
	m, _ := newTestManager(t, fb)
	fb.OpenErr = errors.New("gone")

	assert.NotPanics(t, m.Reset)
	assert.ErrorIs(t, m.Tx(0x57, []byte{0}, nil), ErrClosed)
	assert.ErrorIs(t, m.SetSpeed(DefaultSpeed), ErrClosed)
	assert.Equal(t, "bus(closed)", m.String())

	// the next reset recovers once the bus is back
	fb.OpenErr = nil
	m.Reset()
	assert.NoError(t, m.SetSpeed(DefaultSpeed))
}

func TestManager_ForwardsTx(t *testing.T) {
	optical := bustest.NewMAX30100(nil)
	fb := bustest.New(map[uint16]bustest.Device{0x57: optical})
	m, _ := newTestManager(t, fb)

	r := make([]byte, 1)
	require.NoError(t, m.Tx(0x57, []byte{0xFF}, r))
	assert.Equal(t, byte(0x11), r[0])

	assert.ErrorIs(t, m.Tx(0x20, []byte{0}, nil), bustest.ErrNACK)
}

func TestClose(t *testing.T) {
	fb := bustest.New(nil)
	m, _ := newTestManager(t, fb)
	m.Acquire(&fakeOwner{})

	require.NoError(t, m.Close())
	assert.True(t, fb.Closed)
	assert.Nil(t, m.Owner())
	require.NoError(t, m.Close())
}
