package acquisition

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/quality"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func tickAt(d time.Duration) Tick {
	return Tick{Now: t0.Add(d), Uptime: d, FreeHeap: 4096}
}

func TestNew_ModeMatches(t *testing.T) {
	for _, m := range mode.All() {
		s := New(m, DefaultOptions(), quietLog())
		assert.Equal(t, m, s.Mode())
	}
	assert.Equal(t, mode.Idle, New(mode.OperatingMode(99), DefaultOptions(), nil).Mode())
}

func TestNew_OptionalInterfaces(t *testing.T) {
	_, ok := New(mode.ForceTest, DefaultOptions(), quietLog()).(Labeler)
	assert.True(t, ok)
	_, ok = New(mode.DistanceTest, DefaultOptions(), quietLog()).(Ranger)
	assert.True(t, ok)
	_, ok = New(mode.Temperature, DefaultOptions(), quietLog()).(Observer)
	assert.True(t, ok)
	_, ok = New(mode.HeartRateSpO2, DefaultOptions(), quietLog()).(Stopper)
	assert.False(t, ok)
}

func TestIdle(t *testing.T) {
	got := Idle{}.Report(tickAt(1500*time.Millisecond), sensors.Reading{})
	assert.Equal(t, []telemetry.Payload{telemetry.IdlePayload{Status: "idle", Uptime: 1500, FreeHeap: 4096, Timestamp: 1500}}, got)
}

func TestContinuous(t *testing.T) {
	r := sensors.Reading{
		HeartRate: 72.36, SpO2: 96.94, IR: 51000, Red: 42000,
		Accel: sensors.Acceleration{X: 0.0123, Y: -0.5, Z: 0.9876},
	}

	got := New(mode.HeartRateSpO2, DefaultOptions(), quietLog()).Report(tickAt(time.Second), r)
	assert.Equal(t, []telemetry.Payload{telemetry.VitalsPayload{
		HeartRate: 72.4, SpO2: 96.9, AX: 0.01, AY: -0.5, AZ: 0.99, Timestamp: 1000,
	}}, got)

	got = New(mode.RawData, DefaultOptions(), quietLog()).Report(tickAt(time.Second), r)
	assert.Equal(t, []telemetry.Payload{telemetry.RawPayload{
		HeartRate: 72.4, SpO2: 96.9, IR: 51000, Red: 42000, AX: 0.012, AY: -0.5, AZ: 0.988, Timestamp: 1000,
	}}, got)
}

type fakeThermometer struct {
	starts   int
	polls    int
	busyFor  int
	value    float64
	startErr error
}

func (f *fakeThermometer) StartTemperatureSampling() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.polls = 0
	return nil
}

func (f *fakeThermometer) TemperatureReady() (bool, error) {
	f.polls++
	return f.polls > f.busyFor, nil
}

func (f *fakeThermometer) Temperature() (float64, error) {
	return f.value, nil
}

func TestTemperatureMonitor(t *testing.T) {
	th := &fakeThermometer{busyFor: 2, value: 31.8125}
	m := New(mode.Temperature, DefaultOptions(), quietLog()).(*TemperatureMonitor)

	// First observation starts a conversion straight away.
	require.NoError(t, m.Observe(t0, th))
	assert.Equal(t, 1, th.starts)
	assert.True(t, m.InFlight())

	require.NoError(t, m.Observe(t0.Add(10*time.Millisecond), th))
	assert.True(t, m.InFlight())
	assert.Equal(t, []telemetry.Payload{telemetry.TemperaturePayload{Temperature: 0, Timestamp: 20}}, m.Report(tickAt(20*time.Millisecond), sensors.Reading{}))

	require.NoError(t, m.Observe(t0.Add(20*time.Millisecond), th))
	assert.False(t, m.InFlight())
	assert.Equal(t, []telemetry.Payload{telemetry.TemperaturePayload{Temperature: 31.813, Timestamp: 30}}, m.Report(tickAt(30*time.Millisecond), sensors.Reading{}))

	// No new conversion until the sampling period has passed.
	require.NoError(t, m.Observe(t0.Add(500*time.Millisecond), th))
	assert.Equal(t, 1, th.starts)
	require.NoError(t, m.Observe(t0.Add(1001*time.Millisecond), th))
	assert.Equal(t, 2, th.starts)
}

func TestTemperatureMonitor_Errors(t *testing.T) {
	m := New(mode.Temperature, DefaultOptions(), quietLog()).(*TemperatureMonitor)
	assert.NoError(t, m.Observe(t0, nil))

	boom := errors.New("nack")
	assert.ErrorIs(t, m.Observe(t0, &fakeThermometer{startErr: boom}), boom)
	assert.False(t, m.InFlight())
}

func TestForceTest_Scenario(t *testing.T) {
	f := New(mode.ForceTest, DefaultOptions(), quietLog()).(*ForceTest)
	r := sensors.Reading{IR: 100, Red: 200, FSR: 300}
	period := 100 * time.Millisecond

	got := f.Report(tickAt(0), r)
	require.Len(t, got, 1)
	assert.Equal(t, WaitingLabel, got[0].(telemetry.ForcePayload).Label)
	assert.False(t, got[0].(telemetry.ForcePayload).Collecting)

	start := 50 * time.Millisecond
	f.StartLabel("rest", t0.Add(start))
	for i := 1; i <= 10; i++ {
		got := f.Report(tickAt(start+time.Duration(i)*period), r)
		require.Len(t, got, 1)
		p := got[0].(telemetry.ForcePayload)
		assert.Equal(t, "rest", p.Label)
		assert.True(t, p.Collecting)
		assert.EqualValues(t, 300, p.FSR)
	}

	// The tick that sees the duration elapse closes the session silently.
	end := start + DefaultOptions().ForceDuration
	assert.Empty(t, f.Report(tickAt(end), r))
	assert.Nil(t, f.Session())

	got = f.Report(tickAt(end+period), r)
	require.Len(t, got, 1)
	assert.Equal(t, telemetry.ForcePayload{IR: 100, Red: 200, FSR: 300, Label: WaitingLabel, Collecting: false, Timestamp: (end + period).Milliseconds()}, got[0])
}

func TestForceTest_StopAndReplace(t *testing.T) {
	f := New(mode.ForceTest, DefaultOptions(), quietLog()).(*ForceTest)
	f.StartLabel("rest", t0)
	f.StartLabel("press", t0.Add(5*time.Second))
	require.NotNil(t, f.Session())
	assert.Equal(t, "press", f.Label())

	// The replacement session runs its own full duration.
	assert.NotEmpty(t, f.Report(tickAt(12*time.Second), sensors.Reading{}))

	f.Stop()
	assert.Nil(t, f.Session())
	assert.Equal(t, WaitingLabel, f.Label())
}

func TestDistanceTest_AverageOverSession(t *testing.T) {
	opts := DefaultOptions()
	d := New(mode.DistanceTest, opts, quietLog()).(*DistanceTest)

	got := d.Report(tickAt(0), sensors.Reading{IR: 1, Red: 2})
	require.Len(t, got, 1)
	assert.Equal(t, telemetry.DistancePayload{IR: 1, Red: 2, LED: NoTarget, Timestamp: 0}, got[0])

	d.StartTarget("IR", 25)
	var irSum, redSum float64
	var averages []telemetry.DistanceAveragePayload
	for i := 1; i <= 2*opts.DistanceBatch; i++ {
		r := sensors.Reading{IR: uint16(1000 + i), Red: uint16(500 + 3*i)}
		irSum += float64(r.IR)
		redSum += float64(r.Red)

		got := d.Report(tickAt(time.Duration(i)*100*time.Millisecond), r)
		raw := got[0].(telemetry.DistancePayload)
		assert.True(t, raw.Collecting)
		assert.Equal(t, "IR", raw.LED)
		assert.Equal(t, 25, raw.DistanceMM)

		if i%opts.DistanceBatch == 0 {
			require.Len(t, got, 2)
			avg := got[1].(telemetry.DistanceAveragePayload)
			assert.Equal(t, i, avg.Samples)
			assert.InDelta(t, irSum/float64(i), avg.AvgIR, 0.005)
			assert.InDelta(t, redSum/float64(i), avg.AvgRed, 0.005)
			averages = append(averages, avg)
		} else {
			assert.Len(t, got, 1)
		}
	}
	require.Len(t, averages, 2)
	assert.Equal(t, "average", averages[0].Type)
	assert.Equal(t, opts.DistanceBatch, averages[0].Samples)

	d.Stop()
	got = d.Report(tickAt(5*time.Second), sensors.Reading{IR: 7, Red: 8})
	require.Len(t, got, 1)
	assert.Equal(t, telemetry.DistancePayload{IR: 7, Red: 8, LED: "IR", DistanceMM: 25, Collecting: false, Timestamp: 5000}, got[0])
}

func TestDistanceTest_RestartClearsSums(t *testing.T) {
	d := New(mode.DistanceTest, DefaultOptions(), quietLog()).(*DistanceTest)
	d.StartTarget("RED", 10)
	for i := 0; i < 3; i++ {
		d.Report(tickAt(0), sensors.Reading{IR: 10, Red: 10})
	}
	d.StartTarget("RED", 20)
	s := d.Session()
	require.NotNil(t, s)
	assert.Equal(t, DistanceSession{Target: "RED", DistanceMM: 20}, *s)
	ir, red := s.Mean()
	assert.Zero(t, ir)
	assert.Zero(t, red)
}

func TestQualityAssessment(t *testing.T) {
	q := New(mode.QualityAssessment, DefaultOptions(), quietLog()).(*QualityAssessment)
	_, seen := q.History()
	assert.False(t, seen)

	// A sample the model rejects on its own is still good when it is first.
	bad := sensors.Reading{HeartRate: 0, SpO2: 0, Accel: sensors.Acceleration{Z: 1}}
	require.False(t, quality.Default.Predict(quality.Features{AccelMag: 1}))
	got := q.Report(tickAt(time.Second), bad)
	p := got[0].(telemetry.QualityPayload)
	assert.Equal(t, 1, p.Quality)
	assert.Equal(t, 100.0, p.QualityPercent)

	h, seen := q.History()
	assert.True(t, seen)
	assert.Equal(t, QualityHistory{AccelMagnitude: 1}, h)

	got = q.Report(tickAt(2*time.Second), bad)
	p = got[0].(telemetry.QualityPayload)
	assert.Equal(t, 0, p.Quality)
	assert.Equal(t, 50.0, p.QualityPercent)
	assert.Equal(t, 1.0, p.AccelMag)
}

func TestQualityAssessment_IdenticalSamplesHaveZeroDeltas(t *testing.T) {
	r := sensors.Reading{HeartRate: 74, SpO2: 97, Accel: sensors.Acceleration{X: 0.1, Y: 0.2, Z: 0.97}}
	q := New(mode.QualityAssessment, DefaultOptions(), quietLog()).(*QualityAssessment)
	require.True(t, q.Assess(r))

	want := quality.Default.Predict(quality.Features{HeartRate: 74, SpO2: 97, AccelMag: r.Accel.Magnitude()})
	assert.Equal(t, want, q.Assess(r))
	assert.True(t, want)
}
