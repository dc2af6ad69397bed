// Package acquisition holds one strategy per operating mode. A strategy turns
// the latest sensor reading into the payloads for a report tick and owns the
// mode-local state (collection sessions, quality history), so that state is
// discarded whenever the strategy is replaced.
package acquisition

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/quality"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

// Tick is the clock of one report.
type Tick struct {
	Now      time.Time
	Uptime   time.Duration
	FreeHeap uint64
}

// Timestamp is the payload timestamp: uptime in milliseconds.
func (t Tick) Timestamp() int64 {
	return t.Uptime.Milliseconds()
}

// Strategy produces the payloads of one mode.
type Strategy interface {
	Mode() mode.OperatingMode
	Report(t Tick, r sensors.Reading) []telemetry.Payload
}

// Observer is implemented by strategies that must run on every loop
// iteration, between report ticks.
type Observer interface {
	Observe(now time.Time, th sensors.Thermometer) error
}

// Labeler starts a labelled collection session.
type Labeler interface {
	StartLabel(label string, now time.Time)
}

// Ranger starts a distance collection session.
type Ranger interface {
	StartTarget(target string, distanceMM int)
}

// Stopper closes the current collection session.
type Stopper interface {
	Stop()
}

// Options are the per-mode constants.
type Options struct {
	ForceDuration     time.Duration
	DistanceBatch     int
	TemperaturePeriod time.Duration
	Model             quality.Model
}

// DefaultOptions returns the board defaults.
func DefaultOptions() Options {
	return Options{
		ForceDuration:     10 * time.Second,
		DistanceBatch:     10,
		TemperaturePeriod: time.Second,
		Model:             quality.Default,
	}
}

// New returns a fresh strategy for m with no session or history.
func New(m mode.OperatingMode, opts Options, log *logrus.Entry) Strategy {
	if opts.DistanceBatch < 1 {
		opts.DistanceBatch = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	switch m {
	case mode.HeartRateSpO2, mode.RawData:
		return &Continuous{mode: m}
	case mode.Temperature:
		return &TemperatureMonitor{period: opts.TemperaturePeriod}
	case mode.ForceTest:
		return &ForceTest{duration: opts.ForceDuration, log: log}
	case mode.DistanceTest:
		return &DistanceTest{batch: opts.DistanceBatch, target: NoTarget, log: log}
	case mode.QualityAssessment:
		return &QualityAssessment{model: opts.Model}
	default:
		return Idle{}
	}
}

// Idle reports a heartbeat.
type Idle struct{}

func (Idle) Mode() mode.OperatingMode { return mode.Idle }

func (Idle) Report(t Tick, _ sensors.Reading) []telemetry.Payload {
	return []telemetry.Payload{telemetry.IdlePayload{
		Status:    "idle",
		Uptime:    t.Timestamp(),
		FreeHeap:  t.FreeHeap,
		Timestamp: t.Timestamp(),
	}}
}

// Continuous streams pulse-oximetry values and motion on every tick.
type Continuous struct {
	mode mode.OperatingMode
}

func (c *Continuous) Mode() mode.OperatingMode { return c.mode }

func (c *Continuous) Report(t Tick, r sensors.Reading) []telemetry.Payload {
	hr := telemetry.Round(r.HeartRate, 1)
	spo2 := telemetry.Round(r.SpO2, 1)
	if c.mode == mode.RawData {
		return []telemetry.Payload{telemetry.RawPayload{
			HeartRate: hr,
			SpO2:      spo2,
			IR:        r.IR,
			Red:       r.Red,
			AX:        telemetry.Round(r.Accel.X, 3),
			AY:        telemetry.Round(r.Accel.Y, 3),
			AZ:        telemetry.Round(r.Accel.Z, 3),
			Timestamp: t.Timestamp(),
		}}
	}
	return []telemetry.Payload{telemetry.VitalsPayload{
		HeartRate: hr,
		SpO2:      spo2,
		AX:        telemetry.Round(r.Accel.X, 2),
		AY:        telemetry.Round(r.Accel.Y, 2),
		AZ:        telemetry.Round(r.Accel.Z, 2),
		Timestamp: t.Timestamp(),
	}}
}

// TemperatureMonitor runs die temperature conversions on its own cadence and
// reports the last completed value.
type TemperatureMonitor struct {
	period    time.Duration
	inFlight  bool
	lastStart time.Time
	value     float64
}

func (m *TemperatureMonitor) Mode() mode.OperatingMode { return mode.Temperature }

// Observe starts a conversion when the sampling period has passed and none is
// in flight, and collects the result once the device reports it ready.
func (m *TemperatureMonitor) Observe(now time.Time, th sensors.Thermometer) error {
	if th == nil {
		return nil
	}
	if !m.inFlight && (m.lastStart.IsZero() || now.Sub(m.lastStart) > m.period) {
		if err := th.StartTemperatureSampling(); err != nil {
			return err
		}
		m.inFlight = true
		m.lastStart = now
	}
	if !m.inFlight {
		return nil
	}
	ready, err := th.TemperatureReady()
	if err != nil || !ready {
		return err
	}
	m.inFlight = false
	v, err := th.Temperature()
	if err != nil {
		return err
	}
	m.value = v
	return nil
}

// InFlight reports whether a conversion has been started and not collected.
func (m *TemperatureMonitor) InFlight() bool { return m.inFlight }

func (m *TemperatureMonitor) Report(t Tick, _ sensors.Reading) []telemetry.Payload {
	return []telemetry.Payload{telemetry.TemperaturePayload{
		Temperature: telemetry.Round(m.value, 3),
		Timestamp:   t.Timestamp(),
	}}
}
