package sensors

import (
	"time"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/max30100"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/oximetry"
)

// Variant names one of the two personalities of the optical transceiver.
type Variant int

const (
	NoOptical Variant = iota
	RawVariant
	PulseOximetryVariant
)

func (v Variant) String() string {
	switch v {
	case RawVariant:
		return "raw"
	case PulseOximetryVariant:
		return "pulse-oximetry"
	default:
		return "none"
	}
}

// Optical is a live optical sensor handle. The only implementations are
// *RawOptical and *PulseOximeter, and a Controller holds at most one.
type Optical interface {
	Variant() Variant
	// Raw returns the last infrared/red counts read from the FIFO.
	Raw() max30100.Sample
	poll(now time.Time) error
	device() *max30100.Dev
}

// Thermometer is the die temperature interface of the raw personality.
type Thermometer interface {
	StartTemperatureSampling() error
	TemperatureReady() (bool, error)
	Temperature() (float64, error)
}

// RawOptical exposes channel counts and temperature sampling.
type RawOptical struct {
	dev *max30100.Dev
}

func (r *RawOptical) Variant() Variant { return RawVariant }

func (r *RawOptical) Raw() max30100.Sample { return r.dev.RawValues() }

func (r *RawOptical) device() *max30100.Dev { return r.dev }

func (r *RawOptical) poll(time.Time) error {
	_, err := r.dev.Update()
	return err
}

func (r *RawOptical) StartTemperatureSampling() error {
	return r.dev.StartTemperatureSampling()
}

func (r *RawOptical) TemperatureReady() (bool, error) {
	return r.dev.TemperatureReady()
}

func (r *RawOptical) Temperature() (float64, error) {
	return r.dev.Temperature()
}

// PulseOximeter derives heart rate and SpO2 from the FIFO stream.
type PulseOximeter struct {
	dev    *max30100.Dev
	proc   *oximetry.Processor
	period time.Duration
}

func (p *PulseOximeter) Variant() Variant { return PulseOximetryVariant }

func (p *PulseOximeter) Raw() max30100.Sample { return p.dev.RawValues() }

func (p *PulseOximeter) device() *max30100.Dev { return p.dev }

// HeartRate returns beats per minute, 0 until a stable pulse is seen.
func (p *PulseOximeter) HeartRate() float64 { return p.proc.HeartRate() }

// SpO2 returns the oxygen saturation percentage, 0 until known.
func (p *PulseOximeter) SpO2() float64 { return p.proc.SpO2() }

// poll drains the FIFO. Samples arrive in a burst, so each is stamped back from
// now at the configured sample period.
func (p *PulseOximeter) poll(now time.Time) error {
	samples, err := p.dev.Update()
	if err != nil {
		return err
	}
	n := len(samples)
	for i, s := range samples {
		p.proc.Feed(s.IR, s.Red, now.Add(-time.Duration(n-1-i)*p.period))
	}
	return nil
}
