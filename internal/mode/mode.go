// Package mode defines the node's operating modes and what each one needs.
package mode

import (
	"time"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
)

// OperatingMode is the acquisition regime the node is in.
type OperatingMode int

const (
	Idle OperatingMode = iota
	HeartRateSpO2
	Temperature
	ForceTest
	DistanceTest
	QualityAssessment
	RawData
)

var names = [...]string{
	Idle:              "IDLE",
	HeartRateSpO2:     "HR_SPO2",
	Temperature:       "TEMPERATURE",
	ForceTest:         "FORCE_TEST",
	DistanceTest:      "DISTANCE_TEST",
	QualityAssessment: "QUALITY",
	RawData:           "RAW_DATA",
}

// String returns the wire name of m.
func (m OperatingMode) String() string {
	if m < 0 || int(m) >= len(names) {
		return names[Idle]
	}
	return names[m]
}

// Parse resolves a wire name. Unknown names resolve to Idle.
func Parse(name string) OperatingMode {
	for m, n := range names {
		if n == name {
			return OperatingMode(m)
		}
	}
	return Idle
}

// All returns every mode in wire order.
func All() []OperatingMode {
	out := make([]OperatingMode, len(names))
	for i := range names {
		out[i] = OperatingMode(i)
	}
	return out
}

// Requirements is the fixed sensor set and report cadence of a mode.
type Requirements struct {
	Optical sensors.Variant
	Motion  bool
	Force   bool
	Period  time.Duration
}

// Needs returns the secondary sensors read on every report.
func (r Requirements) Needs() sensors.Needs {
	return sensors.Needs{Motion: r.Motion, Force: r.Force}
}

var table = [...]Requirements{
	Idle:              {Optical: sensors.NoOptical, Period: 2000 * time.Millisecond},
	HeartRateSpO2:     {Optical: sensors.PulseOximetryVariant, Motion: true, Period: 500 * time.Millisecond},
	Temperature:       {Optical: sensors.RawVariant, Period: 500 * time.Millisecond},
	ForceTest:         {Optical: sensors.RawVariant, Force: true, Period: 100 * time.Millisecond},
	DistanceTest:      {Optical: sensors.RawVariant, Period: 100 * time.Millisecond},
	QualityAssessment: {Optical: sensors.PulseOximetryVariant, Motion: true, Period: 1000 * time.Millisecond},
	RawData:           {Optical: sensors.PulseOximetryVariant, Motion: true, Period: 500 * time.Millisecond},
}

// For returns the requirements of m. A non-zero unified period replaces the
// per-mode cadence for every mode.
func For(m OperatingMode, unified time.Duration) Requirements {
	if m < 0 || int(m) >= len(table) {
		m = Idle
	}
	r := table[m]
	if unified > 0 {
		r.Period = unified
	}
	return r
}
