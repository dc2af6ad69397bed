package acquisition

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

const (
	// WaitingLabel is reported by FORCE_TEST when no session is collecting.
	WaitingLabel = "waiting"
	// NoTarget is reported by DISTANCE_TEST before the first START.
	NoTarget = "none"
)

// ForceSession is a fixed-duration labelled collection run.
type ForceSession struct {
	Label    string
	Start    time.Time
	Duration time.Duration
}

// Expired reports whether the collection duration has elapsed at now.
func (s ForceSession) Expired(now time.Time) bool {
	return now.Sub(s.Start) >= s.Duration
}

// ForceTest pairs raw optical counts with the force sensor reading.
type ForceTest struct {
	duration time.Duration
	session  *ForceSession
	log      *logrus.Entry
}

func (f *ForceTest) Mode() mode.OperatingMode { return mode.ForceTest }

// StartLabel starts or replaces the session.
func (f *ForceTest) StartLabel(label string, now time.Time) {
	f.session = &ForceSession{Label: label, Start: now, Duration: f.duration}
	f.log.WithField("label", label).Info("force collection started")
}

func (f *ForceTest) Stop() {
	f.session = nil
}

// Session returns the active session or nil.
func (f *ForceTest) Session() *ForceSession {
	return f.session
}

// Label is the label that the next payload carries.
func (f *ForceTest) Label() string {
	if f.session == nil {
		return WaitingLabel
	}
	return f.session.Label
}

// Report emits one sample. The tick that finds the session expired closes it
// and emits nothing.
func (f *ForceTest) Report(t Tick, r sensors.Reading) []telemetry.Payload {
	if f.session != nil && f.session.Expired(t.Now) {
		f.log.WithField("label", f.session.Label).Info("force collection finished")
		f.session = nil
		return nil
	}
	return []telemetry.Payload{telemetry.ForcePayload{
		IR:         r.IR,
		Red:        r.Red,
		FSR:        r.FSR,
		Label:      f.Label(),
		Collecting: f.session != nil,
		Timestamp:  t.Timestamp(),
	}}
}

// DistanceSession accumulates optical counts since START.
type DistanceSession struct {
	Target     string
	DistanceMM int
	IRSum      uint64
	RedSum     uint64
	Samples    int
}

func (s *DistanceSession) add(ir, red uint16) {
	s.IRSum += uint64(ir)
	s.RedSum += uint64(red)
	s.Samples++
}

// Mean returns the average of every sample since the session started.
func (s *DistanceSession) Mean() (ir, red float64) {
	if s.Samples == 0 {
		return 0, 0
	}
	return float64(s.IRSum) / float64(s.Samples), float64(s.RedSum) / float64(s.Samples)
}

// DistanceTest measures optical counts against a target LED at a distance.
type DistanceTest struct {
	batch      int
	target     string
	distanceMM int
	session    *DistanceSession
	log        *logrus.Entry
}

func (d *DistanceTest) Mode() mode.OperatingMode { return mode.DistanceTest }

// StartTarget starts a new session, discarding any running one.
func (d *DistanceTest) StartTarget(target string, distanceMM int) {
	d.target, d.distanceMM = target, distanceMM
	d.session = &DistanceSession{Target: target, DistanceMM: distanceMM}
	d.log.WithFields(logrus.Fields{"target": target, "distance_mm": distanceMM}).Info("distance collection started")
}

// Stop closes the session. The target stays in the payloads until the next
// START.
func (d *DistanceTest) Stop() {
	d.session = nil
}

// Session returns the active session or nil.
func (d *DistanceTest) Session() *DistanceSession {
	return d.session
}

// Report emits the raw sample and, on every batch boundary, the running
// average since START.
func (d *DistanceTest) Report(t Tick, r sensors.Reading) []telemetry.Payload {
	out := []telemetry.Payload{telemetry.DistancePayload{
		IR:         r.IR,
		Red:        r.Red,
		LED:        d.target,
		DistanceMM: d.distanceMM,
		Collecting: d.session != nil,
		Timestamp:  t.Timestamp(),
	}}
	if d.session == nil {
		return out
	}

	d.session.add(r.IR, r.Red)
	if d.session.Samples%d.batch != 0 {
		return out
	}
	ir, red := d.session.Mean()
	return append(out, telemetry.DistanceAveragePayload{
		Type:       "average",
		LED:        d.target,
		DistanceMM: d.distanceMM,
		AvgIR:      telemetry.Round(ir, 2),
		AvgRed:     telemetry.Round(red, 2),
		Samples:    d.session.Samples,
		Timestamp:  t.Timestamp(),
	})
}
