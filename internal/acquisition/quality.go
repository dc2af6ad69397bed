package acquisition

import (
	"math"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/mode"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/quality"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/sensors"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

// QualityHistory is the previous sample seen in QUALITY mode.
type QualityHistory struct {
	HeartRate      float64
	SpO2           float64
	AccelMagnitude float64
}

// QualityAssessment classifies each sample against the one before it.
type QualityAssessment struct {
	model   quality.Model
	history QualityHistory
	valid   bool
	good    int
	total   int
}

func (q *QualityAssessment) Mode() mode.OperatingMode { return mode.QualityAssessment }

// History returns the previous sample and whether one has been seen.
func (q *QualityAssessment) History() (QualityHistory, bool) {
	return q.history, q.valid
}

// Assess classifies r and makes it the new history. The first sample after
// mode entry has nothing to compare with and is good.
func (q *QualityAssessment) Assess(r sensors.Reading) bool {
	cur := QualityHistory{HeartRate: r.HeartRate, SpO2: r.SpO2, AccelMagnitude: r.Accel.Magnitude()}
	prev, seen := q.history, q.valid
	q.history, q.valid = cur, true
	if !seen {
		return true
	}
	return q.model.Predict(quality.Features{
		HeartRate:      cur.HeartRate,
		SpO2:           cur.SpO2,
		AccelMag:       cur.AccelMagnitude,
		HeartRateDelta: math.Abs(cur.HeartRate - prev.HeartRate),
		SpO2Delta:      math.Abs(cur.SpO2 - prev.SpO2),
		AccelMagDelta:  math.Abs(cur.AccelMagnitude - prev.AccelMagnitude),
	})
}

// Percent is the share of good samples since mode entry.
func (q *QualityAssessment) Percent() float64 {
	if q.total == 0 {
		return 0
	}
	return float64(q.good) / float64(q.total) * 100
}

func (q *QualityAssessment) Report(t Tick, r sensors.Reading) []telemetry.Payload {
	good := q.Assess(r)
	q.total++
	label := 0
	if good {
		q.good++
		label = 1
	}
	return []telemetry.Payload{telemetry.QualityPayload{
		HeartRate:      telemetry.Round(r.HeartRate, 1),
		SpO2:           telemetry.Round(r.SpO2, 1),
		AX:             telemetry.Round(r.Accel.X, 3),
		AY:             telemetry.Round(r.Accel.Y, 3),
		AZ:             telemetry.Round(r.Accel.Z, 3),
		Quality:        label,
		QualityPercent: telemetry.Round(q.Percent(), 1),
		AccelMag:       telemetry.Round(r.Accel.Magnitude(), 3),
		Timestamp:      t.Timestamp(),
	}}
}
