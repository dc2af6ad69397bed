package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredict(t *testing.T) {
	tests := []struct {
		name string
		in   Features
		want bool
	}{
		{
			name: "steady finger at rest",
			in:   Features{HeartRate: 75, SpO2: 97, AccelMag: 1.0},
			want: true,
		},
		{
			name: "no finger",
			in:   Features{HeartRate: 0, SpO2: 0, AccelMag: 1.0},
			want: false,
		},
		{
			name: "large motion artefact",
			in:   Features{HeartRate: 75, SpO2: 97, AccelMag: 2.5, AccelMagDelta: 2.0},
			want: false,
		},
		{
			name: "heart rate jumped between samples",
			in:   Features{HeartRate: 140, SpO2: 95, AccelMag: 1.0, HeartRateDelta: 200, SpO2Delta: 10},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Default.Predict(tt.in))
		})
	}
}

func TestScore_ZeroDeltasIsDeterministic(t *testing.T) {
	f := Features{HeartRate: 72, SpO2: 96, AccelMag: 1.01}

	want := Default.Intercept
	x := [6]float64{72, 96, 1.01, 0, 0, 0}
	for i := range x {
		want += Default.Weights[i] * (x[i] - Default.Mean[i]) / Default.Scale[i]
	}

	assert.InDelta(t, want, Default.Score(f), 1e-12)
	assert.Equal(t, Default.Score(f), Default.Score(f))
}

func TestScore_ZeroScaleIgnored(t *testing.T) {
	m := Model{Weights: [6]float64{1, 1, 1, 1, 1, 1}, Scale: [6]float64{1}, Intercept: -0.5}

	assert.InDelta(t, 0.5, m.Score(Features{HeartRate: 1, SpO2: 100}), 1e-12)
	assert.True(t, m.Predict(Features{HeartRate: 1}))
	assert.False(t, m.Predict(Features{}))
}
