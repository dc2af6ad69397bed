// Package quality is the six-feature linear model that labels a vital-sign
// sample as good or poor.
package quality

// Features is the classifier input.
type Features struct {
	HeartRate      float64
	SpO2           float64
	AccelMag       float64
	HeartRateDelta float64
	SpO2Delta      float64
	AccelMagDelta  float64
}

func (f Features) vector() [6]float64 {
	return [6]float64{f.HeartRate, f.SpO2, f.AccelMag, f.HeartRateDelta, f.SpO2Delta, f.AccelMagDelta}
}

// Model is a standardized affine classifier.
type Model struct {
	Mean      [6]float64
	Scale     [6]float64
	Weights   [6]float64
	Intercept float64
}

// Default is the model trained on labelled recordings from the sensor board.
var Default = Model{
	Mean:      [6]float64{-1.251, 27.550, 0.992, 2.451, 0.863, 0.051},
	Scale:     [6]float64{11.711, 17.091, 0.111, 5.410, 8.871, 0.127},
	Weights:   [6]float64{2.759, 3.931, 0.169, -1.874, -2.038, -4.785},
	Intercept: 2.335,
}

// Score returns the decision value; positive means good.
func (m Model) Score(f Features) float64 {
	z := m.Intercept
	for i, x := range f.vector() {
		if m.Scale[i] == 0 {
			continue
		}
		z += m.Weights[i] * (x - m.Mean[i]) / m.Scale[i]
	}
	return z
}

// Predict reports whether f is a good-quality sample.
func (m Model) Predict(f Features) bool {
	return m.Score(f) > 0
}
