package sensors

import (
	"fmt"
	"math"
)

// Acceleration is a three-axis sample in g.
type Acceleration struct {
	X, Y, Z float64
}

// Magnitude returns the Euclidean norm of the sample.
func (a Acceleration) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// Motion is the always-on motion sensor.
type Motion interface {
	Init() error
	Read() (Acceleration, error)
}

// ADXL335 is the analog accelerometer read through three ADC channels.
type ADXL335 struct {
	axes        [3]AnalogInput
	zero        [3]float64 // volts at 0 g
	sensitivity float64    // volts per g
}

// NewADXL335 builds the driver from its three axis inputs.
func NewADXL335(x, y, z AnalogInput, zero [3]float64, sensitivity float64) *ADXL335 {
	return &ADXL335{
		axes:        [3]AnalogInput{x, y, z},
		zero:        zero,
		sensitivity: sensitivity,
	}
}

// Init takes one reading to confirm the ADC answers.
func (a *ADXL335) Init() error {
	_, err := a.Read()
	return err
}

func (a *ADXL335) Read() (Acceleration, error) {
	var g [3]float64
	for i, in := range a.axes {
		s, err := in.Read()
		if err != nil {
			return Acceleration{}, fmt.Errorf("ADXL335 axis %c: %w", "XYZ"[i], err)
		}
		g[i] = (volts(s) - a.zero[i]) / a.sensitivity
	}
	return Acceleration{X: g[0], Y: g[1], Z: g[2]}, nil
}
