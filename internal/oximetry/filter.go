package oximetry

// Half of a symmetric 32-tap low-pass kernel; firC[11] is the centre tap.
var firC = []float64{21.5, 40.125, 72.375, 115.875, 170.0, 232.25, 298.75, 364.5, 423.875, 471.0, 501.5, 512.0}

const firSize = 32

// firGain is the DC gain of the kernel, used to keep the output in input units.
const firGain = 5935.5

type fir struct {
	buffer [firSize]float64
	idx    int
}

// lowPass applies the FIR filter to one new input.
func (f *fir) lowPass(delta float64) float64 {
	f.buffer[f.idx] = delta

	z := firC[11] * f.buffer[(f.idx-11)&0x1F]

	for i := 0; i < 11; i++ {
		z += firC[i] * (f.buffer[(f.idx-i)&0x1F] + f.buffer[(f.idx-(firSize-10)+i)&0x1F])
	}

	f.idx++
	f.idx %= firSize

	return z / firGain
}

// dcFilter is a single-pole DC blocker. It also exposes its running estimate of
// the removed DC level, which the ratio-of-ratios needs.
type dcFilter struct {
	alpha  float64
	w      float64
	primed bool
}

func (d *dcFilter) step(x float64) float64 {
	if !d.primed {
		// start in steady state so the first outputs are not a huge step
		d.w = x / (1 - d.alpha)
		d.primed = true
	}
	prev := d.w
	d.w = x + d.alpha*d.w
	return d.w - prev
}

func (d *dcFilter) dc() float64 {
	return d.w * (1 - d.alpha)
}

// movingAverage stores an estimated moving average of the last 4 values.
type movingAverage struct {
	mean float64
}

func (m *movingAverage) add(n float64) {
	// if first measurement, pre-fill values.
	if m.mean == 0 {
		m.mean = n
		return
	}
	m.mean += (n - m.mean) / 4
}

func (m *movingAverage) reset() {
	m.mean = 0
}
