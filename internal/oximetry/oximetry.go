// Package oximetry turns raw infrared/red photoplethysmography counts into a
// heart rate and an SpO2 estimate.
//
// The chain is: DC removal on both channels, FIR low-pass on the infrared AC
// component, zero-crossing beat detection with an amplitude window, and a
// ratio-of-ratios SpO2 computed over each beat interval.
package oximetry

import (
	"math"
	"time"
)

// Tunables. Amplitudes are in raw ADC counts.
const (
	dcAlpha      = 0.95
	minAmplitude = 20
	maxAmplitude = 5000
	minInterval  = 238 * time.Millisecond // 250 bpm
	maxInterval  = 6 * time.Second        // 10 bpm

	// NoBeatTimeout clears the outputs when the finger is removed.
	NoBeatTimeout = 2 * time.Second
)

// Processor is the pulse oximetry state. It is not safe for concurrent use.
type Processor struct {
	// OnBeat, when set, is called for every accepted beat.
	OnBeat func(t time.Time)

	ir, red dcFilter
	lp      fir

	prev    float64
	max     float64
	min     float64
	rising  bool
	last    time.Time
	seenAny bool

	window struct {
		irSq, redSq float64
		irDC, redDC float64
		n           int
	}

	interval movingAverage
	spo2     movingAverage
	hr       float64
}

// New returns a Processor ready for its first sample.
func New() *Processor {
	p := &Processor{}
	p.Reset()
	return p
}

// Reset forgets all signal history and zeroes the outputs.
func (p *Processor) Reset() {
	onBeat := p.OnBeat
	*p = Processor{OnBeat: onBeat}
	p.ir.alpha = dcAlpha
	p.red.alpha = dcAlpha
}

// HeartRate returns the smoothed heart rate in beats per minute, 0 when unknown.
func (p *Processor) HeartRate() float64 {
	return p.hr
}

// SpO2 returns the smoothed oxygen saturation in percent, 0 when unknown.
func (p *Processor) SpO2() float64 {
	return p.spo2.mean
}

// Feed consumes one sample taken at t and reports whether it completed a beat.
func (p *Processor) Feed(ir, red uint16, t time.Time) bool {
	irAC := p.ir.step(float64(ir))
	redAC := p.red.step(float64(red))

	p.window.irSq += irAC * irAC
	p.window.redSq += redAC * redAC
	p.window.irDC += p.ir.dc()
	p.window.redDC += p.red.dc()
	p.window.n++

	// Blood volume rises as the IR count falls; invert so systole is positive.
	ac := p.lp.lowPass(-irAC)
	beat := p.detect(ac)

	if p.seenAny && t.Sub(p.last) > NoBeatTimeout {
		p.hr = 0
		p.interval.reset()
		p.spo2.reset()
	}

	if !beat {
		return false
	}

	accepted := false
	if p.seenAny {
		iv := t.Sub(p.last)
		if iv >= minInterval && iv <= maxInterval {
			p.interval.add(float64(iv.Milliseconds()))
			p.hr = 60000 / p.interval.mean
			p.updateSpO2()
			accepted = true
		}
	}
	p.last = t
	p.seenAny = true
	p.clearWindow()

	if accepted && p.OnBeat != nil {
		p.OnBeat(t)
	}
	return accepted
}

func (p *Processor) detect(ac float64) bool {
	beat := false

	// Rising edge
	if p.prev < 0 && ac >= 0 {
		delta := p.max - p.min
		if delta > minAmplitude && delta < maxAmplitude {
			beat = true
		}
		p.rising = true
		p.max = 0
	}

	// Falling edge
	if p.prev > 0 && ac <= 0 {
		p.rising = false
		p.min = 0
	}

	if p.rising {
		if ac > p.max {
			p.max = ac
		}
	} else if ac < p.min {
		p.min = ac
	}

	p.prev = ac
	return beat
}

func (p *Processor) updateSpO2() {
	w := p.window
	if w.n == 0 || w.irDC <= 0 || w.redDC <= 0 || w.irSq == 0 {
		return
	}
	n := float64(w.n)
	irRatio := math.Sqrt(w.irSq/n) / (w.irDC / n)
	redRatio := math.Sqrt(w.redSq/n) / (w.redDC / n)
	r := redRatio / irRatio

	spo2 := 104 - 17*r
	if spo2 <= 0 {
		return
	}
	if spo2 > 100 {
		spo2 = 100
	}
	p.spo2.add(spo2)
}

func (p *Processor) clearWindow() {
	p.window.irSq, p.window.redSq = 0, 0
	p.window.irDC, p.window.redDC = 0, 0
	p.window.n = 0
}
