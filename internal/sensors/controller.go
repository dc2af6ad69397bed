// Package sensors owns the lifecycle of the node's sensors: the optical
// transceiver in one of its two personalities, the always-on motion sensor and
// the force-sensing resistor.
package sensors

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/bus"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/max30100"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/oximetry"
)

// ErrPrimeFailed is returned when the optical sensor could not be primed
// within the configured number of attempts.
var ErrPrimeFailed = errors.New("sensors: optical sensor priming failed")

// opticalSamplePeriod matches the SR100 sampling rate set by Begin.
const opticalSamplePeriod = 10 * time.Millisecond

// Options tunes priming and memory checks.
type Options struct {
	OpticalAddr     uint16
	LEDCurrent      max30100.LEDCurrent
	PrimeAttempts   int
	DummyReads      int
	ReadInterval    time.Duration
	PrimeTimeout    time.Duration
	RetryDelay      time.Duration
	PulseOxSettle   time.Duration
	MemoryWarnBytes uint64

	Sleep      func(time.Duration)
	Now        func() time.Time
	FreeMemory func() uint64
}

// Needs selects the secondary sensors read by Sample.
type Needs struct {
	Motion bool
	Force  bool
}

// Reading is the latest value of every sensor. Sources that are not live
// keep their previous value.
type Reading struct {
	HeartRate float64
	SpO2      float64
	IR        uint16
	Red       uint16
	Accel     Acceleration
	FSR       uint16
}

// Controller owns the optical handle slot. At most one Optical is live, and
// replacing it always goes through a full bus reset.
type Controller struct {
	bus     *bus.Manager
	optical Optical
	motion  Motion
	force   *ForceSensor
	opts    Options
	log     *logrus.Entry

	last Reading
}

// NewController wires the controller. motion and force may be nil.
func NewController(b *bus.Manager, motion Motion, force *ForceSensor, opts Options, logger *logrus.Logger) *Controller {
	if opts.PrimeAttempts < 1 {
		opts.PrimeAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FreeMemory == nil {
		opts.FreeMemory = FreeMemory
	}
	return &Controller{
		bus:    b,
		motion: motion,
		force:  force,
		opts:   opts,
		log:    logger.WithField("component", "sensors"),
	}
}

// Optical returns the live optical handle, nil when none is.
func (c *Controller) Optical() Optical {
	return c.optical
}

// Live reports which optical personality is live.
func (c *Controller) Live() Variant {
	if c.optical == nil {
		return NoOptical
	}
	return c.optical.Variant()
}

// Thermometer returns the raw personality when it is live.
func (c *Controller) Thermometer() Thermometer {
	if raw, ok := c.optical.(*RawOptical); ok {
		return raw
	}
	return nil
}

// Reset tears down the optical handle and resets the bus.
func (c *Controller) Reset() {
	c.bus.Reset()
	c.optical = nil
}

// Prime brings up the requested optical personality. It always starts from a
// bus reset, even when v is already live, and retries with a reset between
// attempts. On failure no optical handle is live.
func (c *Controller) Prime(v Variant) error {
	if v == NoOptical {
		c.Reset()
		return nil
	}

	c.CheckMemory(fmt.Sprintf("before %s init", v))
	c.Reset()
	if v == PulseOximetryVariant {
		c.opts.Sleep(c.opts.PulseOxSettle)
	}

	var err error
	for attempt := 1; attempt <= c.opts.PrimeAttempts; attempt++ {
		var h Optical
		h, err = c.prime(v)
		if err == nil {
			c.optical = h
			c.bus.Acquire(h.device())
			c.log.WithField("attempt", attempt).Infof("%s optical sensor ready", v)
			c.CheckMemory(fmt.Sprintf("after %s init", v))
			return nil
		}

		c.log.WithField("attempt", attempt).Warnf("priming %s optical sensor: %v", v, err)
		if attempt < c.opts.PrimeAttempts {
			c.opts.Sleep(c.opts.RetryDelay)
		}
		c.Reset()
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrPrimeFailed, v, c.opts.PrimeAttempts, err)
}

func (c *Controller) prime(v Variant) (Optical, error) {
	dev := max30100.New(c.bus, c.opts.OpticalAddr)

	if v == RawVariant {
		if err := dev.ResetFIFO(); err != nil {
			return nil, fmt.Errorf("reset FIFO: %w", err)
		}
	}
	if err := dev.Shutdown(); err != nil {
		return nil, fmt.Errorf("shutdown: %w", err)
	}
	if err := dev.Begin(); err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	if err := dev.SetMode(max30100.ModeSpO2HR); err != nil {
		return nil, fmt.Errorf("set mode: %w", err)
	}
	if err := dev.SetLEDsCurrent(c.opts.LEDCurrent, c.opts.LEDCurrent); err != nil {
		return nil, fmt.Errorf("set LED current: %w", err)
	}
	if err := dev.SetHighResMode(true); err != nil {
		return nil, fmt.Errorf("set high resolution: %w", err)
	}
	if err := dev.Resume(); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	// Let the analog front end settle before trusting any sample.
	start := c.opts.Now()
	for i := 0; i < c.opts.DummyReads; i++ {
		if _, err := dev.Update(); err != nil {
			return nil, fmt.Errorf("dummy read %d: %w", i+1, err)
		}
		c.opts.Sleep(c.opts.ReadInterval)
		if c.opts.PrimeTimeout > 0 && c.opts.Now().Sub(start) > c.opts.PrimeTimeout {
			return nil, fmt.Errorf("priming timeout after %d reads", i+1)
		}
	}

	part, err := dev.PartID()
	if err != nil {
		return nil, fmt.Errorf("liveness check: %w", err)
	}
	if part != max30100.PartID {
		return nil, max30100.ErrNotDevice
	}

	if v == RawVariant {
		return &RawOptical{dev: dev}, nil
	}
	proc := oximetry.New()
	proc.OnBeat = func(time.Time) {
		c.log.Debug("beat detected")
	}
	return &PulseOximeter{dev: dev, proc: proc, period: opticalSamplePeriod}, nil
}

// InitializeMotion (re)initialises the motion sensor. Failures are logged only.
func (c *Controller) InitializeMotion() {
	if c.motion == nil {
		return
	}
	if err := c.motion.Init(); err != nil {
		c.log.Warnf("motion sensor init: %v", err)
		return
	}
	c.log.Debug("motion sensor initialized")
}

// Poll services the live optical sensor. It must run often enough to keep the
// FIFO from overflowing.
func (c *Controller) Poll(now time.Time) {
	if c.optical == nil {
		return
	}
	if err := c.optical.poll(now); err != nil {
		c.log.Debugf("optical poll: %v", err)
	}
}

// Sample returns the latest reading, refreshing the sources in needs.
func (c *Controller) Sample(needs Needs) Reading {
	switch o := c.optical.(type) {
	case *PulseOximeter:
		c.last.HeartRate = o.HeartRate()
		c.last.SpO2 = o.SpO2()
		raw := o.Raw()
		c.last.IR, c.last.Red = raw.IR, raw.Red
	case *RawOptical:
		raw := o.Raw()
		c.last.IR, c.last.Red = raw.IR, raw.Red
	}

	if needs.Motion && c.motion != nil {
		if a, err := c.motion.Read(); err != nil {
			c.log.Debugf("motion read: %v", err)
		} else {
			c.last.Accel = a
		}
	}
	if needs.Force && c.force != nil {
		if v, err := c.force.Read(); err != nil {
			c.log.Debugf("force read: %v", err)
		} else {
			c.last.FSR = v
		}
	}
	return c.last
}

// FreeMemory returns the heap bytes reserved from the OS but not in use.
func FreeMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapSys - m.HeapInuse
}

// Memory returns the current free memory figure.
func (c *Controller) Memory() uint64 {
	return c.opts.FreeMemory()
}

// CheckMemory logs the free memory and warns when it is low. It is advisory and
// never stops the caller.
func (c *Controller) CheckMemory(op string) bool {
	free := c.opts.FreeMemory()
	c.log.WithField("free_bytes", free).Debugf("memory check: %s", op)
	if free < c.opts.MemoryWarnBytes {
		c.log.WithField("free_bytes", free).Warnf("low memory: %s", op)
		return false
	}
	return true
}
