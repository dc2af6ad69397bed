// Package max30100 is a register-level driver for the MAX30100 pulse
// oximetry and heart-rate sensor.
//
// The driver never owns the bus: it takes an i2c.Bus so the caller can reset
// or reopen the bus underneath it.
package max30100

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// ErrNotDevice is returned by Begin when the part ID does not match a MAX30100.
var ErrNotDevice = errors.New("max30100: part ID does not match (0x11)")

// Sample is one FIFO entry.
type Sample struct {
	IR  uint16
	Red uint16
}

// Dev is a MAX30100 on an I2C bus.
type Dev struct {
	dev  i2c.Dev
	last Sample
}

// New returns a handle for the part at addr (0 means Addr). No bus traffic is
// generated until Begin.
func New(bus i2c.Bus, addr uint16) *Dev {
	if addr == 0 {
		addr = Addr
	}
	return &Dev{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (d *Dev) String() string {
	return fmt.Sprintf("MAX30100{%s}", &d.dev)
}

// Read reads a single byte from a register.
func (d *Dev) Read(reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := d.dev.Tx([]byte{reg}, b); err != nil {
		return 0, fmt.Errorf("max30100: could not read register %#02x: %w", reg, err)
	}
	return b[0], nil
}

// ReadBytes reads n bytes starting at reg.
func (d *Dev) ReadBytes(reg byte, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := d.dev.Tx([]byte{reg}, b); err != nil {
		return nil, fmt.Errorf("max30100: could not read %d bytes: %w", n, err)
	}
	return b, nil
}

// Write writes a byte to a register.
func (d *Dev) Write(reg, data byte) error {
	if err := d.dev.Tx([]byte{reg, data}, nil); err != nil {
		return fmt.Errorf("max30100: could not write register %#02x: %w", reg, err)
	}
	return nil
}

func (d *Dev) update(reg, mask, bits byte) error {
	v, err := d.Read(reg)
	if err != nil {
		return err
	}
	return d.Write(reg, v&^mask|bits&mask)
}

// PartID returns the part identification register.
func (d *Dev) PartID() (byte, error) {
	return d.Read(RegPartID)
}

// Begin checks the part ID and applies the power-on configuration: heart-rate
// only mode, 1600us pulses, 100 samples/s, full LED current and high
// resolution.
func (d *Dev) Begin() error {
	part, err := d.PartID()
	if err != nil {
		return err
	}
	if part != PartID {
		return ErrNotDevice
	}
	if err := d.SetMode(ModeHROnly); err != nil {
		return err
	}
	if err := d.SetLEDsPulseWidth(PW1600); err != nil {
		return err
	}
	if err := d.SetSamplingRate(SR100); err != nil {
		return err
	}
	if err := d.SetLEDsCurrent(LED50, LED50); err != nil {
		return err
	}
	return d.SetHighResMode(true)
}

// SetMode selects the LED mode, keeping the shutdown and temperature bits.
func (d *Dev) SetMode(m Mode) error {
	return d.update(RegModeConfig, modeMask, byte(m))
}

func (d *Dev) SetLEDsPulseWidth(pw PulseWidth) error {
	return d.update(RegSpO2Config, spo2PulseMask, byte(pw))
}

func (d *Dev) SetSamplingRate(sr SamplingRate) error {
	return d.update(RegSpO2Config, spo2RateMask, byte(sr)<<spo2RateShift)
}

// SetLEDsCurrent sets both LED pulse amplitudes.
func (d *Dev) SetLEDsCurrent(ir, red LEDCurrent) error {
	return d.Write(RegLEDConfig, byte(red&0x0F)<<ledRedShift|byte(ir&0x0F))
}

func (d *Dev) SetHighResMode(enabled bool) error {
	var bits byte
	if enabled {
		bits = spo2HighRes
	}
	return d.update(RegSpO2Config, spo2HighRes, bits)
}

// ResetFIFO clears the FIFO pointers and overflow counter.
func (d *Dev) ResetFIFO() error {
	for _, reg := range []byte{RegFIFOWrPtr, RegOvfCounter, RegFIFORdPtr} {
		if err := d.Write(reg, 0); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown puts the part into power-save mode. Registers keep their values.
func (d *Dev) Shutdown() error {
	return d.update(RegModeConfig, ModeShutdown, ModeShutdown)
}

// Resume wakes the part from power-save mode.
func (d *Dev) Resume() error {
	return d.update(RegModeConfig, ModeShutdown, 0)
}

// PowerDown is Shutdown under the name the bus manager expects.
func (d *Dev) PowerDown() error {
	return d.Shutdown()
}

// Update drains the FIFO and returns the samples read, oldest first.
func (d *Dev) Update() ([]Sample, error) {
	wr, err := d.Read(RegFIFOWrPtr)
	if err != nil {
		return nil, err
	}
	rd, err := d.Read(RegFIFORdPtr)
	if err != nil {
		return nil, err
	}
	n := int((wr - rd) & fifoPointerMask)
	if n == 0 {
		// Equal pointers also mean a full FIFO once samples start being lost.
		ovf, err := d.Read(RegOvfCounter)
		if err != nil {
			return nil, err
		}
		if ovf == 0 {
			return nil, nil
		}
		n = fifoDepth
	}

	buf, err := d.ReadBytes(RegFIFOData, n*bytesPerSample)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, n)
	for i := range samples {
		b := buf[i*bytesPerSample:]
		samples[i] = Sample{
			IR:  uint16(b[0])<<8 | uint16(b[1]),
			Red: uint16(b[2])<<8 | uint16(b[3]),
		}
	}
	d.last = samples[n-1]
	return samples, nil
}

// RawValues returns the most recent sample seen by Update.
func (d *Dev) RawValues() Sample {
	return d.last
}

// StartTemperatureSampling starts a one-shot die temperature conversion.
func (d *Dev) StartTemperatureSampling() error {
	return d.update(RegModeConfig, ModeTempEn, ModeTempEn)
}

// TemperatureReady reports whether the last conversion has completed.
func (d *Dev) TemperatureReady() (bool, error) {
	v, err := d.Read(RegModeConfig)
	if err != nil {
		return false, err
	}
	return v&ModeTempEn == 0, nil
}

// Temperature returns the last converted die temperature in degrees Celsius.
func (d *Dev) Temperature() (float64, error) {
	i, err := d.Read(RegTempInt)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not read integer part of temperature: %w", err)
	}
	f, err := d.Read(RegTempFrac)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not read fractional part of temperature: %w", err)
	}
	return float64(int8(i)) + float64(f&0x0F)*temperatureScale, nil
}
