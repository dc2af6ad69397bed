package sensors

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// AnalogInput is one single-ended ADC channel.
type AnalogInput interface {
	Read() (analog.Sample, error)
}

// AnalogFrontEnd is the ADS1115 that digitises the accelerometer axes and the
// force-sensing resistor.
type AnalogFrontEnd struct {
	adc      *ads1x15.Dev
	maxVolts physic.ElectricPotential
	rate     physic.Frequency
}

var adsChannels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// NewAnalogFrontEnd binds an ADS1115 at addr. The bus is normally the shared
// bus.Manager, so the handle stays valid across bus resets.
func NewAnalogFrontEnd(bus i2c.Bus, addr uint16, maxMillivolts int) (*AnalogFrontEnd, error) {
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: addr})
	if err != nil {
		return nil, fmt.Errorf("ADS1115 at %#02x: %w", addr, err)
	}
	return &AnalogFrontEnd{
		adc:      adc,
		maxVolts: physic.ElectricPotential(maxMillivolts) * physic.MilliVolt,
		rate:     250 * physic.Hertz,
	}, nil
}

// Channel opens single-ended channel ch (0-3).
func (a *AnalogFrontEnd) Channel(ch int) (AnalogInput, error) {
	if ch < 0 || ch >= len(adsChannels) {
		return nil, fmt.Errorf("ADS1115: invalid channel %d", ch)
	}
	pin, err := a.adc.PinForChannel(adsChannels[ch], a.maxVolts, a.rate, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("ADS1115 channel %d: %w", ch, err)
	}
	return pin, nil
}

// Halt stops any running conversion.
func (a *AnalogFrontEnd) Halt() error {
	return a.adc.Halt()
}

func volts(s analog.Sample) float64 {
	return float64(s.V) / float64(physic.Volt)
}

// ForceSensor reads the force-sensing resistor divider.
type ForceSensor struct {
	in AnalogInput
}

func NewForceSensor(in AnalogInput) *ForceSensor {
	return &ForceSensor{in: in}
}

// Read returns the raw conversion clipped to the uint16 range.
func (f *ForceSensor) Read() (uint16, error) {
	s, err := f.in.Read()
	if err != nil {
		return 0, fmt.Errorf("FSR read: %w", err)
	}
	switch {
	case s.Raw < 0:
		return 0, nil
	case s.Raw > math.MaxUint16:
		return math.MaxUint16, nil
	}
	return uint16(s.Raw), nil
}
