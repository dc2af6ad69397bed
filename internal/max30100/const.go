package max30100

// Addr is the fixed I2C address of the MAX30100.
const Addr = 0x57

// PartID is the value of RegPartID on a MAX30100.
const PartID = 0x11

// Registers
const (
	RegIntStatus  = 0x00
	RegIntEnable  = 0x01
	RegFIFOWrPtr  = 0x02
	RegOvfCounter = 0x03
	RegFIFORdPtr  = 0x04
	RegFIFOData   = 0x05
	RegModeConfig = 0x06
	RegSpO2Config = 0x07
	RegLEDConfig  = 0x09
	RegTempInt    = 0x16
	RegTempFrac   = 0x17
	RegRevID      = 0xFE
	RegPartID     = 0xFF
)

// MODE_CONFIG bits
const (
	ModeShutdown = 0x80
	ModeReset    = 0x40
	ModeTempEn   = 0x08
	modeMask     = 0x07
)

// SPO2_CONFIG bits
const (
	spo2HighRes      = 0x40
	spo2RateMask     = 0x1C
	spo2RateShift    = 2
	spo2PulseMask    = 0x03
	bytesPerSample   = 4
	fifoPointerMask  = 0x0F
	fifoDepth        = 16
	ledRedShift      = 4
	temperatureScale = 0.0625
)

// Mode selects which LEDs the part drives.
type Mode byte

const (
	ModeHROnly Mode = 0x02
	ModeSpO2HR Mode = 0x03
)

// SamplingRate is the SPO2_CONFIG sample rate field.
type SamplingRate byte

const (
	SR50 SamplingRate = iota
	SR100
	SR167
	SR200
	SR400
	SR600
	SR800
	SR1000
)

// PulseWidth is the LED pulse width, which also sets the ADC resolution.
type PulseWidth byte

const (
	PW200  PulseWidth = iota // 13 bit
	PW400                    // 14 bit
	PW800                    // 15 bit
	PW1600                   // 16 bit
)

// LEDCurrent is a 4-bit LED pulse amplitude code.
type LEDCurrent byte

const (
	LED0 LEDCurrent = iota
	LED4_4
	LED7_6
	LED11
	LED14_2
	LED17_4
	LED20_8
	LED24
	LED27_1
	LED30_6
	LED33_8
	LED37
	LED40_2
	LED43_6
	LED46_8
	LED50
)

var ledMilliamps = [...]float64{0, 4.4, 7.6, 11, 14.2, 17.4, 20.8, 24, 27.1, 30.6, 33.8, 37, 40.2, 43.6, 46.8, 50}

// Milliamps returns the nominal drive current of c.
func (c LEDCurrent) Milliamps() float64 {
	if int(c) >= len(ledMilliamps) {
		return ledMilliamps[len(ledMilliamps)-1]
	}
	return ledMilliamps[c]
}

// CurrentFor returns the highest code whose current does not exceed mA.
func CurrentFor(mA float64) LEDCurrent {
	code := LED0
	for i, v := range ledMilliamps {
		if v <= mA {
			code = LEDCurrent(i)
		}
	}
	return code
}
