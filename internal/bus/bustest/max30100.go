package bustest

import "fmt"

const (
	regIntStatus = 0x00
	regFIFOWr    = 0x02
	regOvf       = 0x03
	regFIFORd    = 0x04
	regFIFOData  = 0x05
	regMode      = 0x06
	regSpO2      = 0x07
	regLED       = 0x09
	regTempInt   = 0x16
	regTempFrac  = 0x17
	regRev       = 0xFE
	regPart      = 0xFF

	modeShutdown = 0x80
	modeReset    = 0x40
	modeTempEn   = 0x08
	modeMask     = 0x07

	fifoDepth = 16
)

// Signal produces the n-th optical sample.
type Signal func(n int) (ir, red uint16)

// Constant returns a Signal that always yields ir and red.
func Constant(ir, red uint16) Signal {
	return func(int) (uint16, uint16) { return ir, red }
}

// MAX30100 is a register-level model of the optical transceiver.
//
// Every read of the FIFO write pointer makes PerPoll new samples available
// while the part is running (mode set, not shut down). Samples arriving at a
// full FIFO are lost and counted in OVF_COUNTER, which saturates at 15.
type MAX30100 struct {
	Regs    [256]byte
	Signal  Signal
	PerPoll int
	// TempC is reported by the next completed temperature conversion.
	TempC float64
	// TempPolls is how many MODE reads a conversion stays busy for.
	TempPolls int
	// FailReads makes every read fail, which is how a dead part looks.
	FailReads bool

	Resets    int
	Generated int

	fifo     []sample
	tempBusy int
}

type sample struct{ ir, red uint16 }

// NewMAX30100 returns a powered-on part producing signal.
func NewMAX30100(signal Signal) *MAX30100 {
	if signal == nil {
		signal = Constant(0, 0)
	}
	m := &MAX30100{Signal: signal, PerPoll: 1}
	m.por()
	return m
}

func (m *MAX30100) por() {
	m.Regs = [256]byte{}
	m.Regs[regPart] = 0x11
	m.Regs[regRev] = 0x03
	m.fifo = nil
	m.tempBusy = 0
}

func (m *MAX30100) running() bool {
	mode := m.Regs[regMode]
	return mode&modeShutdown == 0 && mode&modeMask != 0
}

// Shutdown reports whether the shutdown bit is set.
func (m *MAX30100) Shutdown() bool {
	return m.Regs[regMode]&modeShutdown != 0
}

// Mode returns the operating mode bits.
func (m *MAX30100) Mode() byte {
	return m.Regs[regMode] & modeMask
}

// Overflow returns the OVF_COUNTER register.
func (m *MAX30100) Overflow() byte {
	return m.Regs[regOvf]
}

// Pending returns how many unread samples the FIFO holds.
func (m *MAX30100) Pending() int {
	return len(m.fifo)
}

func (m *MAX30100) Tx(w, r []byte) error {
	if len(w) == 0 {
		return fmt.Errorf("bustest: max30100 transaction without register")
	}
	reg := w[0]
	for i, v := range w[1:] {
		m.write(reg+byte(i), v)
	}
	if len(r) == 0 {
		return nil
	}
	if m.FailReads {
		return ErrNACK
	}
	if reg == regFIFOData {
		m.readFIFO(r)
		return nil
	}
	for i := range r {
		r[i] = m.read(reg + byte(i))
	}
	return nil
}

func (m *MAX30100) write(reg, v byte) {
	switch reg {
	case regMode:
		if v&modeReset != 0 {
			m.Resets++
			m.por()
			return
		}
		if v&modeTempEn != 0 && m.Regs[regMode]&modeTempEn == 0 {
			m.tempBusy = m.TempPolls
		}
		m.Regs[regMode] = v
		m.finishTemp()
	case regFIFOWr, regFIFORd, regOvf:
		m.Regs[reg] = v & 0x0F
		m.fifo = nil
	default:
		m.Regs[reg] = v
	}
}

func (m *MAX30100) finishTemp() {
	if m.Regs[regMode]&modeTempEn == 0 || m.tempBusy > 0 {
		return
	}
	whole := int8(m.TempC)
	frac := (m.TempC - float64(whole)) / 0.0625
	if frac < 0 {
		whole--
		frac += 16
	}
	m.Regs[regTempInt] = byte(whole)
	m.Regs[regTempFrac] = byte(frac) & 0x0F
	m.Regs[regMode] &^= modeTempEn
}

func (m *MAX30100) read(reg byte) byte {
	switch reg {
	case regFIFOWr:
		if m.running() {
			for i := 0; i < m.PerPoll; i++ {
				ir, red := m.Signal(m.Generated)
				m.Generated++
				if len(m.fifo) == fifoDepth {
					if m.Regs[regOvf] < 0x0F {
						m.Regs[regOvf]++
					}
					continue
				}
				m.fifo = append(m.fifo, sample{ir, red})
			}
		}
		return (m.Regs[regFIFORd] + byte(len(m.fifo))) & 0x0F
	case regMode:
		if m.tempBusy > 0 {
			m.tempBusy--
			defer m.finishTemp()
		}
	case regIntStatus:
		v := m.Regs[reg]
		m.Regs[reg] = 0
		return v
	}
	return m.Regs[reg]
}

func (m *MAX30100) readFIFO(r []byte) {
	for i := 0; i+4 <= len(r); i += 4 {
		var s sample
		if len(m.fifo) > 0 {
			s = m.fifo[0]
			m.fifo = m.fifo[1:]
			m.Regs[regFIFORd] = (m.Regs[regFIFORd] + 1) & 0x0F
			m.Regs[regOvf] = 0
		}
		r[i] = byte(s.ir >> 8)
		r[i+1] = byte(s.ir)
		r[i+2] = byte(s.red >> 8)
		r[i+3] = byte(s.red)
	}
}

// LEDConfig returns the LED pulse amplitude register.
func (m *MAX30100) LEDConfig() byte {
	return m.Regs[regLED]
}

// SpO2Config returns the SpO2 configuration register.
func (m *MAX30100) SpO2Config() byte {
	return m.Regs[regSpO2]
}
