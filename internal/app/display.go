package app

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

// Screen is the part of *ssd1306.Dev the display draws on.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Snapshot is what the status page shows.
type Snapshot struct {
	Mode      string
	Transport string
	Connected bool
	Last      telemetry.Payload
}

// Display renders the node status on a 128x64 OLED.
type Display struct {
	screen Screen
	bus    i2c.BusCloser
}

// OpenDisplay opens the SSD1306 at addr on the named I2C bus and shows the
// splash page.
func OpenDisplay(busName string, addr uint16) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(&remapBus{Bus: b, to: addr}, &ssd1306.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to initialize display at 0x%02X: %w", addr, err)
	}
	d := &Display{screen: dev, bus: b}
	if err := d.draw([]string{"VitalsTrack", "", "starting..."}); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// remapBus redirects the driver's fixed address to the configured one.
type remapBus struct {
	i2c.Bus
	to uint16
}

func (r *remapBus) Tx(addr uint16, w, rd []byte) error {
	if addr == defaultDisplayAddr {
		addr = r.to
	}
	return r.Bus.Tx(addr, w, rd)
}

const defaultDisplayAddr = 0x3C

// NewDisplay draws on an already opened screen.
func NewDisplay(s Screen) *Display {
	return &Display{screen: s}
}

// Show renders s.
func (d *Display) Show(s Snapshot) error {
	return d.draw(Lines(s))
}

// Close releases the display bus.
func (d *Display) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

// Lines formats the status page, one entry per text row.
func Lines(s Snapshot) []string {
	link := "off"
	if s.Connected {
		link = "on"
	}
	return []string{
		s.Mode,
		fmt.Sprintf("%s: %s", s.Transport, link),
		"",
		value(s.Last),
	}
}

func value(p telemetry.Payload) string {
	switch v := p.(type) {
	case telemetry.IdlePayload:
		return fmt.Sprintf("up %ds", v.Uptime/1000)
	case telemetry.VitalsPayload:
		return fmt.Sprintf("HR %.0f O2 %.0f%%", v.HeartRate, v.SpO2)
	case telemetry.RawPayload:
		return fmt.Sprintf("IR%6d R%6d", v.IR, v.Red)
	case telemetry.TemperaturePayload:
		return fmt.Sprintf("T %.2f C", v.Temperature)
	case telemetry.ForcePayload:
		return fmt.Sprintf("F%5d %s", v.FSR, v.Label)
	case telemetry.DistancePayload:
		return fmt.Sprintf("%s %dmm", v.LED, v.DistanceMM)
	case telemetry.DistanceAveragePayload:
		return fmt.Sprintf("avg %.0f n%d", v.AvgIR, v.Samples)
	case telemetry.QualityPayload:
		return fmt.Sprintf("Q%d %.0f%%", v.Quality, v.QualityPercent)
	default:
		return "Waiting..."
	}
}

func (d *Display) draw(lines []string) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}

	return d.screen.Draw(d.screen.Bounds(), img, image.Point{})
}
