// Package bitbang clocks SPI mode 1 out of plain Raspberry Pi GPIO lines.
// It is for boards where the hardware SPI block is taken or unavailable,
// and is slow: every edge is a memory-mapped register write plus a sleep.
package bitbang

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/gpio"
)

// DefaultTclk is half an SCLK period, giving roughly 50kHz.
const DefaultTclk = 10 * time.Microsecond

var (
	ErrPinsNotConfigured = errors.New("bitbang: ConfigurePins has not been called")
	ErrPinOutOfRange     = errors.New("bitbang: pin out of range")
)

func validPin(pin int) bool {
	return pin >= 0 && pin < gpio.MaxGPIOPin
}

// line is the part of *gpio.Pin the transport uses.
type line interface {
	Input()
	Output()
	Write(level gpio.Level)
	Read() gpio.Level
	PullUp()
}

// SPI is a bit bashed, mode 1 (CPOL=0, CPHA=1), MSB first bus.
type SPI struct {
	// Tclk is the time between clock edges, half the cycle time.
	Tclk time.Duration

	sclk, mosi, miso line
	cs, drdy         line

	newLine func(pin int) line
	sleep   func(time.Duration)
	release func() error
}

// Open maps the GPIO registers and binds the three bus lines.
// Chip select and DRDY are bound later by ConfigurePins.
func Open(tclk time.Duration, sclk, mosi, miso int) (*SPI, error) {
	if !validPin(sclk) || !validPin(mosi) || !validPin(miso) {
		return nil, fmt.Errorf("%w: sclk=%d mosi=%d miso=%d", ErrPinOutOfRange, sclk, mosi, miso)
	}
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}
	newLine := func(pin int) line { return gpio.NewPin(pin) }
	return newSPI(tclk, newLine(sclk), newLine(mosi), newLine(miso), newLine, gpio.Close), nil
}

func newSPI(tclk time.Duration, sclk, mosi, miso line, newLine func(int) line, release func() error) *SPI {
	if tclk <= 0 {
		tclk = DefaultTclk
	}
	return &SPI{
		Tclk:    tclk,
		sclk:    sclk,
		mosi:    mosi,
		miso:    miso,
		newLine: newLine,
		sleep:   time.Sleep,
		release: release,
	}
}

// ConfigurePins makes cs an output idling high and drdy a pulled-up input.
func (s *SPI) ConfigurePins(cs, drdy uint) error {
	if cs >= gpio.MaxGPIOPin || drdy >= gpio.MaxGPIOPin {
		return fmt.Errorf("%w: cs=%d drdy=%d", ErrPinOutOfRange, cs, drdy)
	}
	s.cs = s.newLine(int(cs))
	s.drdy = s.newLine(int(drdy))

	s.cs.Write(gpio.High)
	s.cs.Output()
	s.drdy.Input()
	s.drdy.PullUp()
	return nil
}

// Init parks the clock low and sets the data line directions.
func (s *SPI) Init() error {
	s.sclk.Write(gpio.Low)
	s.sclk.Output()
	s.mosi.Write(gpio.Low)
	s.mosi.Output()
	s.miso.Input()
	return nil
}

// Transfer clocks one byte MSB first. MOSI changes and the device shifts out
// on the rising edge; MISO is sampled before the falling edge.
func (s *SPI) Transfer(b byte) (byte, error) {
	var in byte
	for i := 7; i >= 0; i-- {
		s.mosi.Write(gpio.Level(b&(1<<uint(i)) != 0))
		s.sclk.Write(gpio.High)
		s.sleep(s.Tclk)
		in <<= 1
		if s.miso.Read() == gpio.High {
			in |= 0x01
		}
		s.sclk.Write(gpio.Low)
		s.sleep(s.Tclk)
	}
	return in, nil
}

func (s *SPI) SetCS(high bool) error {
	if s.cs == nil {
		return ErrPinsNotConfigured
	}
	s.cs.Write(gpio.Level(high))
	return nil
}

func (s *SPI) DRDY() (bool, error) {
	if s.drdy == nil {
		return false, ErrPinsNotConfigured
	}
	return bool(s.drdy.Read()), nil
}

// Close floats the output lines and unmaps the GPIO registers.
func (s *SPI) Close() error {
	s.sclk.Input()
	s.mosi.Input()
	if s.cs != nil {
		s.cs.Input()
	}
	return s.release()
}
