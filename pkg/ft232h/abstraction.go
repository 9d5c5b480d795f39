package ft232h

import (
	"errors"
	"fmt"

	"github.com/yunginnanet/ft232h"
	"go.uber.org/multierr"
)

const (
	// dummyByte is clocked out by the chip driver when it wants to read.
	dummyByte = 0xFF
	// wregMask and wregOpcode match a WREG command byte, whose low two bits
	// are the number of value bytes minus one.
	wregMask   = 0xF0
	wregOpcode = 0x40
)

// ErrUnwritableValue is returned when a WREG value byte is 0xFF, which the
// half duplex engine cannot tell apart from a read.
var ErrUnwritableValue = errors.New("register value 0xFF cannot be written over FT232H")

// port is the part of the bridge the transport uses. Pins are C-bus masks,
// C0 is 0x01.
type port interface {
	configSPI(clock uint32) error
	read(n uint) ([]byte, error)
	write(p []byte) (uint, error)
	output(pin uint, high bool) error
	input(pin uint) error
	set(pin uint, high bool) error
	get(pin uint) (bool, error)
	close() error
}

// mpsse drives the real device.
type mpsse struct {
	dev *ft232h.FT232H
}

func (m mpsse) configSPI(clock uint32) error {
	cfg := m.dev.SPI.GetConfig()
	cfg.Clock = clock
	cfg.Mode = spiMode1
	cfg.ActiveLow = true
	return m.dev.SPI.Config(cfg)
}

func (m mpsse) read(n uint) ([]byte, error) {
	return m.dev.SPI.Read(n, false, false)
}

func (m mpsse) write(p []byte) (uint, error) {
	return m.dev.SPI.Write(p, false, false)
}

func (m mpsse) output(pin uint, high bool) error {
	return m.dev.GPIO.ConfigPin(ft232h.CPin(pin), ft232h.Output, high)
}

func (m mpsse) input(pin uint) error {
	return m.dev.GPIO.ConfigPin(ft232h.CPin(pin), ft232h.Input, true)
}

func (m mpsse) set(pin uint, high bool) error {
	return m.dev.GPIO.Set(ft232h.CPin(pin), high)
}

func (m mpsse) get(pin uint) (bool, error) {
	return m.dev.GPIO.Get(ft232h.CPin(pin))
}

func (m mpsse) close() error {
	return multierr.Combine(m.dev.SPI.Close(), m.dev.Close())
}

// ConfigurePins makes cs an output idling high and drdy an input.
func (ft *FT232H) ConfigurePins(cs, drdy uint) error {
	ft.csPin, ft.drdyPin = cs, drdy

	ft.log.Debug().Uint("cs", cs).Uint("drdy", drdy).Msg("configuring C-bus pins")

	if err := ft.port.output(cs, true); err != nil {
		return fmt.Errorf("failed to configure CS pin 0x%02X: %w", cs, err)
	}
	if err := ft.port.input(drdy); err != nil {
		return fmt.Errorf("failed to configure DRDY pin 0x%02X: %w", drdy, err)
	}
	return nil
}

func (ft *FT232H) CSPin() uint {
	return ft.csPin
}

func (ft *FT232H) DRDYPin() uint {
	return ft.drdyPin
}

// Init configures MPSSE SPI for mode 1 at the configured clock.
// The engine always shifts MSB first.
func (ft *FT232H) Init() error {
	ft.log.Debug().Uint32("clock", ft.clock).Msg("initializing SPI")
	if err := ft.port.configSPI(ft.clock); err != nil {
		return fmt.Errorf("failed to configure SPI: %w", err)
	}
	return nil
}

// Transfer exchanges one byte. The MPSSE SPI engine exposed by the library is
// half duplex: the dummy byte becomes a one byte read, every other byte is
// written and 0xFF is returned in its place. Every ADS1220 register has a
// reserved bit pattern that makes 0xFF illegal as a value; a 0xFF value byte
// following WREG in the same frame is refused with [ErrUnwritableValue]
// instead of being turned into a read.
func (ft *FT232H) Transfer(b byte) (byte, error) {
	if ft.wregLeft > 0 {
		if b == dummyByte {
			ft.wregLeft = 0
			return 0, ErrUnwritableValue
		}
		ft.wregLeft--
		return ft.writeByte(b)
	}

	if b == dummyByte {
		in, err := ft.port.read(1)
		if err != nil {
			return 0, err
		}
		if len(in) != 1 {
			return 0, fmt.Errorf("short SPI read: got %d bytes", len(in))
		}
		return in[0], nil
	}

	in, err := ft.writeByte(b)
	if err == nil && b&wregMask == wregOpcode {
		ft.wregLeft = int(b&0x03) + 1
	}
	return in, err
}

func (ft *FT232H) writeByte(b byte) (byte, error) {
	n, err := ft.port.write([]byte{b})
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, fmt.Errorf("short SPI write: wrote %d bytes", n)
	}
	return dummyByte, nil
}

// SetCS drives chip select. Either edge ends the current command frame.
func (ft *FT232H) SetCS(high bool) error {
	ft.wregLeft = 0
	return ft.port.set(ft.csPin, high)
}

// DRDY returns the level of the DRDY line, high means no conversion is ready.
func (ft *FT232H) DRDY() (bool, error) {
	hl, err := ft.port.get(ft.drdyPin)
	if err != nil {
		return false, fmt.Errorf("failed to read DRDY pin: %w", err)
	}
	return hl, nil
}

// Close releases the SPI engine and the USB device.
func (ft *FT232H) Close() error {
	return ft.port.close()
}
