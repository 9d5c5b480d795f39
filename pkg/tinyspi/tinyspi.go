// Package tinyspi adapts a TinyGo SPI bus and board pins to the ADS1220
// driver, so the same driver runs on a microcontroller.
//
// On a board the wiring looks like:
//
//	machine.SPI0.Configure(machine.SPIConfig{Frequency: 1e6, Mode: 1})
//	t := tinyspi.New(machine.SPI0, board{}, nil)
//	adc := ads1220.NewADS1220(t)
//	err := adc.Begin(uint(machine.GP17), uint(machine.GP20))
//
// where board returns machine.Pin values configured as output or input.
package tinyspi

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

var ErrPinsNotConfigured = errors.New("tinyspi: ConfigurePins has not been called")

// Pin is satisfied by machine.Pin.
type Pin interface {
	Set(high bool)
	Get() bool
}

// Board hands out configured pins by number.
type Board interface {
	Output(id uint) (Pin, error)
	Input(id uint) (Pin, error)
}

// Transport implements ads1220.SerialInterface over a [drivers.SPI].
type Transport struct {
	bus   drivers.SPI
	board Board
	setup func() error

	cs, drdy Pin
}

// New wraps bus. setup, if not nil, is run by Init and should configure
// the bus for mode 1, MSB first.
func New(bus drivers.SPI, board Board, setup func() error) *Transport {
	return &Transport{bus: bus, board: board, setup: setup}
}

func (t *Transport) ConfigurePins(cs, drdy uint) error {
	csPin, err := t.board.Output(cs)
	if err != nil {
		return fmt.Errorf("CS pin %d: %w", cs, err)
	}
	drdyPin, err := t.board.Input(drdy)
	if err != nil {
		return fmt.Errorf("DRDY pin %d: %w", drdy, err)
	}
	csPin.Set(true)
	t.cs, t.drdy = csPin, drdyPin
	return nil
}

func (t *Transport) Init() error {
	if t.setup == nil {
		return nil
	}
	return t.setup()
}

func (t *Transport) Transfer(b byte) (byte, error) {
	return t.bus.Transfer(b)
}

func (t *Transport) SetCS(high bool) error {
	if t.cs == nil {
		return ErrPinsNotConfigured
	}
	t.cs.Set(high)
	return nil
}

func (t *Transport) DRDY() (bool, error) {
	if t.drdy == nil {
		return false, ErrPinsNotConfigured
	}
	return t.drdy.Get(), nil
}

// Close deselects the chip. The bus belongs to the caller.
func (t *Transport) Close() error {
	if t.cs != nil {
		t.cs.Set(true)
	}
	return nil
}
