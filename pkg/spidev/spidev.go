// Package spidev connects an ADS1220 through a Linux spidev port, with chip
// select and DRDY on ordinary GPIO lines.
package spidev

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultFrequency is the SCLK rate unless [WithFrequency] says otherwise.
const DefaultFrequency = physic.MegaHertz

var ErrNotConnected = errors.New("spidev: Init has not been called")

// conn is the part of spi.Conn the transport uses.
type conn interface {
	Tx(w, r []byte) error
}

// pin is the part of gpio.PinIO the transport uses.
type pin interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Transport implements ads1220.SerialInterface on a spidev port.
// The kernel's own chip select is disabled; CS is driven as a GPIO so it can
// stay asserted across the driver's multi-byte frames.
type Transport struct {
	name string
	freq physic.Frequency
	log  zerolog.Logger

	connect func(f physic.Frequency) (conn, error)
	byID    func(id uint) (pin, error)
	release func() error

	c        conn
	cs, drdy pin
}

type Option func(*Transport)

func WithFrequency(f physic.Frequency) Option {
	return func(t *Transport) {
		t.freq = f
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// Open initializes the host drivers and opens the named spidev port, for
// example "/dev/spidev0.0" or "SPI0.0". An empty name picks the first port.
func Open(name string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", name, err)
	}

	t := newTransport(name, opts...)
	t.connect = func(f physic.Frequency) (conn, error) {
		return p.Connect(f, spi.Mode1|spi.NoCS, 8)
	}
	t.byID = lookupPin
	t.release = p.Close
	return t, nil
}

func newTransport(name string, opts ...Option) *Transport {
	t := &Transport{
		name: name,
		freq: DefaultFrequency,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// lookupPin resolves a GPIO by its number, as in "GPIO22" being pin 22.
func lookupPin(id uint) (pin, error) {
	p := gpioreg.ByName(strconv.FormatUint(uint64(id), 10))
	if p == nil {
		return nil, fmt.Errorf("no GPIO %d on this host", id)
	}
	return p, nil
}

func (t *Transport) String() string {
	return "spidev(" + t.name + ", " + t.freq.String() + ")"
}

// ConfigurePins drives cs high as an output and makes drdy a pulled-up input.
func (t *Transport) ConfigurePins(cs, drdy uint) error {
	csPin, err := t.byID(cs)
	if err != nil {
		return fmt.Errorf("CS: %w", err)
	}
	drdyPin, err := t.byID(drdy)
	if err != nil {
		return fmt.Errorf("DRDY: %w", err)
	}

	if err = csPin.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure CS pin %d: %w", cs, err)
	}
	if err = drdyPin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("failed to configure DRDY pin %d: %w", drdy, err)
	}

	t.cs, t.drdy = csPin, drdyPin
	t.log.Debug().Uint("cs", cs).Uint("drdy", drdy).Msg("GPIO lines configured")
	return nil
}

// Init connects to the port in mode 1, 8 bits per word.
func (t *Transport) Init() error {
	c, err := t.connect(t.freq)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.name, err)
	}
	t.c = c
	t.log.Debug().Stringer("freq", t.freq).Str("port", t.name).Msg("SPI connected")
	return nil
}

func (t *Transport) Transfer(b byte) (byte, error) {
	if t.c == nil {
		return 0, ErrNotConnected
	}
	w := [1]byte{b}
	var r [1]byte
	if err := t.c.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (t *Transport) SetCS(high bool) error {
	if t.cs == nil {
		return ErrNotConnected
	}
	return t.cs.Out(gpio.Level(high))
}

func (t *Transport) DRDY() (bool, error) {
	if t.drdy == nil {
		return false, ErrNotConnected
	}
	return t.drdy.Read() == gpio.High, nil
}

// Close releases the GPIO lines and the port.
func (t *Transport) Close() error {
	var err error
	if t.cs != nil {
		err = multierr.Append(err, t.cs.In(gpio.PullNoChange, gpio.NoEdge))
	}
	if t.release != nil {
		err = multierr.Append(err, t.release())
	}
	return err
}
