package ads1220

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// SerialInterface interface allows for different SerialInterface implementations.
type SerialInterface interface {
	// ConfigurePins binds the chip select (output) and data ready (input) lines.
	ConfigurePins(cs, drdy uint) error

	// Init prepares the bus for MSB first, SPI mode 1 transfers.
	Init() error

	// Transfer clocks b out and returns the byte clocked in.
	Transfer(b byte) (byte, error)

	SetCS(high bool) error

	// DRDY returns the level of the DRDY line, low (false) means data is ready.
	DRDY() (bool, error)

	// Close closes the interface.
	Close() error
}

// Sample is the outcome of a non-blocking conversion read.
type Sample struct {
	Code  int32
	Ready bool
}

// Raw returns the code, or [NoData] if the sample was not ready.
func (s Sample) Raw() int32 {
	if !s.Ready {
		return NoData
	}
	return s.Code
}

var (
	// ErrInvalidMode is returned by [ADS1220.SetMode] for unknown modes.
	ErrInvalidMode = errors.New("invalid conversion mode")
	// ErrNoChannels is returned when a scan is requested with no channels.
	ErrNoChannels = errors.New("no channels to scan")
)

const (
	tRegister = 5 * time.Millisecond
	tCommand  = 2 * time.Millisecond
	tData     = 100 * time.Microsecond
	tPowerUp  = 100 * time.Millisecond
)

// ADS1220 provides high-level control over a TI ADS1220 ADC.
//
// Configuration changes are read-modify-write operations against a shadow of
// the four configuration registers, not against the chip. If the chip is reset
// behind the driver's back the shadow drifts, and the next mutator writes a
// stale value; call [ADS1220.ConfigRegisters] to resynchronize.
type ADS1220 struct {
	mu  sync.Mutex      // Synchronize concurrent operations
	spi SerialInterface // SerialInterface interface

	sleep        func(time.Duration)
	log          zerolog.Logger
	pollInterval time.Duration

	csPin, drdyPin uint

	// Last written register states, or last read after Begin and ConfigRegisters.
	regs [NumRegisters]byte
}

// Option configures an [ADS1220].
type Option func(*ADS1220)

// WithSleep replaces the delay primitive, time.Sleep by default.
func WithSleep(sleep func(time.Duration)) Option {
	return func(adc *ADS1220) {
		adc.sleep = sleep
	}
}

// WithLogger sets the logger used for register readback diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(adc *ADS1220) {
		adc.log = log
	}
}

// WithPollInterval sets the pause between DRDY polls in blocking reads.
// Zero spins.
func WithPollInterval(d time.Duration) Option {
	return func(adc *ADS1220) {
		adc.pollInterval = d
	}
}

// NewADS1220 constructs an ADS1220 object with the given SerialInterface.
func NewADS1220(spi SerialInterface, opts ...Option) *ADS1220 {
	adc := &ADS1220{
		spi:   spi,
		sleep: time.Sleep,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(adc)
	}
	return adc
}

// Begin binds the pins, resets the chip, writes the default configuration
// and reads it back into the shadow registers.
// Conversions are not started.
func (adc *ADS1220) Begin(cs, drdy uint) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.csPin, adc.drdyPin = cs, drdy

	if err := adc.spi.ConfigurePins(cs, drdy); err != nil {
		return fmt.Errorf("failed to configure pins: %w", err)
	}
	if err := adc.spi.Init(); err != nil {
		return fmt.Errorf("failed to initialize bus: %w", err)
	}
	if err := adc.setCSHigh(); err != nil {
		return err
	}

	adc.sleep(tPowerUp)

	if err := adc.sendCommand(CMDRESET); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	adc.sleep(tPowerUp)

	for reg, val := range DefaultRegisters {
		if err := adc.writeRegister(byte(reg), val); err != nil {
			return err
		}
	}

	adc.sleep(tPowerUp)

	if err := adc.readAllRegisters(); err != nil {
		return fmt.Errorf("failed to read back registers: %w", err)
	}

	adc.log.Debug().
		Uint("cs", cs).
		Uint("drdy", drdy).
		Hex("config", adc.regs[:]).
		Msg("ADS1220 registers after begin")

	adc.sleep(2 * tPowerUp)
	return nil
}

// Pins returns the chip select and data ready pins bound by Begin.
func (adc *ADS1220) Pins() (cs, drdy uint) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.csPin, adc.drdyPin
}

// Close powers the chip down and closes the SerialInterface.
func (adc *ADS1220) Close() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	err := adc.sendCommand(CMDPOWERDOWN)
	return multierr.Combine(err, adc.spi.Close())
}

// Reset triggers a software Reset using the RESET command.
// The shadow registers are not touched, see [ADS1220.ConfigRegisters].
func (adc *ADS1220) Reset() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.sendCommand(CMDRESET)
}

// StartConversion sends START/SYNC. In single-shot mode this starts one
// conversion, in continuous mode it (re)starts the conversion cycle.
func (adc *ADS1220) StartConversion() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.sendCommand(CMDSTART)
}

// PowerDown sends the POWERDOWN command. START/SYNC wakes the chip up again.
func (adc *ADS1220) PowerDown() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.sendCommand(CMDPOWERDOWN)
}

// IsReady reports whether DRDY is asserted (low).
func (adc *ADS1220) IsReady() (bool, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.isReady()
}

func (adc *ADS1220) isReady() (bool, error) {
	high, err := adc.spi.DRDY()
	if err != nil {
		return false, fmt.Errorf("failed to read DRDY: %w", err)
	}
	return !high, nil
}

// ReadResult reads the latest conversion if one is ready. It never blocks;
// when DRDY is not asserted the bus is left untouched and the returned
// sample is not Ready.
func (adc *ADS1220) ReadResult() (Sample, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.readResult()
}

func (adc *ADS1220) readResult() (Sample, error) {
	ready, err := adc.isReady()
	if err != nil || !ready {
		return Sample{Code: NoData}, err
	}

	var buf [3]byte
	err = adc.selected(tData, func() error {
		return adc.readInto(buf[:])
	})
	if err != nil {
		return Sample{Code: NoData}, fmt.Errorf("failed to read conversion: %w", err)
	}

	return Sample{Code: Convert24To32(buf[:]), Ready: true}, nil
}

// ReadResultBlocking polls [ADS1220.ReadResult] until a conversion is ready
// or ctx is done. The lock is released between polls.
func (adc *ADS1220) ReadResultBlocking(ctx context.Context) (int32, error) {
	for {
		if err := ctx.Err(); err != nil {
			return NoData, err
		}
		s, err := adc.ReadResult()
		if err != nil {
			return NoData, err
		}
		if s.Ready {
			return s.Code, nil
		}
		if adc.pollInterval > 0 {
			adc.sleep(adc.pollInterval)
		}
	}
}

// SingleShotBlocking starts a conversion and waits for its result.
// It does not switch the chip into single-shot mode, see [ADS1220.SetMode].
func (adc *ADS1220) SingleShotBlocking(ctx context.Context) (int32, error) {
	if err := adc.StartConversion(); err != nil {
		return NoData, err
	}
	return adc.ReadResultBlocking(ctx)
}

// RData reads the latest conversion with the RDATA command, regardless of DRDY.
// Useful when the DRDY line is not wired.
func (adc *ADS1220) RData() (int32, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	var buf [3]byte
	err := adc.selected(tData, func() error {
		if _, err := adc.write([]byte{CMDRDATA}); err != nil {
			return err
		}
		return adc.readInto(buf[:])
	})
	if err != nil {
		return NoData, fmt.Errorf("RDATA failed: %w", err)
	}
	return Convert24To32(buf[:]), nil
}
