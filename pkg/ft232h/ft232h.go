// Package ft232h connects an ADS1220 to the host through an FTDI FT232H
// USB bridge. SPI runs on the MPSSE engine (D0 SCLK, D1 MOSI, D2 MISO);
// chip select and DRDY are C-bus GPIO lines driven by this package.
package ft232h

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yunginnanet/ft232h"
)

// DefaultClock is the SCLK frequency used unless [WithClock] says otherwise.
const DefaultClock = 1_000_000

// spiMode1 is CPOL=0, CPHA=1.
const spiMode1 = 1

// FT232H is an open FT232H bridge implementing ads1220.SerialInterface.
type FT232H struct {
	*ft232h.FT232H

	port  port
	clock uint32
	log   zerolog.Logger

	csPin, drdyPin uint

	// wregLeft counts the WREG value bytes still expected in this frame.
	wregLeft int
}

// Option configures an [FT232H] at connect time.
type Option func(*FT232H)

// WithClock sets the SPI clock in Hz.
func WithClock(hz uint32) Option {
	return func(ft *FT232H) {
		ft.clock = hz
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(ft *FT232H) {
		ft.log = log
	}
}

// Connect opens the device matching desc, or the first FT232H found when
// desc is nil.
func Connect(desc *Descriptor, opts ...Option) (*FT232H, error) {
	var (
		dev *ft232h.FT232H
		err error
	)

	if desc == nil {
		dev, err = ft232h.New()
	} else {
		if err = desc.Validate(); err != nil {
			return nil, err
		}
		dev, err = ft232h.OpenMask(desc.Mask())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open FT232H: %w", err)
	}

	ft := newFT232H(mpsse{dev: dev}, opts...)
	ft.FT232H = dev
	return ft, nil
}

func newFT232H(p port, opts ...Option) *FT232H {
	ft := &FT232H{
		port:  p,
		clock: DefaultClock,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ft)
	}
	return ft
}

// Info returns a snapshot of the device information. Read-only.
func (ft *FT232H) Info() DeviceInfo {
	return DeviceInfo{
		Index:       ft.Index(),
		Serial:      ft.Serial(),
		Description: ft.Desc(),
		VendorID:    fmt.Sprintf("%04x", ft.VID()),
		ProductID:   fmt.Sprintf("%04x", ft.PID()),
		IsOpen:      ft.IsOpen(),
		IsHighSpeed: ft.IsHiSpeed(),
	}
}

// String includes the vendor ID, product ID, and description.
func (ft *FT232H) String() string {
	if ft.FT232H == nil {
		return "FT232H[detached]"
	}
	info := ft.Info()
	return fmt.Sprintf("FT232H[%s:%s]: %s", info.VendorID, info.ProductID, info.Description)
}

// Clock returns the configured SPI clock in Hz.
func (ft *FT232H) Clock() uint32 {
	return ft.clock
}
