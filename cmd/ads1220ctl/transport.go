package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
	"github.com/kutukvpavel/stm32-ads1220/pkg/bitbang"
	"github.com/kutukvpavel/stm32-ads1220/pkg/ft232h"
	"github.com/kutukvpavel/stm32-ads1220/pkg/sim"
	"github.com/kutukvpavel/stm32-ads1220/pkg/spidev"
)

const (
	transportSim     = "sim"
	transportFT232H  = "ft232h"
	transportSpidev  = "spidev"
	transportBitbang = "bitbang"

	// simStep is the largest change between two simulated conversions.
	simStep = 2000
	// simDRDYDelay keeps simulated conversions pending for a few polls.
	simDRDYDelay = 3
)

func openTransport(s settings, log zerolog.Logger) (ads1220.SerialInterface, error) {
	switch s.Transport {
	case transportSim:
		chip := sim.New()
		chip.Source = sim.RandomWalk(s.SimSeed, simStep)
		chip.DRDYDelay = simDRDYDelay
		return chip, nil

	case transportFT232H:
		desc := ft232h.ByIndex(s.FTIndex)
		if s.FTSerial != "" {
			desc = ft232h.BySerial(s.FTSerial)
		}
		ft, err := ft232h.Connect(&desc, ft232h.WithClock(s.FTClock), ft232h.WithLogger(log))
		if err != nil {
			return nil, err
		}
		log.Info().Any("info", ft.Info()).Msgf("connected to %s", ft)
		return ft, nil

	case transportSpidev:
		t, err := spidev.Open(s.SPIPort,
			spidev.WithFrequency(physic.Frequency(s.SPIFreq)*physic.Hertz),
			spidev.WithLogger(log))
		if err != nil {
			return nil, err
		}
		log.Info().Stringer("port", t).Msg("opened spidev")
		return t, nil

	case transportBitbang:
		bb, err := bitbang.Open(s.Tclk, s.SCLK, s.MOSI, s.MISO)
		if err != nil {
			return nil, err
		}
		return bb, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", s.Transport)
	}
}
