package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

type readOpts struct {
	count  int
	gain   int
	rate   int
	mux    string
	single bool
	temp   bool
	noPGA  bool
}

// apply writes the requested configuration to the converter.
func (o readOpts) apply(adc *ads1220.ADS1220) error {
	g, ok := ads1220.GainFromMultiplier(o.gain)
	if !ok {
		return fmt.Errorf("unsupported gain %d", o.gain)
	}
	dr, ok := ads1220.DataRateFromSPS(o.rate)
	if !ok {
		return fmt.Errorf("unsupported data rate %d SPS", o.rate)
	}
	mux, ok := ads1220.ParseMux(o.mux)
	if !ok {
		return fmt.Errorf("unknown mux %q", o.mux)
	}
	mode := ads1220.ModeContinuous
	if o.single {
		mode = ads1220.ModeSingleShot
	}

	steps := []func() error{
		func() error { return adc.SetPGAGain(g) },
		func() error { return adc.SetDataRate(dr) },
		func() error { return adc.SelectMuxChannels(mux) },
		func() error { return adc.SetMode(mode) },
		func() error { return adc.SetTemperatureSensor(o.temp) },
		adc.PGAOn,
	}
	if o.noPGA {
		steps[len(steps)-1] = adc.PGAOff
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func newReadCmd(a *app) *cobra.Command {
	var o readOpts
	cmd := &cobra.Command{
		Use:     "read",
		Short:   "Take conversions and print codes and volts",
		Example: "  ads1220ctl read -n 10 --gain 8 --mux AIN0_AVSS --single",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withADC(cmd, func(adc *ads1220.ADS1220, s settings) error {
				return a.read(cmd, adc, s, o)
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.count, "count", "n", 1, "number of conversions")
	f.IntVarP(&o.gain, "gain", "g", 1, "PGA gain: 1, 2, 4 ... 128")
	f.IntVarP(&o.rate, "rate", "r", 20, "data rate in SPS: 20, 45, 90, 175, 330, 600 or 1000")
	f.StringVarP(&o.mux, "mux", "m", ads1220.MUX_AIN0_AIN1.String(), "input multiplexer, e.g. AIN0_AIN1 or AIN2_AVSS")
	f.BoolVarP(&o.single, "single", "s", false, "single-shot mode, one START per conversion")
	f.BoolVar(&o.temp, "temp", false, "read the internal temperature sensor")
	f.BoolVar(&o.noPGA, "no-pga", false, "bypass the PGA")
	return cmd
}

func (a *app) read(cmd *cobra.Command, adc *ads1220.ADS1220, s settings, o readOpts) error {
	if err := o.apply(adc); err != nil {
		return err
	}
	gain := ads1220.Gain(adc.Shadow()[ads1220.RegCONFIG0] & ads1220.Config0GainMask)

	if !o.single {
		if err := adc.StartConversion(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i := 0; i < o.count; i++ {
		ctx, cancel := context.WithTimeout(a.ctx, s.Timeout)
		var (
			code int32
			err  error
		)
		if o.single {
			code, err = adc.SingleShotBlocking(ctx)
		} else {
			code, err = adc.ReadResultBlocking(ctx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("conversion %d: %w", i, err)
		}

		if o.temp {
			fmt.Fprintf(out, "%d\t%.5f°C\n", code, ads1220.TemperatureCelsius(code))
			continue
		}
		fmt.Fprintf(out, "%d\t%.6f\n", code, ads1220.ConvertToVolts(code, s.VRef, gain))
	}
	return nil
}
