package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/kutukvpavel/stm32-ads1220/pkg/acq"
	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

type scanOpts struct {
	muxes    []string
	interval time.Duration
	duration time.Duration
	port     string
	baud     int
	gain     int
}

func (o *scanOpts) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVarP(&o.muxes, "mux", "m", []string{"AIN0_AVSS", "AIN1_AVSS", "AIN2_AVSS", "AIN3_AVSS"}, "inputs to cycle through")
	f.DurationVarP(&o.interval, "interval", "i", 250*time.Millisecond, "pause after each full cycle")
	f.IntVarP(&o.gain, "gain", "g", 1, "PGA gain: 1, 2, 4 ... 128")
	f.StringVarP(&o.port, "serial", "p", "", "serial port to write to instead of stdout")
	f.IntVar(&o.baud, "baud", 0, "serial baud rate (default from config)")
}

func (o scanOpts) parse() ([]ads1220.Mux, ads1220.Gain, error) {
	muxes := make([]ads1220.Mux, 0, len(o.muxes))
	for _, name := range o.muxes {
		m, ok := ads1220.ParseMux(name)
		if !ok {
			return nil, 0, fmt.Errorf("unknown mux %q", name)
		}
		muxes = append(muxes, m)
	}
	g, ok := ads1220.GainFromMultiplier(o.gain)
	if !ok {
		return nil, 0, fmt.Errorf("unsupported gain %d", o.gain)
	}
	return muxes, g, nil
}

func (o scanOpts) openSerial(s settings) (io.ReadWriteCloser, error) {
	baud := o.baud
	if baud == 0 {
		baud = s.Baud
	}
	return acq.OpenSerial(o.port, baud)
}

// acquirer returns an [acq.Acquirer] scanning muxes until its context ends.
func acquirer(adc *ads1220.ADS1220, s settings, gain ads1220.Gain, interval time.Duration, muxes []ads1220.Mux) acq.Acquirer {
	return func(ctx context.Context, emit func(ads1220.Mux, float64)) error {
		if err := adc.SetPGAGain(gain); err != nil {
			return err
		}
		scan, err := adc.ScanChannels(ctx, interval, func(mux ads1220.Mux, code int32) {
			emit(mux, ads1220.ConvertToVolts(code, s.VRef, gain))
		}, muxes...)
		if err != nil {
			return err
		}
		if err := scan.Wait(ctx); ctx.Err() == nil {
			// gave up on its own after too many errors
			return err
		}
		scan.Stop()
		return scan.Wait(context.Background())
	}
}

func newScanCmd(a *app) *cobra.Command {
	var o scanOpts
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Cycle through inputs and emit acquisition protocol lines",
		Long: "Cycle through inputs and emit acquisition protocol lines:\n" +
			"ACQ., then \"<mux hex>: <volts>\" per reading, then END.",
		Example: "  ads1220ctl scan -m AIN0_AVSS,AIN1_AVSS -d 10s --serial /dev/ttyUSB0",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			muxes, gain, err := o.parse()
			if err != nil {
				return err
			}
			return a.withADC(cmd, func(adc *ads1220.ADS1220, s settings) error {
				var out io.Writer = cmd.OutOrStdout()
				if o.port != "" {
					p, err := o.openSerial(s)
					if err != nil {
						return err
					}
					out = p
				}
				w := acq.NewWriter(out)

				ctx, cancel := a.ctx, context.CancelFunc(func() {})
				if o.duration > 0 {
					ctx, cancel = context.WithTimeout(ctx, o.duration)
				}
				defer cancel()

				if err := w.Begin(); err != nil {
					return err
				}
				err := acquirer(adc, s, gain, o.interval, muxes)(ctx, func(mux ads1220.Mux, volts float64) {
					_ = w.Sample(mux, volts)
				})
				if o.port != "" {
					err = multierr.Append(err, w.Close())
				} else {
					err = multierr.Append(err, w.End())
				}
				return err
			})
		},
	}
	o.register(cmd)
	cmd.Flags().DurationVarP(&o.duration, "duration", "d", 0, "stop after this long, 0 runs until interrupted")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var o scanOpts
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Act as the acquisition board on a serial port",
		Long: "Announce READY... on the serial port and answer acquisition commands:\n" +
			"\"A<seconds>\" starts an acquisition, a second \"A\" stops it.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if o.port == "" {
				return fmt.Errorf("--serial is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			muxes, gain, err := o.parse()
			if err != nil {
				return err
			}
			return a.withADC(cmd, func(adc *ads1220.ADS1220, s settings) error {
				p, err := o.openSerial(s)
				if err != nil {
					return err
				}
				defer p.Close()

				a.log.Info().Str("port", o.port).Strs("mux", o.muxes).Msg("serving acquisition protocol")
				c := acq.NewController(p, acquirer(adc, s, gain, o.interval, muxes), a.log)
				err = c.Serve(a.ctx)
				if err == context.Canceled {
					return nil
				}
				return err
			})
		},
	}
	o.register(cmd)
	return cmd
}
