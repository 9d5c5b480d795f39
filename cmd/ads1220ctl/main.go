// Command ads1220ctl configures and reads an ADS1220 over one of several
// host transports, or a simulated chip.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

var version = "dev"

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	ctx   context.Context
	flags globalFlags
	log   zerolog.Logger
}

func newRootCmd(ctx context.Context, stderr io.Writer) *cobra.Command {
	a := &app{ctx: ctx, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "ads1220ctl",
		Short:         "ads1220ctl configures and reads TI ADS1220 converters",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = newLogger(stderr, a.flags.debug)
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	a.flags.register(root)

	root.AddCommand(
		newRegsCmd(a),
		newReadCmd(a),
		newScanCmd(a),
		newServeCmd(a),
		newPortsCmd(a),
	)
	return root
}

// withADC resolves the configuration, opens the transport, runs Begin and
// hands the ready device to fn. The device is powered down afterwards.
func (a *app) withADC(cmd *cobra.Command, fn func(adc *ads1220.ADS1220, s settings) error) error {
	s := a.flags.resolve(cmd)

	bus, err := openTransport(s, a.log)
	if err != nil {
		return err
	}

	opts := []ads1220.Option{ads1220.WithLogger(a.log)}
	if s.Transport == transportSim {
		opts = append(opts, ads1220.WithSleep(func(time.Duration) {}))
	}
	adc := ads1220.NewADS1220(bus, opts...)

	if err = adc.Begin(s.CS, s.DRDY); err != nil {
		_ = bus.Close()
		return fmt.Errorf("failed to initialize ADS1220: %w", err)
	}
	a.log.Debug().Str("transport", s.Transport).Msg("initialized ADS1220")

	defer func() {
		if cerr := adc.Close(); cerr != nil {
			a.log.Error().Err(cerr).Msg("failed to close ADS1220")
		}
	}()
	return fn(adc, s)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(ctx, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ads1220ctl: %s\n", err)
		stop()
		os.Exit(1)
	}
}
