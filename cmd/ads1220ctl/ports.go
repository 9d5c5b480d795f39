package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kutukvpavel/stm32-ads1220/pkg/acq"
)

func newPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports usable by scan and serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := acq.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				a.log.Warn().Msg("no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
