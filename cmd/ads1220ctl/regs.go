package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/l0nax/go-spew/spew"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

// registerDump is the decoded view of the four configuration registers.
type registerDump struct {
	Raw        [ads1220.NumRegisters]string `json:"raw" yaml:"raw"`
	Mux        string                       `json:"mux" yaml:"mux"`
	Gain       string                       `json:"gain" yaml:"gain"`
	PGABypass  bool                         `json:"pga_bypass" yaml:"pga_bypass"`
	DataRate   string                       `json:"data_rate" yaml:"data_rate"`
	Mode       string                       `json:"mode" yaml:"mode"`
	TempSensor bool                         `json:"temp_sensor" yaml:"temp_sensor"`
}

func decodeRegisters(regs [ads1220.NumRegisters]byte) registerDump {
	var d registerDump
	for i, r := range regs {
		d.Raw[i] = fmt.Sprintf("0x%02X", r)
	}
	d.Mux = ads1220.Mux(regs[ads1220.RegCONFIG0] & ads1220.Config0MuxMask).String()
	d.Gain = ads1220.Gain(regs[ads1220.RegCONFIG0] & ads1220.Config0GainMask).String()
	d.PGABypass = regs[ads1220.RegCONFIG0]&ads1220.Config0PGABypass != 0
	d.DataRate = ads1220.DataRate(regs[ads1220.RegCONFIG1] & ads1220.Config1DRMask).String()
	d.Mode = ads1220.ModeSingleShot.String()
	if regs[ads1220.RegCONFIG1]&ads1220.Config1CMbit != 0 {
		d.Mode = ads1220.ModeContinuous.String()
	}
	d.TempSensor = regs[ads1220.RegCONFIG1]&ads1220.Config1TSbit != 0
	return d
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func writeDump(w io.Writer, format string, d registerDump) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case "dump":
		dumpConfig.Fdump(w, d)
		return nil
	case "text":
		_, err := fmt.Fprintf(w, "%s %s %s %s bypass=%t %s ts=%t\n",
			d.Raw, d.Mux, d.Gain, d.DataRate, d.PGABypass, d.Mode, d.TempSensor)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func newRegsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "regs",
		Short: "Initialize the converter and print its configuration registers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withADC(cmd, func(adc *ads1220.ADS1220, _ settings) error {
				regs, err := adc.ConfigRegisters()
				if err != nil {
					return err
				}
				return writeDump(cmd.OutOrStdout(), format, decodeRegisters(regs))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml or dump")
	return cmd
}
