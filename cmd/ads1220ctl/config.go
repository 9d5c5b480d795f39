package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
)

const (
	envPrefix         = "ADS1220_"
	defaultConfigFile = "ads1220.json"
)

// settings is the resolved configuration shared by all subcommands.
type settings struct {
	Transport string
	CS        uint
	DRDY      uint
	VRef      float64
	Timeout   time.Duration

	FTIndex  int
	FTSerial string
	FTClock  uint32

	SPIPort string
	SPIFreq int64

	SCLK, MOSI, MISO int
	Tclk             time.Duration

	Baud    int
	SimSeed int64
}

func defaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"transport":     "sim",
		"cs":            0x10, // FT232H C4
		"drdy":          0x01, // FT232H C0
		"vref":          2.048,
		"timeout":       "1s",
		"ft232h.index":  0,
		"ft232h.serial": "",
		"ft232h.clock":  1000000,
		"spidev.port":   "",
		"spidev.freq":   1000000,
		"bitbang.sclk":  11,
		"bitbang.mosi":  10,
		"bitbang.miso":  9,
		"bitbang.tclk":  "10us",
		"serial.baud":   115200,
		"sim.seed":      1,
	}
}

// loadConfig layers the environment over an optional JSON file over the
// defaults. The file is path when given, else ADS1220_CONFIG_FILE, else
// ads1220.json, and is skipped if it does not exist.
func loadConfig(path string) *config.Config {
	def := dict.New(dict.WithMap(defaultConfig()))
	// highest priority sources first - environment overrides the file
	cfg := config.New(
		env.New(env.WithEnvPrefix(envPrefix)),
		config.WithDefault(def))

	if path == "" {
		if v, err := cfg.Get("config.file"); err == nil {
			path = v.String()
		}
	}
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		// the file getter looks its name up under config.file, pin it to path
		name := config.New(dict.New(dict.WithMap(map[string]interface{}{"config.file": path})))
		cfg.Append(blob.NewConfigFile(name, "config.file", path, json.NewDecoder()))
	}
	return cfg.GetConfig("", config.WithMust)
}

func settingsFrom(cfg *config.Config) settings {
	return settings{
		Transport: cfg.MustGet("transport").String(),
		CS:        uint(cfg.MustGet("cs").Uint()),
		DRDY:      uint(cfg.MustGet("drdy").Uint()),
		VRef:      cfg.MustGet("vref").Float(),
		Timeout:   cfg.MustGet("timeout").Duration(),
		FTIndex:   int(cfg.MustGet("ft232h.index").Int()),
		FTSerial:  cfg.MustGet("ft232h.serial").String(),
		FTClock:   uint32(cfg.MustGet("ft232h.clock").Uint()),
		SPIPort:   cfg.MustGet("spidev.port").String(),
		SPIFreq:   cfg.MustGet("spidev.freq").Int64(),
		SCLK:      int(cfg.MustGet("bitbang.sclk").Int()),
		MOSI:      int(cfg.MustGet("bitbang.mosi").Int()),
		MISO:      int(cfg.MustGet("bitbang.miso").Int()),
		Tclk:      cfg.MustGet("bitbang.tclk").Duration(),
		Baud:      int(cfg.MustGet("serial.baud").Int()),
		SimSeed:   cfg.MustGet("sim.seed").Int64(),
	}
}

// globalFlags are the persistent flags of the root command. A flag the user
// set wins over every configuration source.
type globalFlags struct {
	configFile string
	debug      bool
	s          settings
}

func (g *globalFlags) register(cmd *cobra.Command) {
	d := settingsFrom(config.New(dict.New(dict.WithMap(defaultConfig()))))

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configFile, "config", "c", "", "JSON config file (default "+defaultConfigFile+")")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")
	pf.StringVarP(&g.s.Transport, "transport", "t", d.Transport, "bus transport: sim, ft232h, spidev or bitbang")
	pf.UintVar(&g.s.CS, "cs", d.CS, "chip select pin")
	pf.UintVar(&g.s.DRDY, "drdy", d.DRDY, "data ready pin")
	pf.Float64Var(&g.s.VRef, "vref", d.VRef, "reference voltage")
	pf.DurationVar(&g.s.Timeout, "timeout", d.Timeout, "per conversion timeout")
	pf.IntVar(&g.s.FTIndex, "ft232h-index", d.FTIndex, "FT232H device index")
	pf.StringVar(&g.s.FTSerial, "ft232h-serial", d.FTSerial, "FT232H serial number, overrides the index")
	pf.Uint32Var(&g.s.FTClock, "ft232h-clock", d.FTClock, "FT232H SPI clock in Hz")
	pf.StringVar(&g.s.SPIPort, "spi-port", d.SPIPort, "spidev port name, empty for the first one")
	pf.Int64Var(&g.s.SPIFreq, "spi-freq", d.SPIFreq, "spidev clock in Hz")
	pf.IntVar(&g.s.SCLK, "sclk", d.SCLK, "bit bashed SCLK GPIO")
	pf.IntVar(&g.s.MOSI, "mosi", d.MOSI, "bit bashed MOSI GPIO")
	pf.IntVar(&g.s.MISO, "miso", d.MISO, "bit bashed MISO GPIO")
	pf.DurationVar(&g.s.Tclk, "tclk", d.Tclk, "bit bashed half clock period")
	pf.Int64Var(&g.s.SimSeed, "sim-seed", d.SimSeed, "random walk seed of the simulated chip")
}

// resolve loads the configuration and applies the flags the user set.
func (g *globalFlags) resolve(cmd *cobra.Command) settings {
	s := settingsFrom(loadConfig(g.configFile))

	f := cmd.Flags()
	overrides := []struct {
		name  string
		apply func()
	}{
		{"transport", func() { s.Transport = g.s.Transport }},
		{"cs", func() { s.CS = g.s.CS }},
		{"drdy", func() { s.DRDY = g.s.DRDY }},
		{"vref", func() { s.VRef = g.s.VRef }},
		{"timeout", func() { s.Timeout = g.s.Timeout }},
		{"ft232h-index", func() { s.FTIndex = g.s.FTIndex }},
		{"ft232h-serial", func() { s.FTSerial = g.s.FTSerial }},
		{"ft232h-clock", func() { s.FTClock = g.s.FTClock }},
		{"spi-port", func() { s.SPIPort = g.s.SPIPort }},
		{"spi-freq", func() { s.SPIFreq = g.s.SPIFreq }},
		{"sclk", func() { s.SCLK = g.s.SCLK }},
		{"mosi", func() { s.MOSI = g.s.MOSI }},
		{"miso", func() { s.MISO = g.s.MISO }},
		{"tclk", func() { s.Tclk = g.s.Tclk }},
		{"sim-seed", func() { s.SimSeed = g.s.SimSeed }},
	}
	for _, o := range overrides {
		if f.Changed(o.name) {
			o.apply()
		}
	}
	return s
}
