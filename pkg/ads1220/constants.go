package ads1220

import "strconv"

// Constants from the datasheet

// Register Addresses
const (
	// RegCONFIG0 holds MUX[7:4], GAIN[3:1] and PGA_BYPASS[0]
	RegCONFIG0 = 0x00
	// RegCONFIG1 holds DR[7:5], MODE[4:3], CM[2], TS[1] and BCS[0]
	RegCONFIG1 = 0x01
	// RegCONFIG2 holds VREF[7:6], 50/60[5:4], PSW[3] and IDAC[2:0]
	RegCONFIG2 = 0x02
	// RegCONFIG3 holds I1MUX[7:5], I2MUX[4:2] and DRDYM[1]
	RegCONFIG3 = 0x03

	// NumRegisters is the total number of registers.
	NumRegisters = 0x04
)

// Command Opcodes
const (
	CMDPOWERDOWN = 0x02
	CMDRESET     = 0x06
	CMDSTART     = 0x08 // START/SYNC
	CMDRDATA     = 0x10
	CMDRREG      = 0x20 // 0x20 | (reg << 2)
	CMDWREG      = 0x40 // 0x40 | (reg << 2)

	// CMDDUMMY is clocked out while reading, it is not a command.
	CMDDUMMY = 0xFF
)

// Field masks
const (
	Config0MuxMask    = 0xF0
	Config0GainMask   = 0x0E
	Config0PGABypass  = 0x01
	Config1DRMask     = 0xE0
	Config1CMbit      = 0x04 // (bit2) continuous conversion
	Config1TSbit      = 0x02 // (bit1) temperature sensor
	Config2Default    = 0x10 // internal vref, 50/60Hz rejection
	Config1Default    = 0x04 // 20SPS, normal mode, continuous, TS off
	Config0Default    = 0x00 // AIN0/AIN1, gain 1, PGA enabled
	Config3Default    = 0x00 // IDACs off, DRDY pin only
	FullScaleCode     = 8388607
	codesPerFullScale = 1 << 23
	temperatureShift  = 10
	temperatureDegLSB = 0.03125
)

// NoData is the raw value reported for a conversion that is not ready.
// A conversion result of 0xFFFFFF also sign-extends to this value, so
// callers should check [Sample.Ready] rather than comparing codes.
const NoData int32 = -1

// DataRate is a CONFIG1 DR field code in normal mode.
type DataRate byte

//goland:noinspection GoSnakeCaseUsage
const (
	DR_20_SPS   DataRate = 0x00
	DR_45_SPS   DataRate = 0x20
	DR_90_SPS   DataRate = 0x40
	DR_175_SPS  DataRate = 0x60
	DR_330_SPS  DataRate = 0x80
	DR_600_SPS  DataRate = 0xA0
	DR_1000_SPS DataRate = 0xC0
)

var dataRates = map[DataRate]int{
	DR_20_SPS:   20,
	DR_45_SPS:   45,
	DR_90_SPS:   90,
	DR_175_SPS:  175,
	DR_330_SPS:  330,
	DR_600_SPS:  600,
	DR_1000_SPS: 1000,
}

// SPS returns the nominal samples per second, or 0 for an unknown code.
func (dr DataRate) SPS() int {
	return dataRates[dr]
}

func (dr DataRate) String() string {
	if sps, ok := dataRates[dr]; ok {
		return strconv.Itoa(sps) + "SPS"
	}
	return "(invalid data rate)"
}

// DataRateFromSPS returns the code for a nominal rate.
func DataRateFromSPS(sps int) (DataRate, bool) {
	for dr, v := range dataRates {
		if v == sps {
			return dr, true
		}
	}
	return 0, false
}

// Gain is a CONFIG0 GAIN field code.
type Gain byte

//goland:noinspection GoSnakeCaseUsage
const (
	PGA_GAIN_1   Gain = 0x00
	PGA_GAIN_2   Gain = 0x02
	PGA_GAIN_4   Gain = 0x04
	PGA_GAIN_8   Gain = 0x06
	PGA_GAIN_16  Gain = 0x08
	PGA_GAIN_32  Gain = 0x0A
	PGA_GAIN_64  Gain = 0x0C
	PGA_GAIN_128 Gain = 0x0E
)

// Multiplier returns the amplification factor of the gain code.
func (g Gain) Multiplier() int {
	return 1 << ((g & Config0GainMask) >> 1)
}

func (g Gain) String() string {
	if g&^Config0GainMask != 0 {
		return "(invalid gain)"
	}
	return "x" + strconv.Itoa(g.Multiplier())
}

// GainFromMultiplier returns the code for an amplification factor.
func GainFromMultiplier(m int) (Gain, bool) {
	for g := PGA_GAIN_1; g <= PGA_GAIN_128; g += 2 {
		if g.Multiplier() == m {
			return g, true
		}
	}
	return 0, false
}

// Mux is a CONFIG0 MUX field code.
type Mux byte

//goland:noinspection GoSnakeCaseUsage
const (
	MUX_AIN0_AIN1 Mux = 0x00
	MUX_AIN0_AIN2 Mux = 0x10
	MUX_AIN0_AIN3 Mux = 0x20
	MUX_AIN1_AIN2 Mux = 0x30
	MUX_AIN1_AIN3 Mux = 0x40
	MUX_AIN2_AIN3 Mux = 0x50
	MUX_AIN1_AIN0 Mux = 0x60
	MUX_AIN3_AIN2 Mux = 0x70
	MUX_AIN0_AVSS Mux = 0x80
	MUX_AIN1_AVSS Mux = 0x90
	MUX_AIN2_AVSS Mux = 0xA0
	MUX_AIN3_AVSS Mux = 0xB0

	MUX_SE_CH0 = MUX_AIN0_AVSS
	MUX_SE_CH1 = MUX_AIN1_AVSS
	MUX_SE_CH2 = MUX_AIN2_AVSS
	MUX_SE_CH3 = MUX_AIN3_AVSS
)

var muxNames = map[Mux]string{
	MUX_AIN0_AIN1: "AIN0_AIN1",
	MUX_AIN0_AIN2: "AIN0_AIN2",
	MUX_AIN0_AIN3: "AIN0_AIN3",
	MUX_AIN1_AIN2: "AIN1_AIN2",
	MUX_AIN1_AIN3: "AIN1_AIN3",
	MUX_AIN2_AIN3: "AIN2_AIN3",
	MUX_AIN1_AIN0: "AIN1_AIN0",
	MUX_AIN3_AIN2: "AIN3_AIN2",
	MUX_AIN0_AVSS: "AIN0_AVSS",
	MUX_AIN1_AVSS: "AIN1_AVSS",
	MUX_AIN2_AVSS: "AIN2_AVSS",
	MUX_AIN3_AVSS: "AIN3_AVSS",
}

func (m Mux) String() string {
	if s, ok := muxNames[m]; ok {
		return s
	}
	return "(invalid mux)"
}

// ParseMux accepts the names returned by [Mux.String], case sensitive.
func ParseMux(s string) (Mux, bool) {
	for m, name := range muxNames {
		if name == s {
			return m, true
		}
	}
	return 0, false
}

// Mode selects continuous or single-shot conversion.
type Mode byte

const (
	ModeContinuous Mode = 0
	ModeSingleShot Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeSingleShot:
		return "single-shot"
	default:
		return "(invalid mode)"
	}
}

// DefaultRegisters are written by [ADS1220.Begin].
var DefaultRegisters = [NumRegisters]byte{
	Config0Default,
	Config1Default,
	Config2Default,
	Config3Default,
}
