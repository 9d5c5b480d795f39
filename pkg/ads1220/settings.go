package ads1220

import "fmt"

// All mutators below modify the shadow copy and write the whole register
// back; they never read the chip first.

// PGAOn enables the PGA by clearing PGA_BYPASS.
func (adc *ADS1220) PGAOn() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.writeRegister(RegCONFIG0, adc.regs[RegCONFIG0]&^Config0PGABypass)
}

// PGAOff bypasses the PGA by setting PGA_BYPASS.
func (adc *ADS1220) PGAOff() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.writeRegister(RegCONFIG0, adc.regs[RegCONFIG0]|Config0PGABypass)
}

// SetDataRate replaces the DR field of CONFIG1.
// The code is not range checked, pass one of the DR_xxx_SPS constants.
func (adc *ADS1220) SetDataRate(dr DataRate) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.writeRegister(RegCONFIG1, adc.regs[RegCONFIG1]&^Config1DRMask|byte(dr))
}

// SetPGAGain replaces the GAIN field of CONFIG0.
// The code is not range checked, pass one of the PGA_GAIN_xxx constants.
func (adc *ADS1220) SetPGAGain(g Gain) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.writeRegister(RegCONFIG0, adc.regs[RegCONFIG0]&^Config0GainMask|byte(g))
}

// SelectMuxChannels replaces the MUX field of CONFIG0.
// The code is not range checked, pass one of the MUX_xxx constants.
func (adc *ADS1220) SelectMuxChannels(m Mux) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.writeRegister(RegCONFIG0, adc.regs[RegCONFIG0]&^Config0MuxMask|byte(m))
}

// SetMode selects continuous or single-shot conversions via the CM bit.
func (adc *ADS1220) SetMode(m Mode) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	switch m {
	case ModeContinuous:
		return adc.writeRegister(RegCONFIG1, adc.regs[RegCONFIG1]|Config1CMbit)
	case ModeSingleShot:
		return adc.writeRegister(RegCONFIG1, adc.regs[RegCONFIG1]&^Config1CMbit)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidMode, m)
	}
}

// SetTemperatureSensor routes the internal temperature sensor to the
// converter. While enabled, readings are temperature codes, see [TemperatureCelsius].
func (adc *ADS1220) SetTemperatureSensor(on bool) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	val := adc.regs[RegCONFIG1] &^ Config1TSbit
	if on {
		val |= Config1TSbit
	}
	return adc.writeRegister(RegCONFIG1, val)
}
