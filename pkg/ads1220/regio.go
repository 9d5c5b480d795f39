package ads1220

import (
	"fmt"
)

// Shadow returns the driver's copy of the configuration registers without
// touching the bus.
func (adc *ADS1220) Shadow() [NumRegisters]byte {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.regs
}

// WriteRegister writes value to the register at regAddr and records it in the shadow.
// Values are not checked against the reserved bit patterns. 0xFF is never a
// legal value, and half duplex transports such as the FT232H refuse it.
func (adc *ADS1220) WriteRegister(regAddr, value byte) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.writeRegister(regAddr, value)
}

// ReadRegister reads the register at regAddr from the chip.
// The shadow is not updated, use [ADS1220.ConfigRegisters] for that.
func (adc *ADS1220) ReadRegister(regAddr byte) (byte, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.readRegister(regAddr)
}

// ConfigRegisters re-reads all configuration registers from the chip into the
// shadow and returns them. It is the only operation that resynchronizes the
// shadow with the chip, call it after a suspected external reset.
func (adc *ADS1220) ConfigRegisters() ([NumRegisters]byte, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	err := adc.readAllRegisters()
	return adc.regs, err
}

// writeRegister writes a single register [regAddr], with the given value.
func (adc *ADS1220) writeRegister(regAddr, value byte) error {
	if regAddr >= NumRegisters {
		return fmt.Errorf("invalid register address 0x%02X", regAddr)
	}

	// WREG: 0x40 | reg<<2, the low bits (count-1) stay zero for a single register
	cmd := byte(CMDWREG | (regAddr << 2))

	err := adc.selected(tRegister, func() error {
		_, err := adc.write([]byte{cmd, value})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", regAddr, err)
	}

	adc.regs[regAddr] = value
	return nil
}

// readRegister reads a single register [regAddr].
func (adc *ADS1220) readRegister(regAddr byte) (byte, error) {
	if regAddr >= NumRegisters {
		return 0, fmt.Errorf("invalid register address 0x%02X", regAddr)
	}

	// RREG: 0x20 | reg<<2
	cmd := byte(CMDRREG | (regAddr << 2))

	var buf [1]byte
	err := adc.selected(tRegister, func() error {
		if _, err := adc.write([]byte{cmd}); err != nil {
			return err
		}
		return adc.readInto(buf[:])
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read register 0x%02X: %w", regAddr, err)
	}

	return buf[0], nil
}

func (adc *ADS1220) readAllRegisters() error {
	for reg := byte(0); reg < NumRegisters; reg++ {
		val, err := adc.readRegister(reg)
		if err != nil {
			return err
		}
		adc.regs[reg] = val
	}

	return nil
}
