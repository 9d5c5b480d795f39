package ads1220

import (
	"go.uber.org/multierr"
)

// sendCommand clocks out a single command byte. Chip select is pulsed
// low-high-low before the command, as the chip's wake up handshake expects,
// and left high afterwards.
func (adc *ADS1220) sendCommand(cmd byte) (err error) {
	defer func() {
		err = multierr.Append(err, adc.setCSHigh())
	}()

	if err = adc.setCSLow(); err != nil {
		return err
	}
	adc.sleep(tCommand)
	if err = adc.setCSHigh(); err != nil {
		return err
	}
	adc.sleep(tCommand)
	if err = adc.setCSLow(); err != nil {
		return err
	}
	adc.sleep(tCommand)

	if _, err = adc.write([]byte{cmd}); err != nil {
		return err
	}

	adc.sleep(tCommand)
	return nil
}
