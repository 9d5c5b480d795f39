package ads1220

import (
	"time"

	"go.uber.org/multierr"
)

func (adc *ADS1220) setCSLow() error {
	return adc.spi.SetCS(false)
}
func (adc *ADS1220) setCSHigh() error {
	return adc.spi.SetCS(true)
}

// selected runs fn with chip select asserted, waiting settle after the
// falling edge and before the rising edge. Chip select is always released,
// even when asserting it failed or fn returned an error.
func (adc *ADS1220) selected(settle time.Duration, fn func() error) (err error) {
	defer func() {
		err = multierr.Append(err, adc.setCSHigh())
	}()

	if err = adc.setCSLow(); err != nil {
		return err
	}
	adc.sleep(settle)

	if err = fn(); err != nil {
		return err
	}

	adc.sleep(settle)
	return nil
}

// write clocks p out byte by byte. The caller holds the lock and chip select.
func (adc *ADS1220) write(p []byte) (int, error) {
	for i, b := range p {
		if _, err := adc.spi.Transfer(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// readInto fills p with the bytes returned for dummy transfers.
func (adc *ADS1220) readInto(p []byte) error {
	for i := range p {
		b, err := adc.spi.Transfer(CMDDUMMY)
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}
