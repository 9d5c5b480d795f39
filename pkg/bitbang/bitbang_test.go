package bitbang

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpio"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

var _ ads1220.SerialInterface = (*SPI)(nil)

type fakeLine struct {
	level   gpio.Level
	output  bool
	pullUp  bool
	onWrite func(gpio.Level)
	onRead  func() gpio.Level
}

func (l *fakeLine) Input()  { l.output = false }
func (l *fakeLine) Output() { l.output = true }
func (l *fakeLine) PullUp() { l.pullUp = true }

func (l *fakeLine) Write(level gpio.Level) {
	if l.onWrite != nil {
		l.onWrite(level)
	}
	l.level = level
}

func (l *fakeLine) Read() gpio.Level {
	if l.onRead != nil {
		return l.onRead()
	}
	return l.level
}

// shiftDevice latches MOSI on every rising SCLK edge and shifts its reply
// out MSB first, one bit per clock.
type shiftDevice struct {
	sclk, mosi, miso *fakeLine
	lines            map[int]*fakeLine
	captured         []gpio.Level
	reply            byte
	bit              int
	released         bool
}

func newShiftDevice() *shiftDevice {
	d := &shiftDevice{
		sclk:  &fakeLine{},
		mosi:  &fakeLine{},
		miso:  &fakeLine{},
		lines: make(map[int]*fakeLine),
	}
	d.sclk.onWrite = func(l gpio.Level) {
		if l == gpio.High && d.sclk.level == gpio.Low {
			d.captured = append(d.captured, d.mosi.level)
			d.miso.level = gpio.Level(d.reply&(0x80>>uint(d.bit%8)) != 0)
			d.bit++
		}
	}
	return d
}

func (d *shiftDevice) spi() *SPI {
	s := newSPI(0, d.sclk, d.mosi, d.miso, func(pin int) line {
		l := &fakeLine{}
		d.lines[pin] = l
		return l
	}, func() error {
		d.released = true
		return nil
	})
	s.sleep = func(time.Duration) {}
	return s
}

func (d *shiftDevice) sent() byte {
	var b byte
	for _, l := range d.captured {
		b <<= 1
		if l == gpio.High {
			b |= 1
		}
	}
	return b
}

func TestTransfer(t *testing.T) {
	d := newShiftDevice()
	s := d.spi()
	assert.Equal(t, DefaultTclk, s.Tclk)

	require.NoError(t, s.Init())
	assert.True(t, d.sclk.output)
	assert.Equal(t, gpio.Low, d.sclk.level, "mode 1 idles low")
	assert.True(t, d.mosi.output)
	assert.False(t, d.miso.output)

	tests := []struct {
		out, reply byte
	}{
		{0x06, 0x00},
		{0x44, 0xA5},
		{0xFF, 0x80},
		{0x00, 0x01},
	}
	for _, tt := range tests {
		d.captured = nil
		d.reply = tt.reply
		in, err := s.Transfer(tt.out)
		require.NoError(t, err)
		assert.Len(t, d.captured, 8)
		assert.Equal(t, tt.out, d.sent(), "byte shifted out")
		assert.Equal(t, tt.reply, in, "byte shifted in")
		assert.Equal(t, gpio.Low, d.sclk.level, "clock parked low")
	}
}

func TestChipSelectAndDRDY(t *testing.T) {
	d := newShiftDevice()
	s := d.spi()

	assert.ErrorIs(t, s.SetCS(false), ErrPinsNotConfigured)
	_, err := s.DRDY()
	assert.ErrorIs(t, err, ErrPinsNotConfigured)

	assert.ErrorIs(t, s.ConfigurePins(60, 25), ErrPinOutOfRange)

	require.NoError(t, s.ConfigurePins(8, 25))
	cs, drdy := d.lines[8], d.lines[25]
	assert.True(t, cs.output)
	assert.Equal(t, gpio.High, cs.level)
	assert.False(t, drdy.output)
	assert.True(t, drdy.pullUp)

	require.NoError(t, s.SetCS(false))
	assert.Equal(t, gpio.Low, cs.level)

	drdy.level = gpio.Low
	high, err := s.DRDY()
	require.NoError(t, err)
	assert.False(t, high)

	require.NoError(t, s.Close())
	assert.True(t, d.released)
	assert.False(t, cs.output)
	assert.False(t, d.sclk.output)
}

func TestOpenPinOutOfRange(t *testing.T) {
	tests := []struct {
		name             string
		sclk, mosi, miso int
	}{
		{"sclk", gpio.MaxGPIOPin, 10, 9},
		{"mosi", 11, -1, 9},
		{"miso", 11, 10, gpio.MaxGPIOPin + 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Open(0, tc.sclk, tc.mosi, tc.miso)
			assert.ErrorIs(t, err, ErrPinOutOfRange)
			assert.Nil(t, s)
		})
	}
}
