package ads1220_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
	"github.com/kutukvpavel/stm32-ads1220/pkg/sim"
)

func noSleep(time.Duration) {}

func newADC(t *testing.T, opts ...ads1220.Option) (*ads1220.ADS1220, *sim.Chip) {
	t.Helper()
	chip := sim.New()
	adc := ads1220.NewADS1220(chip, append([]ads1220.Option{ads1220.WithSleep(noSleep)}, opts...)...)
	require.NoError(t, adc.Begin(5, 6))
	chip.ClearEvents()
	return adc, chip
}

func kinds(events []sim.Event) []sim.EventKind {
	out := make([]sim.EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func sent(events []sim.Event) []byte {
	var out []byte
	for _, e := range events {
		if e.Kind == sim.Xfer {
			out = append(out, e.Out)
		}
	}
	return out
}

func TestBegin(t *testing.T) {
	var sleeps []time.Duration
	chip := sim.New()
	adc := ads1220.NewADS1220(chip, ads1220.WithSleep(func(d time.Duration) {
		sleeps = append(sleeps, d)
	}))

	require.NoError(t, adc.Begin(5, 6))

	assert.True(t, chip.Initialized())
	cs, drdy := chip.Pins()
	assert.Equal(t, uint(5), cs)
	assert.Equal(t, uint(6), drdy)
	cs, drdy = adc.Pins()
	assert.Equal(t, uint(5), cs)
	assert.Equal(t, uint(6), drdy)

	assert.Equal(t, [4]byte{0x00, 0x04, 0x10, 0x00}, adc.Shadow())
	assert.Equal(t, adc.Shadow(), chip.Registers())

	assert.False(t, chip.Selected())
	assert.Zero(t, chip.Violations())

	events := chip.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, sim.CSHigh, events[0].Kind, "chip select must idle high before the first command")
	assert.Equal(t, byte(ads1220.CMDRESET), sent(events)[0])

	require.NotEmpty(t, sleeps)
	assert.Equal(t, 100*time.Millisecond, sleeps[0])
	assert.Equal(t, 200*time.Millisecond, sleeps[len(sleeps)-1])

	// no conversion is started
	ready, err := adc.IsReady()
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestCommandFraming(t *testing.T) {
	adc, chip := newADC(t)

	tests := []struct {
		name string
		op   func() error
		cmd  byte
	}{
		{"Reset", adc.Reset, 0x06},
		{"StartConversion", adc.StartConversion, 0x08},
		{"PowerDown", adc.PowerDown, 0x02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip.ClearEvents()
			require.NoError(t, tt.op())

			events := chip.Events()
			assert.Equal(t,
				[]sim.EventKind{sim.CSLow, sim.CSHigh, sim.CSLow, sim.Xfer, sim.CSHigh},
				kinds(events))
			assert.Equal(t, []byte{tt.cmd}, sent(events))
		})
	}
}

// Raw bytes only reach the bus inside a framed, locked operation.
func TestNoUnframedWrites(t *testing.T) {
	adc, chip := newADC(t)
	_, ok := interface{}(adc).(io.Writer)
	assert.False(t, ok, "handle exposes an unlocked byte writer")

	require.NoError(t, adc.WriteRegister(ads1220.RegCONFIG2, 0x10))
	_, err := adc.ReadRegister(ads1220.RegCONFIG2)
	require.NoError(t, err)
	require.NoError(t, adc.StartConversion())
	assert.Zero(t, chip.Violations())
	assert.False(t, chip.Selected())
}

func TestRegisterFraming(t *testing.T) {
	adc, chip := newADC(t)

	t.Run("Write", func(t *testing.T) {
		chip.ClearEvents()
		require.NoError(t, adc.WriteRegister(ads1220.RegCONFIG2, 0x55))

		events := chip.Events()
		assert.Equal(t, []sim.EventKind{sim.CSLow, sim.Xfer, sim.Xfer, sim.CSHigh}, kinds(events))
		assert.Equal(t, []byte{0x48, 0x55}, sent(events))
		assert.Equal(t, byte(0x55), adc.Shadow()[ads1220.RegCONFIG2])
		assert.Equal(t, byte(0x55), chip.Registers()[ads1220.RegCONFIG2])
	})

	t.Run("Read", func(t *testing.T) {
		chip.ClearEvents()
		val, err := adc.ReadRegister(ads1220.RegCONFIG2)
		require.NoError(t, err)
		assert.Equal(t, byte(0x55), val)

		events := chip.Events()
		assert.Equal(t, []sim.EventKind{sim.CSLow, sim.Xfer, sim.Xfer, sim.CSHigh}, kinds(events))
		assert.Equal(t, []byte{0x28, 0xFF}, sent(events))
	})

	t.Run("InvalidAddress", func(t *testing.T) {
		chip.ClearEvents()
		assert.Error(t, adc.WriteRegister(4, 0x00))
		_, err := adc.ReadRegister(0x10)
		assert.Error(t, err)
		assert.Empty(t, chip.Events())
	})
}

func TestMutatorsPreserveOtherBits(t *testing.T) {
	adc, chip := newADC(t)

	gains := []ads1220.Gain{
		ads1220.PGA_GAIN_1, ads1220.PGA_GAIN_2, ads1220.PGA_GAIN_4, ads1220.PGA_GAIN_8,
		ads1220.PGA_GAIN_16, ads1220.PGA_GAIN_32, ads1220.PGA_GAIN_64, ads1220.PGA_GAIN_128,
	}
	for _, g := range gains {
		t.Run("Gain"+g.String(), func(t *testing.T) {
			require.NoError(t, adc.WriteRegister(ads1220.RegCONFIG0, 0xF1))
			require.NoError(t, adc.SetPGAGain(g))
			assert.Equal(t, 0xF1|byte(g), adc.Shadow()[ads1220.RegCONFIG0])
			assert.Equal(t, adc.Shadow(), chip.Registers())
		})
	}

	rates := []ads1220.DataRate{
		ads1220.DR_20_SPS, ads1220.DR_45_SPS, ads1220.DR_90_SPS, ads1220.DR_175_SPS,
		ads1220.DR_330_SPS, ads1220.DR_600_SPS, ads1220.DR_1000_SPS,
	}
	for _, dr := range rates {
		t.Run("DataRate"+dr.String(), func(t *testing.T) {
			require.NoError(t, adc.WriteRegister(ads1220.RegCONFIG1, 0x1F))
			require.NoError(t, adc.SetDataRate(dr))
			assert.Equal(t, 0x1F|byte(dr), adc.Shadow()[ads1220.RegCONFIG1])
			assert.Equal(t, adc.Shadow(), chip.Registers())
		})
	}

	t.Run("Mux", func(t *testing.T) {
		require.NoError(t, adc.WriteRegister(ads1220.RegCONFIG0, 0x0F))
		require.NoError(t, adc.SelectMuxChannels(ads1220.MUX_AIN3_AIN2))
		assert.Equal(t, byte(0x7F), adc.Shadow()[ads1220.RegCONFIG0])

		require.NoError(t, adc.SelectMuxChannels(ads1220.MUX_SE_CH0))
		assert.Equal(t, byte(0x8F), adc.Shadow()[ads1220.RegCONFIG0])
	})
}

func TestPGAToggle(t *testing.T) {
	adc, chip := newADC(t)

	require.NoError(t, adc.SetPGAGain(ads1220.PGA_GAIN_16))
	before := adc.Shadow()[ads1220.RegCONFIG0]

	require.NoError(t, adc.PGAOff())
	assert.Equal(t, before|0x01, adc.Shadow()[ads1220.RegCONFIG0])

	require.NoError(t, adc.PGAOn())
	assert.Equal(t, before, adc.Shadow()[ads1220.RegCONFIG0])
	assert.Equal(t, before, chip.Registers()[ads1220.RegCONFIG0])
}

func TestSetMode(t *testing.T) {
	adc, chip := newADC(t)

	require.NoError(t, adc.SetMode(ads1220.ModeSingleShot))
	assert.Equal(t, byte(0x00), adc.Shadow()[ads1220.RegCONFIG1])

	require.NoError(t, adc.SetMode(ads1220.ModeContinuous))
	assert.Equal(t, byte(0x04), adc.Shadow()[ads1220.RegCONFIG1])

	chip.ClearEvents()
	err := adc.SetMode(ads1220.Mode(2))
	assert.ErrorIs(t, err, ads1220.ErrInvalidMode)
	assert.Equal(t, byte(0x04), adc.Shadow()[ads1220.RegCONFIG1])
	assert.Empty(t, chip.Events())
}

func TestSetTemperatureSensor(t *testing.T) {
	adc, _ := newADC(t)

	require.NoError(t, adc.SetTemperatureSensor(true))
	assert.Equal(t, byte(0x06), adc.Shadow()[ads1220.RegCONFIG1])

	require.NoError(t, adc.SetTemperatureSensor(false))
	assert.Equal(t, byte(0x04), adc.Shadow()[ads1220.RegCONFIG1])
}

func TestReadResultNotReady(t *testing.T) {
	adc, chip := newADC(t)

	s, err := adc.ReadResult()
	require.NoError(t, err)
	assert.False(t, s.Ready)
	assert.Equal(t, ads1220.NoData, s.Raw())
	assert.Empty(t, chip.Events(), "a conversion that is not ready must not touch the bus")
}

func TestReadResultBlocking(t *testing.T) {
	adc, chip := newADC(t)
	chip.DRDYDelay = 3
	chip.Push(0x123456)
	require.NoError(t, adc.StartConversion())
	chip.ClearEvents()

	code, err := adc.ReadResultBlocking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0x123456), code)

	assert.Equal(t, 1, chip.ConversionReads())
	assert.GreaterOrEqual(t, chip.DRDYPolls(), 4)

	events := chip.Events()
	assert.Equal(t,
		[]sim.EventKind{sim.CSLow, sim.Xfer, sim.Xfer, sim.Xfer, sim.CSHigh},
		kinds(events))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, sent(events))
}

func TestReadResultAllOnes(t *testing.T) {
	adc, chip := newADC(t)
	chip.Push(-1)
	require.NoError(t, adc.StartConversion())

	s, err := adc.ReadResult()
	require.NoError(t, err)
	assert.True(t, s.Ready)
	assert.Equal(t, int32(-1), s.Code)

	chip.Push(-1)
	require.NoError(t, adc.StartConversion())
	code, err := adc.ReadResultBlocking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(-1), code)
}

func TestReadResultBlockingContext(t *testing.T) {
	adc, chip := newADC(t, ads1220.WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	code, err := adc.ReadResultBlocking(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ads1220.NoData, code)
	assert.Zero(t, chip.ConversionReads())

	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	_, err = adc.SingleShotBlocking(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConversionModes(t *testing.T) {
	t.Run("SingleShot", func(t *testing.T) {
		adc, chip := newADC(t)
		require.NoError(t, adc.SetMode(ads1220.ModeSingleShot))
		chip.Push(100, 200)

		code, err := adc.SingleShotBlocking(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(100), code)

		s, err := adc.ReadResult()
		require.NoError(t, err)
		assert.False(t, s.Ready, "single-shot mode converts once per START")

		code, err = adc.SingleShotBlocking(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(200), code)
	})

	t.Run("Continuous", func(t *testing.T) {
		adc, chip := newADC(t)
		chip.Push(1, -2, 3)
		require.NoError(t, adc.StartConversion())

		for _, want := range []int32{1, -2, 3} {
			code, err := adc.ReadResultBlocking(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, code)
		}
		assert.Equal(t, 3, chip.ConversionReads())
	})
}

func TestRData(t *testing.T) {
	adc, chip := newADC(t)
	chip.Push(-42)
	require.NoError(t, adc.StartConversion())
	chip.ClearEvents()

	code, err := adc.RData()
	require.NoError(t, err)
	assert.Equal(t, int32(-42), code)
	assert.Equal(t, []byte{ads1220.CMDRDATA, 0xFF, 0xFF, 0xFF}, sent(chip.Events()))
	assert.False(t, chip.Selected())
}

func TestChipSelectReleasedOnError(t *testing.T) {
	errBus := errors.New("bus fault")

	tests := []struct {
		name    string
		prepare func(adc *ads1220.ADS1220, chip *sim.Chip) error
		op      func(adc *ads1220.ADS1220) error
	}{
		{
			name: "Reset",
			op:   (*ads1220.ADS1220).Reset,
		},
		{
			name: "WriteRegister",
			op: func(adc *ads1220.ADS1220) error {
				return adc.WriteRegister(ads1220.RegCONFIG3, 0x02)
			},
		},
		{
			name: "ReadRegister",
			op: func(adc *ads1220.ADS1220) error {
				_, err := adc.ReadRegister(ads1220.RegCONFIG1)
				return err
			},
		},
		{
			name: "SetPGAGain",
			op: func(adc *ads1220.ADS1220) error {
				return adc.SetPGAGain(ads1220.PGA_GAIN_64)
			},
		},
		{
			name: "ReadResult",
			prepare: func(adc *ads1220.ADS1220, chip *sim.Chip) error {
				chip.Push(7)
				return adc.StartConversion()
			},
			op: func(adc *ads1220.ADS1220) error {
				_, err := adc.ReadResult()
				return err
			},
		},
		{
			name: "RData",
			op: func(adc *ads1220.ADS1220) error {
				_, err := adc.RData()
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adc, chip := newADC(t)
			if tt.prepare != nil {
				require.NoError(t, tt.prepare(adc, chip))
			}
			shadow := adc.Shadow()
			chip.Fail(errBus)

			err := tt.op(adc)
			assert.ErrorIs(t, err, errBus)
			assert.False(t, chip.Selected(), "chip select left asserted")

			events := chip.Events()
			require.NotEmpty(t, events)
			assert.Equal(t, sim.CSHigh, events[len(events)-1].Kind)
			assert.Equal(t, shadow, adc.Shadow(), "failed write must not reach the shadow")
		})
	}
}

func TestConfigRegistersResync(t *testing.T) {
	adc, chip := newADC(t)
	require.NoError(t, adc.SetPGAGain(ads1220.PGA_GAIN_4))

	chip.ExternalReset()
	assert.Equal(t, [4]byte{}, chip.Registers())
	assert.Equal(t, [4]byte{0x04, 0x04, 0x10, 0x00}, adc.Shadow(), "shadow drifts after an external reset")

	regs, err := adc.ConfigRegisters()
	require.NoError(t, err)
	assert.Equal(t, [4]byte{}, regs)
	assert.Equal(t, [4]byte{}, adc.Shadow())
}

func TestClose(t *testing.T) {
	adc, chip := newADC(t)

	require.NoError(t, adc.Close())
	assert.True(t, chip.PoweredDown())
	assert.True(t, chip.Closed())
	assert.Equal(t, []byte{ads1220.CMDPOWERDOWN}, sent(chip.Events()))
}

func TestConcurrentCallers(t *testing.T) {
	adc, chip := newADC(t)
	chip.Source = func([ads1220.NumRegisters]byte) int32 { return 10 }
	require.NoError(t, adc.StartConversion())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if i%2 == 0 {
					_, err := adc.ReadResultBlocking(context.Background())
					assert.NoError(t, err)
				} else {
					assert.NoError(t, adc.SetPGAGain(ads1220.Gain(j%8)*2))
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, chip.Violations())
	assert.False(t, chip.Selected())
	assert.Equal(t, 40, chip.ConversionReads())
}

func TestScanChannels(t *testing.T) {
	t.Run("NoChannels", func(t *testing.T) {
		adc, _ := newADC(t)
		_, err := adc.ScanChannels(context.Background(), 0, func(ads1220.Mux, int32) {})
		assert.ErrorIs(t, err, ads1220.ErrNoChannels)
	})

	t.Run("Cycle", func(t *testing.T) {
		adc, chip := newADC(t)
		chip.Source = func(regs [ads1220.NumRegisters]byte) int32 {
			return int32(regs[ads1220.RegCONFIG0] & ads1220.Config0MuxMask)
		}

		type reading struct {
			mux  ads1220.Mux
			code int32
		}
		var (
			mu   sync.Mutex
			got  []reading
			scan *ads1220.ChannelScan
		)
		ready := make(chan struct{})
		scan, err := adc.ScanChannels(context.Background(), 0, func(mux ads1220.Mux, code int32) {
			<-ready
			mu.Lock()
			defer mu.Unlock()
			got = append(got, reading{mux, code})
			if len(got) == 4 {
				scan.Stop()
			}
		}, ads1220.MUX_SE_CH0, ads1220.MUX_SE_CH1)
		require.NoError(t, err)
		close(ready)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, scan.Wait(ctx))
		assert.True(t, scan.IsDone())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []reading{
			{ads1220.MUX_SE_CH0, 0x80},
			{ads1220.MUX_SE_CH1, 0x90},
			{ads1220.MUX_SE_CH0, 0x80},
			{ads1220.MUX_SE_CH1, 0x90},
		}, got)
		assert.Zero(t, chip.Violations())
	})

	t.Run("Cancel", func(t *testing.T) {
		adc, chip := newADC(t)
		chip.Source = func([ads1220.NumRegisters]byte) int32 { return 1 }

		ctx, cancel := context.WithCancel(context.Background())
		var once sync.Once
		scan, err := adc.ScanChannels(ctx, time.Hour, func(ads1220.Mux, int32) {
			once.Do(cancel)
		}, ads1220.MUX_AIN0_AIN1)
		require.NoError(t, err)

		wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer wcancel()
		assert.NoError(t, scan.Wait(wctx))
		assert.True(t, scan.IsDone())
	})

	t.Run("StopDuringInterval", func(t *testing.T) {
		adc, chip := newADC(t)
		chip.Source = func([ads1220.NumRegisters]byte) int32 { return 1 }

		first := make(chan struct{})
		var once sync.Once
		scan, err := adc.ScanChannels(context.Background(), time.Hour, func(ads1220.Mux, int32) {
			once.Do(func() { close(first) })
		}, ads1220.MUX_AIN0_AIN1)
		require.NoError(t, err)

		<-first
		scan.Stop()
		scan.Stop()

		wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer wcancel()
		assert.NoError(t, scan.Wait(wctx))
	})
}
