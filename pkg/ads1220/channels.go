package ads1220

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

// maxScanErrors stops a scan that keeps failing.
const maxScanErrors = 50

// DataCallback receives each reading of a scan along with the mux it was taken on.
type DataCallback func(mux Mux, code int32)

// ChannelScan is a running [ADS1220.ScanChannels].
type ChannelScan struct {
	Interval time.Duration
	done     *atomic.Bool
	finished chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	muxes    []Mux
	callback DataCallback
	err      error
	errCount int
	errMu    sync.Mutex
}

func newChannelScan(interval time.Duration, muxes []Mux, onData DataCallback) *ChannelScan {
	return &ChannelScan{
		Interval: interval,
		done:     &atomic.Bool{},
		finished: make(chan struct{}),
		stop:     make(chan struct{}),
		muxes:    muxes,
		callback: onData,
	}
}

func (cs *ChannelScan) addErr(err error) {
	if err == nil {
		return
	}
	cs.errMu.Lock()
	cs.err = multierr.Append(cs.err, err)
	cs.errCount++
	if cs.errCount >= maxScanErrors {
		cs.Stop()
	}
	cs.errMu.Unlock()
}

// Err returns the errors collected so far, or nil.
func (cs *ChannelScan) Err() error {
	cs.errMu.Lock()
	defer cs.errMu.Unlock()
	if cs.err == nil {
		return nil
	}
	return fmt.Errorf("channel scan errors: %w", cs.err)
}

// Stop asks the scan to finish after the current conversion. A pause
// between cycles is cut short.
func (cs *ChannelScan) Stop() {
	cs.done.Store(true)
	cs.stopOnce.Do(func() { close(cs.stop) })
}

func (cs *ChannelScan) IsDone() bool {
	return cs.done.Load()
}

// Wait blocks until the scan goroutine has exited or ctx is done,
// then returns the collected errors.
func (cs *ChannelScan) Wait(ctx context.Context) error {
	select {
	case <-cs.finished:
		return cs.Err()
	case <-ctx.Done():
		return multierr.Append(cs.Err(), ctx.Err())
	}
}

// scanOnce takes one reading from every mux in the list.
func (adc *ADS1220) scanOnce(ctx context.Context, cs *ChannelScan) {
	for _, mux := range cs.muxes {
		if cs.done.Load() || ctx.Err() != nil {
			return
		}

		adc.log.Trace().Stringer("mux", mux).Msg("scanning")

		if err := adc.SelectMuxChannels(mux); err != nil {
			cs.addErr(err)
			continue
		}

		code, err := adc.SingleShotBlocking(ctx)
		if err != nil {
			if ctx.Err() == nil {
				cs.addErr(fmt.Errorf("%s: %w", mux, err))
			}
			continue
		}

		cs.callback(mux, code)
	}
}

// ScanChannels cycles through a list of mux settings, taking one
// conversion per setting and handing it to onData. A START/SYNC is sent after
// every mux change so the first reading is not stale, which works in both
// conversion modes. The scan pauses for scanInterval after each full cycle.
//
// This method spawns a go routine that fires off your callback; it runs until
// ctx is done, Stop is called, or too many errors have been collected.
func (adc *ADS1220) ScanChannels(
	ctx context.Context,
	scanInterval time.Duration,
	onData DataCallback,
	muxes ...Mux,
) (*ChannelScan, error) {
	if len(muxes) == 0 {
		return nil, ErrNoChannels
	}

	chScan := newChannelScan(scanInterval, muxes, onData)

	go func() {
		defer close(chScan.finished)
		for !chScan.done.Load() {
			adc.scanOnce(ctx, chScan)

			select {
			case <-ctx.Done():
				chScan.done.Store(true)
				return
			case <-chScan.stop:
				return
			case <-time.After(scanInterval):
			}
		}
	}()

	return chScan, nil
}
