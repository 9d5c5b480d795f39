// Package sim provides a simulated ADS1220 that speaks the chip's SPI
// protocol, for tests and for running the tools without hardware.
package sim

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

// ErrNotSelected is returned for transfers clocked while chip select is high.
var ErrNotSelected = errors.New("transfer while chip select is high")

// EventKind tags a bus [Event].
type EventKind int

const (
	CSLow EventKind = iota
	CSHigh
	Xfer
)

func (k EventKind) String() string {
	switch k {
	case CSLow:
		return "CSLow"
	case CSHigh:
		return "CSHigh"
	default:
		return "Xfer"
	}
}

// Event is one observed bus action. Out and In are set for Xfer only.
type Event struct {
	Kind EventKind
	Out  byte
	In   byte
}

// Source produces a conversion for the current register contents.
type Source func(regs [ads1220.NumRegisters]byte) int32

// Chip simulates an ADS1220 on the far side of a [ads1220.SerialInterface].
type Chip struct {
	mu sync.Mutex

	// DRDYDelay is the number of DRDY polls a new conversion stays hidden for.
	DRDYDelay int
	// Source is consulted when no pushed conversion is queued.
	Source Source

	regs   [ads1220.NumRegisters]byte
	csHigh bool

	queue     []int32
	hasData   bool
	current   int32
	last      int32
	pollsLeft int
	started   bool
	powerDown bool

	out      []byte
	wregAddr int
	wregLeft int

	events          []Event
	violations      int
	conversionReads int
	drdyPolls       int
	fail            error

	csPin, drdyPin uint
	initialized    bool
	closed         bool
}

// New returns a powered-up chip with chip select released.
func New() *Chip {
	return &Chip{csHigh: true}
}

// Push queues conversion results, oldest first.
func (c *Chip) Push(codes ...int32) {
	c.mu.Lock()
	c.queue = append(c.queue, codes...)
	c.mu.Unlock()
}

// Fail makes the next transfer return err.
func (c *Chip) Fail(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

// ExternalReset resets the chip without any bus traffic, as a brown-out would.
func (c *Chip) ExternalReset() {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}

// Registers returns the chip's real register contents.
func (c *Chip) Registers() [ads1220.NumRegisters]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs
}

// Events returns the bus actions recorded since the last ClearEvents.
func (c *Chip) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// ClearEvents drops the recorded bus actions.
func (c *Chip) ClearEvents() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// Selected reports whether chip select is currently asserted.
func (c *Chip) Selected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.csHigh
}

// Violations counts transfers attempted while chip select was high.
func (c *Chip) Violations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violations
}

// ConversionReads counts conversions clocked out, directly or by RDATA.
func (c *Chip) ConversionReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversionReads
}

// DRDYPolls counts reads of the DRDY line.
func (c *Chip) DRDYPolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drdyPolls
}

// PoweredDown reports whether POWERDOWN was the last power command.
func (c *Chip) PoweredDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powerDown
}

// Pins returns the pins bound by ConfigurePins.
func (c *Chip) Pins() (cs, drdy uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csPin, c.drdyPin
}

func (c *Chip) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *Chip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ConfigurePins implements [ads1220.SerialInterface].
func (c *Chip) ConfigurePins(cs, drdy uint) error {
	c.mu.Lock()
	c.csPin, c.drdyPin = cs, drdy
	c.mu.Unlock()
	return nil
}

// Init implements [ads1220.SerialInterface].
func (c *Chip) Init() error {
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// Close implements [ads1220.SerialInterface].
func (c *Chip) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// SetCS implements [ads1220.SerialInterface]. Any edge aborts a partial command.
func (c *Chip) SetCS(high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if high {
		c.events = append(c.events, Event{Kind: CSHigh})
	} else {
		c.events = append(c.events, Event{Kind: CSLow})
	}
	if high != c.csHigh {
		c.out = nil
		c.wregLeft = 0
	}
	c.csHigh = high
	return nil
}

// DRDY implements [ads1220.SerialInterface].
func (c *Chip) DRDY() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drdyPolls++
	if !c.hasData {
		return true, nil
	}
	if c.pollsLeft > 0 {
		c.pollsLeft--
		return true, nil
	}
	return false, nil
}

// Transfer implements [ads1220.SerialInterface].
func (c *Chip) Transfer(b byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail; err != nil {
		c.fail = nil
		return 0, err
	}
	if c.csHigh {
		c.violations++
		return 0, ErrNotSelected
	}

	in := c.clock(b)
	c.events = append(c.events, Event{Kind: Xfer, Out: b, In: in})
	return in, nil
}

func (c *Chip) clock(b byte) byte {
	if c.wregLeft > 0 {
		if c.wregAddr < ads1220.NumRegisters {
			c.regs[c.wregAddr] = b
		}
		c.wregAddr++
		c.wregLeft--
		return 0xFF
	}

	if len(c.out) > 0 {
		in := c.out[0]
		c.out = c.out[1:]
		return in
	}

	if b == ads1220.CMDDUMMY {
		if c.hasData && c.pollsLeft == 0 {
			c.out = c.takeConversion()
			return c.clock(b)
		}
		return 0xFF
	}

	c.command(b)
	return 0xFF
}

func (c *Chip) command(b byte) {
	switch {
	case b == ads1220.CMDRESET:
		c.reset()
	case b == ads1220.CMDSTART:
		c.started = true
		c.powerDown = false
		c.latch()
	case b == ads1220.CMDPOWERDOWN:
		c.powerDown = true
		c.started = false
	case b == ads1220.CMDRDATA:
		if c.hasData {
			c.out = c.takeConversion()
		} else {
			c.conversionReads++
			c.out = codeBytes(c.last)
		}
	case b&0xF0 == ads1220.CMDRREG:
		addr := int(b>>2) & 0x03
		n := int(b&0x03) + 1
		for i := addr; i < addr+n && i < ads1220.NumRegisters; i++ {
			c.out = append(c.out, c.regs[i])
		}
	case b&0xF0 == ads1220.CMDWREG:
		c.wregAddr = int(b>>2) & 0x03
		c.wregLeft = int(b&0x03) + 1
	}
}

func (c *Chip) reset() {
	c.regs = [ads1220.NumRegisters]byte{}
	c.hasData = false
	c.started = false
	c.powerDown = false
	c.out = nil
	c.wregLeft = 0
}

// latch makes the next conversion result available, if there is one.
func (c *Chip) latch() {
	switch {
	case len(c.queue) > 0:
		c.current = c.queue[0]
		c.queue = c.queue[1:]
	case c.Source != nil:
		c.current = c.Source(c.regs)
	default:
		c.hasData = false
		return
	}
	c.hasData = true
	c.pollsLeft = c.DRDYDelay
}

func (c *Chip) takeConversion() []byte {
	c.conversionReads++
	c.last = c.current
	c.hasData = false
	if c.started && c.regs[ads1220.RegCONFIG1]&ads1220.Config1CMbit != 0 {
		c.latch()
	}
	return codeBytes(c.last)
}

func codeBytes(code int32) []byte {
	u := uint32(code)
	return []byte{byte(u >> 16), byte(u >> 8), byte(u)}
}

// RandomWalk returns a Source that wanders independently for every mux setting,
// starting near zero and moving at most step codes per conversion.
func RandomWalk(seed int64, step int32) Source {
	rng := rand.New(rand.NewSource(seed))
	walks := make(map[byte]int32)
	var mu sync.Mutex
	return func(regs [ads1220.NumRegisters]byte) int32 {
		mu.Lock()
		defer mu.Unlock()
		mux := regs[ads1220.RegCONFIG0] & ads1220.Config0MuxMask
		v := walks[mux] + rng.Int31n(2*step+1) - step
		if v > ads1220.FullScaleCode {
			v = ads1220.FullScaleCode
		}
		if v < -ads1220.FullScaleCode-1 {
			v = -ads1220.FullScaleCode - 1
		}
		walks[mux] = v
		return v
	}
}
