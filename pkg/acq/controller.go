package acq

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

// DefaultDuration bounds an acquisition started without an explicit length.
const DefaultDuration = time.Second

// Acquirer runs one acquisition, handing every reading to emit, until ctx
// is done.
type Acquirer func(ctx context.Context, emit func(mux ads1220.Mux, volts float64)) error

// Controller answers the host side of the protocol on a serial line.
type Controller struct {
	// Unit is the length of one unit in an "A<n>" command, a second by default.
	Unit time.Duration

	rw      io.ReadWriter
	w       *Writer
	acquire Acquirer
	log     zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewController(rw io.ReadWriter, acquire Acquirer, log zerolog.Logger) *Controller {
	return &Controller{
		Unit:    time.Second,
		rw:      rw,
		w:       NewWriter(rw),
		acquire: acquire,
		log:     log,
	}
}

// Serve announces the board and handles command lines until the line is
// closed or ctx is done. A running acquisition is stopped on return. When the
// line is an io.Closer, Serve closes it on return and waits for its reader.
func (c *Controller) Serve(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})

	if cl, ok := c.rw.(io.Closer); ok {
		defer func() {
			if err := cl.Close(); err != nil {
				c.log.Debug().Err(err).Msg("closing line")
			}
			<-readerDone
		}()
	}
	// unblocks the reader if it is waiting to hand over a line
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.stop()

	if err := c.w.Ready(); err != nil {
		close(readerDone)
		return err
	}

	go func() {
		defer close(readerDone)
		defer close(lines)
		sc := bufio.NewScanner(c.rw)
		for sc.Scan() {
			select {
			case lines <- strings.TrimRight(sc.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := c.handle(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}

	c.log.Debug().Str("line", line).Msg("command received")

	switch line[0] {
	case ToggleAcquisition:
		if c.running() {
			c.stop()
		} else {
			d := DefaultDuration
			if n, err := strconv.Atoi(strings.TrimSpace(line[1:])); err == nil && n > 0 {
				d = time.Duration(n) * c.Unit
			}
			if err := c.start(ctx, d); err != nil {
				return err
			}
		}
	default:
		c.log.Warn().Str("line", line).Msg("unknown command")
	}

	return c.w.Parsed()
}

func (c *Controller) running() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Controller) start(ctx context.Context, d time.Duration) error {
	if err := c.w.Begin(); err != nil {
		return err
	}

	actx, cancel := context.WithTimeout(ctx, d)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	c.log.Info().Dur("duration", d).Msg("acquisition started")

	go func() {
		defer close(done)
		err := c.acquire(actx, func(mux ads1220.Mux, volts float64) {
			_ = c.w.Sample(mux, volts)
		})
		if err != nil && actx.Err() == nil {
			c.log.Error().Err(err).Msg("acquisition failed")
		}
		if err = c.w.End(); err != nil {
			c.log.Error().Err(err).Msg("failed to end acquisition")
		}
		c.log.Info().Msg("acquisition finished")
	}()
	return nil
}

// stop cancels a running acquisition and waits for its END line.
func (c *Controller) stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}
