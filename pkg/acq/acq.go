// Package acq implements the line protocol the acquisition host software
// speaks to the converter board over a serial port.
//
// The board announces itself with [ConnectionSignature]. A line starting with
// [ToggleAcquisition] starts an acquisition, optionally followed by its length
// in seconds ("A10"), or stops a running one. Readings are framed by
// [AcquisitionSignature] and [EndSignature], one "<mux hex>: <volts>" line per
// reading. Every command line is acknowledged with [CompletionSignature].
package acq

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/kutukvpavel/stm32-ads1220/pkg/ads1220"
)

const (
	ConnectionSignature  = "READY..."
	AcquisitionSignature = "ACQ."
	EndSignature         = "END."
	CompletionSignature  = "PARSED."

	ToggleAcquisition = 'A'

	lineBreak = "\n"
)

// Writer emits protocol lines. It is safe for concurrent use. The first
// write error is sticky: later writes are dropped and [Writer.Err] reports it.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	acq bool
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) line(s string) error {
	if w.err != nil {
		return w.err
	}
	_, w.err = io.WriteString(w.w, s+lineBreak)
	return w.err
}

// Ready sends the connection signature.
func (w *Writer) Ready() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.line(ConnectionSignature)
}

// Parsed acknowledges a command line.
func (w *Writer) Parsed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.line(CompletionSignature)
}

// Begin opens an acquisition. It is a no-op while one is open.
func (w *Writer) Begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.acq {
		return w.err
	}
	w.acq = true
	return w.line(AcquisitionSignature)
}

// Sample writes one reading. Readings outside an acquisition are dropped.
func (w *Writer) Sample(mux ads1220.Mux, volts float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.acq {
		return w.err
	}
	return w.line(fmt.Sprintf("%X: %.6f", byte(mux), volts))
}

// End closes the acquisition. It is a no-op when none is open.
func (w *Writer) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.acq {
		return w.err
	}
	w.acq = false
	return w.line(EndSignature)
}

// Acquiring reports whether an acquisition is open.
func (w *Writer) Acquiring() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acq
}

func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close ends any open acquisition, then closes the underlying writer if it
// is an io.Closer.
func (w *Writer) Close() error {
	err := w.End()
	if c, ok := w.w.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}
