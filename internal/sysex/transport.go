// Package sysex implements the frame-aligned SysEx send/receive
// transport: timeout, cancellation, batch mode, drain, and filtering
// of non-SysEx bytes, layered over any byte-oriented Wire.
package sysex

import (
	"time"

	"github.com/dagargo/elektroid/internal/xerr"
)

const (
	// DefaultTimeout is used when a caller passes timeoutMs < 0.
	DefaultTimeout = 3 * time.Second
	// pollInterval is how long a single raw read may block before
	// ReadChunk reports "nothing yet".
	pollInterval = 10 * time.Millisecond
	// maxReadChunk bounds a single raw read.
	maxReadChunk = 4096
	// defaultMaxTx is the chunk size Tx splits large messages into when
	// the wire doesn't report a smaller device-specific maximum.
	defaultMaxTx = 4096
)

// Wire is the raw byte-oriented substrate a Transport runs over.
// ReadChunk returns
// whatever is available within pollTimeout, or a nil slice (not an error)
// if nothing arrived in that window.
type Wire interface {
	Write(data []byte) error
	ReadChunk(maxLen int, pollTimeout time.Duration) ([]byte, error)
}

// Cancel is polled by Rx/TxAndRx between reads; returning true aborts the
// in-flight operation with xerr.KindCanceled.
type Cancel func() bool

// Transport is one SysEx send/receive channel over a Wire. It is not
// itself safe for concurrent use from multiple goroutines — Backend
// serialises access with its own mutex, so all wire traffic for a
// backend passes through one lock.
type Transport struct {
	wire   Wire
	parser parser
	maxTx  int
}

// New builds a Transport over wire. maxTx, if > 0, overrides defaultMaxTx.
func New(wire Wire, maxTx int) *Transport {
	if maxTx <= 0 {
		maxTx = defaultMaxTx
	}
	return &Transport{wire: wire, maxTx: maxTx}
}

// Tx sends raw as one SysEx message, splitting it into chunks of at most
// maxTx bytes per write.
func (t *Transport) Tx(raw []byte) error {
	for i := 0; i < len(raw); i += t.maxTx {
		end := i + t.maxTx
		if end > len(raw) {
			end = len(raw)
		}
		if err := t.wire.Write(raw[i:end]); err != nil {
			return xerr.New(xerr.KindWire, "sysex.tx", err)
		}
	}
	return nil
}

func resolveTimeout(timeoutMs int) time.Duration {
	switch {
	case timeoutMs < 0:
		return DefaultTimeout
	case timeoutMs == 0:
		return 0 // infinite
	default:
		return time.Duration(timeoutMs) * time.Millisecond
	}
}

// Rx receives one SysEx message, or — in batch mode — the concatenation of
// every message seen until the wire has been silent for one poll interval.
// timeoutMs < 0 selects DefaultTimeout; 0 means wait forever.
func (t *Transport) Rx(timeoutMs int, batch bool, cancel Cancel) ([]byte, error) {
	timeout := resolveTimeout(timeoutMs)
	var elapsed time.Duration
	var collected []byte
	seenAny := false

	for {
		if cancel != nil && cancel() {
			return nil, xerr.New(xerr.KindCanceled, "sysex.rx", xerr.ErrCanceled)
		}

		if msg, ok := t.parser.next(); ok {
			collected = append(collected, msg...)
			seenAny = true
			if !batch {
				return collected, nil
			}
			continue
		}

		chunk, err := t.wire.ReadChunk(maxReadChunk, pollInterval)
		if err != nil {
			return nil, xerr.New(xerr.KindWire, "sysex.rx", err)
		}

		if len(chunk) == 0 {
			if batch && seenAny {
				return collected, nil
			}
			elapsed += pollInterval
			if timeout > 0 && elapsed >= timeout {
				if seenAny {
					return collected, nil
				}
				return nil, xerr.New(xerr.KindTimedOut, "sysex.rx", xerr.ErrTimedOut)
			}
			continue
		}

		t.parser.feed(chunk)
	}
}

// TxAndRx brackets Tx and Rx: the request is fully sent before the receive
// begins, and no other traffic may be interleaved — guaranteed by the
// caller (Backend) holding its mutex across the call.
func (t *Transport) TxAndRx(raw []byte, timeoutMs int) ([]byte, error) {
	if err := t.Tx(raw); err != nil {
		return nil, err
	}
	return t.Rx(timeoutMs, false, nil)
}

// Drain discards everything currently buffered on the wire and in the
// internal parser buffer.
func (t *Transport) Drain() {
	t.parser.reset()
	for {
		chunk, err := t.wire.ReadChunk(maxReadChunk, pollInterval)
		if err != nil || len(chunk) == 0 {
			return
		}
	}
}
