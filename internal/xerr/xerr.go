// Package xerr enumerates the error kinds shared by every layer from
// the SysEx transport up through the transfer engine, so that callers
// can classify a failure without string-matching.
package xerr

import "errors"

// Kind classifies a failure into the categories the UI and Task Engine
// need to react to (retry, skip, abort the batch, close the backend).
type Kind int

const (
	KindUnknown Kind = iota
	KindNotConnected
	KindTimedOut
	KindCanceled
	KindWire
	KindProtocol
	KindUnsupported
	KindNotFound
	KindExists
	KindBusy
	KindOutOfSpace
	KindBadInput
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNotConnected:
		return "not connected"
	case KindTimedOut:
		return "timed out"
	case KindCanceled:
		return "canceled"
	case KindWire:
		return "wire error"
	case KindProtocol:
		return "protocol error"
	case KindUnsupported:
		return "unsupported"
	case KindNotFound:
		return "not found"
	case KindExists:
		return "exists"
	case KindBusy:
		return "busy"
	case KindOutOfSpace:
		return "out of space"
	case KindBadInput:
		return "bad input"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for the common wire-layer failures; connectors and the
// SysEx transport return these (or wrap them in an *Error) so callers can
// use errors.Is directly when the Kind isn't needed.
var (
	ErrNotConnected = errors.New("not connected")
	ErrTimedOut     = errors.New("timed out")
	ErrCanceled     = errors.New("canceled")
	ErrWire         = errors.New("wire error")
	ErrProtocol     = errors.New("protocol error")
	ErrUnsupported  = errors.New("operation unsupported")
	ErrNotFound     = errors.New("not found")
	ErrExists       = errors.New("exists")
	ErrBusy         = errors.New("busy")
	ErrOutOfSpace   = errors.New("out of space")
	ErrBadInput     = errors.New("bad input")
)
