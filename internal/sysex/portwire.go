package sysex

import (
	"time"

	"github.com/dagargo/elektroid/internal/midiport"
)

// PortWire adapts a *midiport.Port (callback-driven) into the pull-based
// Wire a Transport consumes, by buffering incoming messages on a channel.
type PortWire struct {
	port   *midiport.Port
	msgs   chan []byte
	stopFn func()
}

// NewPortWire starts listening on port and returns a Wire ready for use by
// a Transport. Call Close when the Backend that owns this Transport is
// closed.
func NewPortWire(port *midiport.Port) (*PortWire, error) {
	pw := &PortWire{port: port, msgs: make(chan []byte, 256)}
	stop, err := port.Listen(func(msg []byte, _ int32) {
		cp := make([]byte, len(msg))
		copy(cp, msg)
		select {
		case pw.msgs <- cp:
		default:
			// Drop on a full buffer rather than block the MIDI callback.
		}
	})
	if err != nil {
		return nil, err
	}
	pw.stopFn = stop
	return pw, nil
}

func (pw *PortWire) Write(data []byte) error {
	return pw.port.Send(data)
}

func (pw *PortWire) ReadChunk(maxLen int, pollTimeout time.Duration) ([]byte, error) {
	select {
	case msg := <-pw.msgs:
		if len(msg) > maxLen {
			// Re-queue the remainder; callers read small chunks so this
			// is a rare path, only hit with an undersized maxLen.
			rest := make([]byte, len(msg)-maxLen)
			copy(rest, msg[maxLen:])
			select {
			case pw.msgs <- rest:
			default:
			}
			return msg[:maxLen], nil
		}
		return msg, nil
	case <-time.After(pollTimeout):
		return nil, nil
	}
}

// Close detaches the listener.
func (pw *PortWire) Close() {
	if pw.stopFn != nil {
		pw.stopFn()
	}
}
