// Package midiport owns the raw MIDI input/output handle pair for one
// device. It is the only package in this module that touches
// gitlab.com/gomidi/midi/v2 directly; everything above it (the SysEx
// transport, the Backend) talks to a *Port.
package midiport

import (
	"errors"
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var ErrNotOpen = errors.New("midi port not open")

// Device describes one enumerated MIDI device by name; a device is usable
// as a Port only if it has a matching in and out port under that name.
type Device struct {
	Name string
}

// Devices lists MIDI devices reachable on this host, by matching output
// port names against input port names (Elektroid-class gear exposes a
// symmetric in/out pair per device).
func Devices() []Device {
	outs := midi.GetOutPorts()
	ins := map[string]bool{}
	for _, in := range midi.GetInPorts() {
		ins[in.String()] = true
	}
	var devices []Device
	for _, out := range outs {
		if ins[out.String()] {
			devices = append(devices, Device{Name: out.String()})
		}
	}
	return devices
}

// Port is one opened (in, out) MIDI port pair, with all access serialised
// by a mutex so that two goroutines can never interleave partial SysEx
// writes.
type Port struct {
	mu   sync.Mutex
	name string
	in   drivers.In
	out  drivers.Out
	open bool
}

// Open finds and opens the in/out port pair named name.
func Open(name string) (*Port, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("find out port %q: %w", name, err)
	}
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("find in port %q: %w", name, err)
	}
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("open out port %q: %w", name, err)
	}
	if err := in.Open(); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("open in port %q: %w", name, err)
	}
	return &Port{name: name, in: in, out: out, open: true}, nil
}

// Close closes both directions of the port. Safe to call more than once.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false
	errOut := p.out.Close()
	errIn := p.in.Close()
	if errOut != nil {
		return errOut
	}
	return errIn
}

// Name returns the device name this port was opened against.
func (p *Port) Name() string { return p.name }

// Send writes a raw MIDI message (which may be a SysEx message or a
// channel message) to the output port. Chunking to the device's maximum
// transmit size, if any, is the caller's responsibility (see
// internal/sysex, which chunks SysEx bodies before calling Send).
func (p *Port) Send(raw []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrNotOpen
	}
	return p.out.Send(raw)
}

// Listen registers cb to be invoked for every incoming MIDI message
// (timestamp in microseconds since the listener started). It returns a
// stop function; calling it detaches the listener. Only one listener may
// be active per Port at a time; the Backend is the single reader.
func (p *Port) Listen(cb func(msg []byte, microseconds int32)) (stopFn func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, ErrNotOpen
	}
	return midi.ListenTo(p.in, func(msg midi.Message, ts int32) {
		cb(msg.Bytes(), ts)
	}, midi.UseSysEx())
}
