// Package backend owns one open device connection: the MIDI port, the
// SysEx transport layered over it, and the per-backend identity learned
// from a Universal Device Inquiry handshake. Every connector
// installed on a Backend shares its single mutex, so SysEx traffic for
// different filesystems on the same device is never interleaved.
package backend

import (
	"sync"
	"time"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/midiport"
	"github.com/dagargo/elektroid/internal/sysex"
	"github.com/dagargo/elektroid/internal/xerr"
)

// Kind distinguishes the wire a Backend was opened over. A "none" backend
// exists only so Application can hold a zero-value Backend before a
// device is selected.
type Kind int

const (
	KindNone Kind = iota
	KindMIDI
	KindSystem
)

// universalInquiry is the MMA Universal Device Inquiry request
// (universal non-realtime SysEx, sub-ID 06/01).
var (
	universalInquiry = []byte{0xf0, 0x7e, 0x7f, 0x06, 0x01, 0xf7}
)

// Identity is the parsed reply to a Universal Device Inquiry:
// manufacturer/family/model/version, used by the connector
// registry to match a descriptor against the connected device.
type Identity struct {
	CompanyID byte
	FamilyID  uint16
	ModelID   uint16
	Version   [4]byte
}

// Backend is one open connection to a device: a MIDI port and the SysEx
// transport over it, plus whatever filesystems (fsops.Ops) a connector
// has installed once the device's identity is known. All access to
// the underlying wire is serialised through mu.
type Backend struct {
	mu sync.Mutex

	kind Kind
	name string // device name, e.g. the MIDI port name

	port *midiport.Port
	wire *sysex.PortWire
	tx   *sysex.Transport

	identity    Identity
	hasIdentity bool

	description string
	fss         []fsops.Ops

	// data/destroyData let a connector attach private state to a Backend
	// without the backend package knowing its shape.
	data        any
	destroyData func(any)

	// Optional per-connector hooks. nil means unsupported, matching
	// fsops.Ops's capability-set convention.
	storageStats func(path string) (StorageStats, error)
	upgradeOS    func(path string) error
}

// StorageStats reports free/total capacity for a storage location.
type StorageStats struct {
	Name  string
	Free  uint64
	Total uint64
}

// Open opens the MIDI port named name and layers a SysEx transport
// over it. The stop_device_when_connecting preference, drain, and
// inquiry sequencing are the caller's (internal/app's) job.
func Open(name string, maxTx int) (*Backend, error) {
	port, err := midiport.Open(name)
	if err != nil {
		return nil, xerr.New(xerr.KindNotConnected, "backend.open", err)
	}
	wire, err := sysex.NewPortWire(port)
	if err != nil {
		_ = port.Close()
		return nil, xerr.New(xerr.KindNotConnected, "backend.open", err)
	}
	b := &Backend{
		kind: KindMIDI,
		name: name,
		port: port,
		wire: wire,
		tx:   sysex.New(wire, maxTx),
	}
	return b, nil
}

// OpenSystem builds the pseudo-backend for the local host filesystem,
// selected when the user picks the host device. It owns no MIDI port.
func OpenSystem() *Backend {
	return &Backend{kind: KindSystem, name: "system"}
}

// Close releases the port and runs any connector-registered cleanup.
// Safe to call more than once.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind == KindNone {
		return nil
	}
	if b.destroyData != nil && b.data != nil {
		b.destroyData(b.data)
		b.data = nil
	}
	var err error
	if b.wire != nil {
		b.wire.Close()
	}
	if b.port != nil {
		err = b.port.Close()
	}
	b.kind = KindNone
	b.fss = nil
	b.hasIdentity = false
	return err
}

// IsOpen reports whether the backend currently owns an open device.
func (b *Backend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kind != KindNone
}

// Kind reports which wire this backend is open over.
func (b *Backend) Kind() Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kind
}

// Name returns the device name this backend was opened against.
func (b *Backend) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// Description returns the human-readable device description learned
// during the handshake (set by SetDescription once a connector
// identifies the exact model).
func (b *Backend) Description() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.description
}

// SetDescription records the human-readable device description. Called
// by the connector registry once it has matched a descriptor.
func (b *Backend) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// Filesystems returns the fsops.Ops installed on this backend by the
// connector registry.
func (b *Backend) Filesystems() []fsops.Ops {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]fsops.Ops(nil), b.fss...)
}

// SetFilesystems installs the filesystem set a connector exposes for
// this device.
func (b *Backend) SetFilesystems(fss []fsops.Ops) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fss = append([]fsops.Ops(nil), fss...)
}

// SetData attaches connector-private state to the backend, with an
// optional destructor run on Close.
func (b *Backend) SetData(data any, destroy func(any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	b.destroyData = destroy
}

// Data returns the connector-private state previously attached with
// SetData.
func (b *Backend) Data() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Tx sends raw as is: a fully-framed SysEx message (0xf0 ... 0xf7) or,
// from the channel-message helpers below, a short channel message.
func (b *Backend) Tx(raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind != KindMIDI {
		return xerr.New(xerr.KindNotConnected, "backend.tx", xerr.ErrNotConnected)
	}
	return b.tx.Tx(raw)
}

// Rx receives one SysEx message (or, if batch, the concatenation of all
// messages seen until the wire falls silent). timeoutMs < 0 selects the
// transport's default timeout, 0 waits forever.
func (b *Backend) Rx(timeoutMs int, batch bool) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind != KindMIDI {
		return nil, xerr.New(xerr.KindNotConnected, "backend.rx", xerr.ErrNotConnected)
	}
	return b.tx.Rx(timeoutMs, batch, nil)
}

// TxAndRx sends raw and waits for the single reply that follows,
// without releasing the backend's lock in between — no other goroutine
// can interleave a request on this backend while the reply is pending.
func (b *Backend) TxAndRx(raw []byte, timeoutMs int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind != KindMIDI {
		return nil, xerr.New(xerr.KindNotConnected, "backend.tx_and_rx", xerr.ErrNotConnected)
	}
	return b.tx.TxAndRx(raw, timeoutMs)
}

// RxDrain discards anything currently buffered on the wire, used after a
// cancelled or failed transfer to resynchronise before the next request.
func (b *Backend) RxDrain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind != KindMIDI {
		return
	}
	b.tx.Drain()
}

// ProgramChange sends a Program Change channel message (channel 0-15).
func (b *Backend) ProgramChange(channel, program byte) error {
	return b.Tx([]byte{0xc0 | (channel & 0x0f), program & 0x7f})
}

// NoteOn sends a Note On channel message.
func (b *Backend) NoteOn(channel, note, velocity byte) error {
	return b.Tx([]byte{0x90 | (channel & 0x0f), note & 0x7f, velocity & 0x7f})
}

// NoteOff sends a Note Off channel message.
func (b *Backend) NoteOff(channel, note, velocity byte) error {
	return b.Tx([]byte{0x80 | (channel & 0x0f), note & 0x7f, velocity & 0x7f})
}

// SendController sends a Control Change message.
func (b *Backend) SendController(channel, controller, value byte) error {
	return b.Tx([]byte{0xb0 | (channel & 0x0f), controller & 0x7f, value & 0x7f})
}

// SendRPN sends a Registered Parameter Number value as the standard
// four-message CC 101/100/6/38 sequence.
func (b *Backend) SendRPN(channel, paramMSB, paramLSB, valueMSB, valueLSB byte) error {
	msgs := [][3]byte{
		{0x65, paramMSB & 0x7f},
		{0x64, paramLSB & 0x7f},
		{0x06, valueMSB & 0x7f},
		{0x26, valueLSB & 0x7f},
	}
	for _, m := range msgs {
		if err := b.SendController(channel, m[0], m[1]); err != nil {
			return err
		}
	}
	return nil
}

// MidiHandshake issues a Universal Device Inquiry and parses the
// reply's company/family/model/version. The connector registry runs it
// before any connector handshake (see connectors.Match);
// internal/app.Application.Open sends at most a MIDI stop byte and
// drains the input before that.
func (b *Backend) MidiHandshake(timeoutMs int) (Identity, error) {
	raw, err := b.TxAndRx(universalInquiry, timeoutMs)
	if err != nil {
		return Identity{}, err
	}
	id, err := parseIdentityReply(raw)
	if err != nil {
		return Identity{}, err
	}
	b.mu.Lock()
	b.identity = id
	b.hasIdentity = true
	b.mu.Unlock()
	return id, nil
}

// Identity returns the identity learned by the last successful
// MidiHandshake, if any.
func (b *Backend) Identity() (Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity, b.hasIdentity
}

// parseIdentityReply decodes a Universal Device Inquiry reply. The MMA
// format carries either a one-byte company ID (a 15-byte reply) or a
// three-byte 0x00-prefixed one (17 bytes, e.g. Arturia's 00 20 6B);
// both are accepted. For the three-byte form CompanyID holds only the
// leading 0x00 and the two bytes after it are skipped.
func parseIdentityReply(raw []byte) (Identity, error) {
	const minLen = 15
	if len(raw) < minLen || raw[0] != 0xf0 || raw[1] != 0x7e || raw[3] != 0x06 || raw[4] != 0x02 {
		return Identity{}, xerr.New(xerr.KindProtocol, "backend.midi_handshake", xerr.ErrProtocol)
	}
	id := Identity{CompanyID: raw[5]}
	i := 6
	if raw[5] == 0x00 {
		// Three-byte company ID: family/model start two bytes later.
		i = 8
	}
	if len(raw) < i+8 {
		return Identity{}, xerr.New(xerr.KindProtocol, "backend.midi_handshake", xerr.ErrProtocol)
	}
	id.FamilyID = uint16(raw[i]) | uint16(raw[i+1])<<7
	id.ModelID = uint16(raw[i+2]) | uint16(raw[i+3])<<7
	copy(id.Version[:], raw[i+4:i+8])
	return id, nil
}

// SetStorageStatsFunc installs the connector's get_storage_stats hook.
func (b *Backend) SetStorageStatsFunc(fn func(path string) (StorageStats, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.storageStats = fn
}

// GetStorageStats reports storage capacity for path, or ErrUnsupported
// if the active connector did not install the hook.
func (b *Backend) GetStorageStats(path string) (StorageStats, error) {
	b.mu.Lock()
	fn := b.storageStats
	b.mu.Unlock()
	if fn == nil {
		return StorageStats{}, xerr.New(xerr.KindUnsupported, "backend.get_storage_stats", xerr.ErrUnsupported)
	}
	return fn(path)
}

// SetUpgradeOSFunc installs the connector's upgrade_os hook.
func (b *Backend) SetUpgradeOSFunc(fn func(path string) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upgradeOS = fn
}

// UpgradeOS sends a firmware/OS image to the device, or returns
// ErrUnsupported if the active connector did not install the hook.
func (b *Backend) UpgradeOS(path string) error {
	b.mu.Lock()
	fn := b.upgradeOS
	b.mu.Unlock()
	if fn == nil {
		return xerr.New(xerr.KindUnsupported, "backend.upgrade_os", xerr.ErrUnsupported)
	}
	return fn(path)
}

// PollInterval equals the transport's read poll interval, exported for
// callers that need to size their own cancellation-check cadence
// against it.
const PollInterval = 10 * time.Millisecond
