// Package volcasample2 implements the KORG Volca Sample 2 connector:
// unlike the first-generation Volca Sample, it answers a proper
// manufacturer SysEx protocol (KORG's 0x42 id, family 0x2d 0x01, model
// 0x08 0x00) instead of audio-domain SyRO encoding, and it exposes two
// filesystems from a single handshake — 200 sample slots and 16
// pattern slots.
package volcasample2

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/connectors"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/pack"
	"github.com/dagargo/elektroid/internal/xerr"
)

func init() {
	connectors.Register(connectors.Connector{
		Name:      "volcasample2",
		Regex:     "volca sample 2",
		Standard:  true,
		Handshake: Handshake,
	})
}

// Every message shares the header F0 42 30 00 01 2D <op> <payload> F7:
// KORG's manufacturer id, the channel nibble in 0x3g form, then the
// three family bytes.
var msgHeader = []byte{0xf0, 0x42, 0x30, 0x00, 0x01, 0x2d}

const (
	familyIDLSB = 0x2d
	familyIDMSB = 0x01

	opSampleHeaderReq = 0x1e
	opSampleHeader    = 0x4e // reply and upload
	opSampleDataReq   = 0x1f
	opSampleData      = 0x4f // reply and upload
	opPatternReq      = 0x1d
	opPattern         = 0x4d // reply and upload
	opStorageStatsReq = 0x1b
	opStorageStats    = 0x4b

	opAckOK      = 0x23
	opAckBusy    = 0x24
	opAckNoSpace = 0x25
	opAckBadMsg  = 0x26

	sampleSlotCount  = 200
	patternSlotCount = 16 // 1-based on the wire and in the UI

	// deviceBufferCeiling is the device's receive-buffer size in packed
	// SysEx bytes; a whole sample must fit in one message.
	deviceBufferCeiling = 0x30000

	rxTimeoutMs = 5000
)

// SliceSizeRatio is the device-calibrated ratio for slice transfer
// sizes: uploads inflated by 1/SliceSizeRatio, downloads truncated by
// SliceSizeRatio. This package installs no slice filesystem, and
// nothing in it applies the ratio.
const SliceSizeRatio = 0.91

// maxSampleBytes is the largest raw PCM payload one sample message may
// carry: the buffer ceiling through the packing inverse, rounded down
// to an even byte count so 16-bit frames never split.
var maxSampleBytes = func() int {
	n := unpackedLen(deviceBufferCeiling - len(msgHeader) - 4)
	return n &^ 1
}()

// Handshake matches on the identity reply's family bytes; the registry
// has already run the Universal Device Inquiry (Standard: true), and
// the device-name regex pre-screens when ALSA exposes the product
// string.
func Handshake(b *backend.Backend) error {
	if id, ok := b.Identity(); ok {
		if id.CompanyID != 0x42 || id.FamilyID != uint16(familyIDLSB)|uint16(familyIDMSB)<<7 {
			return connectors.ErrNoDevice
		}
	}
	b.SetFilesystems([]fsops.Ops{
		&SampleOps{backend: b},
		&PatternOps{backend: b},
	})
	b.SetDescription("KORG Volca Sample 2")
	b.SetStorageStatsFunc(func(path string) (backend.StorageStats, error) {
		return getStorageStats(b)
	})
	return nil
}

func frame(op byte, payload ...byte) []byte {
	msg := make([]byte, 0, len(msgHeader)+2+len(payload))
	msg = append(msg, msgHeader...)
	msg = append(msg, op)
	msg = append(msg, payload...)
	msg = append(msg, 0xf7)
	return msg
}

// opOf validates the shared header and returns the reply's opcode.
func opOf(rx []byte) (byte, error) {
	if len(rx) < len(msgHeader)+2 || rx[0] != 0xf0 || rx[1] != 0x42 ||
		rx[3] != 0x00 || rx[4] != 0x01 || rx[5] != familyIDLSB {
		return 0, xerr.New(xerr.KindProtocol, "volcasample2", fmt.Errorf("malformed reply header"))
	}
	return rx[6], nil
}

// checkAck maps the device's acknowledgement opcodes onto error kinds:
// 0x23 ok, 0x24 busy, 0x25 no space, 0x26 bad message.
func checkAck(rx []byte) error {
	op, err := opOf(rx)
	if err != nil {
		return err
	}
	switch op {
	case opAckOK:
		return nil
	case opAckBusy:
		return xerr.New(xerr.KindBusy, "volcasample2", xerr.ErrBusy)
	case opAckNoSpace:
		return xerr.New(xerr.KindOutOfSpace, "volcasample2", xerr.ErrOutOfSpace)
	case opAckBadMsg:
		return xerr.New(xerr.KindProtocol, "volcasample2", fmt.Errorf("device rejected message"))
	default:
		return xerr.New(xerr.KindProtocol, "volcasample2", fmt.Errorf("unexpected opcode %#x", op))
	}
}

func requireOp(rx []byte, want byte) error {
	op, err := opOf(rx)
	if err != nil {
		return err
	}
	if op != want {
		// A failed request is answered with one of the ack opcodes
		// instead of the expected reply.
		if ackErr := checkAck(rx); ackErr != nil {
			return ackErr
		}
		return xerr.New(xerr.KindProtocol, "volcasample2", fmt.Errorf("unexpected reply opcode %#x", op))
	}
	return nil
}

func put14(id int) (lo, hi byte) {
	return byte(id & 0x7f), byte((id >> 7) & 0x7f)
}

func get14(lo, hi byte) int {
	return int(lo&0x7f) | int(hi&0x7f)<<7
}

// unpackedLen inverts pack.PackedSize: groups of 8 packed bytes (7 data
// + 1 high-bit byte) decode to 7 raw bytes each, with a short final
// group decoding to one fewer than its own length.
func unpackedLen(packedLen int) int {
	if packedLen <= 0 {
		return 0
	}
	groups := packedLen / 8
	rem := packedLen % 8
	n := groups * 7
	if rem > 0 {
		n += rem - 1
	}
	return n
}

// getStorageStats issues the storage-stats request and parses the used
// and total sample-memory byte counts from the packed reply body.
func getStorageStats(b *backend.Backend) (backend.StorageStats, error) {
	rx, err := b.TxAndRx(frame(opStorageStatsReq), rxTimeoutMs)
	if err != nil {
		return backend.StorageStats{}, xerr.New(xerr.KindWire, "volcasample2.storage_stats", err)
	}
	if err := requireOp(rx, opStorageStats); err != nil {
		return backend.StorageStats{}, err
	}
	body := pack.Unpack(rx[7:len(rx)-1], 8)
	if len(body) < 8 {
		return backend.StorageStats{}, xerr.New(xerr.KindProtocol, "volcasample2.storage_stats", fmt.Errorf("short reply"))
	}
	used := uint64(body[0]) | uint64(body[1])<<8 | uint64(body[2])<<16 | uint64(body[3])<<24
	total := uint64(body[4]) | uint64(body[5])<<8 | uint64(body[6])<<16 | uint64(body[7])<<24
	if total < used {
		return backend.StorageStats{}, xerr.New(xerr.KindProtocol, "volcasample2.storage_stats", fmt.Errorf("used exceeds total"))
	}
	return backend.StorageStats{
		Name:  "Volca Sample 2",
		Free:  total - used,
		Total: total,
	}, nil
}

// sampleHeader is the 8-bit-domain body of a sample header message,
// carried packed after the 14-bit slot id.
type sampleHeader struct {
	frames uint32
	rate   uint32
}

func (h sampleHeader) encode() []byte {
	body := make([]byte, 8)
	for i := 0; i < 4; i++ {
		body[i] = byte(h.frames >> (8 * i))
		body[4+i] = byte(h.rate >> (8 * i))
	}
	return body
}

func decodeSampleHeader(body []byte) (sampleHeader, error) {
	if len(body) < 8 {
		return sampleHeader{}, xerr.New(xerr.KindProtocol, "volcasample2", fmt.Errorf("short sample header"))
	}
	var h sampleHeader
	for i := 0; i < 4; i++ {
		h.frames |= uint32(body[i]) << (8 * i)
		h.rate |= uint32(body[4+i]) << (8 * i)
	}
	return h, nil
}

// SampleOps implements fsops.Ops for the 200 fixed sample slots.
type SampleOps struct {
	fsops.Base
	backend *backend.Backend
}

func (o *SampleOps) ID() int32 { return 21 }
func (o *SampleOps) Name() string { return "Volca Sample 2 samples" }
func (o *SampleOps) Options() fsops.Options {
	return fsops.SlotStorage | fsops.SortByID | fsops.SampleEditor | fsops.Mono
}
func (o *SampleOps) MaxNameLen() int { return 24 }
func (o *SampleOps) TypeExt() string { return "wav" }
func (o *SampleOps) Extensions() []string { return []string{"wav"} }
func (o *SampleOps) Slot(id int32) string { return strconv.Itoa(int(id)) }

func (o *SampleOps) ReadDir(ctx context.Context, path string, extensions []string) (fsops.ItemIterator, error) {
	items := make([]fsops.Item, sampleSlotCount)
	for i := range items {
		items[i] = fsops.Item{Name: strconv.Itoa(i), Kind: fsops.KindFile, Size: -1, ID: int32(i)}
	}
	return fsops.NewSliceIterator(items), nil
}

// Download requests the sample header for id, then the sample data,
// which arrives in a single message carrying the whole packed PCM16
// payload.
func (o *SampleOps) Download(ctx context.Context, path string, ctrl *fsops.Control) (fsops.IData, error) {
	id, err := strconv.Atoi(path)
	if err != nil || id < 0 || id >= sampleSlotCount {
		return fsops.IData{}, xerr.New(xerr.KindBadInput, "volcasample2.download", fmt.Errorf("bad slot %q", path))
	}
	lo, hi := put14(id)

	rx, err := o.backend.TxAndRx(frame(opSampleHeaderReq, lo, hi), rxTimeoutMs)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "volcasample2.download", err)
	}
	if err := requireOp(rx, opSampleHeader); err != nil {
		return fsops.IData{}, err
	}
	if len(rx) < 10 || get14(rx[7], rx[8]) != id {
		return fsops.IData{}, xerr.New(xerr.KindProtocol, "volcasample2.download", fmt.Errorf("slot id echo mismatch"))
	}
	hdr, err := decodeSampleHeader(pack.Unpack(rx[9:len(rx)-1], 8))
	if err != nil {
		return fsops.IData{}, err
	}
	ctrl.Report(0.1)

	rx, err = o.backend.TxAndRx(frame(opSampleDataReq, lo, hi), rxTimeoutMs)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "volcasample2.download", err)
	}
	if err := requireOp(rx, opSampleData); err != nil {
		return fsops.IData{}, err
	}
	if len(rx) < 10 || get14(rx[7], rx[8]) != id {
		return fsops.IData{}, xerr.New(xerr.KindProtocol, "volcasample2.download", fmt.Errorf("slot id echo mismatch"))
	}
	if ctrl.Canceled() {
		return fsops.IData{}, xerr.New(xerr.KindCanceled, "volcasample2.download", xerr.ErrCanceled)
	}
	pcm := pack.Unpack(rx[9:len(rx)-1], int(hdr.frames)*2)
	if len(pcm) < int(hdr.frames)*2 {
		return fsops.IData{}, xerr.New(xerr.KindProtocol, "volcasample2.download", fmt.Errorf("truncated sample data"))
	}
	ctrl.Report(1)

	info := &fsops.SampleInfo{
		Frames:   int64(hdr.frames),
		Channels: 1,
		Rate:     int(hdr.rate),
		Format:   fsops.FormatPCM16,
	}
	info.NormalizeLoop()
	return fsops.IData{Content: pcm, Info: info, Name: path}, nil
}

// Upload sends the sample header, waits for the ok acknowledgement,
// then sends the whole packed PCM16 payload in one data message. The
// payload must fit the device's buffer ceiling.
func (o *SampleOps) Upload(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	id, err := strconv.Atoi(path)
	if err != nil || id < 0 || id >= sampleSlotCount {
		return xerr.New(xerr.KindBadInput, "volcasample2.upload", fmt.Errorf("bad slot %q", path))
	}
	if data.Info == nil {
		return xerr.New(xerr.KindBadInput, "volcasample2.upload", fmt.Errorf("missing sample info"))
	}
	if len(data.Content) > maxSampleBytes {
		return xerr.New(xerr.KindBadInput, "volcasample2.upload",
			fmt.Errorf("sample is %d bytes, device accepts at most %d", len(data.Content), maxSampleBytes))
	}
	lo, hi := put14(id)

	hdr := sampleHeader{frames: uint32(len(data.Content) / 2), rate: uint32(data.Info.Rate)}
	payload := append([]byte{lo, hi}, pack.Pack(hdr.encode())...)
	rx, err := o.backend.TxAndRx(frame(opSampleHeader, payload...), rxTimeoutMs)
	if err != nil {
		return xerr.New(xerr.KindWire, "volcasample2.upload", err)
	}
	if err := checkAck(rx); err != nil {
		return err
	}
	ctrl.Report(0.1)

	if ctrl.Canceled() {
		return xerr.New(xerr.KindCanceled, "volcasample2.upload", xerr.ErrCanceled)
	}
	payload = append([]byte{lo, hi}, pack.Pack(data.Content)...)
	rx, err = o.backend.TxAndRx(frame(opSampleData, payload...), rxTimeoutMs)
	if err != nil {
		return xerr.New(xerr.KindWire, "volcasample2.upload", err)
	}
	if err := checkAck(rx); err != nil {
		return err
	}
	ctrl.Report(1)
	return nil
}

// Clear resets a slot to its factory-empty state by uploading a
// zero-frame sample header.
func (o *SampleOps) Clear(ctx context.Context, path string) error {
	id, err := strconv.Atoi(path)
	if err != nil || id < 0 || id >= sampleSlotCount {
		return xerr.New(xerr.KindBadInput, "volcasample2.clear", fmt.Errorf("bad slot %q", path))
	}
	lo, hi := put14(id)
	payload := append([]byte{lo, hi}, pack.Pack(sampleHeader{}.encode())...)
	rx, err := o.backend.TxAndRx(frame(opSampleHeader, payload...), rxTimeoutMs)
	if err != nil {
		return xerr.New(xerr.KindWire, "volcasample2.clear", err)
	}
	return checkAck(rx)
}

func (o *SampleOps) Delete(ctx context.Context, path string) error {
	return o.Clear(ctx, path)
}

// Swap exchanges two slots by downloading both and uploading them
// crossed. Not atomic on the wire; the second upload failing leaves
// slot A duplicated, which the caller surfaces as an error.
func (o *SampleOps) Swap(ctx context.Context, pathA, pathB string) error {
	ctrl := &fsops.Control{Ctx: ctx}
	a, err := o.Download(ctx, pathA, ctrl)
	if err != nil {
		return err
	}
	b, err := o.Download(ctx, pathB, ctrl)
	if err != nil {
		return err
	}
	if err := o.Upload(ctx, pathB, a, ctrl); err != nil {
		return err
	}
	return o.Upload(ctx, pathA, b, ctrl)
}

// PatternOps implements fsops.Ops for the 16 pattern slots: opaque
// fixed-size binary objects, 1-based on the wire and in the UI.
type PatternOps struct {
	fsops.Base
	backend *backend.Backend
}

func (o *PatternOps) ID() int32 { return 22 }
func (o *PatternOps) Name() string { return "Volca Sample 2 patterns" }
func (o *PatternOps) Options() fsops.Options { return fsops.SlotStorage | fsops.SortByID }
func (o *PatternOps) MaxNameLen() int { return 24 }
func (o *PatternOps) TypeExt() string { return "vs2pat" }
func (o *PatternOps) Extensions() []string { return []string{"vs2pat"} }
func (o *PatternOps) Slot(id int32) string { return strconv.Itoa(int(id)) }

func (o *PatternOps) ReadDir(ctx context.Context, path string, extensions []string) (fsops.ItemIterator, error) {
	items := make([]fsops.Item, patternSlotCount)
	for i := range items {
		items[i] = fsops.Item{Name: strconv.Itoa(i + 1), Kind: fsops.KindFile, Size: -1, ID: int32(i + 1)}
	}
	return fsops.NewSliceIterator(items), nil
}

func patternSlot(path string) (int, error) {
	id, err := strconv.Atoi(path)
	if err != nil || id < 1 || id > patternSlotCount {
		return 0, xerr.New(xerr.KindBadInput, "volcasample2.pattern", fmt.Errorf("bad pattern slot %q", path))
	}
	return id, nil
}

func (o *PatternOps) Download(ctx context.Context, path string, ctrl *fsops.Control) (fsops.IData, error) {
	id, err := patternSlot(path)
	if err != nil {
		return fsops.IData{}, err
	}
	lo, hi := put14(id)
	rx, err := o.backend.TxAndRx(frame(opPatternReq, lo, hi), rxTimeoutMs)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "volcasample2.pattern.download", err)
	}
	if err := requireOp(rx, opPattern); err != nil {
		return fsops.IData{}, err
	}
	if len(rx) < 10 || get14(rx[7], rx[8]) != id {
		return fsops.IData{}, xerr.New(xerr.KindProtocol, "volcasample2.pattern.download", fmt.Errorf("slot id echo mismatch"))
	}
	packed := rx[9 : len(rx)-1]
	content := pack.Unpack(packed, unpackedLen(len(packed)))
	ctrl.Report(1)
	return fsops.IData{Content: content, Name: path}, nil
}

func (o *PatternOps) Upload(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	id, err := patternSlot(path)
	if err != nil {
		return err
	}
	lo, hi := put14(id)
	payload := append([]byte{lo, hi}, pack.Pack(data.Content)...)
	rx, err := o.backend.TxAndRx(frame(opPattern, payload...), rxTimeoutMs)
	if err != nil {
		return xerr.New(xerr.KindWire, "volcasample2.pattern.upload", err)
	}
	if err := checkAck(rx); err != nil {
		return err
	}
	ctrl.Report(1)
	return nil
}
