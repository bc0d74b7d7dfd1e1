// Package microfreak implements the Arturia MicroFreak connector: a
// slot-storage filesystem whose sample
// payload is Pack/Unpack's 7-bit-safe encoding of the device's own
// private container format (the MicroFreakTag bit of fsops.Format),
// and whose sample names are restricted to the device firmware's
// controlled alphabet.
package microfreak

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/connectors"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/pack"
	"github.com/dagargo/elektroid/internal/xerr"
	"github.com/dagargo/elektroid/internal/xpath"
)

func init() {
	connectors.Register(connectors.Connector{
		Name:      "microfreak",
		Regex:     "microfreak",
		Standard:  true,
		Handshake: Handshake,
	})
}

const (
	// baseRate is the rate Download reports for every MicroFreak
	// sample. Neither Download nor Upload resamples: content passes
	// through at whatever rate it already has.
	baseRate = 32000

	slotCount = 16

	arturiaID1       = 0x00 // Arturia's three-byte MMA id
	arturiaID2       = 0x20
	arturiaID3       = 0x6b
	familyMicroFreak = 0x04

	opSampleHeaderReq  = 0x10
	opSampleHeaderResp = 0x11
	opSampleDataReq    = 0x12
	opSampleDataResp   = 0x13
	opSampleDelete     = 0x14
	opSampleDeleteAck  = 0x15
	opSampleRename     = 0x16
	opSampleRenameAck  = 0x17

	rxTimeoutMs = 5000
	maxRetries  = 10
)

// alphabet is MicroFreak's permitted sample-name character set: upper
// and lower case ASCII letters, digits, space and a handful of
// punctuation marks the device's OLED font renders.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 -_."

// Handshake matches Arturia's MicroFreak family id in the Universal
// Device Inquiry reply; Standard: true in this connector's
// registration means the registry has already run that inquiry before
// calling Handshake.
func Handshake(b *backend.Backend) error {
	id, ok := b.Identity()
	if !ok || id.FamilyID != familyMicroFreak {
		return connectors.ErrNoDevice
	}
	b.SetFilesystems([]fsops.Ops{&Ops{backend: b}})
	b.SetDescription("Arturia MicroFreak")
	return nil
}

// Ops implements fsops.Ops for the MicroFreak's 16 sample slots.
type Ops struct {
	fsops.Base
	backend *backend.Backend
}

func (o *Ops) ID() int32 { return 30 }
func (o *Ops) Name() string { return "MicroFreak" }
func (o *Ops) Options() fsops.Options {
	return fsops.SlotStorage | fsops.SortByID | fsops.SampleEditor | fsops.Mono
}
func (o *Ops) MaxNameLen() int { return 12 }
func (o *Ops) TypeExt() string { return "wav" }
func (o *Ops) Extensions() []string { return []string{"wav"} }
func (o *Ops) Slot(id int32) string { return strconv.Itoa(int(id)) }

func (o *Ops) ReadDir(ctx context.Context, path string, extensions []string) (fsops.ItemIterator, error) {
	items := make([]fsops.Item, slotCount)
	for i := range items {
		items[i] = fsops.Item{Name: strconv.Itoa(i), Kind: fsops.KindFile, Size: -1, ID: int32(i)}
	}
	return fsops.NewSliceIterator(items), nil
}

func frame(op byte, payload ...byte) []byte {
	msg := make([]byte, 0, 6+len(payload))
	msg = append(msg, 0xf0, arturiaID1, arturiaID2, arturiaID3, op)
	msg = append(msg, payload...)
	msg = append(msg, 0xf7)
	return msg
}

func requireOp(rx []byte, op byte) error {
	if len(rx) < 6 || rx[0] != 0xf0 || rx[4] != op {
		return xerr.New(xerr.KindProtocol, "microfreak", fmt.Errorf("unexpected reply opcode"))
	}
	return nil
}

// Download fetches the private-container payload for slot id and
// unpacks it to bytes; the container's own internal layout beyond the
// 7-bit packing is opaque (fsops.MicroFreakTag marks it as such rather
// than decoding it to PCM16).
func (o *Ops) Download(ctx context.Context, path string, ctrl *fsops.Control) (fsops.IData, error) {
	id, err := strconv.Atoi(path)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindBadInput, "microfreak.download", err)
	}

	rx, err := o.backend.TxAndRx(frame(opSampleHeaderReq, byte(id)), rxTimeoutMs)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "microfreak.download", err)
	}
	if err := requireOp(rx, opSampleHeaderResp); err != nil {
		return fsops.IData{}, err
	}
	if len(rx) < 6+3 {
		return fsops.IData{}, xerr.New(xerr.KindProtocol, "microfreak.download", fmt.Errorf("short header"))
	}
	frames := int(pack.RightJustified(rx[5:8]))

	var raw []byte
	for len(raw) < frames*2 {
		if ctrl.Canceled() {
			return fsops.IData{}, xerr.New(xerr.KindCanceled, "microfreak.download", xerr.ErrCanceled)
		}
		var rxData []byte
		var lastErr error
		for attempt := 0; attempt < maxRetries; attempt++ {
			rxData, lastErr = o.backend.TxAndRx(frame(opSampleDataReq, byte(id)), rxTimeoutMs)
			if lastErr == nil && requireOp(rxData, opSampleDataResp) == nil {
				break
			}
		}
		if lastErr != nil {
			return fsops.IData{}, xerr.New(xerr.KindWire, "microfreak.download", lastErr)
		}
		packed := rxData[5 : len(rxData)-1]
		unpacked := pack.Unpack(packed, frames*2-len(raw))
		raw = append(raw, unpacked...)
		ctrl.Report(float64(len(raw)) / float64(frames*2+1))
		if len(unpacked) == 0 {
			break
		}
	}
	ctrl.Report(1)

	info := &fsops.SampleInfo{
		Frames:   int64(frames),
		Channels: 1,
		Rate:     baseRate,
		Format:   fsops.FormatPCM16 | fsops.MicroFreakTag,
	}
	info.NormalizeLoop()
	return fsops.IData{Content: raw, Info: info, Name: path}, nil
}

// Upload packs data's content into the device's private container
// framing and sends it as a header followed by packed data requests,
// the mirror of Download.
func (o *Ops) Upload(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	id, err := strconv.Atoi(path)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "microfreak.upload", err)
	}
	frames := 0
	if data.Info != nil {
		frames = int(data.Info.Frames)
	} else {
		frames = len(data.Content) / 2
	}

	header := make([]byte, 3)
	pack.PutRightJustified(header, uint32(frames))
	if _, err := o.backend.TxAndRx(frame(opSampleHeaderReq, append([]byte{byte(id)}, header...)...), rxTimeoutMs); err != nil {
		return xerr.New(xerr.KindWire, "microfreak.upload", err)
	}

	packed := pack.Pack(data.Content)
	const chunk = 112
	for off := 0; off < len(packed); off += chunk {
		end := off + chunk
		if end > len(packed) {
			end = len(packed)
		}
		if ctrl.Canceled() {
			return xerr.New(xerr.KindCanceled, "microfreak.upload", xerr.ErrCanceled)
		}
		payload := append([]byte{byte(id)}, packed[off:end]...)
		if _, err := o.backend.TxAndRx(frame(opSampleDataReq, payload...), rxTimeoutMs); err != nil {
			return xerr.New(xerr.KindWire, "microfreak.upload", err)
		}
		ctrl.Report(float64(end) / float64(len(packed)))
	}
	ctrl.Report(1)
	return nil
}

// Rename sends newName trimmed to the device's 12-character limit and
// mapped through its display-font alphabet; anything the firmware
// can't render becomes an underscore.
func (o *Ops) Rename(ctx context.Context, path, newName string) error {
	id, err := strconv.Atoi(path)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "microfreak.rename", err)
	}
	sanitized := xpath.SanitizeAlphabet(newName, alphabet, '_')
	if len(sanitized) > o.MaxNameLen() {
		sanitized = sanitized[:o.MaxNameLen()]
	}
	payload := append([]byte{byte(id)}, []byte(sanitized)...)
	rx, err := o.backend.TxAndRx(frame(opSampleRename, payload...), rxTimeoutMs)
	if err != nil {
		return xerr.New(xerr.KindWire, "microfreak.rename", err)
	}
	return requireOp(rx, opSampleRenameAck)
}

func (o *Ops) Delete(ctx context.Context, path string) error {
	id, err := strconv.Atoi(path)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "microfreak.delete", err)
	}
	rx, err := o.backend.TxAndRx(frame(opSampleDelete, byte(id)), rxTimeoutMs)
	if err != nil {
		return xerr.New(xerr.KindWire, "microfreak.delete", err)
	}
	return requireOp(rx, opSampleDeleteAck)
}

func (o *Ops) GetUploadPath(dstDir, srcPath string, content []byte) (string, error) {
	return dstDir, nil
}

func (o *Ops) GetDownloadPath(dstDir, srcPath string) (string, error) {
	return xpath.Chain(dstDir, xpath.Base(srcPath)), nil
}
