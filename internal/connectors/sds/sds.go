// Package sds implements the MIDI Sample Dump Standard connector: a
// universal, slot-numbered filesystem backed by the SDS
// dump-header/data-packet/ack-nak-cancel-wait protocol.
package sds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/connectors"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/pack"
	"github.com/dagargo/elektroid/internal/xerr"
)

func init() {
	connectors.Register(connectors.Connector{
		Name:      "sds",
		Standard:  false,
		Handshake: Handshake,
	})
}

const (
	dataPacketLen        = 127
	dataPacketPayloadLen = 120
	cksumPos             = 125
	cksumStart           = 1
	bytesPerWord         = 3
	ackWaitTimeout       = 5000 // milliseconds
	maxRetries           = 10
)

var (
	sampleRequest     = []byte{0xf0, 0x7e, 0, 0x3, 0, 0, 0xf7}
	ack               = []byte{0xf0, 0x7e, 0, 0x7f, 0, 0xf7}
	nak               = []byte{0xf0, 0x7e, 0, 0x7e, 0, 0xf7}
	cancel            = []byte{0xf0, 0x7e, 0, 0x7d, 0, 0xf7}
	wait              = []byte{0xf0, 0x7e, 0, 0x7c, 0, 0xf7}
	sampleNameRequest = []byte{0xf0, 0x7e, 0, 0x5, 0x4, 0, 0, 0xf7}
	dataPacketHeader  = []byte{0xf0, 0x7e, 0, 0x2, 0}
)

// Config parameterizes behaviour the protocol leaves open.
type Config struct {
	// ContinueAfterOrphanWait tolerates a WAIT handshake message with
	// no later ACK as if the transfer simply continued. Some samplers
	// emit that sequence; for an unattended client it usually means a
	// stall. Default false: an orphaned WAIT is a protocol error.
	ContinueAfterOrphanWait bool
}

var activeConfig Config

// SetConfig replaces the connector-wide configuration. Call before any
// transfer is in flight.
func SetConfig(c Config) { activeConfig = c }

// Handshake always matches and sends nothing: the connector claims
// every device that reaches it. It has no device-name regex, so the
// registry tries it after all regex-matching connectors and in
// registration order among the rest; connectors registered after it
// are reached only through their own regex.
func Handshake(b *backend.Backend) error {
	b.SetFilesystems([]fsops.Ops{&Ops{backend: b}})
	b.SetDescription("MIDI Sample Dump Standard")
	return nil
}

// Ops implements fsops.Ops for an SDS-addressable device. Items are
// named by their 0-based numeric slot id; ReadDir cannot enumerate a
// real SDS device (the protocol has no "list" operation) so it
// reports the fixed sampleLimit-sized id space instead.
type Ops struct {
	fsops.Base
	backend *backend.Backend
}

const sampleLimit = 1000

func (o *Ops) ID() int32 { return 10 }
func (o *Ops) Name() string { return "SDS" }
func (o *Ops) Options() fsops.Options {
	return fsops.SlotStorage | fsops.SortByID | fsops.SampleEditor
}
func (o *Ops) MaxNameLen() int { return 0 }
func (o *Ops) TypeExt() string { return "wav" }
func (o *Ops) Extensions() []string { return []string{"wav"} }
func (o *Ops) Slot(id int32) string { return strconv.Itoa(int(id)) }

func (o *Ops) ReadDir(ctx context.Context, path string, extensions []string) (fsops.ItemIterator, error) {
	items := make([]fsops.Item, sampleLimit)
	for i := range items {
		items[i] = fsops.Item{Name: strconv.Itoa(i), Kind: fsops.KindFile, Size: -1, ID: int32(i)}
	}
	return fsops.NewSliceIterator(items), nil
}

func checksum(data []byte) byte {
	var c byte
	for i := cksumStart; i < cksumPos && i < len(data); i++ {
		c ^= data[i]
	}
	return c & 0x7f
}

func bytesPerWordForBits(bits int) (int, error) {
	if bits >= 15 {
		return 3, nil
	}
	if bits > 0 {
		return 2, nil
	}
	return 0, xerr.New(xerr.KindProtocol, "sds.bytes_per_word", fmt.Errorf("%d bits resolution not supported", bits))
}

func txHandshake(b *backend.Backend, msg []byte, packetNum byte) {
	raw := append([]byte(nil), msg...)
	raw[4] = packetNum
	_ = b.Tx(raw)
}

func rxHandshake(b *backend.Backend) ([]byte, error) {
	return b.Rx(ackWaitTimeout, false)
}

// Download implements the SDS dump-request download: a sample request
// by numeric id, then a header reply followed by ACK/NAK-gated data
// packets.
func (o *Ops) Download(ctx context.Context, path string, ctrl *fsops.Control) (fsops.IData, error) {
	id, err := strconv.Atoi(path)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindBadInput, "sds.download", err)
	}

	req := append([]byte(nil), sampleRequest...)
	req[4] = byte(id % 128)
	req[5] = byte(id / 128)
	rx, err := o.backend.TxAndRx(req, -1)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "sds.download", err)
	}
	if len(rx) < 20 {
		return fsops.IData{}, xerr.New(xerr.KindProtocol, "sds.download", fmt.Errorf("short header reply"))
	}

	bitdepth := int(rx[6])
	bpw, err := bytesPerWordForBits(bitdepth)
	if err != nil {
		return fsops.IData{}, err
	}

	period := pack.RightJustified(rx[7:10])
	rate := int(1.0e9 / float64(period))
	words := int(pack.RightJustified(rx[10:13]))
	loopStart := int64(pack.RightJustified(rx[13:16]))
	loopEnd := int64(pack.RightJustified(rx[16:19]))
	loopType := rx[19]

	info := fsops.SampleInfo{
		Rate:      rate,
		Channels:  1,
		Format:    fsops.FormatPCM16,
		LoopStart: loopStart,
		LoopEnd:   loopEnd,
		LoopType:  fsops.LoopType(loopType),
	}

	pcm := make([]byte, 0, words*2)
	packetCounter := 0
	headerResp := true
	totalWords := 0

	for totalWords < words {
		if ctrl.Canceled() {
			txHandshake(o.backend, cancel, byte(packetCounter))
			o.backend.RxDrain()
			return fsops.IData{}, xerr.New(xerr.KindCanceled, "sds.download", xerr.ErrCanceled)
		}

		packetNum := 0
		nextPacketNum := 0
		if !headerResp {
			packetNum = packetCounter
			nextPacketNum = (packetCounter + 1) % 0x80
		}

		ok := true
		var rxPacket []byte
		for errs := 0; errs < maxRetries; errs++ {
			var msg []byte
			if ok {
				msg = append([]byte(nil), ack...)
				msg[4] = byte(packetNum)
			} else {
				msg = append([]byte(nil), nak...)
				msg[4] = byte(nextPacketNum)
			}
			rxPacket, err = o.backend.TxAndRx(msg, -1)
			if err != nil {
				txHandshake(o.backend, cancel, byte(nextPacketNum))
				return fsops.IData{}, xerr.New(xerr.KindWire, "sds.download", err)
			}
			if len(rxPacket) == dataPacketLen && int(rxPacket[4]) == nextPacketNum &&
				checksum(rxPacket) == rxPacket[cksumPos] {
				if headerResp {
					headerResp = false
				} else {
					packetCounter = (packetCounter + 1) % 0x80
				}
				break
			}
			ok = false
			time.Sleep(2 * time.Millisecond)
		}
		if rxPacket == nil || len(rxPacket) != dataPacketLen {
			return fsops.IData{}, xerr.New(xerr.KindProtocol, "sds.download", fmt.Errorf("too many retries"))
		}

		dataPtr := rxPacket[5:]
		readBytes := 0
		for readBytes < dataPacketPayloadLen && totalWords < words {
			s := pack.LeftJustified(dataPtr[:bpw], uint(bitdepth))
			pcm = append(pcm, byte(s), byte(s>>8))
			dataPtr = dataPtr[bpw:]
			readBytes += bpw
			totalWords++
			ctrl.Report(float64(totalWords) / float64(words+1))
		}
	}

	txHandshake(o.backend, ack, byte(packetCounter))
	ctrl.Report(1)
	info.Frames = int64(words)
	info.NormalizeLoop()
	return fsops.IData{Content: pcm, Info: &info, Name: path}, nil
}
