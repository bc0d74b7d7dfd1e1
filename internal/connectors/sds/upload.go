package sds

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/pack"
	"github.com/dagargo/elektroid/internal/xerr"
)

var dumpHeaderTemplate = []byte{
	0xf0, 0x7e, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xf7,
}

// waitAck blocks for the reply to an already-sent packet: an ACK
// (success), a NAK (packet is sent again, up to maxRetries times), a
// CANCEL (abort), or a WAIT — see Config.ContinueAfterOrphanWait.
func (o *Ops) waitAck(packet []byte, packetNum int) error {
	naks := 0
	waited := false
	for {
		rx, err := rxHandshake(o.backend)
		if err != nil {
			if waited && xerr.Is(err, xerr.KindTimedOut) {
				return nil // orphaned WAIT: carry on with the next packet
			}
			return xerr.New(xerr.KindWire, "sds.upload", err)
		}
		if len(rx) < 5 {
			return xerr.New(xerr.KindProtocol, "sds.upload", fmt.Errorf("short handshake reply"))
		}
		switch rx[3] {
		case 0x7f: // ACK
			return nil
		case 0x7e: // NAK
			if naks >= maxRetries {
				return xerr.New(xerr.KindProtocol, "sds.upload", fmt.Errorf("packet %d NAK'd", packetNum))
			}
			naks++
			if err := o.backend.Tx(packet); err != nil {
				return xerr.New(xerr.KindWire, "sds.upload", err)
			}
		case 0x7d: // CANCEL
			return xerr.New(xerr.KindCanceled, "sds.upload", xerr.ErrCanceled)
		case 0x7c: // WAIT
			if activeConfig.ContinueAfterOrphanWait {
				waited = true
				continue
			}
			return xerr.New(xerr.KindProtocol, "sds.upload", fmt.Errorf("unexpected WAIT"))
		default:
			return xerr.New(xerr.KindProtocol, "sds.upload", fmt.Errorf("unrecognised handshake byte %#x", rx[3]))
		}
	}
}

// Upload sends a dump header followed by 120-byte data packets, each
// gated by the wire's ACK/NAK/CANCEL/WAIT handshake.
func (o *Ops) Upload(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	id, err := strconv.Atoi(path)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "sds.upload", err)
	}
	info := data.Info
	if info == nil {
		return xerr.New(xerr.KindBadInput, "sds.upload", fmt.Errorf("missing sample info"))
	}
	bitdepth := 16
	bpw, err := bytesPerWordForBits(bitdepth)
	if err != nil {
		return err
	}

	pcm := data.Content
	words := len(pcm) / 2

	hdr := append([]byte(nil), dumpHeaderTemplate...)
	hdr[4] = byte(id % 128)
	hdr[5] = byte(id / 128)
	hdr[6] = byte(bitdepth)
	period := uint32(0)
	if info.Rate > 0 {
		period = uint32(1.0e9 / float64(info.Rate))
	}
	pack.PutRightJustified(hdr[7:10], period)
	pack.PutRightJustified(hdr[10:13], uint32(words))
	pack.PutRightJustified(hdr[13:16], uint32(info.LoopStart))
	pack.PutRightJustified(hdr[16:19], uint32(info.LoopEnd))
	hdr[19] = byte(info.LoopType)

	if err := o.backend.Tx(hdr); err != nil {
		return xerr.New(xerr.KindWire, "sds.upload", err)
	}
	if err := o.waitAck(hdr, 0); err != nil {
		return err
	}

	packetNum := 0
	for w := 0; w < words; {
		packet := make([]byte, dataPacketLen)
		copy(packet, dataPacketHeader)
		packet[4] = byte(packetNum)
		payload := packet[5 : 5+dataPacketPayloadLen]
		off := 0
		for off+bpw <= dataPacketPayloadLen && w < words {
			s := int16(pcm[w*2]) | int16(pcm[w*2+1])<<8
			pack.PutLeftJustified(payload[off:off+bpw], uint(bitdepth), s)
			off += bpw
			w++
		}
		packet[126] = 0xf7
		packet[cksumPos] = checksum(packet)

		if ctrl.Canceled() {
			_ = o.backend.Tx(cancel)
			return xerr.New(xerr.KindCanceled, "sds.upload", xerr.ErrCanceled)
		}
		if err := o.backend.Tx(packet); err != nil {
			return xerr.New(xerr.KindWire, "sds.upload", err)
		}
		if err := o.waitAck(packet, packetNum); err != nil {
			return err
		}
		packetNum = (packetNum + 1) % 0x80
		ctrl.Report(float64(w) / float64(words+1))
	}
	ctrl.Report(1)
	return nil
}

// GetDownloadPath resolves an SDS sample's device-assigned name via
// the 0x05/0x04 sample-name request, falling back to the bare numeric
// id if the device doesn't answer.
func (o *Ops) GetDownloadPath(dstDir, srcPath string) (string, error) {
	id := 0
	fmt.Sscanf(srcPath, "%d", &id)
	req := append([]byte(nil), sampleNameRequest...)
	req[5] = byte(id % 128)
	req[6] = byte(id / 128)
	rx, err := o.backend.TxAndRx(req, 2000)
	if err != nil || len(rx) < 6 {
		return fmt.Sprintf("%s/%d.wav", dstDir, id), nil
	}
	name := string(rx[5 : len(rx)-1])
	return fmt.Sprintf("%s/%s.wav", dstDir, name), nil
}

func (o *Ops) GetUploadPath(dstDir, srcPath string, content []byte) (string, error) {
	return dstDir, nil
}
