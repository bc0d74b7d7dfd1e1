// Package sample implements the sample pipeline: WAV
// decode/encode with loop-point and MIDI-note metadata carried in the
// smpl chunk, plus resampling and channel mixing for the System
// connector's sample variants.
//
// The RIFF container itself is framed by hand with encoding/binary
// rather than through a WAV-writing library: none of the example
// repos' dependencies expose smpl/JUNK/LIST-INFO chunk writing (the
// closest, github.com/go-audio/wav, only reads/writes bare fmt+data),
// so this package keeps samples as per-channel float64 slices, converts
// them to github.com/go-audio/audio's FloatBuffer for playback
// (Sound.Buffer), and hand-rolls the chunk I/O.
package sample

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-audio/audio"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/xerr"
)

const (
	riffID = "RIFF"
	waveID = "WAVE"
	fmtID  = "fmt "
	dataID = "data"
	smplID = "smpl"
	junkID = "JUNK"
	listID = "LIST"

	fmtPCM   = 1
	fmtFloat = 3
)

// junkChunkData is the zero-filled padding chunk written after fmt, so
// downstream tools that assume word-aligned chunk headers (some
// Elektron gear does) see consistent alignment.
var junkChunkData = make([]byte, 28)

// Sound is the decoded in-memory representation of a WAV file: raw
// per-channel samples (always decoded to float64 for uniform
// processing) plus the fsops.SampleInfo metadata.
type Sound struct {
	Frames [][]float64 // [channel][frame]
	Info   fsops.SampleInfo
}

// Buffer returns snd's samples as an interleaved *audio.FloatBuffer,
// the representation the rest of the pack's audio tooling
// (github.com/go-audio/audio) and internal/audiohost's malgo callbacks
// exchange data in.
func (s *Sound) Buffer() *audio.FloatBuffer {
	return toFloatBuffer(s.Frames, s.Info.Rate)
}

// FromBuffer builds per-channel Frames from an interleaved
// *audio.FloatBuffer, the inverse of Buffer.
func FromBuffer(buf *audio.FloatBuffer) [][]float64 {
	return fromFloatBuffer(buf)
}

func toFloatBuffer(frames [][]float64, rate int) *audio.FloatBuffer {
	channels := len(frames)
	if channels == 0 {
		return &audio.FloatBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: rate}}
	}
	n := len(frames[0])
	data := make([]float64, n*channels)
	for f := 0; f < n; f++ {
		for c := 0; c < channels; c++ {
			data[f*channels+c] = frames[c][f]
		}
	}
	return &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:   data,
	}
}

func fromFloatBuffer(buf *audio.FloatBuffer) [][]float64 {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil
	}
	channels := buf.Format.NumChannels
	n := len(buf.Data) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, n)
	}
	for f := 0; f < n; f++ {
		for c := 0; c < channels; c++ {
			out[c][f] = buf.Data[f*channels+c]
		}
	}
	return out
}

// Extensions lists the file extensions the System connector recognises
// as loadable samples.
func Extensions() []string { return []string{"wav"} }

// DecodeWAV parses a RIFF/WAVE byte stream into a Sound. An smpl
// chunk's loop points and MIDI note are always read into Info; a
// LIST/INFO chunk's name-value pairs are read into Info.Tags only when
// tags is true.
func DecodeWAV(data []byte, tags bool) (*Sound, error) {
	r := bytes.NewReader(data)
	var hdr [12]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", err)
	}
	if string(hdr[0:4]) != riffID || string(hdr[8:12]) != waveID {
		return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", fmt.Errorf("not a RIFF/WAVE stream"))
	}

	var fmtTag, channels uint16
	var rate, byteRate uint32
	var bitsPerSample uint16
	var pcm []byte
	info := fsops.SampleInfo{Tags: map[string]string{}}
	haveFmt := false

	for {
		var chunkHdr [8]byte
		n, _ := r.Read(chunkHdr[:])
		if n < 8 {
			break
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])
		body := make([]byte, size)
		if _, err := r.Read(body); err != nil {
			return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", err)
		}
		if size%2 == 1 {
			r.Seek(1, 1) // chunks are word-aligned
		}

		switch id {
		case fmtID:
			if len(body) < 16 {
				return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", fmt.Errorf("short fmt chunk"))
			}
			fmtTag = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			rate = binary.LittleEndian.Uint32(body[4:8])
			byteRate = binary.LittleEndian.Uint32(body[8:12])
			_ = byteRate
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case dataID:
			pcm = body
		case smplID:
			if len(body) >= 60 {
				info.MIDINote = uint8(binary.LittleEndian.Uint32(body[12:16]))
				info.LoopType = fsops.LoopType(binary.LittleEndian.Uint32(body[44:48]))
				info.LoopStart = int64(binary.LittleEndian.Uint32(body[48:52]))
				info.LoopEnd = int64(binary.LittleEndian.Uint32(body[52:56]))
			}
		case listID:
			if tags {
				parseListInfo(body, info.Tags)
			}
		}
	}

	if !haveFmt || pcm == nil {
		return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", fmt.Errorf("missing fmt or data chunk"))
	}

	info.Channels = int(channels)
	info.Rate = int(rate)
	switch {
	case fmtTag == fmtFloat && bitsPerSample == 32:
		info.Format = fsops.FormatFloat32
	case fmtTag == fmtFloat && bitsPerSample == 64:
		info.Format = fsops.FormatDouble64
	case bitsPerSample == 8:
		info.Format = fsops.FormatPCMU8
	case bitsPerSample == 24:
		info.Format = fsops.FormatPCM24
	case bitsPerSample == 32:
		info.Format = fsops.FormatPCM32
	default:
		info.Format = fsops.FormatPCM16
	}

	frames, err := decodePCM(pcm, int(channels), int(bitsPerSample), info.Format)
	if err != nil {
		return nil, err
	}
	info.Frames = int64(len(frames[0]))
	info.NormalizeLoop()

	return &Sound{Frames: frames, Info: info}, nil
}

func decodePCM(pcm []byte, channels, bits int, format fsops.Format) ([][]float64, error) {
	if channels <= 0 {
		return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", fmt.Errorf("zero channels"))
	}
	bytesPerSample := bits / 8
	frameSize := bytesPerSample * channels
	if frameSize == 0 || len(pcm)%frameSize != 0 {
		return nil, xerr.New(xerr.KindBadInput, "sample.decode_wav", fmt.Errorf("truncated data chunk"))
	}
	nFrames := len(pcm) / frameSize
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, nFrames)
	}
	for f := 0; f < nFrames; f++ {
		for c := 0; c < channels; c++ {
			off := f*frameSize + c*bytesPerSample
			out[c][f] = decodeSample(pcm[off:off+bytesPerSample], format)
		}
	}
	return out, nil
}

func decodeSample(b []byte, format fsops.Format) float64 {
	switch format {
	case fsops.FormatPCMU8:
		return (float64(b[0]) - 128) / 128
	case fsops.FormatPCM24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= -1 << 24
		}
		return float64(v) / (1 << 23)
	case fsops.FormatPCM32:
		v := int32(binary.LittleEndian.Uint32(b))
		return float64(v) / (1 << 31)
	case fsops.FormatFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case fsops.FormatDouble64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default: // PCM16
		v := int16(binary.LittleEndian.Uint16(b))
		return float64(v) / (1 << 15)
	}
}

func parseListInfo(body []byte, tags map[string]string) {
	if len(body) < 4 || string(body[0:4]) != "INFO" {
		return
	}
	r := bytes.NewReader(body[4:])
	for r.Len() >= 8 {
		var hdr [8]byte
		if _, err := r.Read(hdr[:]); err != nil {
			return
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])
		if int(size) > r.Len() {
			return
		}
		val := make([]byte, size)
		r.Read(val)
		if size%2 == 1 {
			r.Seek(1, 1)
		}
		tags[id] = string(bytes.TrimRight(val, "\x00"))
	}
}
