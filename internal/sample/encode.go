package sample

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/dagargo/elektroid/internal/fsops"
)

// EncodeWAV serialises snd back to a RIFF/WAVE byte stream: fmt, a
// JUNK padding chunk, an smpl chunk carrying loop points and MIDI
// note, the audio data, and — when Info.Tags is non-empty — a
// LIST/INFO chunk (keys whose length is not exactly 4 are skipped).
// It returns the bytes and the SampleInfo actually written (loop
// points normalised).
func EncodeWAV(snd *Sound) ([]byte, *fsops.SampleInfo) {
	info := snd.Info
	info.NormalizeLoop()

	bitsPerSample, fmtTag := formatBits(info.Format)
	pcm := encodePCM(snd.Frames, info.Format)

	var fmtChunk bytes.Buffer
	binary.Write(&fmtChunk, binary.LittleEndian, fmtTag)
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(info.Channels))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(info.Rate))
	byteRate := uint32(info.Rate * info.Channels * bitsPerSample / 8)
	binary.Write(&fmtChunk, binary.LittleEndian, byteRate)
	blockAlign := uint16(info.Channels * bitsPerSample / 8)
	binary.Write(&fmtChunk, binary.LittleEndian, blockAlign)
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(bitsPerSample))

	smplChunk := encodeSmplChunk(info)

	var out bytes.Buffer
	out.WriteString(riffID)
	var riffSize uint32 // patched below
	binary.Write(&out, binary.LittleEndian, riffSize)
	out.WriteString(waveID)

	writeChunk(&out, fmtID, fmtChunk.Bytes())
	writeChunk(&out, junkID, junkChunkData)
	writeChunk(&out, smplID, smplChunk)
	writeChunk(&out, dataID, pcm)
	if list := encodeListInfoChunk(info.Tags); list != nil {
		writeChunk(&out, listID, list)
	}

	buf := out.Bytes()
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)-8))
	return buf, &info
}

func writeChunk(w *bytes.Buffer, id string, body []byte) {
	w.WriteString(id)
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(body)))
	w.Write(size[:])
	w.Write(body)
	if len(body)%2 == 1 {
		w.WriteByte(0)
	}
}

func formatBits(format fsops.Format) (bits int, fmtTag uint16) {
	switch format &^ fsops.MicroFreakTag {
	case fsops.FormatPCMU8:
		return 8, fmtPCM
	case fsops.FormatPCM24:
		return 24, fmtPCM
	case fsops.FormatPCM32:
		return 32, fmtPCM
	case fsops.FormatFloat32:
		return 32, fmtFloat
	case fsops.FormatDouble64:
		return 64, fmtFloat
	default:
		return 16, fmtPCM
	}
}

func encodeSmplChunk(info fsops.SampleInfo) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(0))         // manufacturer
	binary.Write(&b, binary.LittleEndian, uint32(0))         // product
	samplePeriod := uint32(0)
	if info.Rate > 0 {
		samplePeriod = uint32(1e9 / float64(info.Rate))
	}
	binary.Write(&b, binary.LittleEndian, samplePeriod)
	binary.Write(&b, binary.LittleEndian, uint32(info.MIDINote))
	binary.Write(&b, binary.LittleEndian, uint32(0)) // pitch fraction
	binary.Write(&b, binary.LittleEndian, uint32(0)) // smpte format
	binary.Write(&b, binary.LittleEndian, uint32(0)) // smpte offset
	binary.Write(&b, binary.LittleEndian, uint32(1)) // num sampler loops
	binary.Write(&b, binary.LittleEndian, uint32(0)) // sampler data size
	binary.Write(&b, binary.LittleEndian, uint32(0)) // loop cue point id
	binary.Write(&b, binary.LittleEndian, uint32(info.LoopType))
	binary.Write(&b, binary.LittleEndian, uint32(info.LoopStart))
	binary.Write(&b, binary.LittleEndian, uint32(info.LoopEnd))
	binary.Write(&b, binary.LittleEndian, uint32(0)) // fraction
	binary.Write(&b, binary.LittleEndian, uint32(0)) // play count
	return b.Bytes()
}

// encodeListInfoChunk renders tags as a LIST chunk body with the INFO
// list type. Keys are emitted in sorted order so encoding is
// deterministic; keys whose length is not exactly 4 bytes are skipped.
func encodeListInfoChunk(tags map[string]string) []byte {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if len(k) == 4 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString("INFO")
	for _, k := range keys {
		val := append([]byte(tags[k]), 0) // NUL-terminated
		b.WriteString(k)
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(val)))
		b.Write(size[:])
		b.Write(val)
		if len(val)%2 == 1 {
			b.WriteByte(0)
		}
	}
	return b.Bytes()
}

func encodePCM(frames [][]float64, format fsops.Format) []byte {
	channels := len(frames)
	if channels == 0 {
		return nil
	}
	n := len(frames[0])
	bits, _ := formatBits(format)
	bytesPerSample := bits / 8
	out := make([]byte, n*channels*bytesPerSample)
	for f := 0; f < n; f++ {
		for c := 0; c < channels; c++ {
			off := (f*channels + c) * bytesPerSample
			encodeSample(out[off:off+bytesPerSample], frames[c][f], format)
		}
	}
	return out
}

func encodeSample(b []byte, v float64, format fsops.Format) {
	switch format &^ fsops.MicroFreakTag {
	case fsops.FormatPCMU8:
		b[0] = byte(clamp(v*128+128, 0, 255))
	case fsops.FormatPCM24:
		iv := int32(clamp(v*(1<<23), -(1<<23), (1<<23)-1))
		b[0] = byte(iv)
		b[1] = byte(iv >> 8)
		b[2] = byte(iv >> 16)
	case fsops.FormatPCM32:
		iv := int32(clamp(v*(1<<31), -(1<<31), (1<<31)-1))
		binary.LittleEndian.PutUint32(b, uint32(iv))
	case fsops.FormatFloat32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case fsops.FormatDouble64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default: // PCM16
		iv := int16(clamp(v*(1<<15), -(1<<15), (1<<15)-1))
		binary.LittleEndian.PutUint16(b, uint16(iv))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
