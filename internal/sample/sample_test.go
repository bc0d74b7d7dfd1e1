package sample

import (
	"bytes"
	"math"
	"testing"

	"github.com/dagargo/elektroid/internal/fsops"
)

func sineWave(n, rate int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}
	return out
}

func TestWAVRoundTripPCM16Stereo(t *testing.T) {
	rate := 44100
	left := sineWave(1000, rate, 440)
	right := sineWave(1000, rate, 440)
	snd := &Sound{
		Frames: [][]float64{left, right},
		Info: fsops.SampleInfo{
			Frames:   1000,
			Channels: 2,
			Rate:     rate,
			Format:   fsops.FormatPCM16,
			MIDINote: 60,
		},
	}
	data, info := EncodeWAV(snd)
	if info.Channels != 2 {
		t.Fatalf("encode info channels = %d", info.Channels)
	}

	decoded, err := DecodeWAV(data, true)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if decoded.Info.Channels != 2 || decoded.Info.Rate != rate {
		t.Fatalf("decoded info = %+v", decoded.Info)
	}
	if decoded.Info.MIDINote != 60 {
		t.Errorf("MIDINote = %d, want 60", decoded.Info.MIDINote)
	}
	if len(decoded.Frames) != 2 || len(decoded.Frames[0]) != 1000 {
		t.Fatalf("decoded frames shape = %d x %d", len(decoded.Frames), len(decoded.Frames[0]))
	}
	for i := range left {
		if math.Abs(decoded.Frames[0][i]-left[i]) > 0.001 {
			t.Fatalf("sample %d: got %f want %f", i, decoded.Frames[0][i], left[i])
		}
	}
}

func TestMixChannelsStereoToMono(t *testing.T) {
	frames := [][]float64{{1, 1, 1}, {-1, -1, -1}}
	mono := mixChannels(frames, 1)
	if len(mono) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(mono))
	}
	for _, v := range mono[0] {
		if v != 0 {
			t.Errorf("expected averaged silence, got %f", v)
		}
	}
}

func TestMixChannelsMonoToStereo(t *testing.T) {
	frames := [][]float64{{0.5, -0.5}}
	stereo := mixChannels(frames, 2)
	if len(stereo) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(stereo))
	}
	if stereo[0][0] != 0.5 || stereo[1][0] != 0.5 {
		t.Errorf("duplicated channel mismatch: %+v", stereo)
	}
}

func TestResampleLength(t *testing.T) {
	frames := [][]float64{sineWave(1000, 44100, 440)}
	out := resample(frames, 44100, 22050)
	if len(out[0]) != 500 {
		t.Errorf("resampled length = %d, want 500", len(out[0]))
	}
}

func TestTagsRoundTripKeeps4ByteKeysOnly(t *testing.T) {
	snd := &Sound{
		Frames: [][]float64{sineWave(100, 44100, 440)},
		Info: fsops.SampleInfo{
			Frames:   100,
			Channels: 1,
			Rate:     44100,
			Format:   fsops.FormatPCM16,
			Tags: map[string]string{
				"IKEY": "loop; FX",
				"key":  "x", // not 4 bytes, must be dropped
			},
		},
	}
	data, _ := EncodeWAV(snd)
	decoded, err := DecodeWAV(data, true)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got := decoded.Info.Tags["IKEY"]; got != "loop; FX" {
		t.Errorf("IKEY = %q, want \"loop; FX\"", got)
	}
	if _, ok := decoded.Info.Tags["key"]; ok {
		t.Error("3-byte key should have been skipped at save time")
	}
}

func TestEncodeWAVChunkOrder(t *testing.T) {
	snd := &Sound{
		Frames: [][]float64{sineWave(64, 48000, 440)},
		Info: fsops.SampleInfo{
			Frames:   64,
			Channels: 1,
			Rate:     48000,
			Format:   fsops.FormatPCM16,
			Tags:     map[string]string{"INAM": "sq"},
		},
	}
	data, _ := EncodeWAV(snd)
	order := []string{fmtID, junkID, smplID, dataID, listID}
	last := -1
	for _, id := range order {
		i := bytes.Index(data, []byte(id))
		if i < 0 {
			t.Fatalf("chunk %q missing from output", id)
		}
		if i <= last {
			t.Errorf("chunk %q out of order (offset %d after %d)", id, i, last)
		}
		last = i
	}
}

func TestEncodeWAVRoundTripIsStable(t *testing.T) {
	snd := &Sound{
		Frames: [][]float64{sineWave(500, 48000, 440)},
		Info: fsops.SampleInfo{
			Frames:    500,
			Channels:  1,
			Rate:      48000,
			Format:    fsops.FormatPCM16,
			LoopStart: 10,
			LoopEnd:   490,
			LoopType:  0x7f,
		},
	}
	first, _ := EncodeWAV(snd)
	decoded, err := DecodeWAV(first, true)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	second, _ := EncodeWAV(decoded)
	if !bytes.Equal(first, second) {
		t.Error("save(load(save(x))) should be byte-identical to save(x)")
	}
}

func TestConvertRescalesLoopPoints(t *testing.T) {
	snd := &Sound{
		Frames: [][]float64{sineWave(44100, 44100, 440)},
		Info: fsops.SampleInfo{
			Frames:    44100,
			Channels:  1,
			Rate:      44100,
			Format:    fsops.FormatPCM16,
			LoopStart: 5817,
			LoopEnd:   39793,
			LoopType:  0x7f,
		},
	}
	out, err := Convert(snd, 48000, 1, 16, &fsops.Control{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Info.Rate != 48000 || out.Info.Channels != 1 {
		t.Fatalf("target = %d Hz %d ch", out.Info.Rate, out.Info.Channels)
	}
	if out.Info.LoopStart != 6331 || out.Info.LoopEnd != 43312 {
		t.Errorf("loop points = (%d, %d), want (6331, 43312)",
			out.Info.LoopStart, out.Info.LoopEnd)
	}
	if out.Info.LoopType != 0x7f {
		t.Errorf("loop type should survive conversion, got %#x", out.Info.LoopType)
	}
}

func TestDecodeWAVRejectsBadMagic(t *testing.T) {
	_, err := DecodeWAV([]byte("not a wav file at all"), false)
	if err == nil {
		t.Error("expected error for non-RIFF input")
	}
}
