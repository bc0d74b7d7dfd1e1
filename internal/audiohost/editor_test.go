package audiohost

import (
	"testing"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/sample"
)

func TestNextZeroCrossing(t *testing.T) {
	frames := [][]float64{{1, 1, -1, -1, 1, 1}}
	got := NextZeroCrossing(frames, 0, SlopeAny)
	if got != 2 {
		t.Errorf("NextZeroCrossing = %d, want 2", got)
	}
}

func TestPrevZeroCrossing(t *testing.T) {
	frames := [][]float64{{1, 1, -1, -1, 1, 1}}
	got := PrevZeroCrossing(frames, 5, SlopeAny)
	if got != 3 {
		t.Errorf("PrevZeroCrossing = %d, want 3", got)
	}
}

func TestDeleteRange(t *testing.T) {
	frames := [][]float64{{0, 1, 2, 3, 4, 5}}
	out := DeleteRange(frames, 1, 2)
	want := []float64{0, 3, 4, 5}
	if len(out[0]) != len(want) {
		t.Fatalf("len = %d, want %d", len(out[0]), len(want))
	}
	for i, v := range want {
		if out[0][i] != v {
			t.Errorf("[%d] = %f, want %f", i, out[0][i], v)
		}
	}
}

func TestNormalizeScalesToFullScale(t *testing.T) {
	frames := [][]float64{{0.1, -0.2, 0.05}}
	Normalize(frames, 0, 3)
	if frames[0][1] != -1 {
		t.Errorf("peak sample should reach -1, got %f", frames[0][1])
	}
}

func TestFinishRecordingTrimsLeadingSilence(t *testing.T) {
	data := make([]float64, 20)
	for i := 10; i < 20; i++ {
		data[i] = 0.5
	}
	snd := &sample.Sound{
		Frames: [][]float64{data},
		Info:   fsops.SampleInfo{Frames: 20, Channels: 1, Rate: 48000},
	}
	out := FinishRecording(snd, FinishRecordingOptions{})
	if len(out.Frames[0]) >= 20 {
		t.Errorf("expected leading silence trimmed, got %d frames", len(out.Frames[0]))
	}
	if out.Info.LoopStart != out.Info.Frames-1 {
		t.Errorf("loop start should follow the new frame count")
	}
}
