package audiohost

import (
	"math"

	"github.com/dagargo/elektroid/internal/sample"
)

// Slope selects which zero crossings the search functions look for.
type Slope int

const (
	SlopeAny Slope = iota
	SlopePositive
	SlopeNegative
)

func slopeMatches(prev, next float64, slope Slope) bool {
	switch slope {
	case SlopePositive:
		return prev < 0 && next > 0
	case SlopeNegative:
		return prev > 0 && next < 0
	default:
		return (prev < 0 && next > 0) || (prev > 0 && next < 0)
	}
}

// anyChannelCrosses reports whether any channel crosses zero between
// frame and frame+1 in the requested direction.
func anyChannelCrosses(frames [][]float64, frame int, slope Slope) bool {
	for _, ch := range frames {
		if slopeMatches(ch[frame], ch[frame+1], slope) {
			return true
		}
	}
	return false
}

// NextZeroCrossing searches forward from frame (inclusive) for the next
// frame boundary where some channel crosses zero in the given
// direction, returning frame unchanged if none is found before the end.
func NextZeroCrossing(frames [][]float64, frame int, slope Slope) int {
	if len(frames) == 0 || len(frames[0]) == 0 {
		return frame
	}
	n := len(frames[0])
	for i := frame; i < n-1; i++ {
		if anyChannelCrosses(frames, i, slope) {
			return i + 1
		}
	}
	return frame
}

// PrevZeroCrossing searches backward from frame for the previous
// zero-crossing boundary.
func PrevZeroCrossing(frames [][]float64, frame int, slope Slope) int {
	if len(frames) == 0 || frame <= 0 {
		return frame
	}
	for i := frame; i >= 1; i-- {
		if anyChannelCrosses(frames, i-1, slope) {
			return i - 1
		}
	}
	return frame
}

// silenceThreshold is the fraction of full scale a sample's absolute
// value must reach to count as the start of real signal.
const silenceThreshold = 0.001

// detectStart finds the first frame whose magnitude crosses
// silenceThreshold on any channel, then backs it up to the nearest
// preceding zero crossing so a subsequent trim doesn't click.
func detectStart(frames [][]float64) int {
	if len(frames) == 0 || len(frames[0]) == 0 {
		return 0
	}
	n := len(frames[0])
	start := 0
	found := false
	for i := 0; i < n && !found; i++ {
		for _, ch := range frames {
			if math.Abs(ch[i]) >= silenceThreshold {
				start = i
				found = true
				break
			}
		}
	}
	return PrevZeroCrossing(frames, start, SlopeAny)
}

// DeleteRange removes [start, start+length) frames from every channel.
func DeleteRange(frames [][]float64, start, length int) [][]float64 {
	out := make([][]float64, len(frames))
	for c, ch := range frames {
		if start < 0 {
			start = 0
		}
		end := start + length
		if end > len(ch) {
			end = len(ch)
		}
		if start > len(ch) {
			start = len(ch)
		}
		merged := make([]float64, 0, len(ch)-(end-start))
		merged = append(merged, ch[:start]...)
		merged = append(merged, ch[end:]...)
		out[c] = merged
	}
	return out
}

// Normalize scales [start, start+length) so the loudest sample in that
// range reaches full scale, using the smaller of the positive- and
// negative-peak ratios.
func Normalize(frames [][]float64, start, length int) {
	var maxPos, minNeg float64
	end := start + length
	for _, ch := range frames {
		for i := start; i < end && i < len(ch); i++ {
			v := ch[i]
			if v >= 0 {
				if v > maxPos {
					maxPos = v
				}
			} else if v < minNeg {
				minNeg = v
			}
		}
	}
	if maxPos == 0 && minNeg == 0 {
		return
	}
	ratioPos := math.Inf(1)
	if maxPos > 0 {
		ratioPos = 1.0 / maxPos
	}
	ratioNeg := math.Inf(1)
	if minNeg < 0 {
		ratioNeg = -1.0 / minNeg
	}
	ratio := ratioPos
	if ratioNeg < ratio {
		ratio = ratioNeg
	}
	for _, ch := range frames {
		for i := start; i < end && i < len(ch); i++ {
			ch[i] *= ratio
		}
	}
}

// FinishRecordingOptions parameterizes FinishRecording's edit order.
// Normalising before the silence trim means a noise floor scaled up by
// normalisation can shift the detected start; the default keeps that
// order for compatibility, TrimBeforeNormalise reverses it.
type FinishRecordingOptions struct {
	TrimBeforeNormalise bool
}

// FinishRecording applies the normalise-then-trim-leading-silence
// pipeline to a freshly captured Sound, returning the edited Sound.
func FinishRecording(snd *sample.Sound, opts FinishRecordingOptions) *sample.Sound {
	frames := snd.Frames
	length := 0
	if len(frames) > 0 {
		length = len(frames[0])
	}

	normalise := func() { Normalize(frames, 0, length) }
	trim := func() int {
		start := detectStart(frames)
		frames = DeleteRange(frames, 0, start)
		return start
	}

	if opts.TrimBeforeNormalise {
		trim()
		length = 0
		if len(frames) > 0 {
			length = len(frames[0])
		}
		normalise()
	} else {
		normalise()
		trim()
	}

	out := *snd
	out.Frames = frames
	if len(frames) > 0 {
		out.Info.Frames = int64(len(frames[0]))
	} else {
		out.Info.Frames = 0
	}
	out.Info.LoopStart = out.Info.Frames - 1
	out.Info.LoopEnd = out.Info.Frames - 1
	return &out
}
