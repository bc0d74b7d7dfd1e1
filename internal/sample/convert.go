package sample

import (
	"github.com/dagargo/elektroid/internal/fsops"
)

// Convert resamples and channel-mixes snd to the given rate/channels,
// then requantizes to depth bits (0 selects 32-bit float). This is the
// conversion behind the system connector's per-variant Load. Multiple
// channels mix down to mono by averaging; mono duplicates to stereo.
func Convert(snd *Sound, rate, channels, depth int, ctrl *fsops.Control) (*Sound, error) {
	frames := snd.Frames
	if rate > 0 && rate != snd.Info.Rate && snd.Info.Rate > 0 {
		frames = resample(frames, snd.Info.Rate, rate)
	}
	ctrl.Report(0.5)
	if channels > 0 && channels != len(frames) {
		frames = mixChannels(frames, channels)
	}

	out := &Sound{Frames: frames, Info: snd.Info}
	if rate > 0 {
		out.Info.Rate = rate
	}
	out.Info.Channels = len(frames)
	out.Info.Format = depthToFormat(depth)
	if len(frames) > 0 {
		out.Info.Frames = int64(len(frames[0]))
	}
	scale := 1.0
	if snd.Info.Rate > 0 && rate > 0 {
		scale = float64(rate) / float64(snd.Info.Rate)
	}
	out.Info.LoopStart = int64(float64(snd.Info.LoopStart) * scale)
	out.Info.LoopEnd = int64(float64(snd.Info.LoopEnd) * scale)
	out.Info.NormalizeLoop()
	ctrl.Report(1)
	return out, nil
}

func depthToFormat(depth int) fsops.Format {
	switch depth {
	case 8:
		return fsops.FormatPCMU8
	case 24:
		return fsops.FormatPCM24
	case 32:
		return fsops.FormatPCM32
	case 0:
		return fsops.FormatFloat32
	default:
		return fsops.FormatPCM16
	}
}

func resample(frames [][]float64, srcRate, dstRate int) [][]float64 {
	if srcRate == dstRate || len(frames) == 0 {
		return frames
	}
	srcLen := len(frames[0])
	dstLen := int(float64(srcLen) * float64(dstRate) / float64(srcRate))
	out := make([][]float64, len(frames))
	for c, ch := range frames {
		dst := make([]float64, dstLen)
		for i := range dst {
			srcPos := float64(i) * float64(srcRate) / float64(dstRate)
			i0 := int(srcPos)
			frac := srcPos - float64(i0)
			var s0, s1 float64
			if i0 < len(ch) {
				s0 = ch[i0]
			}
			if i0+1 < len(ch) {
				s1 = ch[i0+1]
			} else {
				s1 = s0
			}
			dst[i] = s0 + (s1-s0)*frac
		}
		out[c] = dst
	}
	return out
}

func mixChannels(frames [][]float64, channels int) [][]float64 {
	if len(frames) == 0 {
		return frames
	}
	n := len(frames[0])
	if channels == 1 {
		mono := make([]float64, n)
		for i := 0; i < n; i++ {
			var sum float64
			for _, ch := range frames {
				sum += ch[i]
			}
			mono[i] = sum / float64(len(frames))
		}
		return [][]float64{mono}
	}
	if channels == 2 && len(frames) == 1 {
		left := make([]float64, n)
		right := make([]float64, n)
		copy(left, frames[0])
		copy(right, frames[0])
		return [][]float64{left, right}
	}
	return frames
}
