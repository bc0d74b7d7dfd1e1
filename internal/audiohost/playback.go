package audiohost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/dagargo/elektroid/internal/sample"
)

// PlaybackConfig parameterizes a playback session; Channels/SampleRate
// are always taken from the Sound being played.
type PlaybackConfig struct {
	DeviceIndex int
	BufferSize  uint32
}

// MonitorFunc receives periodic (left, right) peak levels in [0,1]
// for the UI's level meter.
type MonitorFunc func(left, right float64)

// framesToMonitor is the coalescing window between monitor
// notifications, so the UI isn't flooded with per-callback updates.
const framesToMonitor = 4096

// Playback drives one malgo playback device, streaming a *sample.Sound
// from a position that can be paused/resumed/sought.
type Playback struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	mu     sync.Mutex

	snd      *sample.Sound
	buf      []float32 // interleaved
	pos      atomic.Int64
	playing  atomic.Bool
	monitor  MonitorFunc
	monFrame int64
}

// NewPlayback opens a malgo context for playback only.
func NewPlayback() (*Playback, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Playback{ctx: ctx}, nil
}

// SetMonitor installs the level-meter callback.
func (p *Playback) SetMonitor(fn MonitorFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitor = fn
}

// Play starts streaming snd from frame 0, blocking only long enough to
// start the device; playback continues on malgo's own audio thread
// until Stop is called or the sound is exhausted.
func (p *Playback) Play(ctx context.Context, snd *sample.Sound, cfg PlaybackConfig) error {
	p.mu.Lock()
	if p.device != nil {
		p.mu.Unlock()
		return errors.New("playback already active")
	}
	buf := snd.Buffer()
	p.snd = snd
	p.buf = toFloat32(buf.Data)
	p.pos.Store(0)
	p.monFrame = 0
	p.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Playback,
		SampleRate:         uint32(snd.Info.Rate),
		PeriodSizeInFrames: cfg.BufferSize,
		Playback: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: uint32(snd.Info.Channels),
		},
	}

	onSend := func(output, _ []byte, frameCount uint32) {
		p.fillPlaybackBuffer(output, int(frameCount), snd.Info.Channels)
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start playback device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.mu.Unlock()
	p.playing.Store(true)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

func (p *Playback) fillPlaybackBuffer(output []byte, frameCount, channels int) {
	out := toByteFloat32View(output)
	samplesPerFrame := channels
	pos := p.pos.Load()
	total := int64(len(p.buf)) / int64(samplesPerFrame)

	var peakL, peakR float32
	for i := 0; i < frameCount; i++ {
		frame := pos + int64(i)
		if frame >= total {
			for c := 0; c < samplesPerFrame && i*samplesPerFrame+c < len(out); c++ {
				out[i*samplesPerFrame+c] = 0
			}
			continue
		}
		base := int(frame) * samplesPerFrame
		for c := 0; c < samplesPerFrame; c++ {
			v := p.buf[base+c]
			out[i*samplesPerFrame+c] = v
			if c == 0 && v > peakL {
				peakL = v
			} else if c == 0 && -v > peakL {
				peakL = -v
			}
			if samplesPerFrame > 1 && c == 1 {
				if v > peakR {
					peakR = v
				} else if -v > peakR {
					peakR = -v
				}
			}
		}
	}
	newPos := pos + int64(frameCount)
	p.pos.Store(newPos)
	if newPos >= total {
		p.playing.Store(false)
	}

	p.monFrame += int64(frameCount)
	if p.monFrame >= framesToMonitor {
		p.mu.Lock()
		fn := p.monitor
		p.mu.Unlock()
		if fn != nil {
			r := peakR
			if samplesPerFrame == 1 {
				r = peakL
			}
			fn(float64(peakL), float64(r))
		}
		p.monFrame -= framesToMonitor
	}
}

// Seek moves the playback cursor to frame.
func (p *Playback) Seek(frame int64) { p.pos.Store(frame) }

// Position returns the current playback frame.
func (p *Playback) Position() int64 { return p.pos.Load() }

// IsPlaying reports whether playback is active; it turns false once the
// cursor passes the end of the sound or Stop is called.
func (p *Playback) IsPlaying() bool { return p.playing.Load() }

// Stop halts playback and releases the device (not the malgo context,
// which Close releases).
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		_ = p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}
	p.playing.Store(false)
}

// Close releases the malgo context. Call once, after Stop.
func (p *Playback) Close() error {
	p.Stop()
	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			return err
		}
		p.ctx.Free()
		p.ctx = nil
	}
	return nil
}

func toFloat32(data []float64) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	return out
}
