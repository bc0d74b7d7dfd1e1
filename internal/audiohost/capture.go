// Package audiohost owns the audio device side of the application:
// malgo-backed playback and capture, the record/normalise/trim
// pipeline, zero-crossing search and destructive range deletion used
// by the sample editor.
package audiohost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

const (
	// sampleChanBufferSize is the capacity of the Samples channel,
	// buffering between the audio callback and its consumer.
	sampleChanBufferSize = 64
	bytesPerFloat32       = 4
)

var (
	ErrNotInitialized = errors.New("audio host not initialized")
	ErrAlreadyRunning = errors.New("audio host already running")
	ErrNotRunning     = errors.New("audio host not running")
)

// CaptureConfig parameterizes a recording session.
type CaptureConfig struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 1 for mono, 2 for stereo
	BufferSize  uint32 // frames per callback
}

// DefaultCaptureConfig matches the common sampler-transfer case: stereo
// at the most device-universal standard rate (Capture always records
// float32 samples).
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    2,
		BufferSize:  512,
	}
}

// SampleCallback is invoked directly from the audio thread with new
// samples, for low-latency monitor-level metering. Must be
// non-blocking. The slice is only valid for the callback's duration.
type SampleCallback func(samples []float32)

// Capture handles real-time audio sampling: the multi-channel
// recording source behind the editor's record mode and the monitor
// level meter.
type Capture struct {
	config  CaptureConfig
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex

	callbackPtr atomic.Pointer[SampleCallback]

	Samples   chan []float32
	closeOnce sync.Once
}

// NewCapture builds a Capture ready for Init.
func NewCapture(cfg CaptureConfig) *Capture {
	return &Capture{
		config:  cfg,
		Samples: make(chan []float32, sampleChanBufferSize),
	}
}

// SetCallback installs a real-time sample callback. Must be set before
// Start.
func (c *Capture) SetCallback(cb SampleCallback) {
	if cb == nil {
		c.callbackPtr.Store(nil)
	} else {
		c.callbackPtr.Store(&cb)
	}
}

// Init initializes the malgo audio backend.
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		return errors.New("already initialized")
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// ListDevices returns available capture devices.
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins audio capture; samples accumulate on the Samples
// channel and, if set, stream through the real-time callback until ctx
// is cancelled or Stop is called.
func (c *Capture) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.mu.Lock()
	if c.ctx == nil {
		c.mu.Unlock()
		c.running.Store(false)
		return ErrNotInitialized
	}
	audioCtx := c.ctx.Context

	var deviceID unsafe.Pointer
	if c.config.DeviceIndex >= 0 {
		devices, err := c.ctx.Devices(malgo.Capture)
		if err != nil {
			c.mu.Unlock()
			c.running.Store(false)
			return fmt.Errorf("enumerate devices: %w", err)
		}
		if c.config.DeviceIndex >= len(devices) {
			c.mu.Unlock()
			c.running.Store(false)
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}
	c.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         c.config.SampleRate,
		PeriodSizeInFrames: c.config.BufferSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: c.config.Channels,
		},
	}
	if deviceID != nil {
		deviceConfig.Capture.DeviceID = deviceID
	}

	onRecvFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		if len(inputSamples) == 0 {
			return
		}
		samples := bytesAsFloat32(inputSamples)
		if cbPtr := c.callbackPtr.Load(); cbPtr != nil {
			(*cbPtr)(samples)
		}
		if !c.closed.Load() {
			c.safeSend(copyFloat32Slice(samples))
		}
	}

	device, err := malgo.InitDevice(audioCtx, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		c.running.Store(false)
		return fmt.Errorf("init device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.mu.Unlock()

	if err := device.Start(); err != nil {
		c.mu.Lock()
		c.device.Uninit()
		c.device = nil
		c.mu.Unlock()
		c.running.Store(false)
		return fmt.Errorf("start device: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := c.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			_ = err // the error is discarded; nothing reports it.
		}
	}()

	return nil
}

// Stop halts capture without releasing the malgo context.
func (c *Capture) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	return nil
}

// Close releases all audio resources.
func (c *Capture) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running.Store(false)
	}
	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	c.closeOnce.Do(func() { close(c.Samples) })
	return nil
}

// IsRunning reports whether capture is active.
func (c *Capture) IsRunning() bool { return c.running.Load() }

func (c *Capture) safeSend(samples []float32) {
	defer func() { recover() }()
	select {
	case c.Samples <- samples:
	default:
	}
}

func bytesAsFloat32(data []byte) []float32 {
	if len(data) < bytesPerFloat32 {
		return nil
	}
	numSamples := len(data) / bytesPerFloat32
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), numSamples)
}

func copyFloat32Slice(src []float32) []float32 {
	if src == nil {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
