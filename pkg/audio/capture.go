package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// CaptureConfig configures a [CaptureStream].
type CaptureConfig struct {
	// Backend opens the input device. Required.
	Backend Backend

	// Device selects the input device by name. Empty selects the default.
	Device string

	// SampleRate defaults to [CaptureSampleRate].
	SampleRate int

	// FrameSize is the buffer size in samples. Defaults to [DefaultFrameSize].
	FrameSize int

	// OnVolume receives the RMS amplitude of every frame scaled by 100,
	// whether or not the stream is muted. May be nil.
	OnVolume func(level float64)

	// OnFrame receives every PCM16 frame that should be transmitted. It is
	// never called while muted. May be nil.
	OnFrame func(AudioFrame)

	// OnSuppressed is called once for every frame withheld because the stream
	// is muted. May be nil.
	OnSuppressed func()
}

// CaptureStream owns the microphone. It turns device buffers into PCM16
// frames, meters their volume and withholds them from transmission while
// muted. Callbacks run on the device thread and must not block.
//
// Mute state belongs to the stream, not to the device: it survives Stop and
// Start so push-to-talk keeps working across reconnects.
//
// All methods are safe for concurrent use.
type CaptureStream struct {
	cfg CaptureConfig

	muted   atomic.Bool
	running atomic.Bool
	seq     atomic.Uint64

	mu      sync.Mutex
	stream  Stream
	started time.Time

	mutedLog rate.Sometimes
	sendLog  rate.Sometimes
}

// NewCaptureStream returns a stopped, unmuted [CaptureStream].
func NewCaptureStream(cfg CaptureConfig) *CaptureStream {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = CaptureSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	return &CaptureStream{
		cfg:      cfg,
		mutedLog: rate.Sometimes{Interval: 3 * time.Second},
		sendLog:  rate.Sometimes{Interval: 2 * time.Second},
	}
}

// Start acquires the input device with all adaptive processing disabled and
// begins producing frames. Calling Start on a running stream is a no-op.
// Device failures wrap [ErrDeviceUnavailable].
func (c *CaptureStream) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	c.started = time.Now()
	stream, err := c.cfg.Backend.OpenInput(StreamConfig{
		Device:          c.cfg.Device,
		SampleRate:      c.cfg.SampleRate,
		Channels:        1,
		FramesPerBuffer: c.cfg.FrameSize,
	}, c.process)
	if err != nil {
		return fmt.Errorf("audio: open capture: %w", err)
	}

	c.running.Store(true)
	if err := stream.Start(); err != nil {
		c.running.Store(false)
		_ = stream.Close()
		return fmt.Errorf("audio: start capture: %w: %w", ErrDeviceUnavailable, err)
	}
	c.stream = stream

	slog.Debug("audio: capture started",
		"device", c.cfg.Device,
		"sample_rate", c.cfg.SampleRate,
		"frame_size", c.cfg.FrameSize,
		"muted", c.muted.Load(),
	)
	return nil
}

// Stop releases the input device. Safe to call multiple times and on a
// stream that was never started.
func (c *CaptureStream) Stop() error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.running.Store(false)
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("audio: close capture: %w", err)
	}
	slog.Debug("audio: capture stopped")
	return nil
}

// Running reports whether the device is currently open.
func (c *CaptureStream) Running() bool { return c.running.Load() }

// Mute stops transmission from the next frame on. Volume metering continues.
func (c *CaptureStream) Mute() {
	if !c.muted.Swap(true) {
		slog.Debug("audio: microphone muted")
	}
}

// Unmute resumes transmission from the next frame on.
func (c *CaptureStream) Unmute() {
	if c.muted.Swap(false) {
		slog.Debug("audio: microphone unmuted")
	}
}

// Muted reports the push-to-talk state.
func (c *CaptureStream) Muted() bool { return c.muted.Load() }

// process is the device callback. The mute flag is read once so a frame is
// either sent whole or not at all.
func (c *CaptureStream) process(in []float32) {
	if !c.running.Load() || len(in) == 0 {
		return
	}

	if c.cfg.OnVolume != nil {
		c.cfg.OnVolume(RMS(in) * 100)
	}

	if c.muted.Load() {
		c.mutedLog.Do(func() { slog.Debug("audio: microphone muted, withholding frames") })
		if c.cfg.OnSuppressed != nil {
			c.cfg.OnSuppressed()
		}
		return
	}

	frame := AudioFrame{
		Data:       Float32ToPCM16(in),
		SampleRate: c.cfg.SampleRate,
		Channels:   1,
		Seq:        c.seq.Add(1),
		Timestamp:  time.Since(c.started),
	}
	c.sendLog.Do(func() { slog.Debug("audio: sending capture frames", "samples", len(in)) })
	if c.cfg.OnFrame != nil {
		c.cfg.OnFrame(frame)
	}
}
