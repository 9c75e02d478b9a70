package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// PlaybackConfig configures a [PlaybackStream].
type PlaybackConfig struct {
	// Backend opens the output device. Required.
	Backend Backend

	// Device selects the output device by name. Empty selects the default.
	Device string

	// SampleRate is the rate of the incoming PCM16 stream. Defaults to
	// [PlaybackSampleRate].
	SampleRate int

	// DeviceRate is the rate the output device is opened at. Zero means
	// SampleRate; any other value resamples incoming audio.
	DeviceRate int

	// FrameSize is the device callback buffer size. Defaults to 512.
	FrameSize int
}

// PlaybackStream owns the output device. Decoded frames are queued and drained
// gaplessly by the device callback; [PlaybackStream.Interrupt] discards
// everything still queued.
//
// The device is opened lazily by the first [PlaybackStream.Play] and reopened
// transparently after [PlaybackStream.Stop].
//
// All methods are safe for concurrent use.
type PlaybackStream struct {
	cfg PlaybackConfig

	// initMu serialises device open and close. It is never held by fill.
	initMu sync.Mutex

	convMu sync.Mutex
	conv   FormatConverter

	mu     sync.Mutex
	stream Stream
	queue  [][]float32
	cur    []float32
	seq    uint64
}

// NewPlaybackStream returns a [PlaybackStream] with no device open.
func NewPlaybackStream(cfg PlaybackConfig) *PlaybackStream {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = PlaybackSampleRate
	}
	if cfg.DeviceRate <= 0 {
		cfg.DeviceRate = cfg.SampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 512
	}
	return &PlaybackStream{
		cfg:  cfg,
		conv: FormatConverter{Target: Format{SampleRate: cfg.DeviceRate, Channels: 1}},
	}
}

// Init opens and starts the output device if it is not open yet.
func (p *PlaybackStream) Init() error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.mu.Lock()
	ready := p.stream != nil
	p.mu.Unlock()
	if ready {
		return nil
	}

	stream, err := p.cfg.Backend.OpenOutput(StreamConfig{
		Device:          p.cfg.Device,
		SampleRate:      p.cfg.DeviceRate,
		Channels:        1,
		FramesPerBuffer: p.cfg.FrameSize,
	}, p.fill)
	if err != nil {
		return fmt.Errorf("audio: open playback: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start playback: %w: %w", ErrDeviceUnavailable, err)
	}

	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()

	slog.Debug("audio: playback initialised", "device", p.cfg.Device, "sample_rate", p.cfg.DeviceRate)
	return nil
}

// Play decodes a PCM16 chunk and queues it behind any audio already pending.
func (p *PlaybackStream) Play(pcm []byte) error {
	if err := p.Init(); err != nil {
		return err
	}

	p.convMu.Lock()
	p.seq++
	frame := p.conv.Convert(AudioFrame{Data: pcm, SampleRate: p.cfg.SampleRate, Channels: 1, Seq: p.seq})
	p.convMu.Unlock()

	samples := PCM16ToFloat32(frame.Data)
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	p.queue = append(p.queue, samples)
	p.mu.Unlock()
	return nil
}

// PlayBase64 decodes a transport payload and plays it.
func (p *PlaybackStream) PlayBase64(data string) error {
	pcm, err := DecodeBase64(data)
	if err != nil {
		return err
	}
	return p.Play(pcm)
}

// Interrupt discards all queued audio, including the remainder of the frame
// being played, and returns the number of frames dropped. Capture is not
// affected.
func (p *PlaybackStream) Interrupt() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	if len(p.cur) > 0 {
		n++
	}
	clear(p.queue)
	p.queue = p.queue[:0]
	p.cur = nil
	return n
}

// Queued returns the number of frames not yet fully played.
func (p *PlaybackStream) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	if len(p.cur) > 0 {
		n++
	}
	return n
}

// Initialized reports whether the output device is open.
func (p *PlaybackStream) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// Stop discards queued audio and closes the output device. The next Play
// reopens it. Safe to call multiple times.
func (p *PlaybackStream) Stop() error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.queue = nil
	p.cur = nil
	p.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("audio: close playback: %w", err)
	}
	slog.Debug("audio: playback stopped")
	return nil
}

// fill is the device callback. It drains queued samples into out and pads the
// remainder with silence.
func (p *PlaybackStream) fill(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(out) {
		if len(p.cur) == 0 {
			if len(p.queue) == 0 {
				break
			}
			p.cur = p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
		}
		k := copy(out[n:], p.cur)
		p.cur = p.cur[k:]
		n += k
	}
	clear(out[n:])
}
