// Package portaudio implements [audio.Backend] on top of the PortAudio C
// library via github.com/gordonklaus/portaudio.
//
// PortAudio delivers raw device samples: it has no echo cancellation, noise
// suppression or gain control, so capture streams are always unprocessed.
package portaudio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Backend = (*Backend)(nil)

// Backend is a PortAudio-backed [audio.Backend]. Create it with [New] and
// release the library with [Backend.Close].
type Backend struct {
	mu     sync.Mutex
	closed bool
}

// New initialises PortAudio.
func New() (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Backend{}, nil
}

// Close terminates PortAudio. Streams must be closed first. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return portaudio.Terminate()
}

// OpenInput implements [audio.Backend].
func (b *Backend) OpenInput(cfg audio.StreamConfig, onSamples func([]float32)) (audio.Stream, error) {
	if cfg.EchoCancellation || cfg.NoiseSuppression || cfg.AutoGainControl {
		slog.Warn("portaudio: adaptive input processing is not available, capturing raw audio")
	}

	dev, err := findDevice(cfg.Device, true)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = max(cfg.Channels, 1)
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	s, err := portaudio.OpenStream(params, func(in []float32) { onSamples(in) })
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input %q: %w: %w", dev.Name, audio.ErrDeviceUnavailable, err)
	}
	slog.Debug("portaudio: input stream opened", "device", dev.Name, "sample_rate", cfg.SampleRate)
	return &stream{s: s}, nil
}

// OpenOutput implements [audio.Backend].
func (b *Backend) OpenOutput(cfg audio.StreamConfig, fill func([]float32)) (audio.Stream, error) {
	dev, err := findDevice(cfg.Device, false)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Input.Device = nil
	params.Input.Channels = 0
	params.Output.Channels = max(cfg.Channels, 1)
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	s, err := portaudio.OpenStream(params, func(out []float32) { fill(out) })
	if err != nil {
		return nil, fmt.Errorf("portaudio: open output %q: %w: %w", dev.Name, audio.ErrDeviceUnavailable, err)
	}
	slog.Debug("portaudio: output stream opened", "device", dev.Name, "sample_rate", cfg.SampleRate)
	return &stream{s: s}, nil
}

// Devices implements [audio.Backend].
func (b *Backend) Devices() ([]audio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	out := make([]audio.DeviceInfo, 0, len(devs))
	for _, d := range devs {
		out = append(out, audio.DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefaultInput:    defIn != nil && d.Name == defIn.Name,
			IsDefaultOutput:   defOut != nil && d.Name == defOut.Name,
		})
	}
	return out, nil
}

// findDevice resolves a device by name, falling back to the system default
// when name is empty.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		var (
			dev *portaudio.DeviceInfo
			err error
		)
		if input {
			dev, err = portaudio.DefaultInputDevice()
		} else {
			dev, err = portaudio.DefaultOutputDevice()
		}
		if err != nil || dev == nil {
			return nil, fmt.Errorf("portaudio: no default device: %w: %v", audio.ErrDeviceUnavailable, err)
		}
		return dev, nil
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	for _, d := range devs {
		if d.Name != name {
			continue
		}
		if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: device %q not found: %w", name, audio.ErrDeviceUnavailable)
}

// stream adapts *portaudio.Stream to [audio.Stream].
type stream struct {
	s    *portaudio.Stream
	once sync.Once
	err  error
}

func (st *stream) Start() error {
	return st.s.Start()
}

func (st *stream) Close() error {
	st.once.Do(func() {
		_ = st.s.Stop()
		st.err = st.s.Close()
	})
	return st.err
}
