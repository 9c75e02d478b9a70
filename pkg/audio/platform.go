// Package audio holds the local audio pipeline of the session engine: the
// PCM16 wire codec, microphone capture, speaker playback, and the device
// abstraction they run on.
//
// The two device-facing abstractions are:
//
//   - [Backend] — opens callback-driven input and output streams on a named
//     (or default) device.
//   - [Stream] — a single open device stream with Start/Close lifecycle.
//
// Implementations live in adapter packages (audio/portaudio for real hardware,
// audio/mock for tests). Callbacks run on the device's real-time thread, so
// [CaptureStream] and [PlaybackStream] never block inside them.
package audio

import "errors"

// ErrDeviceUnavailable is returned when no input or output device grants
// access. It is reported to the UI and never retried automatically.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// StreamConfig describes the stream a [Backend] should open.
type StreamConfig struct {
	// Device selects a device by name. Empty selects the system default.
	Device string

	// SampleRate in Hz.
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int

	// FramesPerBuffer is the callback buffer size in samples per channel.
	FramesPerBuffer int

	// EchoCancellation, NoiseSuppression and AutoGainControl request adaptive
	// input processing from backends that offer it. Capture always leaves them
	// off.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Stream is an open device stream.
type Stream interface {
	// Start begins invoking the stream callback.
	Start() error

	// Close stops the stream and releases the device.
	Close() error
}

// DeviceInfo describes an audio device reported by a [Backend].
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Backend opens device streams.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// OpenInput opens a capture stream. onSamples receives one buffer of float32
	// samples in [-1, 1] per callback; the slice is reused by the backend after
	// the callback returns. Returns an error wrapping [ErrDeviceUnavailable]
	// when the device cannot be acquired.
	OpenInput(cfg StreamConfig, onSamples func(in []float32)) (Stream, error)

	// OpenOutput opens a playback stream. fill must write exactly len(out)
	// samples, padding with silence when nothing is queued.
	OpenOutput(cfg StreamConfig, fill func(out []float32)) (Stream, error)

	// Devices lists the devices known to the backend.
	Devices() ([]DeviceInfo, error)
}
