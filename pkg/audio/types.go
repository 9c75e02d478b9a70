package audio

import "time"

// Default stream parameters for the realtime session.
const (
	// CaptureSampleRate is the microphone rate expected by the remote endpoint.
	CaptureSampleRate = 16000

	// PlaybackSampleRate is the rate of synthesised audio sent by the remote endpoint.
	PlaybackSampleRate = 24000

	// DefaultFrameSize is the capture buffer size in samples. At 16 kHz this
	// is 16ms of audio per frame.
	DefaultFrameSize = 256
)

// AudioFrame is a single chunk of little-endian 16-bit PCM audio. Frames are
// immutable once produced: consumers must not modify Data.
type AudioFrame struct {
	// Data holds int16 samples, little-endian.
	Data []byte

	// SampleRate in Hz (16000 outbound, 24000 inbound).
	SampleRate int

	// Channels is 1 for every stream the session engine produces.
	Channels int

	// Seq is the monotonic arrival order of the frame within its stream,
	// starting at 1.
	Seq uint64

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of int16 samples per channel in the frame.
func (f AudioFrame) Samples() int {
	if f.Channels <= 0 {
		return len(f.Data) / 2
	}
	return len(f.Data) / 2 / f.Channels
}
