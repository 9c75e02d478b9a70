// Package mock provides an in-memory [audio.Backend] for unit tests.
//
// The backend records every stream it opens. Tests drive capture by calling
// [Stream.Feed] (standing in for the device's input callback) and drive
// playback by calling [Stream.Pull] (standing in for the output callback).
//
// Typical usage:
//
//	b := &mock.Backend{}
//	c := audio.NewCaptureStream(audio.CaptureConfig{Backend: b, OnFrame: send})
//	_ = c.Start()
//	b.LastInput().Feed(make([]float32, 256))
package mock

import (
	"sync"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Backend = (*Backend)(nil)
	_ audio.Stream  = (*Stream)(nil)
)

// Backend is a mock implementation of [audio.Backend].
// Set the exported error fields before use; inspect the recorded streams after.
type Backend struct {
	mu sync.Mutex

	// OpenInputErr is returned by OpenInput when non-nil.
	OpenInputErr error

	// OpenOutputErr is returned by OpenOutput when non-nil.
	OpenOutputErr error

	// StartErr is returned by Start on every stream opened after it is set.
	StartErr error

	// DevicesResult is returned by Devices.
	DevicesResult []audio.DeviceInfo

	inputs  []*Stream
	outputs []*Stream
}

// OpenInput implements [audio.Backend].
func (b *Backend) OpenInput(cfg audio.StreamConfig, onSamples func([]float32)) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenInputErr != nil {
		return nil, b.OpenInputErr
	}
	s := &Stream{Config: cfg, onSamples: onSamples, startErr: b.StartErr}
	b.inputs = append(b.inputs, s)
	return s, nil
}

// OpenOutput implements [audio.Backend].
func (b *Backend) OpenOutput(cfg audio.StreamConfig, fill func([]float32)) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenOutputErr != nil {
		return nil, b.OpenOutputErr
	}
	s := &Stream{Config: cfg, fill: fill, startErr: b.StartErr}
	b.outputs = append(b.outputs, s)
	return s, nil
}

// Devices implements [audio.Backend].
func (b *Backend) Devices() ([]audio.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.DevicesResult, nil
}

// Inputs returns every input stream opened so far.
func (b *Backend) Inputs() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.inputs...)
}

// Outputs returns every output stream opened so far.
func (b *Backend) Outputs() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.outputs...)
}

// LastInput returns the most recently opened input stream, or nil.
func (b *Backend) LastInput() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return nil
	}
	return b.inputs[len(b.inputs)-1]
}

// LastOutput returns the most recently opened output stream, or nil.
func (b *Backend) LastOutput() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.outputs) == 0 {
		return nil
	}
	return b.outputs[len(b.outputs)-1]
}

// Stream is a mock implementation of [audio.Stream].
type Stream struct {
	// Config is the configuration the stream was opened with.
	Config audio.StreamConfig

	mu        sync.Mutex
	onSamples func([]float32)
	fill      func([]float32)
	startErr  error

	// CallCountStart and CallCountClose record lifecycle calls.
	CallCountStart int
	CallCountClose int
}

// Start implements [audio.Stream].
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	return s.startErr
}

// Close implements [audio.Stream].
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// Closed reports whether Close has been called at least once.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose > 0
}

// Feed delivers samples to the input callback, as a device would.
func (s *Stream) Feed(samples []float32) {
	if s.onSamples != nil {
		s.onSamples(samples)
	}
}

// Pull asks the output callback for n samples and returns them.
func (s *Stream) Pull(n int) []float32 {
	out := make([]float32, n)
	if s.fill != nil {
		s.fill(out)
	}
	return out
}
