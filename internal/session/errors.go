package session

import (
	"errors"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// Error taxonomy. Only transport errors trigger automatic recovery; device,
// tool and camera errors are surfaced to the UI and stay local.
var (
	// ErrDeviceUnavailable means a capture or playback device could not be
	// acquired. It is never retried automatically.
	ErrDeviceUnavailable = audio.ErrDeviceUnavailable

	// ErrTransportOpenFailed wraps a failed connect attempt.
	ErrTransportOpenFailed = errors.New("session: transport open failed")

	// ErrTransportClosedUnexpectedly wraps a remote close or read failure.
	ErrTransportClosedUnexpectedly = errors.New("session: transport closed unexpectedly")

	// ErrRetriesExhausted is attached to the terminal DISCONNECTED state once
	// the retry budget is spent.
	ErrRetriesExhausted = errors.New("session: retries exhausted")

	// ErrNotConnected is returned by send operations outside CONNECTED.
	ErrNotConnected = errors.New("session: not connected")

	// ErrToolExecutionFailed wraps a failed tool invocation.
	ErrToolExecutionFailed = errors.New("session: tool execution failed")

	// ErrCameraFrameUnavailable is returned when a tool needs a camera frame
	// and none has been cached.
	ErrCameraFrameUnavailable = errors.New("session: camera frame unavailable")
)
