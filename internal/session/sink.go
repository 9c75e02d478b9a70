package session

import "github.com/MrWong99/jarvis/pkg/types"

// Sink receives everything the engine reports to the UI layer.
//
// OnStateChange is called synchronously and in transition order; it must not
// call Connect or Disconnect on the same goroutine. OnVolume is called from
// the audio device thread for every captured frame and must return quickly.
type Sink interface {
	OnStateChange(StateChange)
	OnMessage(types.Message)
	OnVolume(level float64)
}

// SinkFuncs adapts plain functions to [Sink]. Nil fields are skipped.
type SinkFuncs struct {
	StateChange func(StateChange)
	Message     func(types.Message)
	Volume      func(float64)
}

func (f SinkFuncs) OnStateChange(c StateChange) {
	if f.StateChange != nil {
		f.StateChange(c)
	}
}

func (f SinkFuncs) OnMessage(m types.Message) {
	if f.Message != nil {
		f.Message(m)
	}
}

func (f SinkFuncs) OnVolume(level float64) {
	if f.Volume != nil {
		f.Volume(level)
	}
}

// systemError builds the UI message used for locally handled failures.
func systemError(text string, err error) types.Message {
	md := &types.Metadata{Type: types.MetadataError}
	if err != nil {
		md.Error = err.Error()
	}
	return types.Message{Role: types.RoleSystem, Text: text, Metadata: md}
}
