package session

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	all := []State{StateDisconnected, StateConnecting, StateConnected, StateRetrying, StateError}
	legal := map[[2]State]bool{
		{StateDisconnected, StateConnecting}: true,
		{StateConnecting, StateConnected}:    true,
		{StateConnecting, StateError}:        true,
		{StateConnecting, StateDisconnected}: true,
		{StateConnected, StateError}:         true,
		{StateConnected, StateDisconnected}:  true,
		{StateRetrying, StateConnecting}:     true,
		{StateRetrying, StateDisconnected}:   true,
		{StateError, StateRetrying}:          true,
		{StateError, StateDisconnected}:      true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(fmt.Sprintf("%v->%v", from, to), func(t *testing.T) {
				t.Parallel()
				if got, want := CanTransition(from, to), legal[[2]State{from, to}]; got != want {
					t.Errorf("CanTransition(%v, %v) = %v, want %v", from, to, got, want)
				}
			})
		}
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		s    State
		want string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateRetrying, "RETRYING"},
		{StateError, "ERROR"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestStateChange_Exhausted(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("%w after 5 attempts: %w", ErrRetriesExhausted, errors.New("reset"))

	tests := []struct {
		name string
		c    StateChange
		want bool
	}{
		{"caller disconnect", StateChange{State: StateDisconnected}, false},
		{"exhausted", StateChange{State: StateDisconnected, Err: wrapped}, true},
		{"retrying", StateChange{State: StateRetrying, Err: wrapped}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.c.Exhausted(); got != tt.want {
				t.Errorf("Exhausted() = %v, want %v", got, tt.want)
			}
		})
	}
}
