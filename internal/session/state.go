package session

import (
	"errors"
	"fmt"
	"time"
)

// State is the connection lifecycle state of an [Engine].
type State int

const (
	// StateDisconnected is both the initial and the terminal state.
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateRetrying waits for the backoff delay before the next attempt.
	StateRetrying
	// StateError is transient: it is always followed by RETRYING or
	// DISCONNECTED.
	StateError
)

var stateNames = [...]string{
	StateDisconnected: "DISCONNECTED",
	StateConnecting:   "CONNECTING",
	StateConnected:    "CONNECTED",
	StateRetrying:     "RETRYING",
	StateError:        "ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// transitions lists the legal target states for every state.
var transitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateError, StateDisconnected},
	StateConnected:    {StateError, StateDisconnected},
	StateRetrying:     {StateConnecting, StateDisconnected},
	StateError:        {StateRetrying, StateDisconnected},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateChange is delivered to the [Sink] on every transition.
type StateChange struct {
	State State

	// Err is the cause for ERROR and RETRYING, and for a DISCONNECTED caused
	// by retry exhaustion (wrapping [ErrRetriesExhausted]). A caller-initiated
	// disconnect carries a nil Err.
	Err error

	// Attempt is the retry attempt number (0 outside a failure episode).
	Attempt int

	// Delay is the backoff before the next attempt, set for RETRYING.
	Delay time.Duration
}

// Exhausted reports whether this change is the terminal state after the
// retry budget ran out.
func (c StateChange) Exhausted() bool {
	return c.State == StateDisconnected && errors.Is(c.Err, ErrRetriesExhausted)
}
