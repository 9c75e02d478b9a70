// Package resilience provides the retry and failover primitives used around
// remote model calls.
//
// [RetryPolicy] computes the exponential reconnect schedule of a live session.
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops hammering a backend which keeps failing. [FallbackGroup] puts a
// breaker in front of each of several interchangeable backends and walks them
// in order until one answers.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and the cool-down has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the operating mode of a [CircuitBreaker].
type BreakerState int

const (
	// BreakerClosed forwards every call.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrCircuitOpen] until the cool-down ends.
	BreakerOpen

	// BreakerHalfOpen lets a limited number of probe calls through.
	BreakerHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures consecutive failures open the breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// HalfOpenMax successful probes close the breaker again. Default: 1.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker unlocked.
	OnStateChange func(name string, from, to BreakerState)

	// Now overrides the clock. Used in tests.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	probes    int
	probeWins int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value fields get defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn if the breaker admits it. Errors caused by ctx ending are
// returned as-is and do not count against the backend.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	if err != nil && ctx.Err() != nil {
		cb.release(probe)
		return err
	}
	cb.record(probe, err == nil)
	return err
}

// admit decides whether a call may proceed and whether it counts as a probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case BreakerOpen:
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
		cb.probes, cb.probeWins = 0, 0
	case BreakerHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMax {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
	}
	probe = cb.state == BreakerHalfOpen
	if probe {
		cb.probes++
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return probe, nil
}

// release returns an unused probe slot.
func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	if cb.state == BreakerHalfOpen && cb.probes > 0 {
		cb.probes--
	}
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) record(probe, ok bool) {
	cb.mu.Lock()
	from := cb.state
	switch {
	case probe && !ok:
		cb.trip()
	case probe && ok:
		cb.probeWins++
		if cb.probeWins >= cb.cfg.HalfOpenMax {
			cb.state = BreakerClosed
			cb.failures = 0
		}
	case ok:
		cb.failures = 0
	default:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures && cb.state == BreakerClosed {
			cb.trip()
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// trip opens the breaker. Must be called with cb.mu held.
func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openedAt = cb.cfg.Now()
	cb.failures = cb.cfg.MaxFailures
}

func (cb *CircuitBreaker) notify(from, to BreakerState) {
	if from == to {
		return
	}
	slog.Info("circuit breaker state change", "name", cb.cfg.Name, "from", from, "to", to)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// elapsed reports [BreakerHalfOpen]; the transition itself happens on the
// next Execute.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == BreakerOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = BreakerClosed
	cb.failures, cb.probes, cb.probeWins = 0, 0, 0
	cb.mu.Unlock()
	cb.notify(from, BreakerClosed)
}
