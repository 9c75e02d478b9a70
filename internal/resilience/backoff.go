package resilience

import (
	"math"
	"sync"
	"time"
)

// RetryConfig tunes a [RetryPolicy].
type RetryConfig struct {
	// BaseDelay is the delay before the first retry. Default: 2s.
	BaseDelay time.Duration

	// Multiplier scales the delay after every consecutive failure. Default: 2.
	Multiplier float64

	// MaxAttempts caps the number of retries per failure episode. Default: 5.
	MaxAttempts int
}

// RetryPolicy tracks consecutive reconnect attempts and computes the
// exponential delay before each one. The attempt count persists across
// failures until [RetryPolicy.Reset] is called.
type RetryPolicy struct {
	cfg RetryConfig

	mu      sync.Mutex
	attempt int
}

// NewRetryPolicy creates a [RetryPolicy]. Zero-value fields get defaults.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &RetryPolicy{cfg: cfg}
}

// Next records one more failure and returns the attempt number and the delay
// to wait before it. ok is false once the attempt count exceeds MaxAttempts;
// the count keeps growing so repeated calls stay exhausted until Reset.
func (r *RetryPolicy) Next() (attempt int, delay time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt++
	if r.attempt > r.cfg.MaxAttempts {
		return r.attempt, 0, false
	}
	return r.attempt, r.Delay(r.attempt), true
}

// Delay returns BaseDelay * Multiplier^(attempt-1).
func (r *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1)))
}

// Attempt returns the current attempt count.
func (r *RetryPolicy) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// Reset zeroes the attempt count.
func (r *RetryPolicy) Reset() {
	r.mu.Lock()
	r.attempt = 0
	r.mu.Unlock()
}

// MaxAttempts returns the configured cap.
func (r *RetryPolicy) MaxAttempts() int { return r.cfg.MaxAttempts }
