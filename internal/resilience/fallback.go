package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry of a [FallbackGroup] failed or was
// skipped because its breaker was open.
var ErrAllFailed = errors.New("all providers failed")

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds interchangeable backends of type T, each behind its own
// [CircuitBreaker], and tries them in registration order.
//
// Entries must be registered before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     CircuitBreakerConfig
}

// NewFallbackGroup creates a group with primary as its first entry. cfg is the
// template for every entry's breaker; Name is overwritten per entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg CircuitBreakerConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.Add(primaryName, primary)
	return fg
}

// Add appends a backend. Backends are tried in the order they were added.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	bc := fg.cfg
	bc.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(bc),
	})
}

// Len returns the number of registered backends.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// Names returns backend names in try order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Breaker returns the breaker guarding the named backend, or nil.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for _, e := range fg.entries {
		if e.name == name {
			return e.breaker
		}
	}
	return nil
}

// ExecuteWithResult runs fn against each backend of fg until one succeeds and
// returns its result. It stops early when ctx ends.
func ExecuteWithResult[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range fg.entries {
		e := &fg.entries[i]
		var result R
		err := e.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx, e.value)
			return err
		})
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", e.name)
			continue
		}
		slog.Warn("provider failed, trying next", "provider", e.name, "err", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
