package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_Order(t *testing.T) {
	tests := []struct {
		name     string
		failing  map[int]bool
		want     string
		wantErr  error
		wantCall []int
	}{
		{name: "primary succeeds", want: "from-10", wantCall: []int{10}},
		{name: "primary fails, fallback succeeds", failing: map[int]bool{10: true}, want: "from-20", wantCall: []int{10, 20}},
		{name: "all fail", failing: map[int]bool{10: true, 20: true}, wantErr: ErrAllFailed, wantCall: []int{10, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg := NewFallbackGroup(10, "ten", CircuitBreakerConfig{MaxFailures: 3})
			fg.Add("twenty", 20)

			var calls []int
			got, err := ExecuteWithResult(context.Background(), fg, func(_ context.Context, v int) (string, error) {
				calls = append(calls, v)
				if tt.failing[v] {
					return "", errTest
				}
				return "from-" + map[int]string{10: "10", 20: "20"}[v], nil
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, errTest) {
					t.Errorf("err = %v, want wrapped cause", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %q, want %q", got, tt.want)
			}
			if len(calls) != len(tt.wantCall) {
				t.Fatalf("calls = %v, want %v", calls, tt.wantCall)
			}
			for i := range calls {
				if calls[i] != tt.wantCall[i] {
					t.Errorf("calls = %v, want %v", calls, tt.wantCall)
				}
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	ctx := context.Background()
	fg := NewFallbackGroup("primary", "primary", CircuitBreakerConfig{MaxFailures: 2, Cooldown: time.Hour})
	fg.Add("secondary", "secondary")

	for range 2 {
		_, _ = ExecuteWithResult(ctx, fg, func(_ context.Context, v string) (string, error) {
			if v == "primary" {
				return "", errTest
			}
			return v, nil
		})
	}
	if fg.Breaker("primary").State() != BreakerOpen {
		t.Fatal("primary breaker should be open")
	}

	var called []string
	got, err := ExecuteWithResult(ctx, fg, func(_ context.Context, v string) (string, error) {
		called = append(called, v)
		return v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "secondary" || len(called) != 1 {
		t.Errorf("got %q via %v, want secondary only", got, called)
	}
}

func TestFallbackGroup_StopsOnCancelledContext(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", CircuitBreakerConfig{})
	fg.Add("secondary", "secondary")

	ctx, cancel := context.WithCancel(context.Background())
	var called []string
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v string) (string, error) {
		called = append(called, v)
		cancel()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(called) != 1 {
		t.Errorf("called = %v, want primary only", called)
	}
	if fg.Breaker("primary").State() != BreakerClosed {
		t.Error("cancellation must not count against the primary")
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	fg := NewFallbackGroup(1, "a", CircuitBreakerConfig{})
	fg.Add("b", 2)
	names := fg.Names()
	if fg.Len() != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
	if fg.Breaker("missing") != nil {
		t.Error("Breaker(missing) should be nil")
	}
}
