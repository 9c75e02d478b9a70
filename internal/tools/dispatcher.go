package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/pkg/provider/live"
)

// DefaultTimeout bounds the background work of a single call.
const DefaultTimeout = 2 * time.Minute

// Dispatcher runs tool calls concurrently. It implements
// [session.ToolDispatcher].
type Dispatcher struct {
	host    Host
	timeout time.Duration
	metrics *observe.Metrics

	order []string
	tools map[string]Tool

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

var _ session.ToolDispatcher = (*Dispatcher)(nil)

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithTimeout overrides [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher serving tools on behalf of host. A tool
// registered twice replaces the earlier one.
func NewDispatcher(host Host, tools []Tool, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		host:     host,
		timeout:  DefaultTimeout,
		tools:    make(map[string]Tool, len(tools)),
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	for _, t := range tools {
		name := t.Declaration.Name
		if _, dup := d.tools[name]; !dup {
			d.order = append(d.order, name)
		}
		d.tools[name] = t
	}
	return d
}

// Declarations returns the function declarations to offer the model, in
// registration order.
func (d *Dispatcher) Declarations() []live.FunctionDeclaration {
	out := make([]live.FunctionDeclaration, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tools[name].Declaration)
	}
	return out
}

// Dispatch starts every call on its own goroutine and returns immediately.
// A call whose ID is already in flight is ignored. Work is detached from
// ctx's cancellation and bounded by the dispatcher timeout instead.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []live.FunctionCall, reply session.ReplyFunc) {
	for _, c := range calls {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		d.mu.Lock()
		if _, busy := d.inflight[c.ID]; busy {
			d.mu.Unlock()
			observe.Logger(ctx).Warn("duplicate tool call ignored", "tool", c.Name, "id", c.ID)
			continue
		}
		d.inflight[c.ID] = struct{}{}
		d.mu.Unlock()

		inv := &Invocation{ID: c.ID, Name: c.Name, Args: c.Args, host: d.host, reply: reply}
		d.wg.Add(1)
		go d.run(context.WithoutCancel(ctx), inv)
	}
}

func (d *Dispatcher) run(parent context.Context, inv *Invocation) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.inflight, inv.ID)
		d.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "tool."+inv.Name, trace.WithAttributes(
		attribute.String("tool.name", inv.Name),
		attribute.String("tool.call_id", inv.ID),
	))
	defer span.End()
	log := observe.Logger(ctx).With("tool", inv.Name, "id", inv.ID)

	t, ok := d.tools[inv.Name]
	if !ok {
		log.Warn("unknown tool requested")
		d.metrics.RecordToolCall(ctx, inv.Name, "unknown", 0)
		_ = inv.Reply(errorResponse(fmt.Sprintf("Unknown tool: %s", inv.Name)))
		return
	}

	start := time.Now()
	log.Info("tool call started")
	err := d.invoke(ctx, t, inv)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		log.Error("tool call failed", "err", err, "elapsed", elapsed)
		if !inv.replied {
			_ = inv.Reply(errorResponse(err.Error()))
		}
	} else {
		log.Info("tool call finished", "elapsed", elapsed)
	}
	d.metrics.RecordToolCall(ctx, inv.Name, status, elapsed.Seconds())
}

// invoke runs the handler, turning a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, t Tool, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failed(inv.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	return t.Handler(ctx, inv)
}

// Wait blocks until all dispatched calls have finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		n := len(d.inflight)
		d.mu.Unlock()
		slog.Warn("tool calls still running at shutdown", "count", n)
		return ctx.Err()
	}
}

// InFlight returns the number of calls currently running.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}
