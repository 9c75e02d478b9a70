package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTraceID_EmptyWithoutSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}
}

func TestStartSpan_RecordsSpan(t *testing.T) {
	exp := withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "connect")
	if len(TraceID(ctx)) != 32 {
		t.Errorf("trace id = %q", TraceID(ctx))
	}
	span.End()

	if spans := exp.GetSpans(); len(spans) != 1 || spans[0].Name != "connect" {
		t.Errorf("spans = %v", spans)
	}
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "abc")
	if got := SessionID(ctx); got != "abc" {
		t.Errorf("SessionID = %q", got)
	}
	if got := SessionID(context.Background()); got != "" {
		t.Errorf("SessionID(background) = %q", got)
	}
}

func TestLogger_AddsContextAttributes(t *testing.T) {
	withTestTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx, span := StartSpan(ctx, "tool")
	defer span.End()

	Logger(ctx).Info("hello")

	out := buf.String()
	for _, want := range []string{"session_id=sess-1", "trace_id=" + TraceID(ctx), "span_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}
