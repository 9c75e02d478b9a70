// Package observe provides the observability primitives for Jarvis:
// OpenTelemetry metrics and traces, session-aware structured logging and an
// HTTP middleware for the ops listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus text format by [Init]. Tests should build their own [Metrics]
// with [NewMetrics] and a manual reader instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/jarvis"

// Metrics holds every instrument the application records. The OTel types are
// safe for concurrent use.
type Metrics struct {
	// StateChanges counts session state transitions by "state".
	StateChanges metric.Int64Counter

	// Reconnects counts scheduled reconnect attempts.
	Reconnects metric.Int64Counter

	// Connected is 1 while the live session is CONNECTED, else 0.
	Connected metric.Int64UpDownCounter

	FramesSent       metric.Int64Counter
	FramesSuppressed metric.Int64Counter
	FramesDropped    metric.Int64Counter
	FramesPlayed     metric.Int64Counter
	Interrupts       metric.Int64Counter

	// CameraFrames counts camera frames by "status" (sent, throttled, skipped).
	CameraFrames metric.Int64Counter

	// ToolCalls counts tool invocations by "tool" and "status".
	ToolCalls metric.Int64Counter

	// ToolDuration tracks background tool work by "tool".
	ToolDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls by "provider", "kind" and
	// "status".
	ProviderRequests metric.Int64Counter

	// HTTPRequestDuration tracks ops listener requests by "method", "path"
	// and "status".
	HTTPRequestDuration metric.Float64Histogram
}

// toolBuckets are histogram boundaries in seconds. Image generation routinely
// takes tens of seconds.
var toolBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.StateChanges, "jarvis.session.state_changes", "Session state transitions by target state."},
		{&met.Reconnects, "jarvis.session.reconnects", "Reconnect attempts scheduled after a transport failure."},
		{&met.FramesSent, "jarvis.audio.frames_sent", "Microphone frames transmitted."},
		{&met.FramesSuppressed, "jarvis.audio.frames_suppressed", "Microphone frames withheld while muted."},
		{&met.FramesDropped, "jarvis.audio.frames_dropped", "Microphone frames dropped because the uplink was backed up."},
		{&met.FramesPlayed, "jarvis.audio.frames_played", "Model audio chunks queued for playback."},
		{&met.Interrupts, "jarvis.audio.interrupts", "Playback flushes caused by barge-in."},
		{&met.CameraFrames, "jarvis.camera.frames", "Camera frames by outcome."},
		{&met.ToolCalls, "jarvis.tool.calls", "Tool invocations by tool name and status."},
		{&met.ProviderRequests, "jarvis.provider.requests", "Provider API requests by provider, kind and status."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.Connected, err = m.Int64UpDownCounter("jarvis.session.connected",
		metric.WithDescription("1 while the live session is connected."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("jarvis.tool.duration",
		metric.WithDescription("Duration of background tool work."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(toolBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("jarvis.http.request.duration",
		metric.WithDescription("Ops HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] built on the global meter
// provider. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStateChange increments the state change counter.
func (m *Metrics) RecordStateChange(ctx context.Context, state string) {
	m.StateChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordCameraFrame increments the camera counter for status.
func (m *Metrics) RecordCameraFrame(ctx context.Context, status string) {
	m.CameraFrames.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordToolCall increments the tool counter and, for finished work, records
// its duration.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
	if seconds > 0 {
		m.ToolDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("tool", tool)))
	}
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}
