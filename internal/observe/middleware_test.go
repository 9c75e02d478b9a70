package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withTestTracer installs an in-memory tracer provider for the test.
func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func TestMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)
	exp := withTestTracer(t)

	var seenTrace string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = TraceID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	if seenTrace == "" || rec.Header().Get("X-Trace-ID") != seenTrace {
		t.Errorf("X-Trace-ID = %q, handler saw %q", rec.Header().Get("X-Trace-ID"), seenTrace)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "GET /readyz" {
		t.Fatalf("spans = %v", spans)
	}

	rm := collect(t, reader)
	met := findMetric(rm, "jarvis.http.request.duration")
	if met == nil {
		t.Fatal("duration metric not recorded")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	if v, ok := hist.DataPoints[0].Attributes.Value(attribute.Key("status")); !ok || v.AsString() != "503" {
		t.Errorf("status attribute = %v", v)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _ := newTestMetrics(t)
	withTestTracer(t)

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("traceparent", parent)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %q, want the incoming one", seen)
	}
}
