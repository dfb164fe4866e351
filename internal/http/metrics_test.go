package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func newTestMetrics() (*HTTPMetrics, *metric.ManualReader, *tracetest.SpanRecorder) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return newHTTPMetrics(mp.Meter(httpInstrumentationName), tp.Tracer(httpInstrumentationName), zap.NewNop()), reader, recorder
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	m, reader, _ := newTestMetrics()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/tasks/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/tasks/a", "/tasks/b", "/health"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	ctx := context.Background()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			switch m.Name {
			case "taskd.http.requests_total":
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("requests_total has type %T", m.Data)
				}
				byEndpoint := map[string]int64{}
				for _, dp := range sum.DataPoints {
					endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
					byEndpoint[endpoint.AsString()] += dp.Value
				}
				if byEndpoint["/tasks/:id"] != 2 {
					t.Errorf("expected 2 requests on /tasks/:id, got %v", byEndpoint)
				}
				if byEndpoint["/health"] != 1 {
					t.Errorf("expected 1 request on /health, got %v", byEndpoint)
				}
			case "taskd.http.request_duration_seconds":
				if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
					total := uint64(0)
					for _, dp := range hist.DataPoints {
						total += dp.Count
					}
					if total != 3 {
						t.Errorf("expected 3 duration recordings, got %d", total)
					}
				}
			}
		}
	}

	for _, name := range []string{
		"taskd.http.requests_total",
		"taskd.http.request_duration_seconds",
		"taskd.http.response_size_bytes",
		"taskd.http.active_requests",
	} {
		if !found[name] {
			t.Errorf("metric %s not found", name)
		}
	}
}

func TestHTTPMetrics_ServerSpans(t *testing.T) {
	m, _, recorder := newTestMetrics()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/tasks/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/boom", func(c echo.Context) error {
		return c.NoContent(http.StatusInternalServerError)
	})

	// A caller-supplied traceparent becomes the span's parent.
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/tasks/a", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
	e.ServeHTTP(httptest.NewRecorder(), req)
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	ok := spans[0]
	if ok.Name() != "GET /tasks/:id" {
		t.Errorf("span name = %q", ok.Name())
	}
	if got := ok.SpanContext().TraceID().String(); got != traceID {
		t.Errorf("trace id = %s, want %s", got, traceID)
	}
	if ok.Status().Code == codes.Error {
		t.Error("successful request marked as error")
	}

	failed := spans[1]
	if failed.Status().Code != codes.Error {
		t.Errorf("5xx span status = %v, want error", failed.Status().Code)
	}
	var status int64
	for _, kv := range failed.Attributes() {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	if status != http.StatusInternalServerError {
		t.Errorf("status attribute = %d", status)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unmatched"},
		{"/health", "/health"},
		{"/tasks/:id", "/tasks/:id"},
		{"/api/auth/login", "/api/auth/login"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
