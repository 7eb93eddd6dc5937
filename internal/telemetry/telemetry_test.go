package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestInitTracerProviderWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), "", "orders", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}

	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected traceparent propagation, got fields %v", fields)
	}
}

func TestWithHTTPRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{id}", WithHTTPRoute(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	span.End()

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	want := semconv.HTTPRoute("GET /orders/{id}")
	for _, attr := range spans[0].Attributes() {
		if attr == want {
			return
		}
	}
	t.Errorf("expected %v among %v", want, spans[0].Attributes())
}

func TestOrderMetrics(t *testing.T) {
	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var m *OrderMetrics
		m.OrderPlaced(context.Background(), 130)
		m.Transition(context.Background(), "pending", "processing", "applied")
	})

	t.Run("records placements and transitions", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		m, err := NewOrderMetrics(mp.Meter("test"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()
		m.OrderPlaced(ctx, 130)
		m.OrderPlaced(ctx, 50)
		m.Transition(ctx, "pending", "processing", "applied")
		m.Transition(ctx, "pending", "processing", "conflict")

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			t.Fatalf("failed to collect: %v", err)
		}

		sums := map[string]int64{}
		for _, scope := range rm.ScopeMetrics {
			for _, metric := range scope.Metrics {
				if data, ok := metric.Data.(metricdata.Sum[int64]); ok {
					for _, dp := range data.DataPoints {
						sums[metric.Name] += dp.Value
					}
				}
			}
		}
		if sums["orders.placed"] != 2 {
			t.Errorf("expected 2 placements, got %d", sums["orders.placed"])
		}
		if sums["orders.transitions"] != 2 {
			t.Errorf("expected 2 transitions, got %d", sums["orders.transitions"])
		}
	})
}
