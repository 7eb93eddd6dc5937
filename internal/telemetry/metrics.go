package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider installs a Prometheus-backed MeterProvider with Go runtime
// metrics attached. It returns the /metrics handler and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// OrderMetrics holds the order engine instruments. A nil *OrderMetrics is
// valid and records nothing.
type OrderMetrics struct {
	placed      otelmetric.Int64Counter
	transitions otelmetric.Int64Counter
	amount      otelmetric.Float64Histogram
}

func NewOrderMetrics(meter otelmetric.Meter) (*OrderMetrics, error) {
	placed, err := meter.Int64Counter("orders.placed",
		otelmetric.WithDescription("Orders successfully placed."))
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("orders.transitions",
		otelmetric.WithDescription("Order status transition attempts by outcome."))
	if err != nil {
		return nil, err
	}

	amount, err := meter.Float64Histogram("orders.placement.amount",
		otelmetric.WithDescription("Total amount of placed orders."),
		otelmetric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2500, 5000))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{placed: placed, transitions: transitions, amount: amount}, nil
}

func (m *OrderMetrics) OrderPlaced(ctx context.Context, total float64) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1)
	m.amount.Record(ctx, total)
}

func (m *OrderMetrics) Transition(ctx context.Context, from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("outcome", outcome),
	))
}
