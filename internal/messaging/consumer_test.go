package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (string, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

func TestConsumerProcess(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	msg := kafka.Message{
		Topic:   "driver.location",
		Key:     []byte("order-1"),
		Value:   []byte(`{"latitude":1,"longitude":2}`),
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("driver.location")}},
	}

	t.Run("passes key and event type to the handler", func(t *testing.T) {
		c := &Consumer{topic: "driver.location", groupID: "order-locator"}

		var got Message
		err := c.process(context.Background(), msg, func(_ context.Context, m Message) error {
			got = m
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Key != "order-1" || got.EventType != "driver.location" || string(got.Value) != string(msg.Value) {
			t.Errorf("unexpected message: %+v", got)
		}

		spans := recorder.Ended()
		span := spans[len(spans)-1]
		if v, ok := spanAttr(span, "order.id"); !ok || v != "order-1" {
			t.Errorf("expected order.id attribute order-1, got %q", v)
		}
		if v, ok := spanAttr(span, "event.type"); !ok || v != "driver.location" {
			t.Errorf("expected event.type attribute, got %q", v)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		c := &Consumer{topic: "driver.location", groupID: "order-locator", retries: 2, backoff: time.Millisecond}

		calls := 0
		err := c.process(context.Background(), msg, func(context.Context, Message) error {
			calls++
			if calls < 3 {
				return errors.New("connection reset")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
	})

	t.Run("gives up after the last retry", func(t *testing.T) {
		c := &Consumer{topic: "driver.location", groupID: "order-locator", retries: 1, backoff: time.Millisecond}

		calls := 0
		err := c.process(context.Background(), msg, func(context.Context, Message) error {
			calls++
			return errors.New("connection reset")
		})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if calls != 2 {
			t.Errorf("expected 2 attempts, got %d", calls)
		}

		spans := recorder.Ended()
		if status := spans[len(spans)-1].Status(); status.Code != codes.Error {
			t.Errorf("expected error status, got %v", status.Code)
		}
	})

	t.Run("stops retrying when cancelled", func(t *testing.T) {
		c := &Consumer{topic: "driver.location", groupID: "order-locator", retries: 5, backoff: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())

		err := c.process(ctx, msg, func(context.Context, Message) error {
			cancel()
			return errors.New("connection reset")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
