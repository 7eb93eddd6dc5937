package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// Message is what a Handler sees of a fetched record. Both order events and
// driver fixes are keyed by order id.
type Message struct {
	Key       string
	EventType string
	Value     []byte
}

type Handler func(ctx context.Context, msg Message) error

// Consumer reads one topic as part of a consumer group. Offsets are committed
// only after the handler accepted the message.
type Consumer struct {
	reader  *kafka.Reader
	topic   string
	groupID string
	retries int
	backoff time.Duration
}

type consumerConfig struct {
	reader  kafka.ReaderConfig
	retries int
	backoff time.Duration
}

type ConsumerOption func(*consumerConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

// WithRetries retries a failing handler up to n more times, waiting backoff
// between attempts, before Consume gives up on the message.
func WithRetries(n int, backoff time.Duration) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.retries = n
		cfg.backoff = backoff
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		},
		retries: 2,
		backoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		reader:  kafka.NewReader(cfg.reader),
		topic:   topic,
		groupID: groupID,
		retries: cfg.retries,
		backoff: cfg.backoff,
	}
}

// Consume hands every message to handler and commits it once handler returns
// nil. When the retries are exhausted consumption stops without committing,
// so the message is redelivered after a restart.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.process(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &msg})

	carrier := headerCarrier{msg: &msg}
	in := Message{
		Key:       string(msg.Key),
		EventType: carrier.Get(HeaderEventType),
		Value:     msg.Value,
	}

	attrs := []attribute.KeyValue{
		semconv.MessagingSystemKafka,
		semconv.MessagingOperationName("process"),
		semconv.MessagingOperationTypeDeliver,
		semconv.MessagingDestinationName(c.topic),
		semconv.MessagingKafkaConsumerGroup(c.groupID),
		semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
		semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
		semconv.MessagingKafkaMessageKey(in.Key),
	}
	if in.Key != "" {
		attrs = append(attrs, attribute.String("order.id", in.Key))
	}
	if in.EventType != "" {
		attrs = append(attrs, attribute.String("event.type", in.EventType))
	}

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt), attribute.String("error", err.Error())))
			select {
			case <-spanCtx.Done():
				return spanCtx.Err()
			case <-time.After(c.backoff):
			}
		}
		if err = handler(spanCtx, in); err == nil {
			span.SetAttributes(attribute.Int("messaging.attempts", attempt+1))
			return nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
