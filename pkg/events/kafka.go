package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WorkniceHR/slack/pkg/metrics"
	"github.com/WorkniceHR/slack/pkg/tracing"
)

// DefaultTopic is the lifecycle topic used when none is configured.
const DefaultTopic = "slack-integration-lifecycle"

// KafkaConfig holds Kafka producer configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by integration id, so
// events for one integration stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger ectologger.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a Kafka-backed publisher.
func NewKafkaPublisher(cfg KafkaConfig, logger ectologger.Logger) *KafkaPublisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// dev brokers may not have the topic yet
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger ectologger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish writes evt synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, evt *Event) error {
	if evt == nil {
		return fmt.Errorf("event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", string(evt.Type)),
		attribute.String("integration_id", evt.IntegrationID),
	)

	if evt.Timestamp.IsZero() {
		evt.Timestamp = p.now()
	}
	if evt.TraceID == "" {
		evt.TraceID = tracing.GetTraceID(ctx)
	}

	data, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "integration_id", Value: []byte(evt.IntegrationID)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.IntegrationID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish event")
		metrics.EventsPublishedTotal.WithLabelValues(string(evt.Type), "error").Inc()
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish %s event to Kafka topic %s", evt.Type, p.topic)
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(evt.Type), "ok").Inc()
	p.logger.WithContext(ctx).Debugf("Published %s event for integration %s", evt.Type, evt.IntegrationID)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
