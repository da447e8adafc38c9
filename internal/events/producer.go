package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the outbound event port services depend on.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, evt *CloudEvent) error
}

// Producer publishes CloudEvents to kafka.
type Producer struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewProducer creates a kafka producer for the given brokers.
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// PublishEvent writes one CloudEvent, keyed by the event source for stable
// partitioning. The caller's context deadline bounds the call.
func (p *Producer) PublishEvent(ctx context.Context, topic string, evt *CloudEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(evt.Source),
		Value: value,
	})
}

// Close flushes and shuts down the producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used in tests and when kafka is not deployed.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(ctx context.Context, topic string, evt *CloudEvent) error {
	return nil
}
