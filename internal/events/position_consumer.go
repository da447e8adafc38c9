package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PositionRecorder is the slice of the tracking service the consumer needs.
type PositionRecorder interface {
	RecordPositionFromStream(ctx context.Context, evt PositionReportedEvent) error
}

// PositionConsumer consumes the position stream and feeds reports into the
// same ingestion path the HTTP surface uses.
type PositionConsumer struct {
	reader   *kafkago.Reader
	recorder PositionRecorder
	logger   *zap.Logger
}

// NewPositionConsumer creates a consumer group member for the position topic.
func NewPositionConsumer(brokers []string, groupID string, recorder PositionRecorder, logger *zap.Logger) *PositionConsumer {
	return &PositionConsumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    TopicPositionStream,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		recorder: recorder,
		logger:   logger,
	}
}

// Start consumes until the context is cancelled. Malformed messages are
// logged and skipped; ingestion errors are logged and the message is still
// committed — the stream is best-effort relative to the HTTP path.
func (c *PositionConsumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		cloudEvent, err := ParseCloudEvent(msg.Value)
		if err != nil {
			c.logger.Error("failed to parse cloud event from position stream",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}

		var evt PositionReportedEvent
		if err := cloudEvent.ParseData(&evt); err != nil {
			c.logger.Error("failed to parse position report", zap.Error(err))
			continue
		}

		if err := c.recorder.RecordPositionFromStream(ctx, evt); err != nil {
			c.logger.Error("failed to record streamed position",
				zap.String("user_id", evt.UserID.String()),
				zap.Error(err),
			)
		}
	}
}

// Close shuts down the consumer.
func (c *PositionConsumer) Close() error {
	return c.reader.Close()
}
