package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/erain9/limitbook/pkg/messaging"
)

// ReportHandler receives every decoded execution report
type ReportHandler func(*messaging.ExecutionReport) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads execution reports from a topic
type Consumer struct {
	reader reader
	logger zerolog.Logger
}

// NewConsumer creates a consumer reading topic as part of groupID
func NewConsumer(brokers []string, topic, groupID string, logger zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, logger: logger}
}

// Run hands reports to handler until ctx is done. Messages that fail to
// decode are logged and skipped; a handler error stops the loop.
func (c *Consumer) Run(ctx context.Context, handler ReportHandler) error {
	c.logger.Info().Msg("Starting Kafka consumer")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		report, err := messaging.Decode(msg.Value)
		if err != nil {
			c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping undecodable message")
		} else if err := handler(report); err != nil {
			return fmt.Errorf("report handler failed: %w", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit offset: %w", err)
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
