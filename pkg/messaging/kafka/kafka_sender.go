package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/erain9/limitbook/pkg/messaging"
)

// writer is the subset of *kafka.Writer the sender uses
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMessageSender implements MessageSender using a kafka-go writer
type KafkaMessageSender struct {
	writer  writer
	topic   string
	timeout time.Duration
}

// NewKafkaMessageSender creates a new Kafka message sender
func NewKafkaMessageSender(brokers []string, topic string) (*KafkaMessageSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sender needs at least one broker")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaMessageSender{
		writer:  w,
		topic:   topic,
		timeout: 5 * time.Second,
	}, nil
}

// SendReport writes the report keyed by order id so that every report of
// one order lands on the same partition
func (k *KafkaMessageSender) SendReport(ctx context.Context, report *messaging.ExecutionReport) error {
	data, err := messaging.Encode(report)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(report.OrderID, 10)),
		Value: data,
		Time:  report.Timestamp,
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka writer
func (k *KafkaMessageSender) Close() error {
	return k.writer.Close()
}

var _ messaging.MessageSender = (*KafkaMessageSender)(nil)
