package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/IBM/sarama"

	"github.com/erain9/limitbook/pkg/messaging"
)

const maxRetry = 5

// Constructors are variables so tests can swap in mocks
var (
	newSyncProducer = sarama.NewSyncProducer
	newConsumer     = sarama.NewConsumer
)

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = maxRetry
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// QueueMessageSender implements the MessageSender interface
// for sending messages to Kafka through a sarama SyncProducer
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender connects a producer to brokers
func NewQueueMessageSender(brokers []string, topic string) (*QueueMessageSender, error) {
	producer, err := newSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &QueueMessageSender{producer: producer, topic: topic}, nil
}

// SendReport sends the report to the Kafka queue
func (q *QueueMessageSender) SendReport(ctx context.Context, report *messaging.ExecutionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := messaging.Encode(report)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     q.topic,
		Key:       sarama.StringEncoder(strconv.FormatUint(report.OrderID, 10)),
		Value:     sarama.ByteEncoder(data),
		Timestamp: report.Timestamp,
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// QueueMessageConsumer reads execution reports from partition 0 of a topic
type QueueMessageConsumer struct {
	consumer sarama.Consumer
	topic    string
	done     chan struct{}
	once     sync.Once
}

// NewQueueMessageConsumer connects a consumer to brokers
func NewQueueMessageConsumer(brokers []string, topic string) (*QueueMessageConsumer, error) {
	consumer, err := newConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeReports hands decoded reports to handler until the consumer is
// closed or ctx ends
func (c *QueueMessageConsumer) ConsumeReports(ctx context.Context, handler func(*messaging.ExecutionReport) error) error {
	pc, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer pc.Close()

	errs := pc.Errors()
	for {
		select {
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			report, err := messaging.Decode(msg.Value)
			if err != nil {
				continue
			}
			if err := handler(report); err != nil {
				return fmt.Errorf("report handler failed: %w", err)
			}
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return fmt.Errorf("consumer error: %w", cerr.Err)
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		}
	}
}

// Close stops ConsumeReports and releases the consumer
func (c *QueueMessageConsumer) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.consumer.Close()
	})
	if errors.Is(err, sarama.ErrClosedClient) {
		return nil
	}
	return err
}

var _ messaging.MessageSender = (*QueueMessageSender)(nil)
