package server

import (
	"fmt"

	"github.com/erain9/limitbook/config"
	"github.com/erain9/limitbook/pkg/db/queue"
	"github.com/erain9/limitbook/pkg/messaging"
	"github.com/erain9/limitbook/pkg/messaging/kafka"
)

// NewReportSender builds the execution report sender selected by
// publisher.driver. It returns nil for the none driver.
func NewReportSender(cfg *config.Config) (messaging.MessageSender, error) {
	switch cfg.Publisher.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverKafkaGo:
		sender, err := kafka.NewKafkaMessageSender(cfg.Publisher.Brokers, cfg.Publisher.Topic)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka-go sender: %w", err)
		}
		return sender, nil
	case config.DriverSarama:
		sender, err := queue.NewQueueMessageSender(cfg.Publisher.Brokers, cfg.Publisher.Topic)
		if err != nil {
			return nil, fmt.Errorf("failed to create sarama sender: %w", err)
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown publisher driver %q", cfg.Publisher.Driver)
	}
}

// NewFromConfig creates a BookService for the configured instrument with
// the configured publisher and invariant checking
func NewFromConfig(cfg *config.Config, opts ...Option) (*BookService, error) {
	sender, err := NewReportSender(cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{WithInvariantChecks(cfg.Engine.CheckInvariants)}
	if sender != nil {
		base = append(base, WithSender(sender))
	}
	return NewBookService(cfg.BookInstrument(), append(base, opts...)...), nil
}
