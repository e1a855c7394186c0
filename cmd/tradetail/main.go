// Command tradetail follows the execution report topic and prints every
// report, using kafka-go or sarama as selected by --publisher.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/erain9/limitbook/config"
	"github.com/erain9/limitbook/pkg/db/queue"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/messaging/kafka"
)

func main() {
	fs := config.NewFlagSet("tradetail")
	group := fs.String("group", "tradetail", "Consumer group (kafka-go only)")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.PrettyLogs(), Output: os.Stderr})
	logger := log.With().Str("component", "tradetail").Str("topic", cfg.Publisher.Topic).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := NewPrinter(os.Stdout, cfg.BookInstrument(), !*noColor)

	switch cfg.Publisher.Driver {
	case config.DriverSarama:
		consumer, err := queue.NewQueueMessageConsumer(cfg.Publisher.Brokers, cfg.Publisher.Topic)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create sarama consumer")
		}
		defer consumer.Close()
		logger.Info().Msg("Following execution reports with sarama")
		err = consumer.ConsumeReports(ctx, printer.Handle)
		if err != nil {
			logger.Error().Err(err).Msg("Consumer stopped")
		}
	default:
		consumer := kafka.NewConsumer(cfg.Publisher.Brokers, cfg.Publisher.Topic, *group, logger)
		defer consumer.Close()
		if err := consumer.Run(ctx, printer.Handle); err != nil {
			logger.Error().Err(err).Msg("Consumer stopped")
		}
	}
}
