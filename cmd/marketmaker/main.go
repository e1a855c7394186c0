// Command marketmaker keeps a layered quote ladder in an in-process book
// until interrupted. With a publisher configured, every quote and cancel is
// published as an execution report, which makes it a quote feed for
// tradetail.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erain9/limitbook/config"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/marketmaker"
	"github.com/erain9/limitbook/pkg/server"
	"github.com/erain9/limitbook/pkg/units"
)

func main() {
	fs := config.NewFlagSet("marketmaker")
	reference := fs.String("reference", "10000.00", "Reference price used until the book has a mid price")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.PrettyLogs(), Output: os.Stderr})
	logger := log.With().Str("component", "marketmaker").Logger()

	mmCfg, err := marketmaker.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load market maker configuration")
	}

	ref, err := units.ParsePrice(*reference, cfg.BookInstrument())
	if err != nil {
		logger.Fatal().Err(err).Str("reference", *reference).Msg("Invalid reference price")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := server.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create order book")
	}
	defer svc.Close()

	worker := server.NewWorker(svc, cfg.Engine.QueueSize, nil)
	go func() { _ = worker.Run(context.Background()) }()

	strategy := marketmaker.NewLayeredSymmetricQuoting(mmCfg, logger)
	source := marketmaker.BookMidPrice{Book: svc, Fallback: ref}
	mm, err := marketmaker.NewMarketMaker(mmCfg, logger, worker, source, strategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create market maker")
	}

	if err := mm.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start market maker")
	}
	logger.Info().Str("instrument", svc.Instrument().String()).Msg("Quoting, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := mm.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
	worker.Stop()
	<-worker.Done()

	logger.Info().Int("resting", svc.Len()).Msg("Market maker stopped")
}
