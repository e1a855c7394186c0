// Command loadtest drives an in-process order book with concurrent
// producers through the serializing worker while a market maker keeps
// quotes around the mid price, then prints the latency distribution.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erain9/limitbook/config"
	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/marketmaker"
	"github.com/erain9/limitbook/pkg/otel"
	"github.com/erain9/limitbook/pkg/server"
)

func main() {
	fs := config.NewFlagSet("loadtest")
	workers := fs.Int("workers", 100, "Number of concurrent producers")
	orders := fs.Int("orders", 1000, "Orders per producer")
	ratePerSec := fs.Float64("rate", 50000, "Commands per second across all producers, 0 for unlimited")
	mid := fs.Int64("mid", 1_000_000, "Mid price in quote minor units")
	band := fs.Int64("band", 50, "Producers price within mid +/- band minor units")
	maxQty := fs.Int64("max-qty", 1_000_000, "Largest order quantity in base minor units")
	cancelRatio := fs.Float64("cancel-ratio", 0.1, "Fraction of commands that cancel an earlier order")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	withMM := fs.Bool("market-maker", true, "Run a market maker alongside the producers")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.PrettyLogs(), Output: os.Stderr})
	logger := log.With().Str("component", "loadtest").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName + "-loadtest",
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown()
	if cfg.Telemetry.Enabled {
		if err := otel.StartRuntimeMetrics(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	metrics, err := otel.NewCommandMetrics(otel.GetMeterProvider().Meter("limitbook/loadtest"))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create command metrics")
	}

	svc, err := server.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create order book")
	}
	defer svc.Close()

	worker := server.NewWorker(svc, cfg.Engine.QueueSize, metrics)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error().Err(err).Msg("Worker exited")
		}
	}()

	var mm *marketmaker.MarketMaker
	if *withMM {
		mmCfg, err := marketmaker.LoadConfig()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load market maker configuration")
		}
		source := marketmaker.BookMidPrice{Book: svc, Fallback: core.Price(*mid)}
		mm, err = marketmaker.NewMarketMaker(mmCfg, logger, worker, source, marketmaker.NewLayeredSymmetricQuoting(mmCfg, logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create market maker")
		}
		if err := mm.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start market maker")
		}
	}

	report, err := RunLoad(ctx, worker, LoadConfig{
		Workers:         *workers,
		OrdersPerWorker: *orders,
		Rate:            *ratePerSec,
		MidPrice:        core.Price(*mid),
		PriceBand:       *band,
		MaxQuantity:     *maxQty,
		CancelRatio:     *cancelRatio,
		Seed:            *seed,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Load interrupted")
	}

	if mm != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mm.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop market maker")
		}
		cancel()
	}

	worker.Stop()
	<-worker.Done()

	if report != nil {
		report.Print(os.Stdout)
		if report.FirstRejected != nil {
			logger.Info().Err(report.FirstRejected).Msg("First rejected order")
		}
	}

	snap := svc.Snapshot(1)
	logger.Info().
		Int("resting", snap.Orders).
		Uint64("sequence", uint64(snap.Sequence)).
		Msg("Load test complete")
}
