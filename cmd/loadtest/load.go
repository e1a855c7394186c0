package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/erain9/limitbook/pkg/core"
)

// Placer is the order entry the generator drives, satisfied by
// server.Worker and server.BookService
type Placer interface {
	PlaceOrder(ctx context.Context, side core.Side, price core.Price, quantity core.Quantity, id core.OrderID) ([]core.Trade, error)
	CancelOrder(ctx context.Context, id core.OrderID) error
}

// LoadConfig shapes the generated flow
type LoadConfig struct {
	Workers         int
	OrdersPerWorker int
	Rate            float64
	MidPrice        core.Price
	PriceBand       int64
	MaxQuantity     int64
	CancelRatio     float64
	Seed            uint64
}

// Report summarizes one run. Latencies are in microseconds.
type Report struct {
	Orders        int64
	Cancels       int64
	CancelMisses  int64
	Trades        int64
	Rejects       int64
	Duration      time.Duration
	Latency       *hdrhistogram.Histogram
	FirstRejected error
}

// Throughput is accepted commands per second
func (r *Report) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Orders+r.Cancels) / r.Duration.Seconds()
}

// Print writes the latency distribution and counters
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "duration:      %v\n", r.Duration)
	fmt.Fprintf(w, "orders:        %d\n", r.Orders)
	fmt.Fprintf(w, "cancels:       %d (%d already filled)\n", r.Cancels, r.CancelMisses)
	fmt.Fprintf(w, "trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "rejects:       %d\n", r.Rejects)
	fmt.Fprintf(w, "throughput:    %.0f cmd/s\n", r.Throughput())
	fmt.Fprintf(w, "latency (us):  mean %.1f", r.Latency.Mean())
	for _, q := range []float64{50, 90, 99, 99.9} {
		fmt.Fprintf(w, "  p%g %d", q, r.Latency.ValueAtQuantile(q))
	}
	fmt.Fprintf(w, "  max %d\n", r.Latency.Max())
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)
}

type workerStats struct {
	orders, cancels, misses, trades, rejects int64
	firstRejected                            error
	latency                                  *hdrhistogram.Histogram
}

// RunLoad drives cfg.Workers concurrent producers through placer. Each
// producer owns a disjoint id range starting at workerID*OrdersPerWorker+1.
func RunLoad(ctx context.Context, placer Placer, cfg LoadConfig, logger zerolog.Logger) (*Report, error) {
	if cfg.Workers <= 0 || cfg.OrdersPerWorker <= 0 {
		return nil, errors.New("workers and orders per worker must be positive")
	}
	if cfg.MidPrice <= core.Price(cfg.PriceBand) || cfg.MaxQuantity <= 0 {
		return nil, errors.New("mid price must exceed the price band and max quantity must be positive")
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, cfg.Workers)

	stats := make([]workerStats, cfg.Workers)
	var wg sync.WaitGroup
	start := time.Now()
	logger.Info().
		Int("workers", cfg.Workers).
		Int("orders_per_worker", cfg.OrdersPerWorker).
		Float64("rate", cfg.Rate).
		Msg("Starting load")

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			stats[workerID] = produce(ctx, placer, limiter, cfg, workerID)
		}(i)
	}
	wg.Wait()

	report := &Report{Duration: time.Since(start), Latency: newHistogram()}
	for _, s := range stats {
		report.Orders += s.orders
		report.Cancels += s.cancels
		report.CancelMisses += s.misses
		report.Trades += s.trades
		report.Rejects += s.rejects
		if report.FirstRejected == nil {
			report.FirstRejected = s.firstRejected
		}
		if s.latency != nil {
			report.Latency.Merge(s.latency)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func produce(ctx context.Context, placer Placer, limiter *rate.Limiter, cfg LoadConfig, workerID int) workerStats {
	r := rand.New(rand.NewPCG(cfg.Seed, uint64(workerID)))
	s := workerStats{latency: newHistogram()}
	base := core.OrderID(workerID*cfg.OrdersPerWorker) + 1

	record := func(start time.Time) {
		// samples over a minute are out of range and not recorded
		_ = s.latency.RecordValue(time.Since(start).Microseconds())
	}

	for j := 0; j < cfg.OrdersPerWorker; j++ {
		if err := limiter.Wait(ctx); err != nil {
			return s
		}

		if j > 0 && r.Float64() < cfg.CancelRatio {
			id := base + core.OrderID(r.IntN(j))
			start := time.Now()
			err := placer.CancelOrder(ctx, id)
			record(start)
			switch {
			case err == nil:
				s.cancels++
			case errors.Is(err, core.ErrOrderNotFound):
				s.misses++
			case ctx.Err() != nil:
				return s
			default:
				s.rejects++
			}
			continue
		}

		side := core.Buy
		if r.IntN(2) == 0 {
			side = core.Sell
		}
		offset := int64(0)
		if cfg.PriceBand > 0 {
			offset = r.Int64N(2*cfg.PriceBand+1) - cfg.PriceBand
		}
		price := cfg.MidPrice + core.Price(offset)
		quantity := core.Quantity(r.Int64N(cfg.MaxQuantity) + 1)

		start := time.Now()
		trades, err := placer.PlaceOrder(ctx, side, price, quantity, base+core.OrderID(j))
		record(start)
		if err != nil {
			if ctx.Err() != nil {
				return s
			}
			s.rejects++
			if s.firstRejected == nil {
				s.firstRejected = err
			}
			continue
		}
		s.orders++
		s.trades += int64(len(trades))
	}
	return s
}
