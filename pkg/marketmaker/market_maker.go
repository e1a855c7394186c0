package marketmaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/erain9/limitbook/pkg/core"
)

// MarketMaker keeps a ladder of quotes resting in a book, replacing them on
// every update interval
type MarketMaker struct {
	cfg      *Config
	logger   zerolog.Logger
	placer   OrderPlacer
	source   PriceSource
	strategy Strategy
	limiter  *rate.Limiter

	mu     sync.Mutex
	active []core.OrderID
	nextID core.OrderID

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMarketMaker creates a new market maker
func NewMarketMaker(cfg *Config, logger zerolog.Logger, placer OrderPlacer, source PriceSource, strategy Strategy) (*MarketMaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &MarketMaker{
		cfg:      cfg,
		logger:   logger.With().Str("component", "market_maker").Str("market_maker_id", cfg.MarketMakerID).Logger(),
		placer:   placer,
		source:   source,
		strategy: strategy,
		limiter:  rate.NewLimiter(rate.Limit(cfg.OrdersPerSec), cfg.NumLevels*2),
		nextID:   cfg.IDBase,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start quotes once and then requotes every UpdateInterval in the background
func (m *MarketMaker) Start(ctx context.Context) error {
	m.logger.Info().
		Dur("update_interval", m.cfg.UpdateInterval).
		Int("levels", m.cfg.NumLevels).
		Msg("Starting market maker")

	if err := m.Requote(ctx); err != nil {
		return err
	}

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Stop ends the requote loop and cancels every quote still resting
func (m *MarketMaker) Stop(ctx context.Context) error {
	m.logger.Info().Msg("Stopping market maker")
	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for market maker to stop: %w", ctx.Err())
	}

	if err := m.cancelAll(ctx); err != nil {
		return fmt.Errorf("failed to cancel quotes during shutdown: %w", err)
	}
	m.logger.Info().Msg("Market maker stopped")
	return nil
}

func (m *MarketMaker) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug().Msg("Context cancelled, stopping requote loop")
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.Requote(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Failed to requote")
			}
		}
	}
}

// Requote cancels the previous quotes and places a fresh ladder around the
// current reference price
func (m *MarketMaker) Requote(ctx context.Context) error {
	reference, err := m.source.ReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get reference price: %w", err)
	}

	quotes, err := m.strategy.CalculateQuotes(ctx, reference)
	if err != nil {
		return fmt.Errorf("failed to calculate quotes: %w", err)
	}

	if err := m.cancelAll(ctx); err != nil {
		return fmt.Errorf("failed to cancel previous quotes: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var placed, traded int
	for _, q := range quotes {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		id := m.nextID
		m.nextID++
		trades, err := m.placer.PlaceOrder(ctx, q.Side, q.Price, q.Quantity, id)
		if err != nil {
			m.logger.Warn().Err(err).
				Uint64("order_id", uint64(id)).
				Str("side", q.Side.String()).
				Int64("price", int64(q.Price)).
				Msg("Failed to place quote")
			continue
		}
		m.active = append(m.active, id)
		placed++
		traded += len(trades)
	}

	m.logger.Debug().
		Int64("reference", int64(reference)).
		Int("placed", placed).
		Int("trades", traded).
		Msg("Requoted")
	return nil
}

// Active returns the ids of quotes placed since the last cancel
func (m *MarketMaker) Active() []core.OrderID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.OrderID, len(m.active))
	copy(out, m.active)
	return out
}

// cancelAll cancels every tracked quote. Quotes that were filled in the
// meantime are no longer in the book and are simply forgotten.
func (m *MarketMaker) cancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	kept := m.active[:0]
	for _, id := range m.active {
		err := m.placer.CancelOrder(ctx, id)
		switch {
		case err == nil, errors.Is(err, core.ErrOrderNotFound):
		default:
			m.logger.Error().Err(err).Uint64("order_id", uint64(id)).Msg("Failed to cancel quote")
			errs = append(errs, err)
			kept = append(kept, id)
		}
	}
	m.active = kept
	return errors.Join(errs...)
}
