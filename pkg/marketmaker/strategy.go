package marketmaker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erain9/limitbook/pkg/core"
)

var hundred = decimal.NewFromInt(100)

// LayeredSymmetricQuoting places NumLevels bids and asks around the
// reference price. The innermost pair sits half the base spread away from
// the reference; each further level steps out by PriceStepPercent.
type LayeredSymmetricQuoting struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewLayeredSymmetricQuoting creates a new LayeredSymmetricQuoting strategy
func NewLayeredSymmetricQuoting(cfg *Config, logger zerolog.Logger) *LayeredSymmetricQuoting {
	return &LayeredSymmetricQuoting{
		cfg:    cfg,
		logger: logger.With().Str("component", "layered_symmetric_quoting").Logger(),
	}
}

// CalculateQuotes implements Strategy. Bids are returned before asks within
// each level, innermost level first. Bids that would fall to zero or below
// are dropped.
func (s *LayeredSymmetricQuoting) CalculateQuotes(_ context.Context, reference core.Price) ([]Quote, error) {
	if reference <= 0 {
		return nil, fmt.Errorf("reference price %d: %w", reference, core.ErrInvalidPrice)
	}

	ref := decimal.NewFromInt(int64(reference))
	halfSpread := ticks(ref.Mul(decimal.NewFromFloat(s.cfg.BaseSpreadPercent)).Div(hundred).Div(decimal.NewFromInt(2)))
	step := ticks(ref.Mul(decimal.NewFromFloat(s.cfg.PriceStepPercent)).Div(hundred))

	quotes := make([]Quote, 0, s.cfg.NumLevels*2)
	for i := 1; i <= s.cfg.NumLevels; i++ {
		offset := halfSpread + core.Price(i-1)*step
		bid := reference - offset
		ask := reference + offset
		if ask < reference {
			return nil, fmt.Errorf("level %d ask: %w", i, core.ErrPriceOverflow)
		}

		if bid > 0 {
			quotes = append(quotes, Quote{Side: core.Buy, Price: bid, Quantity: s.cfg.OrderSize, Level: i})
		}
		quotes = append(quotes, Quote{Side: core.Sell, Price: ask, Quantity: s.cfg.OrderSize, Level: i})

		s.logger.Debug().
			Int("level", i).
			Int64("bid_price", int64(bid)).
			Int64("ask_price", int64(ask)).
			Int64("quantity", int64(s.cfg.OrderSize)).
			Msg("Calculated quote pair")
	}
	return quotes, nil
}

// ticks rounds d to whole minor units, never below one
func ticks(d decimal.Decimal) core.Price {
	t := d.Round(0).IntPart()
	if t < 1 {
		return 1
	}
	return core.Price(t)
}
