package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/messaging"
	"github.com/erain9/limitbook/pkg/otel"
)

// Option configures a BookService
type Option func(*BookService)

// WithSender publishes an execution report after every accepted command
func WithSender(sender messaging.MessageSender) Option {
	return func(s *BookService) { s.sender = sender }
}

// WithMetrics overrides the global order book metrics
func WithMetrics(m *otel.OrderBookMetrics) Option {
	return func(s *BookService) { s.metrics = m }
}

// WithInvariantChecks walks the whole book after every mutation and logs
// any inconsistency at error level
func WithInvariantChecks(enabled bool) Option {
	return func(s *BookService) { s.checkInvariants = enabled }
}

// WithClock sets the timestamp source for execution reports
func WithClock(now func() time.Time) Option {
	return func(s *BookService) { s.now = now }
}

// BookService serializes access to one order book. Mutations take the
// exclusive lock; queries share the read lock and always observe a fully
// applied operation.
type BookService struct {
	mu   sync.RWMutex
	book *core.OrderBook

	sender          messaging.MessageSender
	metrics         *otel.OrderBookMetrics
	checkInvariants bool
	now             func() time.Time
}

// NewBookService creates a service around an empty book for instrument
func NewBookService(instrument core.Instrument, opts ...Option) *BookService {
	s := &BookService{
		book:    core.NewOrderBook(instrument),
		metrics: otel.GetOrderBookMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder submits a limit order and returns the trades it produced
func (s *BookService) PlaceOrder(ctx context.Context, side core.Side, price core.Price, quantity core.Quantity, id core.OrderID) ([]core.Trade, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPlaceOrder,
		attribute.Int64(otel.AttributeOrderID, int64(id)),
		attribute.String(otel.AttributeOrderSide, side.String()),
		attribute.Int64(otel.AttributeOrderPrice, int64(price)),
		attribute.Int64(otel.AttributeOrderQuantity, int64(quantity)),
	)
	logger := logging.FromContext(ctx).With().
		Uint64("order_id", uint64(id)).
		Str("side", side.String()).
		Int64("price", int64(price)).
		Int64("quantity", int64(quantity)).
		Logger()

	s.mu.Lock()
	before := s.book.Len()
	trades, err := s.book.PlaceOrder(side, price, quantity, id)
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordRejected(ctx, RejectReason(err))
		logger.Info().Err(err).Msg("Order rejected")
		otel.EndSpan(span, err)
		return nil, err
	}
	resting, rested := s.book.Order(id)
	delta := int64(s.book.Len() - before)
	seq := s.book.LastSequence() - core.Sequence(len(trades))
	s.verify(logger)
	s.mu.Unlock()

	var traded core.Quantity
	for _, t := range trades {
		traded += t.Quantity
	}
	remaining := core.Quantity(0)
	if rested {
		remaining = resting.Quantity()
	}

	s.metrics.RecordAccepted(ctx, side.String(), len(trades), int64(traded), delta)
	otel.AddAttributes(span,
		attribute.Int(otel.AttributeTradeCount, len(trades)),
		attribute.Int64(otel.AttributeExecutedQuantity, int64(traded)),
		attribute.Int64(otel.AttributeRemainingQuantity, int64(remaining)),
		attribute.Bool(otel.AttributeRested, rested),
	)
	logger.Debug().
		Int("trades", len(trades)).
		Int64("executed", int64(traded)).
		Bool("rested", rested).
		Msg("Order accepted")

	s.publish(ctx, &messaging.ExecutionReport{
		Type:      messaging.ReportPlace,
		OrderID:   uint64(id),
		Side:      side.String(),
		Price:     int64(price),
		Quantity:  int64(quantity),
		Remaining: int64(remaining),
		Rested:    rested,
		Sequence:  uint64(seq),
		Trades:    toMessageTrades(trades),
		Timestamp: s.now(),
	})
	otel.EndSpan(span, nil)

	return trades, nil
}

// CancelOrder removes a resting order
func (s *BookService) CancelOrder(ctx context.Context, id core.OrderID) error {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanCancelOrder,
		attribute.Int64(otel.AttributeOrderID, int64(id)),
	)
	logger := logging.FromContext(ctx).With().Uint64("order_id", uint64(id)).Logger()

	s.mu.Lock()
	order, _ := s.book.Order(id)
	if err := s.book.CancelOrder(id); err != nil {
		s.mu.Unlock()
		logger.Info().Err(err).Msg("Cancel rejected")
		otel.EndSpan(span, err)
		return err
	}
	seq := s.book.LastSequence()
	s.verify(logger)
	s.mu.Unlock()

	s.metrics.RecordCancelled(ctx)
	logger.Debug().Int64("remaining", int64(order.Quantity())).Msg("Order cancelled")

	s.publish(ctx, &messaging.ExecutionReport{
		Type:      messaging.ReportCancel,
		OrderID:   uint64(id),
		Side:      order.Side().String(),
		Price:     int64(order.Price()),
		Quantity:  int64(order.Quantity()),
		Remaining: 0,
		Sequence:  uint64(seq),
		Timestamp: s.now(),
	})
	otel.EndSpan(span, nil)

	return nil
}

// verify runs the invariant walk when enabled; callers hold the lock
func (s *BookService) verify(logger zerolog.Logger) {
	if !s.checkInvariants {
		return
	}
	if err := s.book.CheckInvariants(); err != nil {
		logger.Error().Err(err).Msg("Order book invariants violated")
	}
}

func (s *BookService) publish(ctx context.Context, report *messaging.ExecutionReport) {
	if s.sender == nil {
		return
	}
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanSendReport,
		attribute.Int64(otel.AttributeOrderID, int64(report.OrderID)),
	)
	err := s.sender.SendReport(ctx, report)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).
			Uint64("order_id", report.OrderID).
			Str("type", string(report.Type)).
			Msg("Failed to publish execution report")
	}
	otel.EndSpan(span, err)
}

// BestBuy returns the best bid level
func (s *BookService) BestBuy() (core.PriceQuantity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.BestBuy()
}

// BestSell returns the best ask level
func (s *BookService) BestSell() (core.PriceQuantity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.BestSell()
}

// Depth returns up to levels entries per side
func (s *BookService) Depth(levels int) (bids, asks []core.PriceQuantity) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Depth(levels)
}

// Order returns a copy of a resting order
func (s *BookService) Order(id core.OrderID) (core.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Order(id)
}

// Len returns the number of resting orders
func (s *BookService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Len()
}

// Instrument returns the book's instrument
func (s *BookService) Instrument() core.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Instrument()
}

// Snapshot is a consistent view of the top of the book
type Snapshot struct {
	Bids     []core.PriceQuantity
	Asks     []core.PriceQuantity
	Orders   int
	Sequence core.Sequence
}

// BestBid returns the first bid level of the snapshot
func (s Snapshot) BestBid() (core.PriceQuantity, bool) {
	if len(s.Bids) == 0 {
		return core.PriceQuantity{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the first ask level of the snapshot
func (s Snapshot) BestAsk() (core.PriceQuantity, bool) {
	if len(s.Asks) == 0 {
		return core.PriceQuantity{}, false
	}
	return s.Asks[0], true
}

// Spread returns best ask minus best bid when both sides are present
func (s Snapshot) Spread() (core.Price, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// Snapshot captures depth, order count and sequence under one read lock
func (s *BookService) Snapshot(levels int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids, asks := s.book.Depth(levels)
	return Snapshot{
		Bids:     bids,
		Asks:     asks,
		Orders:   s.book.Len(),
		Sequence: s.book.LastSequence(),
	}
}

// Reset drops every resting order. Report sequences continue from where
// they were.
func (s *BookService) Reset(ctx context.Context) {
	s.mu.Lock()
	dropped := s.book.Len()
	s.book.Clear()
	s.mu.Unlock()

	s.metrics.RecordReset(ctx, dropped)
	logger := logging.FromContext(ctx)
	logger.Info().Int("dropped", dropped).Msg("Order book reset")
}

// String renders the book ladder
func (s *BookService) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.String()
}

// Close releases the report sender, if any
func (s *BookService) Close() error {
	if s.sender == nil {
		return nil
	}
	return s.sender.Close()
}

// RejectReason maps a book error to a short metric label
func RejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, core.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, core.ErrDuplicateOrderID):
		return "duplicate_order_id"
	case errors.Is(err, core.ErrQuantityOverflow):
		return "quantity_overflow"
	case errors.Is(err, core.ErrPriceOverflow):
		return "price_overflow"
	case errors.Is(err, core.ErrOrderNotFound):
		return "order_not_found"
	default:
		return "other"
	}
}

func toMessageTrades(trades []core.Trade) []messaging.Trade {
	if len(trades) == 0 {
		return nil
	}
	out := make([]messaging.Trade, 0, len(trades))
	for _, t := range trades {
		out = append(out, messaging.Trade{
			Sequence: uint64(t.Sequence),
			MakerID:  uint64(t.MakerID),
			TakerID:  uint64(t.TakerID),
			Price:    int64(t.Price),
			Quantity: int64(t.Quantity),
		})
	}
	return out
}
