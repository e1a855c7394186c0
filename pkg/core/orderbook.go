package core

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
)

// OrderBook implements price-time priority matching for one instrument.
// It is not safe for concurrent use; callers serialize mutations.
type OrderBook struct {
	instrument Instrument
	bids       *BookSide
	asks       *BookSide
	registry   *Registry
	sequence   Sequence
}

// NewOrderBook creates an empty book for the instrument
func NewOrderBook(instrument Instrument) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bids:       NewBookSide(Buy),
		asks:       NewBookSide(Sell),
		registry:   NewRegistry(),
	}
}

// Instrument returns the descriptor the book was created with
func (ob *OrderBook) Instrument() Instrument {
	return ob.instrument
}

// PlaceOrder matches an incoming limit order against the opposite side and
// rests any remainder. Trades are returned in execution order. On error the
// book is left untouched.
func (ob *OrderBook) PlaceOrder(side Side, price Price, quantity Quantity, id OrderID) ([]Trade, error) {
	if err := ob.validate(side, price, quantity, id); err != nil {
		return nil, err
	}

	taker := newOrder(id, side, price, quantity, ob.nextSequence())
	opposite := ob.side(side.Opposite())

	var trades []Trade
	for taker.quantity > 0 && opposite.Crosses(price) {
		level := opposite.Best()
		maker := level.Front()
		executed := min(taker.quantity, maker.quantity)

		trades = append(trades, Trade{
			Sequence:  ob.nextSequence(),
			MakerID:   maker.id,
			TakerID:   taker.id,
			TakerSide: side,
			Price:     level.price,
			Quantity:  executed,
		})

		taker.decreaseQuantity(executed)
		if _, filled := level.ConsumeFront(executed); filled {
			if err := ob.registry.Remove(maker.id); err != nil {
				panic(fmt.Sprintf("orderbook: filled maker not registered: %v", err))
			}
		}
		if level.IsEmpty() {
			opposite.RemoveIfEmpty(level.price)
		}
	}

	if taker.quantity > 0 {
		ob.side(side).GetOrCreate(price).Append(taker)
		if err := ob.registry.Insert(id, side, price); err != nil {
			panic(fmt.Sprintf("orderbook: resting order already registered: %v", err))
		}
	}

	return trades, nil
}

func (ob *OrderBook) validate(side Side, price Price, quantity Quantity, id OrderID) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: order %d quantity %d", ErrInvalidQuantity, id, quantity)
	}
	if price <= 0 {
		return fmt.Errorf("%w: order %d price %d", ErrInvalidPrice, id, price)
	}
	if ob.registry.Contains(id) {
		return fmt.Errorf("%w: %d", ErrDuplicateOrderID, id)
	}
	if level, ok := ob.side(side).Get(price); ok && level.total > math.MaxInt64-quantity {
		return fmt.Errorf("%w: order %d level %d total %d + %d", ErrQuantityOverflow, id, price, level.total, quantity)
	}
	return nil
}

// Clear drops every resting order. The sequence counter keeps running so
// numbers issued after a clear never repeat earlier ones.
func (ob *OrderBook) Clear() {
	ob.bids = NewBookSide(Buy)
	ob.asks = NewBookSide(Sell)
	ob.registry = NewRegistry()
}

// CancelOrder removes a resting order. The relative order of the others at
// its price level is kept.
func (ob *OrderBook) CancelOrder(id OrderID) error {
	loc, ok := ob.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	side := ob.side(loc.Side)
	level, ok := side.Get(loc.Price)
	if !ok {
		return fmt.Errorf("%w: %d has no level at %d", ErrOrderNotFound, id, loc.Price)
	}
	if _, ok := level.Remove(id); !ok {
		return fmt.Errorf("%w: %d missing from level %d", ErrOrderNotFound, id, loc.Price)
	}
	side.RemoveIfEmpty(loc.Price)
	return ob.registry.Remove(id)
}

// BestBuy returns the highest bid level
func (ob *OrderBook) BestBuy() (PriceQuantity, bool) {
	return best(ob.bids)
}

// BestSell returns the lowest ask level
func (ob *OrderBook) BestSell() (PriceQuantity, bool) {
	return best(ob.asks)
}

func best(side *BookSide) (PriceQuantity, bool) {
	level := side.Best()
	if level == nil {
		return PriceQuantity{}, false
	}
	return level.Summary(), true
}

// Depth returns up to levels entries per side in priority order
func (ob *OrderBook) Depth(levels int) (bids, asks []PriceQuantity) {
	bids = collect(ob.bids.Levels(levels))
	asks = collect(ob.asks.Levels(levels))
	return bids, asks
}

func collect(seq iter.Seq[PriceQuantity]) []PriceQuantity {
	out := []PriceQuantity{}
	for pq := range seq {
		out = append(out, pq)
	}
	return out
}

// Levels lazily walks the best limit levels of one side
func (ob *OrderBook) Levels(side Side, limit int) iter.Seq[PriceQuantity] {
	return ob.side(side).Levels(limit)
}

// Order returns a copy of a resting order
func (ob *OrderBook) Order(id OrderID) (Order, bool) {
	loc, ok := ob.registry.Lookup(id)
	if !ok {
		return Order{}, false
	}
	level, ok := ob.side(loc.Side).Get(loc.Price)
	if !ok {
		return Order{}, false
	}
	order, ok := level.Get(id)
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// Len returns the number of resting orders
func (ob *OrderBook) Len() int {
	return ob.registry.Len()
}

// IsEmpty reports whether both sides are empty
func (ob *OrderBook) IsEmpty() bool {
	return ob.bids.IsEmpty() && ob.asks.IsEmpty()
}

// LastSequence returns the most recently assigned sequence number
func (ob *OrderBook) LastSequence() Sequence {
	return ob.sequence
}

func (ob *OrderBook) nextSequence() Sequence {
	ob.sequence++
	return ob.sequence
}

func (ob *OrderBook) side(side Side) *BookSide {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

// CheckInvariants walks the whole book and reports every inconsistency
// between the ladders and the registry.
func (ob *OrderBook) CheckInvariants() error {
	var errs []error
	seen := 0

	for _, side := range []*BookSide{ob.bids, ob.asks} {
		for level := range side.all() {
			if level.IsEmpty() {
				errs = append(errs, fmt.Errorf("%s level %d is empty", side.side, level.price))
				continue
			}
			var (
				total   Quantity
				lastSeq Sequence
			)
			for order := range level.Orders() {
				seen++
				if order.quantity <= 0 {
					errs = append(errs, fmt.Errorf("order %d has quantity %d", order.id, order.quantity))
				}
				if order.sequence <= lastSeq {
					errs = append(errs, fmt.Errorf("order %d out of time priority at %d", order.id, level.price))
				}
				lastSeq = order.sequence
				total += order.quantity

				loc, ok := ob.registry.Lookup(order.id)
				if !ok || loc.Side != side.side || loc.Price != level.price {
					errs = append(errs, fmt.Errorf("order %d registry location mismatch", order.id))
				}
			}
			if total != level.total {
				errs = append(errs, fmt.Errorf("%s level %d total %d, orders sum to %d", side.side, level.price, level.total, total))
			}
		}
	}

	if seen != ob.registry.Len() {
		errs = append(errs, fmt.Errorf("registry holds %d ids, book holds %d orders", ob.registry.Len(), seen))
	}

	bid, ask := ob.bids.Best(), ob.asks.Best()
	if bid != nil && ask != nil && bid.price >= ask.price {
		errs = append(errs, fmt.Errorf("book crossed: bid %d >= ask %d", bid.price, ask.price))
	}

	return errors.Join(errs...)
}

// String implements fmt.Stringer interface
func (ob *OrderBook) String() string {
	builder := strings.Builder{}

	builder.WriteString(ob.instrument.String())
	builder.WriteString("\nAsk:")
	writeSide(&builder, ob.asks)
	builder.WriteString("\nBid:")
	writeSide(&builder, ob.bids)
	builder.WriteString("\n")

	return builder.String()
}

func writeSide(b *strings.Builder, side *BookSide) {
	if side.IsEmpty() {
		b.WriteString(" (empty)")
		return
	}
	for level := range side.all() {
		fmt.Fprintf(b, "\n  %d -> %d (%d orders)", level.price, level.total, level.Len())
	}
}
