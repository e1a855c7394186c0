package marketmaker

import (
	"context"
	"errors"

	"github.com/erain9/limitbook/pkg/core"
)

// ErrNoReferencePrice is returned by a PriceSource that cannot produce a
// price yet
var ErrNoReferencePrice = errors.New("no reference price")

// OrderPlacer places and cancels limit orders. server.BookService
// satisfies it.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, side core.Side, price core.Price, quantity core.Quantity, id core.OrderID) ([]core.Trade, error)
	CancelOrder(ctx context.Context, id core.OrderID) error
}

// PriceSource yields the reference price quotes are built around
type PriceSource interface {
	ReferencePrice(ctx context.Context) (core.Price, error)
}

// Quote is one limit order a strategy wants resting in the book
type Quote struct {
	Side     core.Side
	Price    core.Price
	Quantity core.Quantity
	Level    int
}

// Strategy turns a reference price into the quotes to place
type Strategy interface {
	CalculateQuotes(ctx context.Context, reference core.Price) ([]Quote, error)
}

// StaticPrice always reports the same reference price
type StaticPrice core.Price

// ReferencePrice implements PriceSource
func (p StaticPrice) ReferencePrice(context.Context) (core.Price, error) {
	if p <= 0 {
		return 0, ErrNoReferencePrice
	}
	return core.Price(p), nil
}

// TopOfBook is the read side of a book used to derive a mid price
type TopOfBook interface {
	BestBuy() (core.PriceQuantity, bool)
	BestSell() (core.PriceQuantity, bool)
}

// BookMidPrice uses the midpoint of the best bid and ask. With only one side
// present it uses that side's price, and with neither it uses Fallback.
type BookMidPrice struct {
	Book     TopOfBook
	Fallback core.Price
}

// ReferencePrice implements PriceSource
func (p BookMidPrice) ReferencePrice(context.Context) (core.Price, error) {
	bid, okBid := p.Book.BestBuy()
	ask, okAsk := p.Book.BestSell()
	switch {
	case okBid && okAsk:
		return bid.Price + (ask.Price-bid.Price)/2, nil
	case okBid:
		return bid.Price, nil
	case okAsk:
		return ask.Price, nil
	case p.Fallback > 0:
		return p.Fallback, nil
	default:
		return 0, ErrNoReferencePrice
	}
}
