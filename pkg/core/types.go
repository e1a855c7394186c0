package core

import (
	"encoding/json"
	"fmt"
)

// Price is a positive amount expressed in minor units of the quote asset
type Price int64

// Quantity is a positive amount expressed in minor units of the base asset
type Quantity int64

// OrderID identifies an order while it rests in the book
type OrderID uint64

// Sequence orders accepted orders and emitted trades within one book
type Sequence uint64

// PriceQuantity summarizes one price level: its price and the aggregate
// remaining quantity of every order resting there
type PriceQuantity struct {
	Price    Price
	Quantity Quantity
}

// Asset describes one side of an instrument for display purposes
type Asset struct {
	Symbol   string
	Decimals uint8
}

// String implements fmt.Stringer
func (a Asset) String() string {
	return a.Symbol
}

// Instrument is the traded pair. The engine stores it but never reads it
// while matching.
type Instrument struct {
	Base  Asset
	Quote Asset
}

// NewInstrument creates an Instrument from its base and quote assets
func NewInstrument(base, quote Asset) Instrument {
	return Instrument{Base: base, Quote: quote}
}

// String implements fmt.Stringer
func (i Instrument) String() string {
	return fmt.Sprintf("%s/%s", i.Base, i.Quote)
}

// Trade is one execution between a resting maker and an incoming taker.
// Price is always the maker's resting price.
type Trade struct {
	Sequence  Sequence
	MakerID   OrderID
	TakerID   OrderID
	TakerSide Side
	Price     Price
	Quantity  Quantity
}

// String implements fmt.Stringer
func (t Trade) String() string {
	return fmt.Sprintf("Trade: %d @ %d (maker: %d, taker: %d)", t.Quantity, t.Price, t.MakerID, t.TakerID)
}

// MarshalJSON implements Marshaler interface
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Sequence  Sequence `json:"sequence"`
		MakerID   OrderID  `json:"makerID"`
		TakerID   OrderID  `json:"takerID"`
		TakerSide string   `json:"takerSide"`
		Price     Price    `json:"price"`
		Quantity  Quantity `json:"quantity"`
	}{
		Sequence:  t.Sequence,
		MakerID:   t.MakerID,
		TakerID:   t.TakerID,
		TakerSide: t.TakerSide.String(),
		Price:     t.Price,
		Quantity:  t.Quantity,
	})
}
