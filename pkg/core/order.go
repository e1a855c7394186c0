package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an order of this side matches against
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts "buy"/"sell" or the short forms "b"/"s", in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy", "b":
		return Buy, nil
	case "sell", "s":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Order is a resting order. Identity fields never change after creation;
// only the remaining quantity is reduced by matching.
type Order struct {
	id       OrderID
	side     Side
	price    Price
	quantity Quantity
	sequence Sequence
}

func newOrder(id OrderID, side Side, price Price, quantity Quantity, seq Sequence) *Order {
	return &Order{
		id:       id,
		side:     side,
		price:    price,
		quantity: quantity,
		sequence: seq,
	}
}

// ID returns OrderID field copy
func (o *Order) ID() OrderID {
	return o.id
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Price returns Price field copy
func (o *Order) Price() Price {
	return o.price
}

// Quantity returns the remaining quantity
func (o *Order) Quantity() Quantity {
	return o.quantity
}

// Sequence returns the insertion sequence used for time priority
func (o *Order) Sequence() Sequence {
	return o.sequence
}

func (o *Order) decreaseQuantity(quantity Quantity) {
	o.quantity -= quantity
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       OrderID  `json:"id"`
		Side     string   `json:"side"`
		Price    Price    `json:"price"`
		Quantity Quantity `json:"quantity"`
		Sequence Sequence `json:"sequence"`
	}{
		ID:       o.id,
		Side:     o.side.String(),
		Price:    o.price,
		Quantity: o.quantity,
		Sequence: o.sequence,
	})
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
