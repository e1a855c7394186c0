package core

import (
	"container/list"
	"iter"
)

// PriceLevel is the FIFO queue of orders sharing one price on one side.
// Orders are kept in a doubly-linked list so that cancelling from the
// middle of the queue does not shift the rest; index maps an order id to
// its list element.
type PriceLevel struct {
	price  Price
	total  Quantity
	orders *list.List
	index  map[OrderID]*list.Element
}

// NewPriceLevel creates an empty level at the given price
func NewPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{
		price:  price,
		orders: list.New(),
		index:  make(map[OrderID]*list.Element),
	}
}

// Price returns the level price
func (l *PriceLevel) Price() Price {
	return l.price
}

// Total returns the aggregate remaining quantity across the level
func (l *PriceLevel) Total() Quantity {
	return l.total
}

// Len returns the number of orders at the level
func (l *PriceLevel) Len() int {
	return l.orders.Len()
}

// IsEmpty reports whether the level should be dropped from its side
func (l *PriceLevel) IsEmpty() bool {
	return l.orders.Len() == 0
}

// Append adds an order at the tail of the queue
func (l *PriceLevel) Append(order *Order) {
	l.index[order.ID()] = l.orders.PushBack(order)
	l.total += order.Quantity()
}

// Front returns the oldest order without removing it, or nil
func (l *PriceLevel) Front() *Order {
	e := l.orders.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Order)
}

// ConsumeFront reduces the front order by quantity, which must not exceed
// its remaining quantity. The front order is returned together with a flag
// telling whether it was exhausted and removed.
func (l *PriceLevel) ConsumeFront(quantity Quantity) (*Order, bool) {
	e := l.orders.Front()
	if e == nil {
		return nil, false
	}
	order := e.Value.(*Order)
	order.decreaseQuantity(quantity)
	l.total -= quantity

	if order.Quantity() == 0 {
		l.orders.Remove(e)
		delete(l.index, order.ID())
		return order, true
	}
	return order, false
}

// Remove deletes an arbitrary order by id without reordering the rest
func (l *PriceLevel) Remove(id OrderID) (*Order, bool) {
	e, ok := l.index[id]
	if !ok {
		return nil, false
	}
	order := l.orders.Remove(e).(*Order)
	delete(l.index, id)
	l.total -= order.Quantity()
	return order, true
}

// Get returns the order with the given id if it rests at this level
func (l *PriceLevel) Get(id OrderID) (*Order, bool) {
	e, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return e.Value.(*Order), true
}

// Orders walks the queue oldest first
func (l *PriceLevel) Orders() iter.Seq[*Order] {
	return func(yield func(*Order) bool) {
		for e := l.orders.Front(); e != nil; e = e.Next() {
			if !yield(e.Value.(*Order)) {
				return
			}
		}
	}
}

// Summary returns the (price, aggregate quantity) pair for the level
func (l *PriceLevel) Summary() PriceQuantity {
	return PriceQuantity{Price: l.price, Quantity: l.total}
}
