package core

import "fmt"

// Location is where a resting order lives: its side and price level
type Location struct {
	Side  Side
	Price Price
}

// Registry indexes live order ids to their location. It never holds
// order data; the owning PriceLevel finds the order itself by id.
type Registry struct {
	entries map[OrderID]Location
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[OrderID]Location)}
}

// Insert records the location of a new live order
func (r *Registry) Insert(id OrderID, side Side, price Price) error {
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateOrderID, id)
	}
	r.entries[id] = Location{Side: side, Price: price}
	return nil
}

// Remove deletes the mapping for id
func (r *Registry) Remove(id OrderID) error {
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

// Lookup returns the location of a live order
func (r *Registry) Lookup(id OrderID) (Location, bool) {
	loc, ok := r.entries[id]
	return loc, ok
}

// Contains reports whether id is live
func (r *Registry) Contains(id OrderID) bool {
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of live orders
func (r *Registry) Len() int {
	return len(r.entries)
}
