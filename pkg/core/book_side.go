package core

import (
	"iter"

	"github.com/google/btree"
)

// BookSide is the price ladder of one side of the book. Levels are kept in
// a B-tree ordered best first, so the best level is always the tree minimum:
// ascending prices for asks, descending prices for bids.
type BookSide struct {
	side   Side
	levels *btree.BTreeG[*PriceLevel]
}

// NewBookSide creates an empty ladder for the given side
func NewBookSide(side Side) *BookSide {
	less := func(a, b *PriceLevel) bool { return a.price < b.price }
	if side == Buy {
		less = func(a, b *PriceLevel) bool { return a.price > b.price }
	}
	return &BookSide{
		side:   side,
		levels: btree.NewG(btreeDegree, less),
	}
}

// Side returns the side this ladder holds
func (s *BookSide) Side() Side {
	return s.side
}

// Len returns the number of price levels
func (s *BookSide) Len() int {
	return s.levels.Len()
}

// IsEmpty reports whether the side holds no levels
func (s *BookSide) IsEmpty() bool {
	return s.levels.Len() == 0
}

// Best returns the highest priority level, or nil when the side is empty
func (s *BookSide) Best() *PriceLevel {
	level, ok := s.levels.Min()
	if !ok {
		return nil
	}
	return level
}

// Get returns the level at price if one exists
func (s *BookSide) Get(price Price) (*PriceLevel, bool) {
	return s.levels.Get(&PriceLevel{price: price})
}

// GetOrCreate returns the level at price, inserting an empty one if absent
func (s *BookSide) GetOrCreate(price Price) *PriceLevel {
	if level, ok := s.Get(price); ok {
		return level
	}
	level := NewPriceLevel(price)
	s.levels.ReplaceOrInsert(level)
	return level
}

// RemoveIfEmpty drops the level at price once it holds no orders
func (s *BookSide) RemoveIfEmpty(price Price) bool {
	level, ok := s.Get(price)
	if !ok || !level.IsEmpty() {
		return false
	}
	s.levels.Delete(level)
	return true
}

// Crosses reports whether an incoming order on the opposite side at price
// would trade against this side's best level.
func (s *BookSide) Crosses(price Price) bool {
	best := s.Best()
	if best == nil {
		return false
	}
	if s.side == Sell {
		return best.price <= price
	}
	return best.price >= price
}

// Levels yields up to limit level summaries in priority order. The
// sequence is lazy and can be ranged over again to restart from the best
// level. A non-positive limit yields nothing.
func (s *BookSide) Levels(limit int) iter.Seq[PriceQuantity] {
	return func(yield func(PriceQuantity) bool) {
		if limit <= 0 {
			return
		}
		n := 0
		s.levels.Ascend(func(level *PriceLevel) bool {
			if !yield(level.Summary()) {
				return false
			}
			n++
			return n < limit
		})
	}
}

// all walks every level best first
func (s *BookSide) all() iter.Seq[*PriceLevel] {
	return func(yield func(*PriceLevel) bool) {
		s.levels.Ascend(func(level *PriceLevel) bool {
			return yield(level)
		})
	}
}
