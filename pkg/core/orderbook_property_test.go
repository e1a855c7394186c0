package core

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

// Random place/cancel sequences keep the book consistent and conserve
// quantity: everything submitted is either traded (twice, once per side),
// resting, or cancelled.

func TestProperty_RandomSequencesKeepInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ob := NewOrderBook(testInstrument)

		var (
			submitted Quantity
			traded    Quantity
			cancelled Quantity
			lastSeq   Sequence
		)

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := OrderID(rapid.Uint64Range(1, 40).Draw(t, "id"))

			if rapid.IntRange(0, 4).Draw(t, "op") == 0 {
				resting, live := ob.Order(id)
				err := ob.CancelOrder(id)
				if live {
					if err != nil {
						t.Fatalf("cancel of live order %d failed: %v", id, err)
					}
					cancelled += resting.Quantity()
				} else if !errors.Is(err, ErrOrderNotFound) {
					t.Fatalf("cancel of unknown order %d: got %v", id, err)
				}
			} else {
				side := Side(rapid.IntRange(0, 1).Draw(t, "side"))
				price := Price(rapid.Int64Range(90, 110).Draw(t, "price"))
				qty := Quantity(rapid.Int64Range(1, 50).Draw(t, "qty"))

				_, live := ob.Order(id)
				trades, err := ob.PlaceOrder(side, price, qty, id)
				if live {
					if !errors.Is(err, ErrDuplicateOrderID) {
						t.Fatalf("expected duplicate id error for %d, got %v", id, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("place failed: %v", err)
				}
				submitted += qty

				for _, tr := range trades {
					if tr.Sequence <= lastSeq {
						t.Fatalf("trade sequence %d not increasing after %d", tr.Sequence, lastSeq)
					}
					lastSeq = tr.Sequence
					if side == Buy && tr.Price > price || side == Sell && tr.Price < price {
						t.Fatalf("trade %s executed through the taker limit %d", tr, price)
					}
					if tr.TakerID != id || tr.MakerID == id {
						t.Fatalf("trade %s has wrong parties for taker %d", tr, id)
					}
					traded += tr.Quantity
				}
			}

			if err := ob.CheckInvariants(); err != nil {
				t.Fatalf("invariants broken after step %d: %v", i, err)
			}
		}

		var resting Quantity
		bids, asks := ob.Depth(1 << 20)
		for _, pq := range append(bids, asks...) {
			resting += pq.Quantity
		}
		if submitted != 2*traded+resting+cancelled {
			t.Fatalf("quantity not conserved: submitted %d traded %d resting %d cancelled %d",
				submitted, traded, resting, cancelled)
		}
	})
}

func TestProperty_CancelEverythingEmptiesBook(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ob := NewOrderBook(testInstrument)

		n := rapid.IntRange(1, 100).Draw(t, "orders")
		for i := 1; i <= n; i++ {
			side := Side(rapid.IntRange(0, 1).Draw(t, "side"))
			price := Price(rapid.Int64Range(1, 1000).Draw(t, "price"))
			qty := Quantity(rapid.Int64Range(1, 1000).Draw(t, "qty"))
			if _, err := ob.PlaceOrder(side, price, qty, OrderID(i)); err != nil {
				t.Fatalf("place failed: %v", err)
			}
		}

		for i := 1; i <= n; i++ {
			if _, live := ob.Order(OrderID(i)); live {
				if err := ob.CancelOrder(OrderID(i)); err != nil {
					t.Fatalf("cancel failed: %v", err)
				}
			}
		}

		if !ob.IsEmpty() || ob.Len() != 0 {
			t.Fatalf("book not empty after cancelling everything:\n%s", ob)
		}
	})
}

func TestProperty_NonCrossingPlaceThenCancelIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ob := NewOrderBook(testInstrument)
		for i := 1; i <= 10; i++ {
			if _, err := ob.PlaceOrder(Buy, Price(100-i), Quantity(i), OrderID(i)); err != nil {
				t.Fatal(err)
			}
			if _, err := ob.PlaceOrder(Sell, Price(100+i), Quantity(i), OrderID(100+i)); err != nil {
				t.Fatal(err)
			}
		}
		before := ob.String()

		side := Side(rapid.IntRange(0, 1).Draw(t, "side"))
		var price Price
		if side == Buy {
			price = Price(rapid.Int64Range(1, 100).Draw(t, "price"))
		} else {
			price = Price(rapid.Int64Range(101, 200).Draw(t, "price"))
		}
		qty := Quantity(rapid.Int64Range(1, 1000).Draw(t, "qty"))

		trades, err := ob.PlaceOrder(side, price, qty, 500)
		if err != nil {
			t.Fatal(err)
		}
		if len(trades) != 0 {
			t.Fatalf("non-crossing order traded: %v", trades)
		}
		if err := ob.CancelOrder(500); err != nil {
			t.Fatal(err)
		}
		if ob.String() != before {
			t.Fatalf("book changed:\n%s\nwant\n%s", ob, before)
		}
	})
}
