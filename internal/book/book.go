// Package book implements the per-commodity limit order book (C2):
// a bid and an ask ladder kept in strict price-time priority.
//
// Grounded on the teacher's internal/engine/orderbook.go: a
// github.com/tidwall/btree tree of price levels, each holding the resting
// orders at that price in arrival order. Generalized from float64 prices to
// decimal.Decimal and from a single price-level slice walk to an explicit
// id->location index so Remove is O(log n) instead of a full scan.
package book

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"fenrir/internal/domain"
)

// PriceLevel aggregates the resting orders at one price, oldest first.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*domain.Order
}

type levels = btree.BTreeG[*PriceLevel]

type location struct {
	side  domain.Side
	price decimal.Decimal
}

// Book is the bid/ask ladder for a single commodity. Every exported method
// assumes the caller already holds the commodity's lock (see
// internal/orders); Book itself does no locking — that is the whole point
// of the per-commodity-lock design in spec.md §5.
type Book struct {
	Commodity domain.Commodity

	bids *levels
	asks *levels

	// index lets Remove/Contains find an order's price level without
	// scanning every level, and lets us reject duplicate inserts.
	index map[string]location

	mu sync.Mutex // guards index only; ladder mutation is single-threaded by contract
}

// New constructs an empty book for a commodity.
func New(commodity domain.Commodity) *Book {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price) // bids sorted descending
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price) // asks sorted ascending
	})
	return &Book{
		Commodity: commodity,
		bids:      bids,
		asks:      asks,
		index:     make(map[string]location),
	}
}

func (b *Book) sideTree(side domain.Side) *levels {
	if side == domain.Buy {
		return b.bids
	}
	return b.asks
}

// Insert places a resting limit order at the index that preserves
// price-time priority: same price appends to the existing level's order
// slice (time priority), a new price creates a new level.
func (b *Book) Insert(order *domain.Order) {
	tree := b.sideTree(order.Side)
	key := &PriceLevel{Price: order.LimitPrice}
	level, ok := tree.GetMut(key)
	if !ok {
		level = &PriceLevel{Price: order.LimitPrice}
		tree.Set(level)
	}
	level.Orders = append(level.Orders, order)

	b.mu.Lock()
	b.index[order.ID] = location{side: order.Side, price: order.LimitPrice}
	b.mu.Unlock()
}

// Remove drops an order from the book. Idempotent: removing an absent id
// is a no-op, per spec.md §4.1.
func (b *Book) Remove(orderID string) {
	b.mu.Lock()
	loc, ok := b.index[orderID]
	if ok {
		delete(b.index, orderID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	tree := b.sideTree(loc.side)
	level, ok := tree.GetMut(&PriceLevel{Price: loc.price})
	if !ok {
		return
	}
	for i, o := range level.Orders {
		if o.ID == orderID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if len(level.Orders) == 0 {
		tree.Delete(level)
	}
}

// Contains reports whether orderID currently rests in the book.
func (b *Book) Contains(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.index[orderID]
	return ok
}

// BestBid returns the highest resting bid level, if any.
func (b *Book) BestBid() (*PriceLevel, bool) {
	return b.bids.Min()
}

// BestAsk returns the lowest resting ask level, if any.
func (b *Book) BestAsk() (*PriceLevel, bool) {
	return b.asks.Min()
}

// OppositeSide returns the mutable price-level tree a matching incoming
// order of this side must sweep. A cursor, not a copy: the matching engine
// consumes head entries directly as it walks it (spec.md §4.1).
func (b *Book) OppositeSide(side domain.Side) *levels {
	return b.sideTree(side.Opposite())
}

// DeleteLevel removes an exhausted level (used by the matching engine once
// it has drained every order at a price). Any orders still listed in
// level.Orders at this point (there should be none once matching has
// spliced out what it consumed) have their index entries dropped too, so a
// level can never leave a stale index entry behind.
func (b *Book) DeleteLevel(side domain.Side, level *PriceLevel) {
	b.sideTree(side.Opposite()).Delete(level)
	b.mu.Lock()
	for _, o := range level.Orders {
		delete(b.index, o.ID)
	}
	b.mu.Unlock()
}

// ReleaseConsumed drops orderIDs from the index without touching the
// ladder: the matching engine has already spliced these orders out of
// their PriceLevel's Orders slice because they filled completely. Without
// this, a filled order stays in Book.index forever and Contains keeps
// reporting it as resting (spec.md §4.1's "resting iff pending/partial").
func (b *Book) ReleaseConsumed(orderIDs []string) {
	if len(orderIDs) == 0 {
		return
	}
	b.mu.Lock()
	for _, id := range orderIDs {
		delete(b.index, id)
	}
	b.mu.Unlock()
}

// BookLevel is one aggregated, read-only snapshot row.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Count    int
}

// Snapshot aggregates up to depth levels per side, quantity summed and
// count = number of orders at that price (spec.md §4.1).
type Snapshot struct {
	Commodity domain.Commodity
	Bids      []BookLevel
	Asks      []BookLevel
}

func (b *Book) Snapshot(depth int) Snapshot {
	snap := Snapshot{Commodity: b.Commodity}
	snap.Bids = aggregate(b.bids, depth)
	snap.Asks = aggregate(b.asks, depth)
	return snap
}

// AvailableQuantity sums the resting quantity on the side opposite to
// takerSide, stopping as soon as crosses(levelPrice) returns false. The
// tree's natural iteration order always visits best-priced levels first,
// so the first non-crossing level means every level after it is worse and
// can be skipped — used by FOK pre-checks (spec.md §4.2) that must know
// whether an order is fully fillable without mutating the book.
func (b *Book) AvailableQuantity(takerSide domain.Side, crosses func(levelPrice decimal.Decimal) bool) decimal.Decimal {
	total := decimal.Zero
	b.sideTree(takerSide.Opposite()).Scan(func(level *PriceLevel) bool {
		if !crosses(level.Price) {
			return false
		}
		for _, o := range level.Orders {
			total = total.Add(o.RemainingQuantity)
		}
		return true
	})
	return total
}

func aggregate(tree *levels, depth int) []BookLevel {
	out := make([]BookLevel, 0, depth)
	tree.Scan(func(level *PriceLevel) bool {
		if len(out) >= depth {
			return false
		}
		qty := decimal.Zero
		for _, o := range level.Orders {
			qty = qty.Add(o.RemainingQuantity)
		}
		out = append(out, BookLevel{Price: level.Price, Quantity: qty, Count: len(level.Orders)})
		return true
	})
	return out
}
