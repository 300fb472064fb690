// Package book implements OrderBookSide: the bounded, price-time-priority
// priority queue of resting orders for one side of a market.
//
// The priority queue itself is a container/heap binary heap — the same tool
// the corpus reaches for whenever it needs one (see the historical
// container/heap-based book this package is grounded on). Cancellation by id
// is helped along by a tidwall/btree index from order id to heap slot, kept
// in sync on every Swap/Push/Pop, so CancelByID runs in O(log n) rather than
// the O(n) scan spec baseline allows.
package book

import (
	"container/heap"
	"fmt"

	"github.com/tidwall/btree"

	"clob/internal/common"
)

// DefaultMaxOrders is the capacity floor spec §3 requires (>= 1024).
const DefaultMaxOrders = 1024

// Order is a resting record on one side of a market.
type Order struct {
	OrderID   uint64
	Owner     string
	Side      common.Side
	Price     uint64 // ticks, positive
	Quantity  uint64 // remaining, in lots, positive while resting
	Timestamp int64  // monotone per placement (unix nanos), used for tie-breaking
	Sequence  uint64 // strictly increasing placement counter, hard tie-break
}

func (o Order) String() string {
	return fmt.Sprintf(
		`OrderID:   %d
Owner:     %s
Side:      %v
Price:     %d
Quantity:  %d
Timestamp: %d
Sequence:  %d`,
		o.OrderID,
		o.Owner,
		o.Side,
		o.Price,
		o.Quantity,
		o.Timestamp,
		o.Sequence,
	)
}

type indexEntry struct {
	orderID uint64
	slot    int
}

// OrderBookSide is a bounded binary heap of *Order, ordered by K(o):
// for Bids, higher price is better; for Asks, lower price is better; ties
// are broken by earlier Timestamp, then smaller Sequence.
type OrderBookSide struct {
	side     common.Side
	orders   []*Order
	index    *btree.BTreeG[indexEntry]
	capacity int
}

// NewSide constructs an empty side with the given capacity (0 uses
// DefaultMaxOrders).
func NewSide(side common.Side, capacity int) *OrderBookSide {
	if capacity <= 0 {
		capacity = DefaultMaxOrders
	}
	return &OrderBookSide{
		side:     side,
		capacity: capacity,
		index:    btree.NewBTreeG(func(a, b indexEntry) bool { return a.orderID < b.orderID }),
	}
}

// Side reports which side this book is (Bid or Ask).
func (b *OrderBookSide) Side() common.Side { return b.side }

// Capacity reports the configured MAX_ORDERS bound.
func (b *OrderBookSide) Capacity() int { return b.capacity }

// Len implements heap.Interface / sort.Interface.
func (b *OrderBookSide) Len() int { return len(b.orders) }

// Less implements the comparator K(o) for this side.
func (b *OrderBookSide) Less(i, j int) bool {
	return less(b.side, b.orders[i], b.orders[j])
}

func less(side common.Side, a, b *Order) bool {
	if a.Price != b.Price {
		if side == common.Bid {
			return a.Price > b.Price // highest bid wins
		}
		return a.Price < b.Price // lowest ask wins
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp // earliest wins
	}
	return a.Sequence < b.Sequence // smaller sequence wins
}

// Swap implements heap.Interface, keeping the id index in lockstep.
func (b *OrderBookSide) Swap(i, j int) {
	b.orders[i], b.orders[j] = b.orders[j], b.orders[i]
	b.index.Set(indexEntry{orderID: b.orders[i].OrderID, slot: i})
	b.index.Set(indexEntry{orderID: b.orders[j].OrderID, slot: j})
}

// Push implements heap.Interface. Use PushOrder for the capacity-checked
// public entry point.
func (b *OrderBookSide) Push(x any) {
	o := x.(*Order)
	b.index.Set(indexEntry{orderID: o.OrderID, slot: len(b.orders)})
	b.orders = append(b.orders, o)
}

// Pop implements heap.Interface.
func (b *OrderBookSide) Pop() any {
	old := b.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	b.orders = old[:n-1]
	b.index.Delete(indexEntry{orderID: o.OrderID})
	return o
}

// PushOrder inserts a resting order. O(log n). Fails with ErrBookFull at
// capacity.
func (b *OrderBookSide) PushOrder(o *Order) error {
	if len(b.orders) >= b.capacity {
		return common.ErrBookFull
	}
	heap.Push(b, o)
	return nil
}

// PeekBest returns the best order without removing it. O(1).
func (b *OrderBookSide) PeekBest() (*Order, bool) {
	if len(b.orders) == 0 {
		return nil, false
	}
	return b.orders[0], true
}

// PopBest removes and returns the best order. O(log n).
func (b *OrderBookSide) PopBest() (*Order, bool) {
	if len(b.orders) == 0 {
		return nil, false
	}
	return heap.Pop(b).(*Order), true
}

// DecrementBest reduces the root order's quantity by qty and pops it if the
// remainder hits zero. Re-heapification is unnecessary: shrinking the root's
// quantity never changes its key K(o), which depends only on price,
// timestamp and sequence, so relative order against its siblings cannot
// change. Returns the order as it stood before removal (if any) and whether
// it was fully consumed and popped.
func (b *OrderBookSide) DecrementBest(qty uint64) (order *Order, popped bool) {
	if len(b.orders) == 0 {
		return nil, false
	}
	root := b.orders[0]
	root.Quantity -= qty
	if root.Quantity == 0 {
		heap.Pop(b)
		return root, true
	}
	return root, false
}

// CancelByID finds, removes and returns the order with the given id.
// Looks up the slot via the btree index (O(log n)), then removes it the way
// the stock heap supports arbitrary-index removal: swap with the last
// element, shrink, then sift the swapped element in whichever direction its
// new position requires (heap.Remove does exactly this).
func (b *OrderBookSide) CancelByID(orderID uint64) (*Order, error) {
	entry, ok := b.index.Get(indexEntry{orderID: orderID})
	if !ok {
		return nil, common.ErrOrderNotFound
	}
	removed := b.orders[entry.slot]
	heap.Remove(b, entry.slot)
	return removed, nil
}

// Lookup returns the resting order with the given id without removing it.
func (b *OrderBookSide) Lookup(orderID uint64) (*Order, bool) {
	entry, ok := b.index.Get(indexEntry{orderID: orderID})
	if !ok {
		return nil, false
	}
	return b.orders[entry.slot], true
}

// Snapshot returns a copy of the resting orders in heap-array order (not
// price-time order) for diagnostics and tests.
func (b *OrderBookSide) Snapshot() []*Order {
	out := make([]*Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// Crosses reports whether a taker at price p (on the opposite side of this
// book) would match against this side's best order: a Bid taker crosses an
// Ask book when price >= best ask; an Ask taker crosses a Bid book when
// price <= best bid.
func (b *OrderBookSide) Crosses(takerSide common.Side, price uint64) bool {
	best, ok := b.PeekBest()
	if !ok {
		return false
	}
	if takerSide == common.Bid {
		return best.Price <= price
	}
	return best.Price >= price
}
