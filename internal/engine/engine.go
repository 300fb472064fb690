// Package engine implements MatchingEngine: it drives a taker order against
// the opposite OrderBookSide, settles the taker synchronously, enqueues
// deferred maker fill events, and enforces GTC/IOC/FOK time-in-force
// (spec §4.4).
package engine

import (
	"clob/internal/balance"
	"clob/internal/book"
	"clob/internal/common"
	"clob/internal/events"
	"clob/internal/lotmath"
	"clob/internal/sink"
)

// Engine binds one market's two OrderBookSides, its EventQueue, its
// UserBalance ledger, its lot/tick parameters and its event sink. It has no
// id counter of its own — Market owns next_order_id and passes each newly
// issued id in.
type Engine struct {
	Lot    lotmath.Params
	Bids   *book.OrderBookSide
	Asks   *book.OrderBookSide
	Queue  *events.Queue
	Ledger *balance.Ledger
	Sink   sink.Sink
}

// New constructs an Engine over already-initialized book sides, queue and
// ledger.
func New(lot lotmath.Params, bids, asks *book.OrderBookSide, queue *events.Queue, ledger *balance.Ledger, sk sink.Sink) *Engine {
	if sk == nil {
		sk = sink.NoopSink{}
	}
	return &Engine{Lot: lot, Bids: bids, Asks: asks, Queue: queue, Ledger: ledger, Sink: sk}
}

// PlaceResult summarizes what happened to a just-placed order.
type PlaceResult struct {
	OrderID         uint64
	FilledQuantity  uint64
	RestingQuantity uint64
	RestedOnTheBook bool
}

func (e *Engine) ownAndOppositeSides(side common.Side) (own, opposite *book.OrderBookSide) {
	if side == common.Bid {
		return e.Bids, e.Asks
	}
	return e.Asks, e.Bids
}

// reservationFor computes the raw collateral a resting (or about-to-rest)
// order of this side, price and quantity must reserve.
func (e *Engine) reservationFor(side common.Side, price, qty uint64) (uint64, error) {
	if side == common.Bid {
		return e.Lot.QuoteCost(price, qty)
	}
	return e.Lot.BaseRaw(qty)
}

// fillable sums the quantity available on opposite at prices that cross
// price, without mutating opposite, stopping early once it reaches qty.
// Used by the FOK pre-check (spec §4.4 step 3).
func fillable(opposite *book.OrderBookSide, takerSide common.Side, price, qty uint64) bool {
	var sum uint64
	for _, o := range opposite.Snapshot() {
		if crosses(takerSide, price, o.Price) {
			sum += o.Quantity
			if sum >= qty {
				return true
			}
		}
	}
	return false
}

func crosses(takerSide common.Side, takerPrice, makerPrice uint64) bool {
	if takerSide == common.Bid {
		return makerPrice <= takerPrice
	}
	return makerPrice >= takerPrice
}

// PlaceLimitOrder is the MatchingEngine entry point (spec §4.4). orderID and
// timestamp are supplied by the caller (Market owns id/clock issuance);
// sequence is the order id reused as the hard tie-break (spec §9).
func (e *Engine) PlaceLimitOrder(orderID uint64, owner string, side common.Side, price, qty uint64, tif common.TimeInForce, timestamp int64) (PlaceResult, error) {
	if price == 0 || qty == 0 {
		return PlaceResult{}, common.ErrInvalidParameter
	}

	bal := e.Ledger.Get(owner)
	collateralSide := side.CollateralSide()

	// Phase 2: reserve the full worst-case taker collateral up front.
	reserveAmt, err := e.reservationFor(side, price, qty)
	if err != nil {
		return PlaceResult{}, err
	}
	if err := bal.Reserve(collateralSide, reserveAmt); err != nil {
		return PlaceResult{}, err
	}

	_, opposite := e.ownAndOppositeSides(side)

	// Phase 3: FOK pre-check, before any mutation.
	if tif == common.FOK && !fillable(opposite, side, price, qty) {
		_ = bal.Release(collateralSide, reserveAmt)
		return PlaceResult{}, common.ErrFillOrKillNotFilled
	}

	remaining := qty
	var filled uint64

	// Phase 4: match loop.
	for remaining > 0 {
		best, ok := opposite.PeekBest()
		if !ok || !crosses(side, price, best.Price) {
			break
		}

		// Check event-queue capacity before mutating anything for this fill,
		// so a full queue aborts cleanly with no partial settlement having
		// happened yet (spec §5 atomicity: every reservation taken must be
		// releasable on every return path).
		if e.Queue.Len() == e.Queue.Cap() {
			if err := e.releaseRemainder(bal, collateralSide, side, price, remaining); err != nil {
				return PlaceResult{}, err
			}
			return PlaceResult{}, common.ErrEventQueueFull
		}

		fillQty := min64(remaining, best.Quantity)
		fillPrice := best.Price

		consumedRaw, refundRaw, receivedRaw, err := e.settlementAmounts(side, price, fillPrice, fillQty)
		if err != nil {
			return PlaceResult{}, err
		}

		// Settle taker immediately.
		if err := bal.SettleTaker(collateralSide, consumedRaw, refundRaw, receivedRaw); err != nil {
			return PlaceResult{}, err
		}

		// Enqueue maker event (capacity already verified above).
		if err := e.Queue.Push(events.FillEvent{
			MakerOrderID: best.OrderID,
			MakerOwner:   best.Owner,
			TakerOwner:   owner,
			TakerSide:    side,
			Price:        fillPrice,
			Quantity:     fillQty,
		}); err != nil {
			return PlaceResult{}, err
		}
		e.Sink.OrderFilled(sink.OrderFilled{
			TakerOrderID: orderID,
			MakerOrderID: best.OrderID,
			TakerOwner:   owner,
			MakerOwner:   best.Owner,
			TakerSide:    side,
			Price:        fillPrice,
			Quantity:     fillQty,
		})

		// Reduce maker.
		opposite.DecrementBest(fillQty)

		remaining -= fillQty
		filled += fillQty
	}

	e.Sink.OrderPlaced(sink.OrderPlaced{OrderID: orderID, Owner: owner, Side: side, Price: price, Quantity: qty, TIF: tif})

	result := PlaceResult{OrderID: orderID, FilledQuantity: filled, RestingQuantity: remaining}

	// Phase 5: post-match disposition by TIF.
	switch tif {
	case common.GTC:
		if remaining > 0 {
			own, _ := e.ownAndOppositeSides(side)
			resting := &book.Order{
				OrderID:   orderID,
				Owner:     owner,
				Side:      side,
				Price:     price,
				Quantity:  remaining,
				Timestamp: timestamp,
				Sequence:  orderID,
			}
			if err := own.PushOrder(resting); err != nil {
				if relErr := e.releaseRemainder(bal, collateralSide, side, price, remaining); relErr != nil {
					return PlaceResult{}, relErr
				}
				return PlaceResult{}, err
			}
			result.RestedOnTheBook = true
		}
	case common.IOC:
		if remaining > 0 {
			if err := e.releaseRemainder(bal, collateralSide, side, price, remaining); err != nil {
				return PlaceResult{}, err
			}
			result.RestingQuantity = 0
		}
	case common.FOK:
		// remaining == 0 by construction: the pre-check guaranteed enough
		// crossing liquidity existed before the match loop ran.
	}

	return result, nil
}

// releaseRemainder releases the reservation still outstanding for `qty` more
// lots of an order at `price` on `side`.
func (e *Engine) releaseRemainder(bal *balance.Balance, collateralSide common.BalanceSide, side common.Side, price, qty uint64) error {
	amt, err := e.reservationFor(side, price, qty)
	if err != nil {
		return err
	}
	return bal.Release(collateralSide, amt)
}

// settlementAmounts computes the taker's SettleTaker arguments for one fill.
// For a Bid taker, collateral was reserved at the taker's own limit price;
// the fill executes at the (better-or-equal) maker price, so the worst-case
// reservation for this fill_qty is refunded down to the actual cost. For an
// Ask taker, collateral is base units and is price-independent, so no
// refund is ever needed.
func (e *Engine) settlementAmounts(takerSide common.Side, takerPrice, fillPrice, fillQty uint64) (consumedRaw, refundRaw, receivedRaw uint64, err error) {
	if takerSide == common.Bid {
		worst, err := e.Lot.QuoteCost(takerPrice, fillQty)
		if err != nil {
			return 0, 0, 0, err
		}
		actual, err := e.Lot.QuoteCost(fillPrice, fillQty)
		if err != nil {
			return 0, 0, 0, err
		}
		received, err := e.Lot.BaseRaw(fillQty)
		if err != nil {
			return 0, 0, 0, err
		}
		return actual, worst - actual, received, nil
	}
	consumed, err := e.Lot.BaseRaw(fillQty)
	if err != nil {
		return 0, 0, 0, err
	}
	received, err := e.Lot.QuoteCost(fillPrice, fillQty)
	if err != nil {
		return 0, 0, 0, err
	}
	return consumed, 0, received, nil
}

// CancelOrder finds the resting order, verifies ownership, releases its
// outstanding reservation and emits OrderCancelled (spec §4.4 Cancellation).
func (e *Engine) CancelOrder(orderID uint64, side common.Side, caller string) error {
	own, _ := e.ownAndOppositeSides(side)
	order, ok := own.Lookup(orderID)
	if !ok {
		return common.ErrOrderNotFound
	}
	if order.Owner != caller {
		return common.ErrUnauthorized
	}
	removed, err := own.CancelByID(orderID)
	if err != nil {
		return err
	}
	bal := e.Ledger.Get(caller)
	if err := e.releaseRemainder(bal, side.CollateralSide(), side, removed.Price, removed.Quantity); err != nil {
		return err
	}
	e.Sink.OrderCancelled(sink.OrderCancelled{OrderID: orderID, Owner: caller, RemainingQuantity: removed.Quantity})
	return nil
}

// ConsumeEvents drains up to limit events, settling each named maker in
// strict production order (spec §4.6). makerOwners[i] must equal the
// owner of the i-th not-yet-consumed event for consumption to proceed; a
// mismatch or an exhausted maker list stops consumption (no skipping — the
// spec's open question is resolved against skipping, see DESIGN.md).
func (e *Engine) ConsumeEvents(limit int, makerOwners []string) (int, error) {
	consumed := 0
	for consumed < limit && consumed < len(makerOwners) {
		ev, ok := e.Queue.Front()
		if !ok {
			break
		}
		if makerOwners[consumed] != ev.MakerOwner {
			break
		}

		makerSide := common.Ask
		if ev.TakerSide == common.Ask {
			makerSide = common.Bid
		}
		collateralSide := makerSide.CollateralSide()

		var consumedRaw, receivedRaw uint64
		var err error
		if makerSide == common.Bid {
			// Maker's fill price always equals its own resting price (the
			// maker's price always wins a limit-vs-limit match), so using
			// ev.Price here is always the maker's original price.
			consumedRaw, err = e.Lot.QuoteCost(ev.Price, ev.Quantity)
			if err == nil {
				receivedRaw, err = e.Lot.BaseRaw(ev.Quantity)
			}
		} else {
			consumedRaw, err = e.Lot.BaseRaw(ev.Quantity)
			if err == nil {
				receivedRaw, err = e.Lot.QuoteCost(ev.Price, ev.Quantity)
			}
		}
		if err != nil {
			return consumed, err
		}

		bal := e.Ledger.Get(ev.MakerOwner)
		if err := bal.SettleMaker(collateralSide, consumedRaw, receivedRaw); err != nil {
			// Internal invariant violation: reservations were supposed to
			// guarantee this never happens. Fatal for the transaction.
			return consumed, err
		}

		e.Queue.PopFront()
		consumed++
	}
	return consumed, nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
