// Package sink defines the event-sink collaborator contract (spec §6): the
// engine emits advisory notifications here; the authoritative state lives in
// the EventQueue and the balances, never in the sink.
package sink

import "clob/internal/common"

// MarketInitialized is emitted once, by Market.Initialize.
type MarketInitialized struct {
	BaseMint, QuoteMint        string
	BaseLotSize, QuoteTickSize uint64
}

// OrderPlaced is emitted once per place_limit_order call, with the
// original (pre-match) quantity.
type OrderPlaced struct {
	OrderID  uint64
	Owner    string
	Side     common.Side
	Price    uint64
	Quantity uint64
	TIF      common.TimeInForce
}

// OrderFilled is emitted once per match produced during a single
// place_limit_order call.
type OrderFilled struct {
	TakerOrderID uint64
	MakerOrderID uint64
	TakerOwner   string
	MakerOwner   string
	TakerSide    common.Side
	Price        uint64
	Quantity     uint64
}

// OrderCancelled is emitted by cancel_order.
type OrderCancelled struct {
	OrderID           uint64
	Owner             string
	RemainingQuantity uint64
}

// Sink is the collaborator contract: a pure notification sink. Methods must
// not return an error the engine would need to handle — a sink write never
// blocks or fails the surrounding transaction (spec §6: "advisory
// notifications").
type Sink interface {
	MarketInitialized(MarketInitialized)
	OrderPlaced(OrderPlaced)
	OrderFilled(OrderFilled)
	OrderCancelled(OrderCancelled)
}

// Recorder is an in-memory Sink that simply appends every event it sees, in
// order. Used by tests.
type Recorder struct {
	Initializations []MarketInitialized
	Placed          []OrderPlaced
	Filled          []OrderFilled
	Cancelled       []OrderCancelled
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) MarketInitialized(e MarketInitialized) { r.Initializations = append(r.Initializations, e) }
func (r *Recorder) OrderPlaced(e OrderPlaced)             { r.Placed = append(r.Placed, e) }
func (r *Recorder) OrderFilled(e OrderFilled)             { r.Filled = append(r.Filled, e) }
func (r *Recorder) OrderCancelled(e OrderCancelled)       { r.Cancelled = append(r.Cancelled, e) }

// NoopSink discards every event. Useful as a default when the host has not
// wired up a reporter yet.
type NoopSink struct{}

func (NoopSink) MarketInitialized(MarketInitialized) {}
func (NoopSink) OrderPlaced(OrderPlaced)             {}
func (NoopSink) OrderFilled(OrderFilled)             {}
func (NoopSink) OrderCancelled(OrderCancelled)       {}
