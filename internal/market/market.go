// Package market implements Market: the thin composition layer that binds
// LotMath, UserBalance, the two OrderBookSides, the EventQueue and the
// MatchingEngine into the six top-level operations a host exposes
// (spec §4.7, §6): initialize, deposit, place_limit_order, cancel_order,
// consume_events, withdraw.
package market

import (
	"fmt"

	"github.com/google/uuid"

	"clob/internal/balance"
	"clob/internal/book"
	"clob/internal/common"
	"clob/internal/engine"
	"clob/internal/events"
	"clob/internal/lotmath"
	"clob/internal/sink"
	"clob/internal/vault"
)

// Config are the parameters supplied to Initialize. BaseMint/QuoteMint are
// opaque identifiers standing in for the host's mint/PDA accounts — spec §3
// calls them "opaque mint identifiers"; a uuid.UUID is the idiomatic Go
// stand-in for an account the engine never interprets, the same role the
// teacher gives uuid.New() for order identity.
type Config struct {
	BaseMint      uuid.UUID
	QuoteMint     uuid.UUID
	BaseLotSize   uint64
	QuoteTickSize uint64
	MaxOrders     int // per side; 0 uses book.DefaultMaxOrders
	MaxEvents     int // 0 uses events.MaxEvents
}

// Market is immutable after Initialize except for nextOrderID (spec §3).
type Market struct {
	baseMint, quoteMint uuid.UUID
	lot                 lotmath.Params
	nextOrderID         uint64
	eng                 *engine.Engine
	vault               vault.Vault
	sink                sink.Sink
	initialized         bool
}

// New constructs an uninitialized Market. Call Initialize before any other
// operation.
func New() *Market { return &Market{} }

// Initialize sets parameters, zeroes the two sides and the queue, and sets
// next_order_id = 1 (spec §4.7, §6). Fails with ErrInvalidParameter if
// called twice or with non-positive lot/tick sizes.
func (m *Market) Initialize(cfg Config, v vault.Vault, sk sink.Sink) error {
	if m.initialized {
		return common.ErrInvalidParameter
	}
	lot := lotmath.Params{BaseLotSize: cfg.BaseLotSize, QuoteTickSize: cfg.QuoteTickSize}
	if err := lot.Validate(); err != nil {
		return err
	}
	if v == nil {
		return common.ErrInvalidParameter
	}
	if sk == nil {
		sk = sink.NoopSink{}
	}

	bids := book.NewSide(common.Bid, cfg.MaxOrders)
	asks := book.NewSide(common.Ask, cfg.MaxOrders)
	queue := events.NewQueue(cfg.MaxEvents)
	ledger := balance.NewLedger()

	m.baseMint = cfg.BaseMint
	m.quoteMint = cfg.QuoteMint
	m.lot = lot
	m.nextOrderID = 1
	m.vault = v
	m.sink = sk
	m.eng = engine.New(lot, bids, asks, queue, ledger, sk)
	m.initialized = true

	m.sink.MarketInitialized(sink.MarketInitialized{
		BaseMint:      m.baseMint.String(),
		QuoteMint:     m.quoteMint.String(),
		BaseLotSize:   cfg.BaseLotSize,
		QuoteTickSize: cfg.QuoteTickSize,
	})
	return nil
}

func (m *Market) requireInitialized() error {
	if !m.initialized {
		return common.ErrInvalidParameter
	}
	return nil
}

// tokenAccount derives the opaque vault account id for a (owner, side) pair.
// In a real host this would be the user's associated token account pubkey;
// here it is synthesized since the vault is an in-memory stub.
func tokenAccount(owner string, side common.BalanceSide) string {
	return fmt.Sprintf("%s:%s", owner, side)
}

// Deposit is a vault transfer paired with UserBalance.deposit (spec §6).
func (m *Market) Deposit(owner string, side common.BalanceSide, amount uint64) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if amount == 0 {
		return common.ErrInvalidParameter
	}
	if err := m.vault.TransferIn(tokenAccount(owner, side), amount); err != nil {
		return err
	}
	return m.eng.Ledger.Get(owner).Deposit(side, amount)
}

// Withdraw is a vault transfer paired with UserBalance.withdraw (spec §6).
// The ledger debit only takes effect once the vault transfer succeeds; if
// the vault transfer fails the ledger debit is rolled back so no partial
// state survives (spec §5 atomicity).
func (m *Market) Withdraw(owner string, side common.BalanceSide, amount uint64) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if amount == 0 {
		return common.ErrInvalidParameter
	}
	bal := m.eng.Ledger.Get(owner)
	if err := bal.Withdraw(side, amount); err != nil {
		return err
	}
	if err := m.vault.TransferOut(tokenAccount(owner, side), amount); err != nil {
		_ = bal.Deposit(side, amount)
		return err
	}
	return nil
}

// PlaceLimitOrder issues a new order id, records its timestamp, and
// dispatches to the MatchingEngine (spec §4.4 phase 1, §4.7).
func (m *Market) PlaceLimitOrder(owner string, side common.Side, price, quantity uint64, tif common.TimeInForce, timestamp int64) (engine.PlaceResult, error) {
	if err := m.requireInitialized(); err != nil {
		return engine.PlaceResult{}, err
	}
	orderID := m.nextOrderID
	result, err := m.eng.PlaceLimitOrder(orderID, owner, side, price, quantity, tif, timestamp)
	if err != nil {
		return engine.PlaceResult{}, err
	}
	// next_order_id only advances once the id has actually been consumed by
	// a successful placement; a failed placement (e.g. InsufficientBalance)
	// never issued this id to any order, so it is not "used" and the next
	// attempt gets it instead. This keeps the counter monotone with no
	// reuse while not burning ids on rejected transactions.
	m.nextOrderID++
	return result, nil
}

// CancelOrder dispatches to the MatchingEngine (spec §4.4 Cancellation).
func (m *Market) CancelOrder(orderID uint64, side common.Side, caller string) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	return m.eng.CancelOrder(orderID, side, caller)
}

// ConsumeEvents dispatches to the MatchingEngine (spec §4.6).
func (m *Market) ConsumeEvents(limit int, makerOwners []string) (int, error) {
	if err := m.requireInitialized(); err != nil {
		return 0, err
	}
	return m.eng.ConsumeEvents(limit, makerOwners)
}

// BaseMint and QuoteMint expose the opaque mint identifiers Initialize was
// called with.
func (m *Market) BaseMint() uuid.UUID  { return m.baseMint }
func (m *Market) QuoteMint() uuid.UUID { return m.quoteMint }

// NextOrderID reports the id the next successful PlaceLimitOrder will get.
func (m *Market) NextOrderID() uint64 { return m.nextOrderID }

// Balance exposes a user's ledger balance, for tests and diagnostics.
func (m *Market) Balance(owner string) balance.Balance {
	return *m.eng.Ledger.Get(owner)
}

// Bids and Asks expose the two OrderBookSides, for tests and diagnostics.
func (m *Market) Bids() *book.OrderBookSide { return m.eng.Bids }
func (m *Market) Asks() *book.OrderBookSide { return m.eng.Asks }

// EventQueueLen reports how many fill events are pending consumption.
func (m *Market) EventQueueLen() int { return m.eng.Queue.Len() }

// Lot exposes the market's lot/tick parameters, for callers that need to
// size a reservation themselves (e.g. pre-flight UI checks).
func (m *Market) Lot() lotmath.Params { return m.lot }
