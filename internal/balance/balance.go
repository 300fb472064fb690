// Package balance implements UserBalance: the per-(market,user) ledger of
// available vs reserved base and quote units that keeps the book
// collateralized (spec §3, §4.2, §4.5).
package balance

import (
	"clob/internal/common"
	"clob/internal/lotmath"
)

// Balance is one user's ledger within one market.
type Balance struct {
	BaseAvailable  uint64
	BaseReserved   uint64
	QuoteAvailable uint64
	QuoteReserved  uint64
}

func (b *Balance) available(side common.BalanceSide) uint64 {
	if side == common.Base {
		return b.BaseAvailable
	}
	return b.QuoteAvailable
}

func (b *Balance) reserved(side common.BalanceSide) uint64 {
	if side == common.Base {
		return b.BaseReserved
	}
	return b.QuoteReserved
}

func (b *Balance) setAvailable(side common.BalanceSide, v uint64) {
	if side == common.Base {
		b.BaseAvailable = v
	} else {
		b.QuoteAvailable = v
	}
}

func (b *Balance) setReserved(side common.BalanceSide, v uint64) {
	if side == common.Base {
		b.BaseReserved = v
	} else {
		b.QuoteReserved = v
	}
}

// Deposit credits raw units to the available balance on the given side.
func (b *Balance) Deposit(side common.BalanceSide, raw uint64) error {
	sum, err := lotmath.CheckedAdd(b.available(side), raw)
	if err != nil {
		return err
	}
	b.setAvailable(side, sum)
	return nil
}

// Withdraw debits raw units from available. Fails with
// ErrInsufficientBalance if available < raw.
func (b *Balance) Withdraw(side common.BalanceSide, raw uint64) error {
	if b.available(side) < raw {
		return common.ErrInsufficientBalance
	}
	b.setAvailable(side, b.available(side)-raw)
	return nil
}

// Reserve moves raw units from available to reserved. Fails with
// ErrInsufficientBalance if available < raw.
func (b *Balance) Reserve(side common.BalanceSide, raw uint64) error {
	if b.available(side) < raw {
		return common.ErrInsufficientBalance
	}
	b.setAvailable(side, b.available(side)-raw)
	b.setReserved(side, b.reserved(side)+raw)
	return nil
}

// Release moves raw units from reserved back to available. Fails with
// ErrInsufficientBalance if reserved < raw (an internal invariant
// violation — reservations are always sized to cover what they release).
func (b *Balance) Release(side common.BalanceSide, raw uint64) error {
	if b.reserved(side) < raw {
		return common.ErrInsufficientBalance
	}
	b.setReserved(side, b.reserved(side)-raw)
	b.setAvailable(side, b.available(side)+raw)
	return nil
}

// SettleTaker applies the synchronous half of a fill to the taker: consumes
// exactly consumedRaw of the already-reserved collateralSide, refunds
// refundRaw of that same reservation back to available (the gap between the
// worst-case reservation and what the fill actually cost at the maker's
// price — spec §4.4 step 4's price-improvement refund), and credits
// receivedRaw of the opposite (received) side to available.
func (b *Balance) SettleTaker(collateralSide common.BalanceSide, consumedRaw, refundRaw, receivedRaw uint64) error {
	total, err := lotmath.CheckedAdd(consumedRaw, refundRaw)
	if err != nil {
		return err
	}
	if b.reserved(collateralSide) < total {
		return common.ErrInsufficientBalance
	}
	b.setReserved(collateralSide, b.reserved(collateralSide)-total)
	if refundRaw > 0 {
		b.setAvailable(collateralSide, b.available(collateralSide)+refundRaw)
	}
	receivedSide := opposite(collateralSide)
	sum, err := lotmath.CheckedAdd(b.available(receivedSide), receivedRaw)
	if err != nil {
		return err
	}
	b.setAvailable(receivedSide, sum)
	return nil
}

// SettleMaker applies the deferred half of a fill to a maker: debits
// consumedRaw from the maker's reserved collateralSide and credits
// receivedRaw to the opposite side's available. Spec §4.6: this must never
// fail on a correctly produced FillEvent; if it would, the engine has a bug.
func (b *Balance) SettleMaker(collateralSide common.BalanceSide, consumedRaw, receivedRaw uint64) error {
	if b.reserved(collateralSide) < consumedRaw {
		return common.ErrInsufficientBalance
	}
	b.setReserved(collateralSide, b.reserved(collateralSide)-consumedRaw)
	receivedSide := opposite(collateralSide)
	sum, err := lotmath.CheckedAdd(b.available(receivedSide), receivedRaw)
	if err != nil {
		return err
	}
	b.setAvailable(receivedSide, sum)
	return nil
}

func opposite(s common.BalanceSide) common.BalanceSide {
	if s == common.Base {
		return common.Quote
	}
	return common.Base
}

// Total returns available+reserved on the given side, used by invariant
// checks (spec §8 invariant 2).
func (b *Balance) Total(side common.BalanceSide) uint64 {
	return b.available(side) + b.reserved(side)
}

// Ledger is the per-market registry of per-user balances.
type Ledger struct {
	byOwner map[string]*Balance
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{byOwner: make(map[string]*Balance)}
}

// Get returns the balance for owner, creating a zeroed one on first access.
func (l *Ledger) Get(owner string) *Balance {
	b, ok := l.byOwner[owner]
	if !ok {
		b = &Balance{}
		l.byOwner[owner] = b
	}
	return b
}

// Owners returns every owner with a non-nil balance, for invariant sweeps.
func (l *Ledger) Owners() []string {
	out := make([]string, 0, len(l.byOwner))
	for owner := range l.byOwner {
		out = append(out, owner)
	}
	return out
}
