// Package lotmath converts between lots/ticks and raw token units with
// checked arithmetic. All quantities internal to the matching engine are
// lots (base) or ticks (price); conversion to raw vault units only happens
// here, at the boundary.
package lotmath

import (
	"math"
	"math/bits"

	"clob/internal/common"
)

// Params are the per-market lot/tick parameters (spec §3 Market fields).
type Params struct {
	BaseLotSize   uint64 // positive: raw base units per lot
	QuoteTickSize uint64 // positive: raw quote units per tick
}

// Validate checks the lot/tick parameters are usable.
func (p Params) Validate() error {
	if p.BaseLotSize == 0 || p.QuoteTickSize == 0 {
		return common.ErrInvalidParameter
	}
	return nil
}

// BaseRaw converts a base quantity in lots to raw base units.
// base_raw(qty_lots) = qty_lots * base_lot_size.
func (p Params) BaseRaw(qtyLots uint64) (uint64, error) {
	return checkedMul(qtyLots, p.BaseLotSize)
}

// QuoteCost converts a (price, quantity) pair in ticks/lots to the raw quote
// units a fill at that price and quantity costs:
//
//	quote_cost(price_ticks, qty_lots) = price_ticks * qty_lots * quote_tick_size
//
// base_lot_size does not appear in the raw-quote-unit formula: ticks are
// already denominated per lot of base, so price_ticks * qty_lots gives the
// number of (tick * lot) units directly, and quote_tick_size converts a tick
// into raw quote units. Every multiplication is checked; any 64-bit overflow
// fails with ErrMathOverflow rather than silently wrapping.
func (p Params) QuoteCost(priceTicks, qtyLots uint64) (uint64, error) {
	units, err := checkedMul(priceTicks, qtyLots)
	if err != nil {
		return 0, err
	}
	return checkedMul(units, p.QuoteTickSize)
}

// checkedMul returns a*b, failing with ErrMathOverflow instead of wrapping.
func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, common.ErrMathOverflow
	}
	return lo, nil
}

// CheckedAdd returns a+b, failing with ErrMathOverflow on overflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, common.ErrMathOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, failing with ErrMathOverflow if b > a (these are
// unsigned 64-bit quantities; there is no such thing as a negative balance).
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, common.ErrMathOverflow
	}
	return a - b, nil
}

// MaxUint64 is exported for tests constructing overflow scenarios.
const MaxUint64 = math.MaxUint64
