package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/balance"
	"clob/internal/book"
	"clob/internal/common"
	"clob/internal/events"
	"clob/internal/lotmath"
	"clob/internal/sink"
)

func newTestEngine(t *testing.T) (*Engine, *sink.Recorder) {
	t.Helper()
	lot := lotmath.Params{BaseLotSize: 1, QuoteTickSize: 1}
	rec := sink.NewRecorder()
	e := New(lot, book.NewSide(common.Bid, 0), book.NewSide(common.Ask, 0), events.NewQueue(0), balance.NewLedger(), rec)
	return e, rec
}

func fund(e *Engine, owner string, side common.BalanceSide, amount uint64) {
	_ = e.Ledger.Get(owner).Deposit(side, amount)
}

func TestBasicMatch(t *testing.T) {
	e, rec := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)

	result, err := e.PlaceLimitOrder(2, "taker", common.Bid, 10, 5, common.GTC, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), result.FilledQuantity)
	assert.Equal(t, uint64(0), result.RestingQuantity)
	assert.False(t, result.RestedOnTheBook)

	assert.Equal(t, uint64(5), e.Ledger.Get("taker").BaseAvailable)
	require.Len(t, rec.Filled, 1)
	assert.Equal(t, uint64(10), rec.Filled[0].Price)
}

func TestPartialFillThenRest(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 3, common.GTC, 1)
	require.NoError(t, err)

	result, err := e.PlaceLimitOrder(2, "taker", common.Bid, 10, 8, common.GTC, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.FilledQuantity)
	assert.Equal(t, uint64(5), result.RestingQuantity)
	assert.True(t, result.RestedOnTheBook)

	best, ok := e.Bids.PeekBest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), best.Quantity)
}

func TestPriceTimePriorityAcrossMakers(t *testing.T) {
	e, rec := newTestEngine(t)
	fund(e, "early", common.Base, 100)
	fund(e, "late", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "early", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(2, "late", common.Ask, 10, 5, common.GTC, 2)
	require.NoError(t, err)

	_, err = e.PlaceLimitOrder(3, "taker", common.Bid, 10, 5, common.GTC, 3)
	require.NoError(t, err)

	require.Len(t, rec.Filled, 1)
	assert.Equal(t, "early", rec.Filled[0].MakerOwner)
}

func TestPriceImprovementRefund(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 8, 5, common.GTC, 1)
	require.NoError(t, err)

	// Taker bids up to 10 but the maker only asks 8: taker should be charged
	// at 8, not 10, and the difference refunded rather than reserved forever.
	_, err = e.PlaceLimitOrder(2, "taker", common.Bid, 10, 5, common.GTC, 2)
	require.NoError(t, err)

	takerBal := e.Ledger.Get("taker")
	assert.Equal(t, uint64(1000-8*5), takerBal.QuoteAvailable)
	assert.Equal(t, uint64(0), takerBal.QuoteReserved)
}

func TestIOCUnfilledRemainderReleased(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "taker", common.Quote, 1000)

	result, err := e.PlaceLimitOrder(1, "taker", common.Bid, 10, 5, common.IOC, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.FilledQuantity)
	assert.Equal(t, uint64(0), result.RestingQuantity)

	takerBal := e.Ledger.Get("taker")
	assert.Equal(t, uint64(1000), takerBal.QuoteAvailable)
	assert.Equal(t, uint64(0), takerBal.QuoteReserved)

	_, ok := e.Bids.PeekBest()
	assert.False(t, ok)
}

func TestFillOrKillRejectsWhenInsufficientLiquidity(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 3, common.GTC, 1)
	require.NoError(t, err)

	_, err = e.PlaceLimitOrder(2, "taker", common.Bid, 10, 10, common.FOK, 2)
	assert.ErrorIs(t, err, common.ErrFillOrKillNotFilled)

	takerBal := e.Ledger.Get("taker")
	assert.Equal(t, uint64(1000), takerBal.QuoteAvailable)
	assert.Equal(t, uint64(0), takerBal.QuoteReserved)
}

func TestFillOrKillFillsCompletelyWhenLiquiditySufficient(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 10, common.GTC, 1)
	require.NoError(t, err)

	result, err := e.PlaceLimitOrder(2, "taker", common.Bid, 10, 10, common.FOK, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), result.FilledQuantity)
	assert.Equal(t, uint64(0), result.RestingQuantity)
}

func TestInsufficientBalanceRejectsPlacement(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.PlaceLimitOrder(1, "pauper", common.Bid, 10, 5, common.GTC, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
}

func TestCancelOrderReleasesReservation(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), e.Ledger.Get("maker").BaseReserved)

	require.NoError(t, e.CancelOrder(1, common.Ask, "maker"))
	assert.Equal(t, uint64(0), e.Ledger.Get("maker").BaseReserved)
	assert.Equal(t, uint64(100), e.Ledger.Get("maker").BaseAvailable)

	_, ok := e.Asks.PeekBest()
	assert.False(t, ok)
}

func TestCancelOrderUnauthorized(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, e.CancelOrder(1, common.Ask, "impostor"), common.ErrUnauthorized)
}

func TestConsumeEventsSettlesMakerInOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(2, "taker", common.Bid, 10, 5, common.GTC, 2)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), e.Ledger.Get("maker").BaseReserved)

	consumed, err := e.ConsumeEvents(1, []string{"maker"})
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)

	makerBal := e.Ledger.Get("maker")
	assert.Equal(t, uint64(0), makerBal.BaseReserved)
	assert.Equal(t, uint64(50), makerBal.QuoteAvailable)
	assert.Equal(t, 0, e.Queue.Len())
}

func TestConsumeEventsRejectsOutOfOrderMaker(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(e, "maker", common.Base, 100)
	fund(e, "taker", common.Quote, 1000)

	_, err := e.PlaceLimitOrder(1, "maker", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(2, "taker", common.Bid, 10, 5, common.GTC, 2)
	require.NoError(t, err)

	consumed, err := e.ConsumeEvents(1, []string{"someone-else"})
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, 1, e.Queue.Len())
}
