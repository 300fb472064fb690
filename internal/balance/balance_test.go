package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/common"
)

func TestDepositWithdraw(t *testing.T) {
	b := &Balance{}
	require.NoError(t, b.Deposit(common.Base, 100))
	assert.Equal(t, uint64(100), b.BaseAvailable)

	require.NoError(t, b.Withdraw(common.Base, 40))
	assert.Equal(t, uint64(60), b.BaseAvailable)

	assert.ErrorIs(t, b.Withdraw(common.Base, 1000), common.ErrInsufficientBalance)
}

func TestReserveRelease(t *testing.T) {
	b := &Balance{}
	require.NoError(t, b.Deposit(common.Quote, 100))

	require.NoError(t, b.Reserve(common.Quote, 30))
	assert.Equal(t, uint64(70), b.QuoteAvailable)
	assert.Equal(t, uint64(30), b.QuoteReserved)

	assert.ErrorIs(t, b.Reserve(common.Quote, 1000), common.ErrInsufficientBalance)

	require.NoError(t, b.Release(common.Quote, 10))
	assert.Equal(t, uint64(80), b.QuoteAvailable)
	assert.Equal(t, uint64(20), b.QuoteReserved)

	assert.ErrorIs(t, b.Release(common.Quote, 1000), common.ErrInsufficientBalance)
}

func TestSettleTakerBidRefundsPriceImprovement(t *testing.T) {
	b := &Balance{}
	require.NoError(t, b.Deposit(common.Quote, 1000))
	require.NoError(t, b.Reserve(common.Quote, 1000))

	// Taker reserved worst-case 1000, but the fill only actually cost 800;
	// 200 should come back to available, and 10 base units are credited.
	require.NoError(t, b.SettleTaker(common.Quote, 800, 200, 10))
	assert.Equal(t, uint64(200), b.QuoteAvailable)
	assert.Equal(t, uint64(0), b.QuoteReserved)
	assert.Equal(t, uint64(10), b.BaseAvailable)
}

func TestSettleTakerAskNoRefund(t *testing.T) {
	b := &Balance{}
	require.NoError(t, b.Deposit(common.Base, 100))
	require.NoError(t, b.Reserve(common.Base, 100))

	require.NoError(t, b.SettleTaker(common.Base, 100, 0, 500))
	assert.Equal(t, uint64(0), b.BaseReserved)
	assert.Equal(t, uint64(500), b.QuoteAvailable)
}

func TestSettleMaker(t *testing.T) {
	b := &Balance{}
	require.NoError(t, b.Deposit(common.Base, 50))
	require.NoError(t, b.Reserve(common.Base, 50))

	require.NoError(t, b.SettleMaker(common.Base, 50, 250))
	assert.Equal(t, uint64(0), b.BaseReserved)
	assert.Equal(t, uint64(250), b.QuoteAvailable)
}

func TestTotal(t *testing.T) {
	b := &Balance{}
	require.NoError(t, b.Deposit(common.Base, 100))
	require.NoError(t, b.Reserve(common.Base, 40))
	assert.Equal(t, uint64(100), b.Total(common.Base))
}

func TestLedgerGetCreatesZeroed(t *testing.T) {
	l := NewLedger()
	bal := l.Get("alice")
	assert.Equal(t, uint64(0), bal.BaseAvailable)

	require.NoError(t, bal.Deposit(common.Base, 5))
	assert.Equal(t, uint64(5), l.Get("alice").BaseAvailable)
	assert.ElementsMatch(t, []string{"alice"}, l.Owners())
}
