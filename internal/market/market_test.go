package market

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/common"
	"clob/internal/sink"
	"clob/internal/vault"
)

func newTestMarket(t *testing.T) (*Market, *vault.MemVault, *sink.Recorder) {
	t.Helper()
	m := New()
	v := vault.NewMemVault()
	rec := sink.NewRecorder()
	cfg := Config{BaseMint: uuid.New(), QuoteMint: uuid.New(), BaseLotSize: 1, QuoteTickSize: 1}
	require.NoError(t, m.Initialize(cfg, v, rec))
	return m, v, rec
}

func TestInitializeTwiceFails(t *testing.T) {
	m, v, rec := newTestMarket(t)
	cfg := Config{BaseMint: uuid.New(), QuoteMint: uuid.New(), BaseLotSize: 1, QuoteTickSize: 1}
	assert.ErrorIs(t, m.Initialize(cfg, v, rec), common.ErrInvalidParameter)
}

func TestOperationsRequireInitialize(t *testing.T) {
	m := New()
	_, err := m.PlaceLimitOrder("alice", common.Bid, 10, 1, common.GTC, 0)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)
}

func TestDepositCreditsVaultAndLedger(t *testing.T) {
	m, v, _ := newTestMarket(t)
	require.NoError(t, m.Deposit("alice", common.Quote, 500))

	assert.Equal(t, uint64(500), m.Balance("alice").QuoteAvailable)
	assert.Equal(t, uint64(500), v.Balance(tokenAccount("alice", common.Quote)))
}

func TestWithdrawDebitsVaultAndLedger(t *testing.T) {
	m, v, _ := newTestMarket(t)
	require.NoError(t, m.Deposit("alice", common.Quote, 500))
	require.NoError(t, m.Withdraw("alice", common.Quote, 200))

	assert.Equal(t, uint64(300), m.Balance("alice").QuoteAvailable)
	assert.Equal(t, uint64(300), v.Balance(tokenAccount("alice", common.Quote)))
}

func TestWithdrawInsufficientLedgerBalance(t *testing.T) {
	m, _, _ := newTestMarket(t)
	err := m.Withdraw("alice", common.Quote, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
}

func TestPlaceLimitOrderAssignsMonotoneIDsOnlyOnSuccess(t *testing.T) {
	m, _, _ := newTestMarket(t)
	require.NoError(t, m.Deposit("alice", common.Base, 100))

	assert.Equal(t, uint64(1), m.NextOrderID())

	_, err := m.PlaceLimitOrder("pauper", common.Bid, 10, 1, common.GTC, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
	assert.Equal(t, uint64(1), m.NextOrderID(), "a failed placement must not consume an order id")

	result, err := m.PlaceLimitOrder("alice", common.Ask, 10, 1, common.GTC, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.OrderID)
	assert.Equal(t, uint64(2), m.NextOrderID())
}

func TestPlaceAndConsumeEventsEndToEnd(t *testing.T) {
	m, _, rec := newTestMarket(t)
	require.NoError(t, m.Deposit("maker", common.Base, 100))
	require.NoError(t, m.Deposit("taker", common.Quote, 1000))

	_, err := m.PlaceLimitOrder("maker", common.Ask, 10, 5, common.GTC, 1)
	require.NoError(t, err)
	_, err = m.PlaceLimitOrder("taker", common.Bid, 10, 5, common.GTC, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, m.EventQueueLen())
	consumed, err := m.ConsumeEvents(1, []string{"maker"})
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 0, m.EventQueueLen())

	require.Len(t, rec.Filled, 1)
	require.Len(t, rec.Placed, 2)
	require.Len(t, rec.Initializations, 1)
}

func TestRegistryAddGetList(t *testing.T) {
	reg := NewRegistry()
	idA := MarketID{Base: uuid.New(), Quote: uuid.New()}
	idB := MarketID{Base: uuid.New(), Quote: uuid.New()}

	mA := New()
	mB := New()
	require.NoError(t, reg.Add(idA, mA))
	require.NoError(t, reg.Add(idB, mB))

	assert.ErrorIs(t, reg.Add(idA, mA), common.ErrInvalidParameter)

	got, ok := reg.Get(idA)
	require.True(t, ok)
	assert.Same(t, mA, got)

	_, ok = reg.Get(MarketID{Base: uuid.New(), Quote: uuid.New()})
	assert.False(t, ok)

	ids := reg.List()
	assert.Len(t, ids, 2)
}
