package lotmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/common"
)

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, Params{BaseLotSize: 1, QuoteTickSize: 1}.Validate())
	assert.ErrorIs(t, Params{BaseLotSize: 0, QuoteTickSize: 1}.Validate(), common.ErrInvalidParameter)
	assert.ErrorIs(t, Params{BaseLotSize: 1, QuoteTickSize: 0}.Validate(), common.ErrInvalidParameter)
}

func TestBaseRaw(t *testing.T) {
	p := Params{BaseLotSize: 100, QuoteTickSize: 1}
	raw, err := p.BaseRaw(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), raw)
}

func TestQuoteCost(t *testing.T) {
	p := Params{BaseLotSize: 100, QuoteTickSize: 10}
	cost, err := p.QuoteCost(3, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*5*10), cost)
}

func TestBaseRawOverflow(t *testing.T) {
	p := Params{BaseLotSize: MaxUint64, QuoteTickSize: 1}
	_, err := p.BaseRaw(2)
	assert.ErrorIs(t, err, common.ErrMathOverflow)
}

func TestQuoteCostOverflow(t *testing.T) {
	p := Params{BaseLotSize: 1, QuoteTickSize: MaxUint64}
	_, err := p.QuoteCost(2, 2)
	assert.ErrorIs(t, err, common.ErrMathOverflow)
}

func TestCheckedAdd(t *testing.T) {
	sum, err := CheckedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = CheckedAdd(MaxUint64, 1)
	assert.ErrorIs(t, err, common.ErrMathOverflow)
}

func TestCheckedSub(t *testing.T) {
	diff, err := CheckedSub(5, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), diff)

	_, err = CheckedSub(2, 5)
	assert.ErrorIs(t, err, common.ErrMathOverflow)
}
