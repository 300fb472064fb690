package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemVaultTransferInOut(t *testing.T) {
	v := NewMemVault()
	require.NoError(t, v.TransferIn("alice:base", 100))
	assert.Equal(t, uint64(100), v.Balance("alice:base"))

	require.NoError(t, v.TransferOut("alice:base", 40))
	assert.Equal(t, uint64(60), v.Balance("alice:base"))
}

func TestMemVaultTransferOutInsufficientFunds(t *testing.T) {
	v := NewMemVault()
	require.NoError(t, v.TransferIn("alice:base", 10))
	assert.ErrorIs(t, v.TransferOut("alice:base", 20), ErrVaultInsufficientFunds)
}
