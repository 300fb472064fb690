// Package vault defines the token-vault collaborator contract (spec §6): an
// opaque token-transfer interface standing in for the host's SPL-style
// vaults. This repo is not responsible for custody; TransferIn/TransferOut
// are assumed atomic with the surrounding transaction by the host, and the
// in-memory implementation here exists only so the demo binary and tests can
// run the six market operations end to end.
package vault

import (
	"errors"
	"sync"
)

// ErrVaultInsufficientFunds signals the in-memory vault stub could not cover
// a transfer out — this mirrors a real vault's own underflow check and is
// distinct from UserBalance's own accounting (the vault is the external
// source of truth the ledger is supposed to track exactly).
var ErrVaultInsufficientFunds = errors.New("vault: insufficient funds")

// Vault is the collaborator contract: two opaque entry points.
type Vault interface {
	TransferIn(userTokenAccount string, amount uint64) error
	TransferOut(userTokenAccount string, amount uint64) error
}

// MemVault is a minimal in-memory stand-in for the real token vault.
type MemVault struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewMemVault constructs an empty in-memory vault.
func NewMemVault() *MemVault {
	return &MemVault{balances: make(map[string]uint64)}
}

// TransferIn credits amount from the user's token account into the vault.
func (v *MemVault) TransferIn(userTokenAccount string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[userTokenAccount] += amount
	return nil
}

// TransferOut debits amount from the vault back to the user's token account.
func (v *MemVault) TransferOut(userTokenAccount string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balances[userTokenAccount] < amount {
		return ErrVaultInsufficientFunds
	}
	v.balances[userTokenAccount] -= amount
	return nil
}

// Balance reports the vault's current holding for a user token account,
// used by tests checking spec invariant 2 (sum of available+reserved equals
// the vault balance).
func (v *MemVault) Balance(userTokenAccount string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[userTokenAccount]
}
