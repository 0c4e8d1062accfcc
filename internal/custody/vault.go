// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"errors"
	"fmt"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/derive"
	"github.com/toeirei/testudo/internal/fee"
	"github.com/toeirei/testudo/internal/ledger"
	"github.com/toeirei/testudo/internal/model"
)

// CreateVault creates the vault for the proof's signer. The vault address is
// derived from the owner alone, which is what structurally enforces one vault
// per owner. The owner funds the vault's minimum reserve at creation.
func (e *Engine) CreateVault(ownerProof authz.Proof, unlockKey model.Address, backup *model.Address) error {
	if unlockKey.IsZero() {
		return fmt.Errorf("%w: zero unlock key", ErrInvalidExternalAccount)
	}
	owner := ownerProof.Signer

	parts := [][]byte{unlockKey.Bytes()}
	if backup != nil {
		parts = append(parts, backup.Bytes())
	}
	return e.run(owner, OpCreateVault, "owner="+owner.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireOwner(ownerProof, owner, OpCreateVault, parts...); err != nil {
			return err
		}
		if reg.MaxVaultsPerOwner < 1 {
			return fmt.Errorf("%w: vaults per owner limited to %d", ErrLimitReached, reg.MaxVaultsPerOwner)
		}
		if _, err := tx.GetVaultByOwner(owner); err == nil {
			return fmt.Errorf("%w: vault for %s", ErrAlreadyInitialized, owner.Short())
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		addr, _, err := derive.VaultAddress(owner)
		if err != nil {
			return err
		}

		// Fund the reserve from the owner's ledger account.
		led := ledger.New(tx)
		if err := led.Transfer(owner, addr, ledger.MinReserve, ledger.Authority(owner)); err != nil {
			return mapLedgerErr(err)
		}

		v := &model.Vault{
			Address:      addr,
			Owner:        owner,
			UnlockKey:    unlockKey,
			Backup:       backup,
			CreatedAt:    now,
			LastAccessed: now,
		}
		return tx.SaveVault(v)
	})
}

// CloseVault closes an empty vault: any remaining native balance is paid out
// to the owner with the registry fee routed to the treasury first, then the
// reserve is refunded and the vault record removed.
func (e *Engine) CloseVault(ownerProof, unlockProof authz.Proof) error {
	owner := ownerProof.Signer
	return e.run(owner, OpCloseVault, "owner="+owner.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		if err := requireOwner(ownerProof, v.Owner, OpCloseVault); err != nil {
			return err
		}
		if err := requireUnlock(unlockProof, v.UnlockKey, OpCloseVault); err != nil {
			return err
		}
		if len(v.SubVaults) != 0 {
			return fmt.Errorf("%w: %d sub-vaults attached", ErrVaultNotEmpty, len(v.SubVaults))
		}

		led := ledger.New(tx)
		auth := ledger.Authority(v.Address)

		// Closure fee on the tracked balance, then everything held including
		// the reserve goes back to the owner.
		if v.NativeBalance > 0 {
			feeAmt, _, err := fee.Split(v.NativeBalance, reg.FeeBps)
			if err != nil {
				return mapLedgerErr(err)
			}
			if feeAmt > 0 {
				if err := led.Transfer(v.Address, reg.Treasury, feeAmt, auth); err != nil {
					return mapLedgerErr(err)
				}
			}
		}
		remaining, err := led.Balance(v.Address)
		if err != nil {
			return err
		}
		if remaining > 0 {
			if err := led.Transfer(v.Address, v.Owner, remaining, auth); err != nil {
				return mapLedgerErr(err)
			}
		}
		return tx.DeleteVault(v.Address)
	})
}

// UpdateBackup sets or replaces the vault's backup identity. Requires both
// the owner and unlock proofs; a compromised primary key alone cannot point
// recovery at an attacker identity.
func (e *Engine) UpdateBackup(ownerProof, unlockProof authz.Proof, newBackup model.Address) error {
	if newBackup.IsZero() {
		return fmt.Errorf("%w: zero backup identity", ErrInvalidExternalAccount)
	}
	owner := ownerProof.Signer
	return e.run(owner, OpUpdateBackup, "backup="+newBackup.Short(), func(tx db.Store, now int64) error {
		if _, err := loadRegistry(tx); err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		if err := requireOwner(ownerProof, v.Owner, OpUpdateBackup, newBackup.Bytes()); err != nil {
			return err
		}
		if err := requireUnlock(unlockProof, v.UnlockKey, OpUpdateBackup, newBackup.Bytes()); err != nil {
			return err
		}
		v.Backup = &newBackup
		v.LastAccessed = now
		return tx.SaveVault(v)
	})
}
