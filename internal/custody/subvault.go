// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"fmt"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/derive"
	"github.com/toeirei/testudo/internal/fee"
	"github.com/toeirei/testudo/internal/ledger"
	"github.com/toeirei/testudo/internal/model"
)

// attachSubVault creates the sub-vault record and holding account for a
// whitelisted asset and appends it to the vault's index. Shared by the
// explicit creation operation and swap discovery.
func attachSubVault(tx db.Store, reg *model.Registry, v *model.Vault, asset model.Address, now int64) error {
	if !reg.IsWhitelisted(asset) {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Short())
	}
	if v.SubVaultFor(asset) != nil {
		return fmt.Errorf("%w: sub-vault for %s", ErrDuplicateEntry, asset.Short())
	}
	if len(v.SubVaults) >= int(reg.MaxSubVaultsPerVault) {
		return fmt.Errorf("%w: %d sub-vaults per vault", ErrLimitReached, reg.MaxSubVaultsPerVault)
	}

	addr, _, err := derive.SubVaultAddress(v.Address, asset)
	if err != nil {
		return err
	}
	led := ledger.New(tx)
	if err := led.EnsureTokenAccount(addr, asset); err != nil {
		return err
	}
	sv := &model.SubVault{
		Address:      addr,
		Vault:        v.Address,
		Owner:        v.Owner,
		Asset:        asset,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := tx.SaveSubVault(sv); err != nil {
		return err
	}
	v.SubVaults = append(v.SubVaults, model.SubVaultRef{Asset: asset, SubVault: addr})
	v.LastAccessed = now
	return nil
}

// detachSubVault closes the holding account, removes the sub-vault record,
// and drops the index entry. The holding account must already be empty.
func detachSubVault(tx db.Store, v *model.Vault, sv *model.SubVault, now int64) error {
	led := ledger.New(tx)
	if err := led.CloseTokenAccount(sv.Address, sv.Asset, ledger.Authority(sv.Address)); err != nil {
		return mapLedgerErr(err)
	}
	if err := tx.DeleteSubVault(sv.Address); err != nil {
		return err
	}
	kept := v.SubVaults[:0]
	for _, ref := range v.SubVaults {
		if ref.Asset != sv.Asset {
			kept = append(kept, ref)
		}
	}
	v.SubVaults = kept
	v.LastAccessed = now
	return nil
}

// CreateSubVault attaches a sub-vault for a whitelisted asset to the owner's
// vault. Requires the owner proof.
func (e *Engine) CreateSubVault(ownerProof authz.Proof, asset model.Address) error {
	owner := ownerProof.Signer
	return e.run(owner, OpCreateSubVault, "asset="+asset.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		if err := requireOwner(ownerProof, v.Owner, OpCreateSubVault, asset.Bytes()); err != nil {
			return err
		}
		if err := attachSubVault(tx, reg, v, asset, now); err != nil {
			return err
		}
		return tx.SaveVault(v)
	})
}

// CloseSubVault drains any residual balance to the owner through the fee
// engine, closes the holding account, and removes the sub-vault from the
// index. Requires the owner proof.
func (e *Engine) CloseSubVault(ownerProof authz.Proof, asset model.Address) error {
	return e.closeSubVault(ownerProof, nil, asset, OpCloseSubVault, true)
}

// DeleteSubVault force-closes a sub-vault: the residual balance is drained
// to the owner without a fee. Because it moves funds fee-free it requires
// the unlock proof on top of the owner proof.
func (e *Engine) DeleteSubVault(ownerProof, unlockProof authz.Proof, asset model.Address) error {
	return e.closeSubVault(ownerProof, &unlockProof, asset, OpDeleteSubVault, false)
}

func (e *Engine) closeSubVault(ownerProof authz.Proof, unlockProof *authz.Proof, asset model.Address, op string, withFee bool) error {
	owner := ownerProof.Signer
	return e.run(owner, op, "asset="+asset.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		if err := requireOwner(ownerProof, v.Owner, op, asset.Bytes()); err != nil {
			return err
		}
		if unlockProof != nil {
			if err := requireUnlock(*unlockProof, v.UnlockKey, op, asset.Bytes()); err != nil {
				return err
			}
		}
		idx := v.SubVaultFor(asset)
		if idx == nil {
			return fmt.Errorf("%w: no sub-vault for %s", ErrNotInitialized, asset.Short())
		}
		sv, err := tx.GetSubVault(idx.SubVault)
		if err != nil {
			return err
		}

		led := ledger.New(tx)
		held, err := led.TokenBalance(sv.Address, asset)
		if err != nil {
			return err
		}
		if held > 0 {
			subAuth := ledger.Authority(sv.Address)
			payout := held
			if withFee {
				feeAmt, net, err := fee.Split(held, reg.FeeBps)
				if err != nil {
					return mapLedgerErr(err)
				}
				if feeAmt > 0 {
					if err := led.EnsureTokenAccount(reg.Treasury, asset); err != nil {
						return err
					}
					if err := led.TokenTransfer(sv.Address, reg.Treasury, asset, feeAmt, subAuth); err != nil {
						return mapLedgerErr(err)
					}
				}
				payout = net
			}
			if err := led.EnsureTokenAccount(v.Owner, asset); err != nil {
				return err
			}
			if err := led.TokenTransfer(sv.Address, v.Owner, asset, payout, subAuth); err != nil {
				return mapLedgerErr(err)
			}
		}
		// The drain above must have emptied the account.
		remaining, err := led.TokenBalance(sv.Address, asset)
		if err != nil {
			return err
		}
		if remaining != 0 {
			return fmt.Errorf("%w: %d left after drain", ErrSubVaultNotEmpty, remaining)
		}

		if err := detachSubVault(tx, v, sv, now); err != nil {
			return err
		}
		return tx.SaveVault(v)
	})
}
