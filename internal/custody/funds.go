// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"fmt"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/fee"
	"github.com/toeirei/testudo/internal/ledger"
	"github.com/toeirei/testudo/internal/model"
)

// Deposit moves funds from the owner's external account into the vault. The
// registry fee is withheld and routed to the treasury before the net amount
// is credited. Deposits require the owner proof only; adding funds cannot
// remove them, so the unlock key is not involved.
func (e *Engine) Deposit(ownerProof authz.Proof, ref model.AssetRef, amount uint64) error {
	owner := ownerProof.Signer
	details := fmt.Sprintf("asset=%s amount=%d", ref, amount)
	return e.run(owner, OpDeposit, details, func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		if err := requireOwner(ownerProof, v.Owner, OpDeposit, assetBytes(ref), u64bytes(amount)); err != nil {
			return err
		}

		led := ledger.New(tx)
		auth := ledger.Authority(owner)

		feeAmt, net, err := fee.Split(amount, reg.FeeBps)
		if err != nil {
			return mapLedgerErr(err)
		}

		if ref.IsNative() {
			if feeAmt > 0 {
				if err := led.Transfer(owner, reg.Treasury, feeAmt, auth); err != nil {
					return mapLedgerErr(err)
				}
			}
			if err := led.Transfer(owner, v.Address, net, auth); err != nil {
				return mapLedgerErr(err)
			}
			v.NativeBalance, err = fee.Add(v.NativeBalance, net)
			if err != nil {
				return mapLedgerErr(err)
			}
			v.LastAccessed = now
			return tx.SaveVault(v)
		}

		if !reg.IsWhitelisted(ref.Asset) {
			return fmt.Errorf("%w: %s", ErrUnsupportedAsset, ref.Asset.Short())
		}
		idx := v.SubVaultFor(ref.Asset)
		if idx == nil {
			return fmt.Errorf("%w: no sub-vault for %s", ErrNotInitialized, ref.Asset.Short())
		}
		sv, err := tx.GetSubVault(idx.SubVault)
		if err != nil {
			return err
		}

		if feeAmt > 0 {
			if err := led.EnsureTokenAccount(reg.Treasury, ref.Asset); err != nil {
				return err
			}
			if err := led.TokenTransfer(owner, reg.Treasury, ref.Asset, feeAmt, auth); err != nil {
				return mapLedgerErr(err)
			}
		}
		if err := led.TokenTransfer(owner, sv.Address, ref.Asset, net, auth); err != nil {
			return mapLedgerErr(err)
		}

		idx.TokenCount, err = fee.Add(idx.TokenCount, net)
		if err != nil {
			return mapLedgerErr(err)
		}
		sv.DepositTVL = fee.SaturatingAdd(sv.DepositTVL, net)
		sv.LastDeposit = now
		sv.LastAccessed = now
		v.LastAccessed = now
		if err := tx.SaveSubVault(sv); err != nil {
			return err
		}
		return tx.SaveVault(v)
	})
}

// Withdraw moves funds from the vault back to the owner. Requires owner and
// unlock proofs. For the native currency the withdrawable ceiling is the
// held balance minus the reserve, and the tracked bookkeeping must cover the
// amount as well; both checks must pass. With all set the amount parameter
// is ignored and the ceiling is computed directly rather than trusted from
// bookkeeping. The fee applies exactly as on deposit.
func (e *Engine) Withdraw(ownerProof, unlockProof authz.Proof, ref model.AssetRef, amount uint64, all bool) error {
	owner := ownerProof.Signer
	allByte := []byte{0}
	if all {
		allByte = []byte{1}
	}
	details := fmt.Sprintf("asset=%s amount=%d all=%v", ref, amount, all)
	return e.run(owner, OpWithdraw, details, func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		bindParts := [][]byte{assetBytes(ref), u64bytes(amount), allByte}
		if err := requireOwner(ownerProof, v.Owner, OpWithdraw, bindParts...); err != nil {
			return err
		}
		if err := requireUnlock(unlockProof, v.UnlockKey, OpWithdraw, bindParts...); err != nil {
			return err
		}

		led := ledger.New(tx)
		auth := ledger.Authority(v.Address)

		if ref.IsNative() {
			held, err := led.Balance(v.Address)
			if err != nil {
				return err
			}
			ceiling := fee.SaturatingSub(held, ledger.MinReserve)
			if all {
				amount = ceiling
			}
			if amount > ceiling {
				return fmt.Errorf("%w: %d above withdrawable ceiling %d", ErrInsufficientFunds, amount, ceiling)
			}
			if amount > v.NativeBalance {
				return fmt.Errorf("%w: tracked balance %d below %d", ErrInsufficientFunds, v.NativeBalance, amount)
			}
			feeAmt, net, err := fee.Split(amount, reg.FeeBps)
			if err != nil {
				return mapLedgerErr(err)
			}
			if feeAmt > 0 {
				if err := led.TransferAboveReserve(v.Address, reg.Treasury, feeAmt, ledger.MinReserve, auth); err != nil {
					return mapLedgerErr(err)
				}
			}
			if err := led.TransferAboveReserve(v.Address, v.Owner, net, ledger.MinReserve, auth); err != nil {
				return mapLedgerErr(err)
			}
			v.NativeBalance, err = fee.Sub(v.NativeBalance, amount)
			if err != nil {
				return mapLedgerErr(err)
			}
			v.LastAccessed = now
			return tx.SaveVault(v)
		}

		idx := v.SubVaultFor(ref.Asset)
		if idx == nil {
			return fmt.Errorf("%w: no sub-vault for %s", ErrNotInitialized, ref.Asset.Short())
		}
		sv, err := tx.GetSubVault(idx.SubVault)
		if err != nil {
			return err
		}
		held, err := led.TokenBalance(sv.Address, ref.Asset)
		if err != nil {
			return err
		}
		if all {
			amount = held
		}
		if amount > held {
			return fmt.Errorf("%w: held %d below %d", ErrInsufficientFunds, held, amount)
		}
		feeAmt, net, err := fee.Split(amount, reg.FeeBps)
		if err != nil {
			return mapLedgerErr(err)
		}
		subAuth := ledger.Authority(sv.Address)
		if feeAmt > 0 {
			if err := led.EnsureTokenAccount(reg.Treasury, ref.Asset); err != nil {
				return err
			}
			if err := led.TokenTransfer(sv.Address, reg.Treasury, ref.Asset, feeAmt, subAuth); err != nil {
				return mapLedgerErr(err)
			}
		}
		if err := led.EnsureTokenAccount(v.Owner, ref.Asset); err != nil {
			return err
		}
		if err := led.TokenTransfer(sv.Address, v.Owner, ref.Asset, net, subAuth); err != nil {
			return mapLedgerErr(err)
		}

		idx.TokenCount = fee.SaturatingSub(idx.TokenCount, amount)
		sv.LastWithdrawal = now
		sv.LastAccessed = now
		v.LastAccessed = now
		if err := tx.SaveSubVault(sv); err != nil {
			return err
		}
		return tx.SaveVault(v)
	})
}

// WithdrawToBackup is the compromise-recovery path: the entire available
// balance of the vault (native) or of one asset's sub-vault is moved to the
// configured backup identity. Only the backup proof is required; the unlock
// key is deliberately bypassed because this path exists for when the owner's
// secrets are already lost. No fee is withheld.
func (e *Engine) WithdrawToBackup(owner model.Address, backupProof authz.Proof, ref model.AssetRef) error {
	details := fmt.Sprintf("owner=%s asset=%s", owner.Short(), ref)
	return e.run(backupProof.Signer, OpWithdrawToBackup, details, func(tx db.Store, now int64) error {
		if _, err := loadRegistry(tx); err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		if !v.HasBackup() {
			return fmt.Errorf("%w: vault %s", ErrNoBackupConfigured, v.Address.Short())
		}
		if backupProof.Signer != *v.Backup {
			return fmt.Errorf("%w: got %s, want %s", ErrBackupMismatch, backupProof.Signer.Short(), v.Backup.Short())
		}
		if err := backupProof.Verify(OpWithdrawToBackup, owner.Bytes(), assetBytes(ref)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
		}

		led := ledger.New(tx)

		if ref.IsNative() {
			held, err := led.Balance(v.Address)
			if err != nil {
				return err
			}
			available := fee.SaturatingSub(held, ledger.MinReserve)
			if available > 0 {
				if err := led.TransferAboveReserve(v.Address, *v.Backup, available, ledger.MinReserve, ledger.Authority(v.Address)); err != nil {
					return mapLedgerErr(err)
				}
			}
			v.NativeBalance = 0
			v.LastAccessed = now
			return tx.SaveVault(v)
		}

		idx := v.SubVaultFor(ref.Asset)
		if idx == nil {
			return fmt.Errorf("%w: no sub-vault for %s", ErrNotInitialized, ref.Asset.Short())
		}
		sv, err := tx.GetSubVault(idx.SubVault)
		if err != nil {
			return err
		}
		held, err := led.TokenBalance(sv.Address, ref.Asset)
		if err != nil {
			return err
		}
		if held > 0 {
			if err := led.EnsureTokenAccount(*v.Backup, ref.Asset); err != nil {
				return err
			}
			if err := led.TokenTransfer(sv.Address, *v.Backup, ref.Asset, held, ledger.Authority(sv.Address)); err != nil {
				return mapLedgerErr(err)
			}
		}
		idx.TokenCount = 0
		sv.LastWithdrawal = now
		sv.LastAccessed = now
		v.LastAccessed = now
		if err := tx.SaveSubVault(sv); err != nil {
			return err
		}
		return tx.SaveVault(v)
	})
}
