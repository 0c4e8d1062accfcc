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

// SwapRequest describes one delegated swap: the source and destination
// assets, any assets the route touches that the vault does not track yet,
// the declared account list the calls index into, and the opaque call chain.
// The engine never interprets the call data; it only relays it under the
// vault's signing authority.
type SwapRequest struct {
	Source      model.AssetRef
	Destination model.AssetRef
	Discovered  []model.Address
	Accounts    []model.Address
	Setup       []ledger.Call
	Swap        ledger.Call
	Cleanup     []ledger.Call
}

// SwapResult reports the realized amounts, measured by balance difference
// rather than taken from anything the aggregator claims.
type SwapResult struct {
	Sold     uint64
	Received uint64
}

// Swap executes a delegated swap under owner + unlock proofs: register
// discovered assets, run the setup calls, snapshot the source and
// destination balances, run the swap and cleanup calls, then reconcile the
// vault's bookkeeping from the observed balance deltas. Any failing call
// aborts the whole operation with no partial state change.
func (e *Engine) Swap(ownerProof, unlockProof authz.Proof, req SwapRequest) (SwapResult, error) {
	owner := ownerProof.Signer
	var result SwapResult
	details := fmt.Sprintf("source=%s destination=%s", req.Source, req.Destination)
	err := e.run(owner, OpSwap, details, func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		v, err := loadVault(tx, owner)
		if err != nil {
			return err
		}
		bindParts := [][]byte{assetBytes(req.Source), assetBytes(req.Destination)}
		if err := requireOwner(ownerProof, v.Owner, OpSwap, bindParts...); err != nil {
			return err
		}
		if err := requireUnlock(unlockProof, v.UnlockKey, OpSwap, bindParts...); err != nil {
			return err
		}

		// Register discovered assets not yet tracked. Idempotent: already
		// tracked assets and the wrapped-native sentinel are skipped.
		for _, asset := range req.Discovered {
			if asset == WrappedNativeAsset || v.SubVaultFor(asset) != nil {
				continue
			}
			if err := attachSubVault(tx, reg, v, asset, now); err != nil {
				return err
			}
		}

		led := ledger.New(tx)
		auth := vaultAuthority(v)

		for i, call := range req.Setup {
			if err := e.programs.Invoke(led, call, req.Accounts, auth); err != nil {
				return fmt.Errorf("setup call %d: %w", i, mapLedgerErr(err))
			}
		}

		preSrc, err := e.swapBalance(led, v, req.Source)
		if err != nil {
			return err
		}
		preDst, err := e.swapBalance(led, v, req.Destination)
		if err != nil {
			return err
		}

		if err := e.programs.Invoke(led, req.Swap, req.Accounts, auth); err != nil {
			return fmt.Errorf("swap call: %w", mapLedgerErr(err))
		}
		for i, call := range req.Cleanup {
			if err := e.programs.Invoke(led, call, req.Accounts, auth); err != nil {
				return fmt.Errorf("cleanup call %d: %w", i, mapLedgerErr(err))
			}
		}

		postSrc, err := e.swapBalance(led, v, req.Source)
		if err != nil {
			return err
		}
		postDst, err := e.swapBalance(led, v, req.Destination)
		if err != nil {
			return err
		}

		result.Sold = fee.SaturatingSub(preSrc, postSrc)
		result.Received = fee.SaturatingSub(postDst, preDst)

		if err := e.reconcile(tx, v, req.Source, result.Sold, false, now); err != nil {
			return err
		}
		if err := e.reconcile(tx, v, req.Destination, result.Received, true, now); err != nil {
			return err
		}

		// The held vault balance must still back the tracked balance plus
		// the reserve. A route that moved native funds outside a declared
		// native leg would leave the bookkeeping claiming funds that are
		// gone; abort instead of committing that state.
		held, err := led.Balance(v.Address)
		if err != nil {
			return err
		}
		backed, err := fee.Add(v.NativeBalance, ledger.MinReserve)
		if err != nil {
			return mapLedgerErr(err)
		}
		if held < backed {
			return fmt.Errorf("%w: vault holds %d, needs %d to back tracked balance and reserve", ErrInsufficientFunds, held, backed)
		}

		v.LastAccessed = now
		return tx.SaveVault(v)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return result, nil
}

// vaultAuthority mints the signing authority for one operation: the vault
// account plus every sub-vault holding it controls. The vault account keeps
// its reserve floor even under program-directed debits.
func vaultAuthority(v *model.Vault) *ledger.SigningAuthority {
	addrs := make([]model.Address, 0, len(v.SubVaults)+1)
	addrs = append(addrs, v.Address)
	for _, ref := range v.SubVaults {
		addrs = append(addrs, ref.SubVault)
	}
	return ledger.Authority(addrs...).Protect(v.Address, ledger.MinReserve)
}

// swapBalance reads the balance a swap leg settles against: the vault's
// native account or the asset's sub-vault holding.
func (e *Engine) swapBalance(led *ledger.Ledger, v *model.Vault, ref model.AssetRef) (uint64, error) {
	if ref.IsNative() {
		return led.Balance(v.Address)
	}
	idx := v.SubVaultFor(ref.Asset)
	if idx == nil {
		return 0, fmt.Errorf("%w: no sub-vault for %s", ErrNotInitialized, ref.Asset.Short())
	}
	return led.TokenBalance(idx.SubVault, ref.Asset)
}

// reconcile applies a realized delta to the vault's bookkeeping, saturating
// rather than underflowing, and stamps the touched sub-vault.
func (e *Engine) reconcile(tx db.Store, v *model.Vault, ref model.AssetRef, delta uint64, incoming bool, now int64) error {
	if delta == 0 {
		return nil
	}
	if ref.IsNative() {
		if incoming {
			v.NativeBalance = fee.SaturatingAdd(v.NativeBalance, delta)
		} else {
			v.NativeBalance = fee.SaturatingSub(v.NativeBalance, delta)
		}
		return nil
	}
	idx := v.SubVaultFor(ref.Asset)
	if idx == nil {
		return fmt.Errorf("%w: no sub-vault for %s", ErrNotInitialized, ref.Asset.Short())
	}
	if incoming {
		idx.TokenCount = fee.SaturatingAdd(idx.TokenCount, delta)
	} else {
		idx.TokenCount = fee.SaturatingSub(idx.TokenCount, delta)
	}
	sv, err := tx.GetSubVault(idx.SubVault)
	if err != nil {
		return err
	}
	if incoming {
		sv.LastDeposit = now
	} else {
		sv.LastWithdrawal = now
	}
	sv.LastAccessed = now
	return tx.SaveSubVault(sv)
}
