// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package custody implements the operation surface of the hierarchical
// custody ledger: the administrative registry, per-owner vaults, per-asset
// sub-vaults, fee-bearing deposits and withdrawals, the backup recovery
// path, and delegated swaps. Every operation runs inside one store
// transaction; the first failing check aborts the whole operation with no
// partial write.
package custody

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/derive"
	"github.com/toeirei/testudo/internal/ledger"
	"github.com/toeirei/testudo/internal/logging"
	"github.com/toeirei/testudo/internal/model"
)

// Operation names used in proof bindings and audit rows.
const (
	OpInitRegistry     = "init_registry"
	OpCloseRegistry    = "close_registry"
	OpUpdateAuthority  = "update_authority"
	OpUpdateFeeRate    = "update_fee_rate"
	OpUpdateTreasury   = "update_treasury"
	OpUpdateLimit      = "update_limit"
	OpAddWhitelist     = "add_whitelist"
	OpCreateVault      = "create_vault"
	OpCloseVault       = "close_vault"
	OpUpdateBackup     = "update_backup"
	OpDeposit          = "deposit"
	OpWithdraw         = "withdraw"
	OpWithdrawToBackup = "withdraw_to_backup"
	OpCreateSubVault   = "create_subvault"
	OpCloseSubVault    = "close_subvault"
	OpDeleteSubVault   = "delete_subvault"
	OpSwap             = "swap"
)

// WhitelistEntryReserve is the incremental storage reserve charged to the
// authority for each whitelist entry beyond the seeded set.
const WhitelistEntryReserve uint64 = 10_000

// WrappedNativeAsset is the sentinel asset identity aggregators use for the
// native currency leg of a route. Swap discovery skips it; it never gets a
// sub-vault.
var WrappedNativeAsset = func() model.Address {
	a, _, err := derive.Address([]byte("native/wrapped"))
	if err != nil {
		panic(err)
	}
	return a
}()

// Engine executes custody operations against a store and a program
// dispatcher. The clock is swappable for tests.
type Engine struct {
	store    db.Store
	programs *ledger.Dispatcher
	now      func() int64
}

// New returns an Engine over the given store. The dispatcher carries the
// programs swaps may call; pass an empty one when swaps are not needed.
func New(store db.Store, programs *ledger.Dispatcher) *Engine {
	if programs == nil {
		programs = ledger.NewDispatcher()
	}
	return &Engine{
		store:    store,
		programs: programs,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// run executes op inside one store transaction and appends an audit row on
// success.
func (e *Engine) run(actor model.Address, action, details string, fn func(tx db.Store, now int64) error) error {
	now := e.now()
	err := e.store.RunInTx(func(tx db.Store) error {
		if err := fn(tx, now); err != nil {
			return err
		}
		return tx.LogAction(actor.String(), action, details)
	})
	if err != nil {
		logging.Debugf("custody: %s failed: %v", action, err)
		return err
	}
	logging.Debugf("custody: %s ok (actor %s)", action, actor.Short())
	return nil
}

// loadRegistry fetches the registry and checks the initialization latch.
func loadRegistry(tx db.Store) (*model.Registry, error) {
	reg, err := tx.GetRegistry()
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: registry", ErrNotInitialized)
		}
		return nil, err
	}
	if !reg.Initialized {
		return nil, fmt.Errorf("%w: registry", ErrNotInitialized)
	}
	return reg, nil
}

// loadVault fetches the vault for owner.
func loadVault(tx db.Store, owner model.Address) (*model.Vault, error) {
	v, err := tx.GetVaultByOwner(owner)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: vault for %s", ErrNotInitialized, owner.Short())
		}
		return nil, err
	}
	return v, nil
}

// requireOwner verifies an owner proof over the operation binding.
func requireOwner(p authz.Proof, owner model.Address, op string, parts ...[]byte) error {
	if err := authz.Require(p, owner, op, parts...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	}
	return nil
}

// requireUnlock verifies the unlock-key proof over the operation binding.
func requireUnlock(p authz.Proof, unlockKey model.Address, op string, parts ...[]byte) error {
	if err := authz.Require(p, unlockKey, op, parts...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUnlockProof, err)
	}
	return nil
}

// requireAuthority verifies a registry-authority proof over the binding.
func requireAuthority(p authz.Proof, authority model.Address, op string, parts ...[]byte) error {
	if err := authz.Require(p, authority, op, parts...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	}
	return nil
}

// u64bytes encodes an amount for proof bindings.
func u64bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// assetBytes encodes an AssetRef for proof bindings: a tag byte followed by
// the asset identity for typed references.
func assetBytes(ref model.AssetRef) []byte {
	if ref.IsNative() {
		return []byte{0}
	}
	return append([]byte{1}, ref.Asset.Bytes()...)
}
