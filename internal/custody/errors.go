// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import "errors"

// The operation error taxonomy. Every operation surfaces exactly one of these
// kinds (possibly wrapped with context); callers match with errors.Is.
var (
	// ErrAlreadyInitialized is returned on re-initialization of the registry
	// or creation of a vault that already exists for the owner.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrNotInitialized is returned when the registry, vault, or sub-vault an
	// operation needs does not exist yet.
	ErrNotInitialized = errors.New("not initialized")
	// ErrInvalidAuthority is returned when the proof does not come from the
	// vault owner or registry authority the operation requires.
	ErrInvalidAuthority = errors.New("invalid authority")
	// ErrInvalidUnlockProof is returned when the unlock-key proof is missing,
	// from the wrong identity, or does not verify.
	ErrInvalidUnlockProof = errors.New("invalid unlock proof")
	// ErrNoBackupConfigured is returned by the recovery path when the vault
	// has no backup identity set.
	ErrNoBackupConfigured = errors.New("no backup identity configured")
	// ErrBackupMismatch is returned when the recovery proof comes from an
	// identity other than the configured backup.
	ErrBackupMismatch = errors.New("backup identity mismatch")
	// ErrUnsupportedAsset is returned for assets not on the registry
	// whitelist.
	ErrUnsupportedAsset = errors.New("asset not whitelisted")
	// ErrInsufficientFunds is returned when a balance or reserve check fails.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrArithmeticOverflow is returned when checked arithmetic fails in the
	// fee engine or a balance update.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrLimitReached is returned when a per-owner, per-vault, or whitelist
	// cap is hit.
	ErrLimitReached = errors.New("limit reached")
	// ErrLimitDecreaseRejected is returned when a registry limit update does
	// not strictly increase the limit.
	ErrLimitDecreaseRejected = errors.New("limit decrease rejected")
	// ErrDuplicateEntry is returned when an asset is already whitelisted or a
	// sub-vault already exists for the asset.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrVaultNotEmpty is returned when closing a vault that still has
	// sub-vaults attached.
	ErrVaultNotEmpty = errors.New("vault not empty")
	// ErrSubVaultNotEmpty is returned when closing a sub-vault whose holding
	// account did not drain to zero.
	ErrSubVaultNotEmpty = errors.New("sub-vault not empty")
	// ErrInvalidExternalAccount is returned on a mismatched treasury,
	// sub-vault, or asset binding.
	ErrInvalidExternalAccount = errors.New("invalid external account")
	// ErrCallAccountIndex is returned when a swap call references an account
	// index outside the declared list.
	ErrCallAccountIndex = errors.New("call account index out of range")
)
