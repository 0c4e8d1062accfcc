// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model holds the plain domain types shared across Testudo. It is
// deliberately dependency-free so stores, the custody engine, and the CLI can
// all speak the same vocabulary.
package model

import (
	"encoding/hex"
	"fmt"
)

// AddressLen is the length in bytes of every ledger address.
const AddressLen = 32

// Address identifies an account in the ledger's 32-byte address space.
// Externally-controlled addresses are ed25519 public keys; derived addresses
// (registry, vaults, sub-vaults) are guaranteed to fall outside that keyspace.
type Address [AddressLen]byte

// String returns the canonical lowercase hex form of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns an abbreviated form for log lines.
func (a Address) Short() string {
	return a.String()[:8]
}

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLen)
	copy(b, a[:])
	return b
}

// ParseAddress decodes a 64-character hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return a, fmt.Errorf("invalid address length: got %d bytes, want %d", len(raw), AddressLen)
	}
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes converts raw bytes into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("invalid address length: got %d bytes, want %d", len(b), AddressLen)
	}
	copy(a[:], b)
	return a, nil
}

// AssetRef is an explicit tagged reference to either the native currency or a
// typed asset. Callers always state which one they mean; there is no
// absence-based branching anywhere in the operation surface.
type AssetRef struct {
	Asset Address
	Typed bool
}

// Native returns the AssetRef for the native currency.
func Native() AssetRef {
	return AssetRef{}
}

// Typed returns the AssetRef for the given asset identity.
func Typed(asset Address) AssetRef {
	return AssetRef{Asset: asset, Typed: true}
}

// IsNative reports whether the reference names the native currency.
func (r AssetRef) IsNative() bool {
	return !r.Typed
}

// String renders "native" or the asset identity.
func (r AssetRef) String() string {
	if r.IsNative() {
		return "native"
	}
	return r.Asset.String()
}

// LimitKind names one of the registry's three monotonic limits.
type LimitKind string

const (
	LimitVaultsPerOwner    LimitKind = "vaults_per_owner"
	LimitSubVaultsPerVault LimitKind = "subvaults_per_vault"
	LimitWhitelistedAssets LimitKind = "whitelisted_assets"
)

// WhitelistEntry describes one asset the registry permits vaults to hold.
type WhitelistEntry struct {
	Asset    Address
	Name     string
	Symbol   string
	Decimals uint8
}

// Registry is the singleton administrative configuration for a deployment.
type Registry struct {
	Address              Address
	Authority            Address
	Treasury             Address
	FeeBps               uint16 // basis points, 10000 = 100%
	MaxVaultsPerOwner    uint16
	MaxSubVaultsPerVault uint16
	MaxWhitelistedAssets uint16
	Initialized          bool
	LastUpdated          int64
	Whitelist            []WhitelistEntry
}

// IsWhitelisted reports whether the asset identity is on the whitelist.
func (r *Registry) IsWhitelisted(asset Address) bool {
	for _, e := range r.Whitelist {
		if e.Asset == asset {
			return true
		}
	}
	return false
}

// SubVaultRef is one entry in a vault's sub-vault index. TokenCount is
// advisory bookkeeping; the external token balance is the source of truth and
// the count is reconciled after every transfer.
type SubVaultRef struct {
	Asset      Address
	SubVault   Address
	TokenCount uint64
}

// Vault is the per-owner umbrella custody account.
type Vault struct {
	Address       Address
	Owner         Address // immutable after creation
	UnlockKey     Address // second-factor credential, set at creation
	Backup        *Address
	NativeBalance uint64 // bookkeeping; the held balance lives in the ledger account
	CreatedAt     int64
	LastAccessed  int64
	SubVaults     []SubVaultRef
}

// SubVaultFor returns a pointer to the index entry for the asset, or nil.
func (v *Vault) SubVaultFor(asset Address) *SubVaultRef {
	for i := range v.SubVaults {
		if v.SubVaults[i].Asset == asset {
			return &v.SubVaults[i]
		}
	}
	return nil
}

// HasBackup reports whether a backup identity is configured.
func (v *Vault) HasBackup() bool {
	return v.Backup != nil && !v.Backup.IsZero()
}

// SubVault wraps an externally-held typed-asset balance for one (vault, asset)
// pair. The balance itself lives in the token ledger; this record carries the
// custody metadata.
type SubVault struct {
	Address        Address
	Vault          Address
	Owner          Address
	Asset          Address
	CreatedAt      int64
	LastAccessed   int64
	LastDeposit    int64
	LastWithdrawal int64
	DepositTVL     uint64
}

// Account is a native-currency ledger account.
type Account struct {
	Address Address
	Balance uint64
}

// TokenAccount holds a typed-asset balance for one (holder, asset) pair.
type TokenAccount struct {
	Holder  Address
	Asset   Address
	Balance uint64
}

// AuditLogEntry records one successful mutating operation.
type AuditLogEntry struct {
	ID        string
	Timestamp string
	Actor     string
	Action    string
	Details   string
}
