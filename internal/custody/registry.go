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

// Registry defaults applied at initialization.
const (
	DefaultFeeBps               uint16 = 15
	DefaultMaxVaultsPerOwner    uint16 = 1
	DefaultMaxSubVaultsPerVault uint16 = 30
	DefaultMaxWhitelistedAssets uint16 = 50
)

// seedAsset returns the identity of a built-in whitelisted asset.
func seedAsset(symbol string) model.Address {
	a, _, err := derive.Address([]byte("asset/" + symbol))
	if err != nil {
		panic(err)
	}
	return a
}

// defaultWhitelist is the curated asset set seeded at registry
// initialization.
func defaultWhitelist() []model.WhitelistEntry {
	return []model.WhitelistEntry{
		{Asset: seedAsset("USDC"), Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		{Asset: seedAsset("USDT"), Name: "Tether USD", Symbol: "USDT", Decimals: 6},
		{Asset: seedAsset("LINK"), Name: "Chainlink", Symbol: "LINK", Decimals: 6},
		{Asset: seedAsset("UNI"), Name: "Uniswap", Symbol: "UNI", Decimals: 6},
		{Asset: seedAsset("AAVE"), Name: "Aave", Symbol: "AAVE", Decimals: 6},
		{Asset: seedAsset("RENDER"), Name: "Render", Symbol: "RENDER", Decimals: 8},
		{Asset: seedAsset("JUP"), Name: "Jupiter", Symbol: "JUP", Decimals: 6},
		{Asset: seedAsset("BONK"), Name: "Bonk", Symbol: "BONK", Decimals: 5},
		{Asset: seedAsset("VIRTUAL"), Name: "Virtuals Protocol", Symbol: "VIRTUAL", Decimals: 9},
		{Asset: seedAsset("WIF"), Name: "dogwifhat", Symbol: "WIF", Decimals: 6},
	}
}

// InitRegistry creates the singleton registry. The proof's signer becomes the
// registry authority; treasury receives all collected fees. Limits and the
// fee rate start at their defaults and the whitelist is seeded with the
// built-in asset set.
func (e *Engine) InitRegistry(proof authz.Proof, treasury model.Address) error {
	if err := proof.Verify(OpInitRegistry, treasury.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	}
	authority := proof.Signer

	return e.run(authority, OpInitRegistry, "treasury="+treasury.Short(), func(tx db.Store, now int64) error {
		if _, err := tx.GetRegistry(); err == nil {
			return fmt.Errorf("%w: registry", ErrAlreadyInitialized)
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		addr, _, err := derive.RegistryAddress()
		if err != nil {
			return err
		}
		reg := &model.Registry{
			Address:              addr,
			Authority:            authority,
			Treasury:             treasury,
			FeeBps:               DefaultFeeBps,
			MaxVaultsPerOwner:    DefaultMaxVaultsPerOwner,
			MaxSubVaultsPerVault: DefaultMaxSubVaultsPerVault,
			MaxWhitelistedAssets: DefaultMaxWhitelistedAssets,
			Initialized:          true,
			LastUpdated:          now,
		}
		if err := tx.SaveRegistry(reg); err != nil {
			return err
		}
		for _, entry := range defaultWhitelist() {
			if err := tx.AddWhitelistEntry(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// CloseRegistry decommissions the registry. Vault records are untouched;
// decommission is administrative, not cascading.
func (e *Engine) CloseRegistry(proof authz.Proof) error {
	return e.run(proof.Signer, OpCloseRegistry, "", func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(proof, reg.Authority, OpCloseRegistry); err != nil {
			return err
		}
		return tx.DeleteRegistry()
	})
}

// UpdateAuthority hands registry control to a new identity.
func (e *Engine) UpdateAuthority(proof authz.Proof, newAuthority model.Address) error {
	if newAuthority.IsZero() {
		return fmt.Errorf("%w: zero authority", ErrInvalidExternalAccount)
	}
	return e.run(proof.Signer, OpUpdateAuthority, "new="+newAuthority.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(proof, reg.Authority, OpUpdateAuthority, newAuthority.Bytes()); err != nil {
			return err
		}
		reg.Authority = newAuthority
		reg.LastUpdated = now
		return tx.SaveRegistry(reg)
	})
}

// UpdateFeeRate sets the fee rate in basis points.
func (e *Engine) UpdateFeeRate(proof authz.Proof, newBps uint16) error {
	if uint64(newBps) > fee.MaxBps {
		return fmt.Errorf("%w: %d bps", ErrArithmeticOverflow, newBps)
	}
	return e.run(proof.Signer, OpUpdateFeeRate, fmt.Sprintf("bps=%d", newBps), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(proof, reg.Authority, OpUpdateFeeRate, u64bytes(uint64(newBps))); err != nil {
			return err
		}
		reg.FeeBps = newBps
		reg.LastUpdated = now
		return tx.SaveRegistry(reg)
	})
}

// UpdateTreasury redirects fee collection to a new identity.
func (e *Engine) UpdateTreasury(proof authz.Proof, newTreasury model.Address) error {
	if newTreasury.IsZero() {
		return fmt.Errorf("%w: zero treasury", ErrInvalidExternalAccount)
	}
	return e.run(proof.Signer, OpUpdateTreasury, "new="+newTreasury.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(proof, reg.Authority, OpUpdateTreasury, newTreasury.Bytes()); err != nil {
			return err
		}
		reg.Treasury = newTreasury
		reg.LastUpdated = now
		return tx.SaveRegistry(reg)
	})
}

// UpdateLimit raises one of the three registry limits. Limits only ever
// increase; a new value at or below the current one is rejected.
func (e *Engine) UpdateLimit(proof authz.Proof, kind model.LimitKind, newValue uint16) error {
	return e.run(proof.Signer, OpUpdateLimit, fmt.Sprintf("kind=%s value=%d", kind, newValue), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(proof, reg.Authority, OpUpdateLimit, []byte(kind), u64bytes(uint64(newValue))); err != nil {
			return err
		}

		var current *uint16
		switch kind {
		case model.LimitVaultsPerOwner:
			current = &reg.MaxVaultsPerOwner
		case model.LimitSubVaultsPerVault:
			current = &reg.MaxSubVaultsPerVault
		case model.LimitWhitelistedAssets:
			current = &reg.MaxWhitelistedAssets
		default:
			return fmt.Errorf("%w: unknown limit kind %q", ErrInvalidExternalAccount, kind)
		}
		if newValue <= *current {
			return fmt.Errorf("%w: %s %d -> %d", ErrLimitDecreaseRejected, kind, *current, newValue)
		}
		*current = newValue
		reg.LastUpdated = now
		return tx.SaveRegistry(reg)
	})
}

// AddWhitelist appends an asset to the whitelist. The authority funds the
// incremental storage reserve, moved from its ledger account to the
// registry's.
func (e *Engine) AddWhitelist(proof authz.Proof, entry model.WhitelistEntry) error {
	if entry.Asset.IsZero() {
		return fmt.Errorf("%w: zero asset identity", ErrInvalidExternalAccount)
	}
	return e.run(proof.Signer, OpAddWhitelist, "asset="+entry.Asset.Short(), func(tx db.Store, now int64) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(proof, reg.Authority, OpAddWhitelist, entry.Asset.Bytes()); err != nil {
			return err
		}
		if reg.IsWhitelisted(entry.Asset) {
			return fmt.Errorf("%w: asset %s already listed", ErrDuplicateEntry, entry.Asset.Short())
		}
		if len(reg.Whitelist) >= int(reg.MaxWhitelistedAssets) {
			return fmt.Errorf("%w: whitelist full at %d", ErrLimitReached, reg.MaxWhitelistedAssets)
		}

		// Top up the registry's storage reserve from the caller.
		led := ledger.New(tx)
		if err := led.Transfer(reg.Authority, reg.Address, WhitelistEntryReserve, ledger.Authority(reg.Authority)); err != nil {
			return mapLedgerErr(err)
		}

		if err := tx.AddWhitelistEntry(entry); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("%w: asset %s already listed", ErrDuplicateEntry, entry.Asset.Short())
			}
			return err
		}
		reg.LastUpdated = now
		return tx.SaveRegistry(reg)
	})
}

// mapLedgerErr translates execution-environment errors into the operation
// error taxonomy.
func mapLedgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case errors.Is(err, ledger.ErrUnauthorized):
		return fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	case errors.Is(err, ledger.ErrCallAccountIndex):
		return fmt.Errorf("%w: %v", ErrCallAccountIndex, err)
	case errors.Is(err, ledger.ErrUnknownProgram):
		return fmt.Errorf("%w: %v", ErrInvalidExternalAccount, err)
	case errors.Is(err, fee.ErrOverflow):
		return fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	default:
		return err
	}
}
