// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"errors"
	"fmt"
	"testing"

	"github.com/toeirei/testudo/internal/model"
)

func TestInitRegistry_Defaults(t *testing.T) {
	e, s, authority, treasury := initEngine(t, nil)
	_ = e

	reg, err := s.GetRegistry()
	if err != nil {
		t.Fatalf("GetRegistry failed: %v", err)
	}
	if reg.Authority != authority.addr || reg.Treasury != treasury {
		t.Fatalf("authority/treasury not recorded: %+v", reg)
	}
	if reg.FeeBps != DefaultFeeBps {
		t.Fatalf("expected default fee %d bps, got %d", DefaultFeeBps, reg.FeeBps)
	}
	if reg.MaxVaultsPerOwner != 1 || reg.MaxSubVaultsPerVault != 30 || reg.MaxWhitelistedAssets != 50 {
		t.Fatalf("limits not at defaults: %+v", reg)
	}
	if !reg.Initialized || reg.LastUpdated != testClock {
		t.Fatalf("latch or timestamp wrong: %+v", reg)
	}
	if len(reg.Whitelist) != len(defaultWhitelist()) {
		t.Fatalf("expected %d seeded assets, got %d", len(defaultWhitelist()), len(reg.Whitelist))
	}
	if !reg.IsWhitelisted(seedAsset("USDC")) {
		t.Fatalf("expected USDC to be seeded")
	}
}

func TestInitRegistry_AlreadyInitialized(t *testing.T) {
	e, _, authority, treasury := initEngine(t, nil)

	err := e.InitRegistry(authority.sign(OpInitRegistry, treasury.Bytes()), treasury)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got: %v", err)
	}
}

func TestRegistryMutation_RequiresAuthority(t *testing.T) {
	e, _, _, _ := initEngine(t, nil)
	stranger := newIdentity(t)

	err := e.UpdateFeeRate(stranger.sign(OpUpdateFeeRate, u64bytes(25)), 25)
	if !errors.Is(err, ErrInvalidAuthority) {
		t.Fatalf("expected ErrInvalidAuthority, got: %v", err)
	}
}

func TestRegistryMutation_NotInitialized(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	authority := newIdentity(t)

	err := e.UpdateFeeRate(authority.sign(OpUpdateFeeRate, u64bytes(25)), 25)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got: %v", err)
	}
}

func TestUpdateFeeRate(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)

	if err := e.UpdateFeeRate(authority.sign(OpUpdateFeeRate, u64bytes(30)), 30); err != nil {
		t.Fatalf("UpdateFeeRate failed: %v", err)
	}
	reg, _ := s.GetRegistry()
	if reg.FeeBps != 30 {
		t.Fatalf("expected 30 bps, got %d", reg.FeeBps)
	}
}

func TestUpdateLimit_MonotonicOnly(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)

	kinds := []struct {
		kind    model.LimitKind
		current uint16
	}{
		{model.LimitVaultsPerOwner, 1},
		{model.LimitSubVaultsPerVault, 30},
		{model.LimitWhitelistedAssets, 50},
	}
	for _, k := range kinds {
		// Equal and lower values are rejected for every kind independently.
		for _, bad := range []uint16{k.current, k.current - 1} {
			proof := authority.sign(OpUpdateLimit, []byte(k.kind), u64bytes(uint64(bad)))
			if err := e.UpdateLimit(proof, k.kind, bad); !errors.Is(err, ErrLimitDecreaseRejected) {
				t.Fatalf("%s: expected ErrLimitDecreaseRejected for %d, got: %v", k.kind, bad, err)
			}
		}
		next := k.current + 5
		proof := authority.sign(OpUpdateLimit, []byte(k.kind), u64bytes(uint64(next)))
		if err := e.UpdateLimit(proof, k.kind, next); err != nil {
			t.Fatalf("%s: raise to %d failed: %v", k.kind, next, err)
		}
	}
	reg, _ := s.GetRegistry()
	if reg.MaxVaultsPerOwner != 6 || reg.MaxSubVaultsPerVault != 35 || reg.MaxWhitelistedAssets != 55 {
		t.Fatalf("limits not raised: %+v", reg)
	}
}

func TestUpdateAuthority_HandsOver(t *testing.T) {
	e, _, authority, _ := initEngine(t, nil)
	next := newIdentity(t)

	if err := e.UpdateAuthority(authority.sign(OpUpdateAuthority, next.addr.Bytes()), next.addr); err != nil {
		t.Fatalf("UpdateAuthority failed: %v", err)
	}
	// The old authority is locked out; the new one works.
	if err := e.UpdateFeeRate(authority.sign(OpUpdateFeeRate, u64bytes(20)), 20); !errors.Is(err, ErrInvalidAuthority) {
		t.Fatalf("expected old authority to be rejected, got: %v", err)
	}
	if err := e.UpdateFeeRate(next.sign(OpUpdateFeeRate, u64bytes(20)), 20); err != nil {
		t.Fatalf("new authority rejected: %v", err)
	}
}

func TestAddWhitelist(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)
	seedNative(t, s, authority.addr, WhitelistEntryReserve*3)

	asset := newIdentity(t).addr
	entry := model.WhitelistEntry{Asset: asset, Name: "Test Asset", Symbol: "TST", Decimals: 6}
	if err := e.AddWhitelist(authority.sign(OpAddWhitelist, asset.Bytes()), entry); err != nil {
		t.Fatalf("AddWhitelist failed: %v", err)
	}
	reg, _ := s.GetRegistry()
	if !reg.IsWhitelisted(asset) {
		t.Fatalf("asset not whitelisted after add")
	}
	// The storage reserve moved from the authority to the registry account.
	if got := nativeBalance(t, s, reg.Address); got != WhitelistEntryReserve {
		t.Fatalf("expected registry reserve %d, got %d", WhitelistEntryReserve, got)
	}

	// Duplicate rejected.
	if err := e.AddWhitelist(authority.sign(OpAddWhitelist, asset.Bytes()), entry); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got: %v", err)
	}
}

func TestAddWhitelist_Full(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)
	seedNative(t, s, authority.addr, WhitelistEntryReserve*100)

	reg, _ := s.GetRegistry()
	room := int(reg.MaxWhitelistedAssets) - len(reg.Whitelist)
	for i := 0; i < room; i++ {
		asset := seedAsset(fmt.Sprintf("FILL%d", i))
		entry := model.WhitelistEntry{Asset: asset, Name: "Filler", Symbol: "FILL", Decimals: 6}
		if err := e.AddWhitelist(authority.sign(OpAddWhitelist, asset.Bytes()), entry); err != nil {
			t.Fatalf("fill add %d failed: %v", i, err)
		}
	}
	asset := seedAsset("OVERFLOW")
	entry := model.WhitelistEntry{Asset: asset, Name: "Overflow", Symbol: "OVER", Decimals: 6}
	if err := e.AddWhitelist(authority.sign(OpAddWhitelist, asset.Bytes()), entry); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached at capacity, got: %v", err)
	}
}

func TestAddWhitelist_ReserveUnfunded(t *testing.T) {
	e, _, authority, _ := initEngine(t, nil)

	asset := newIdentity(t).addr
	entry := model.WhitelistEntry{Asset: asset, Name: "Test Asset", Symbol: "TST", Decimals: 6}
	err := e.AddWhitelist(authority.sign(OpAddWhitelist, asset.Bytes()), entry)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds without reserve funding, got: %v", err)
	}
}

func TestCloseRegistry(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)

	if err := e.CloseRegistry(authority.sign(OpCloseRegistry)); err != nil {
		t.Fatalf("CloseRegistry failed: %v", err)
	}
	if _, err := s.GetRegistry(); err == nil {
		t.Fatalf("expected registry to be gone")
	}
}

func TestAuditTrail(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)

	if err := e.UpdateFeeRate(authority.sign(OpUpdateFeeRate, u64bytes(30)), 30); err != nil {
		t.Fatalf("UpdateFeeRate failed: %v", err)
	}
	entries, err := s.GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected init + update audit rows, got %d", len(entries))
	}
	seen := map[string]bool{}
	for _, entry := range entries {
		seen[entry.Action] = true
	}
	if !seen[OpInitRegistry] || !seen[OpUpdateFeeRate] {
		t.Fatalf("expected audit rows for both operations, got %v", seen)
	}
}

func TestFailedOperation_NoAuditRow(t *testing.T) {
	e, s, _, _ := initEngine(t, nil)
	stranger := newIdentity(t)

	_ = e.UpdateFeeRate(stranger.sign(OpUpdateFeeRate, u64bytes(25)), 25)
	entries, _ := s.GetAllAuditLogEntries()
	for _, entry := range entries {
		if entry.Action == OpUpdateFeeRate {
			t.Fatalf("failed operation must not leave an audit row")
		}
	}
}

func TestUpdateLimit_UnknownKind(t *testing.T) {
	e, _, authority, _ := initEngine(t, nil)

	kind := model.LimitKind("bogus")
	err := e.UpdateLimit(authority.sign(OpUpdateLimit, []byte(kind), u64bytes(99)), kind, 99)
	if !errors.Is(err, ErrInvalidExternalAccount) {
		t.Fatalf("expected ErrInvalidExternalAccount for unknown limit kind, got: %v", err)
	}
}
