// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"errors"
	"fmt"
	"testing"

	"github.com/toeirei/testudo/internal/derive"
	"github.com/toeirei/testudo/internal/model"
)

func TestCreateSubVault(t *testing.T) {
	e, s, _, _ := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	asset := seedAsset("USDC")

	if err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset); err != nil {
		t.Fatalf("CreateSubVault failed: %v", err)
	}
	v := getVault(t, s, owner.addr)
	idx := v.SubVaultFor(asset)
	if idx == nil {
		t.Fatalf("sub-vault not indexed")
	}
	wantAddr, _, _ := derive.SubVaultAddress(v.Address, asset)
	if idx.SubVault != wantAddr {
		t.Fatalf("sub-vault address not derived from (vault, asset): got %s want %s", idx.SubVault, wantAddr)
	}
	sv, err := s.GetSubVault(idx.SubVault)
	if err != nil {
		t.Fatalf("GetSubVault failed: %v", err)
	}
	if sv.Vault != v.Address || sv.Owner != owner.addr || sv.Asset != asset {
		t.Fatalf("sub-vault record wrong: %+v", sv)
	}
}

func TestCreateSubVault_Duplicate(t *testing.T) {
	e, s, _, _ := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	asset := seedAsset("USDC")

	if err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset); err != nil {
		t.Fatalf("CreateSubVault failed: %v", err)
	}
	err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got: %v", err)
	}
}

func TestCreateSubVault_Unsupported(t *testing.T) {
	e, s, _, _ := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	asset := newIdentity(t).addr

	err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset)
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got: %v", err)
	}
}

func TestCreateSubVault_LimitReached(t *testing.T) {
	e, s, authority, _ := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	seedNative(t, s, authority.addr, WhitelistEntryReserve*40)

	// The limit is 30 per vault. Whitelist enough assets to attach 30
	// sub-vaults, then the 31st must be rejected.
	reg, _ := s.GetRegistry()
	var listed []model.Address
	for _, entry := range reg.Whitelist {
		listed = append(listed, entry.Asset)
	}
	for i := 0; len(listed) < int(reg.MaxSubVaultsPerVault); i++ {
		asset := seedAsset(fmt.Sprintf("CAP%d", i))
		entry := model.WhitelistEntry{Asset: asset, Name: "Cap Filler", Symbol: "CAP", Decimals: 6}
		if err := e.AddWhitelist(authority.sign(OpAddWhitelist, asset.Bytes()), entry); err != nil {
			t.Fatalf("whitelist fill failed: %v", err)
		}
		listed = append(listed, asset)
	}
	for _, asset := range listed {
		if err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset); err != nil {
			t.Fatalf("CreateSubVault for %s failed: %v", asset.Short(), err)
		}
	}

	over := seedAsset("CAPOVER")
	entry := model.WhitelistEntry{Asset: over, Name: "Cap Over", Symbol: "CAPO", Decimals: 6}
	if err := e.AddWhitelist(authority.sign(OpAddWhitelist, over.Bytes()), entry); err != nil {
		t.Fatalf("whitelist add failed: %v", err)
	}
	err := e.CreateSubVault(owner.sign(OpCreateSubVault, over.Bytes()), over)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached at sub-vault cap, got: %v", err)
	}
}

func TestCloseSubVault_DrainsWithFee(t *testing.T) {
	e, s, _, treasury := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	asset := seedAsset("USDC")

	if err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset); err != nil {
		t.Fatalf("CreateSubVault failed: %v", err)
	}
	seedToken(t, s, owner.addr, asset, 200_000)
	ref := model.Typed(asset)
	if err := e.Deposit(owner.sign(OpDeposit, assetBytes(ref), u64bytes(100_000)), ref, 100_000); err != nil {
		t.Fatalf("typed Deposit failed: %v", err)
	}
	treasuryBefore := tokenBalance(t, s, treasury, asset)

	if err := e.CloseSubVault(owner.sign(OpCloseSubVault, asset.Bytes()), asset); err != nil {
		t.Fatalf("CloseSubVault failed: %v", err)
	}
	v := getVault(t, s, owner.addr)
	if v.SubVaultFor(asset) != nil {
		t.Fatalf("index entry must be removed")
	}
	// 99850 held: fee 149 to treasury, 99701 to the owner.
	if got := tokenBalance(t, s, treasury, asset); got != treasuryBefore+149 {
		t.Fatalf("expected drain fee 149, treasury went %d -> %d", treasuryBefore, got)
	}
	if got := tokenBalance(t, s, owner.addr, asset); got != 100_000+99_701 {
		t.Fatalf("expected owner holding 199701, got %d", got)
	}
}

func TestDeleteSubVault_DrainsFeeFree(t *testing.T) {
	e, s, _, treasury := initEngine(t, nil)
	owner, unlock := vaultFixture(t, e, s, nil)
	asset := seedAsset("USDC")

	if err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset); err != nil {
		t.Fatalf("CreateSubVault failed: %v", err)
	}
	seedToken(t, s, owner.addr, asset, 200_000)
	ref := model.Typed(asset)
	if err := e.Deposit(owner.sign(OpDeposit, assetBytes(ref), u64bytes(100_000)), ref, 100_000); err != nil {
		t.Fatalf("typed Deposit failed: %v", err)
	}
	treasuryBefore := tokenBalance(t, s, treasury, asset)

	op := owner.sign(OpDeleteSubVault, asset.Bytes())
	up := unlock.sign(OpDeleteSubVault, asset.Bytes())
	if err := e.DeleteSubVault(op, up, asset); err != nil {
		t.Fatalf("DeleteSubVault failed: %v", err)
	}
	// No fee: the full 99850 goes back to the owner.
	if got := tokenBalance(t, s, treasury, asset); got != treasuryBefore {
		t.Fatalf("delete must be fee-free, treasury went %d -> %d", treasuryBefore, got)
	}
	if got := tokenBalance(t, s, owner.addr, asset); got != 100_000+99_850 {
		t.Fatalf("expected owner holding 199850, got %d", got)
	}
	v := getVault(t, s, owner.addr)
	if v.SubVaultFor(asset) != nil {
		t.Fatalf("index entry must be removed")
	}
}

func TestDeleteSubVault_RequiresUnlock(t *testing.T) {
	e, s, _, _ := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	asset := seedAsset("USDC")
	if err := e.CreateSubVault(owner.sign(OpCreateSubVault, asset.Bytes()), asset); err != nil {
		t.Fatalf("CreateSubVault failed: %v", err)
	}
	wrong := newIdentity(t)

	op := owner.sign(OpDeleteSubVault, asset.Bytes())
	up := wrong.sign(OpDeleteSubVault, asset.Bytes())
	err := e.DeleteSubVault(op, up, asset)
	if !errors.Is(err, ErrInvalidUnlockProof) {
		t.Fatalf("expected ErrInvalidUnlockProof, got: %v", err)
	}
}

func TestCloseSubVault_Missing(t *testing.T) {
	e, s, _, _ := initEngine(t, nil)
	owner, _ := vaultFixture(t, e, s, nil)
	asset := seedAsset("USDC")

	err := e.CloseSubVault(owner.sign(OpCloseSubVault, asset.Bytes()), asset)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got: %v", err)
	}
}
