// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"crypto/ed25519"
	"testing"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/ledger"
	"github.com/toeirei/testudo/internal/model"
)

const testClock int64 = 1_700_000_000

type identity struct {
	addr model.Address
	priv ed25519.PrivateKey
}

func newIdentity(t *testing.T) identity {
	t.Helper()
	addr, priv, err := authz.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	return identity{addr: addr, priv: priv}
}

func (id identity) sign(op string, parts ...[]byte) authz.Proof {
	return authz.Sign(id.priv, op, parts...)
}

func newTestEngine(t *testing.T, programs *ledger.Dispatcher) (*Engine, db.Store) {
	t.Helper()
	dsn := "file:test_custody_" + t.Name() + "?mode=memory&cache=shared"
	s, err := db.NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	e := New(s, programs)
	e.now = func() int64 { return testClock }
	return e, s
}

// seedNative writes a native ledger balance directly, standing in for funds
// the external environment credited before the operation.
func seedNative(t *testing.T, s db.Store, addr model.Address, amount uint64) {
	t.Helper()
	if err := s.SaveAccount(&model.Account{Address: addr, Balance: amount}); err != nil {
		t.Fatalf("seedNative failed: %v", err)
	}
}

// seedToken writes a token holding row directly.
func seedToken(t *testing.T, s db.Store, holder, asset model.Address, amount uint64) {
	t.Helper()
	if err := s.SaveTokenAccount(&model.TokenAccount{Holder: holder, Asset: asset, Balance: amount}); err != nil {
		t.Fatalf("seedToken failed: %v", err)
	}
}

func nativeBalance(t *testing.T, s db.Store, addr model.Address) uint64 {
	t.Helper()
	bal, err := ledger.New(s).Balance(addr)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	return bal
}

func tokenBalance(t *testing.T, s db.Store, holder, asset model.Address) uint64 {
	t.Helper()
	bal, err := ledger.New(s).TokenBalance(holder, asset)
	if err != nil {
		t.Fatalf("TokenBalance failed: %v", err)
	}
	return bal
}

// initEngine initializes the registry with a fresh authority and treasury
// and returns them alongside the engine.
func initEngine(t *testing.T, programs *ledger.Dispatcher) (*Engine, db.Store, identity, model.Address) {
	t.Helper()
	e, s := newTestEngine(t, programs)
	authority := newIdentity(t)
	treasury := newIdentity(t).addr
	if err := e.InitRegistry(authority.sign(OpInitRegistry, treasury.Bytes()), treasury); err != nil {
		t.Fatalf("InitRegistry failed: %v", err)
	}
	return e, s, authority, treasury
}

// vaultFixture creates a funded vault with an unlock key and optional backup.
func vaultFixture(t *testing.T, e *Engine, s db.Store, backup *model.Address) (owner, unlock identity) {
	t.Helper()
	owner = newIdentity(t)
	unlock = newIdentity(t)
	seedNative(t, s, owner.addr, ledger.MinReserve+10_000_000)
	parts := [][]byte{unlock.addr.Bytes()}
	if backup != nil {
		parts = append(parts, backup.Bytes())
	}
	if err := e.CreateVault(owner.sign(OpCreateVault, parts...), unlock.addr, backup); err != nil {
		t.Fatalf("CreateVault failed: %v", err)
	}
	return owner, unlock
}

func getVault(t *testing.T, s db.Store, owner model.Address) *model.Vault {
	t.Helper()
	v, err := s.GetVaultByOwner(owner)
	if err != nil {
		t.Fatalf("GetVaultByOwner failed: %v", err)
	}
	return v
}
