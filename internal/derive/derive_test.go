// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package derive

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"filippo.io/edwards25519"

	"github.com/toeirei/testudo/internal/model"
)

func TestAddressDeterministic(t *testing.T) {
	a1, n1, err := Address([]byte(NamespaceRegistry))
	if err != nil {
		t.Fatalf("Address failed: %v", err)
	}
	a2, n2, err := Address([]byte(NamespaceRegistry))
	if err != nil {
		t.Fatalf("Address failed on second call: %v", err)
	}
	if a1 != a2 || n1 != n2 {
		t.Errorf("derivation not deterministic: (%s,%d) vs (%s,%d)", a1, n1, a2, n2)
	}
}

func TestAddressDistinctTuples(t *testing.T) {
	seen := make(map[model.Address]string)
	owners := make([]model.Address, 8)
	for i := range owners {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("GenerateKey failed: %v", err)
		}
		copy(owners[i][:], pub)
	}
	for _, owner := range owners {
		addr, _, err := VaultAddress(owner)
		if err != nil {
			t.Fatalf("VaultAddress(%s) failed: %v", owner, err)
		}
		if prev, ok := seen[addr]; ok {
			t.Fatalf("collision: owner %s and %s derive the same address", owner, prev)
		}
		seen[addr] = owner.String()
	}
}

func TestDerivedAddressesOffCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	owner, _ := model.AddressFromBytes(pub)

	vault, _, err := VaultAddress(owner)
	if err != nil {
		t.Fatalf("VaultAddress failed: %v", err)
	}
	asset, _, err := Address([]byte("some-asset"))
	if err != nil {
		t.Fatalf("asset derivation failed: %v", err)
	}
	sub, _, err := SubVaultAddress(vault, asset)
	if err != nil {
		t.Fatalf("SubVaultAddress failed: %v", err)
	}

	for _, addr := range []model.Address{vault, sub} {
		if _, err := new(edwards25519.Point).SetBytes(addr.Bytes()); err == nil {
			t.Errorf("derived address %s decodes as a curve point", addr)
		}
	}
}

func TestVerify(t *testing.T) {
	addr, _, err := RegistryAddress()
	if err != nil {
		t.Fatalf("RegistryAddress failed: %v", err)
	}
	if !Verify(addr, []byte(NamespaceRegistry)) {
		t.Error("Verify rejected the canonical registry address")
	}
	var bogus model.Address
	bogus[0] = 0xff
	if Verify(bogus, []byte(NamespaceRegistry)) {
		t.Error("Verify accepted a non-canonical address")
	}
}

func TestPartBoundariesMatter(t *testing.T) {
	a, _, err := Address([]byte("ab"), []byte("c"))
	if err != nil {
		t.Fatalf("Address failed: %v", err)
	}
	b, _, err := Address([]byte("a"), []byte("bc"))
	if err != nil {
		t.Fatalf("Address failed: %v", err)
	}
	if a == b {
		t.Error("distinct part tuples derived the same address")
	}
}
