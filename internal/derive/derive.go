// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package derive computes deterministic sub-account addresses from a namespace
// and an owner identity. Derived addresses must never collide with the
// externally-controlled keyspace: external accounts are ed25519 public keys,
// so a candidate is only accepted once it fails to decode as a curve point.
// A disambiguation nonce is searched downward from 255 until such a candidate
// is found; exhausting the search is fatal and never wraps.
package derive

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"filippo.io/edwards25519"

	"github.com/toeirei/testudo/internal/model"
)

// Fixed namespace tags. These are part of the external interface and must not
// change between releases.
const (
	NamespaceRegistry = "legate"
	NamespaceVault    = "centurion"
)

// domainTag separates Testudo derivations from any other sha256 use of the
// same inputs.
const domainTag = "testudo/derive/v1"

// ErrExhausted is returned when no nonce in [0, 255] yields an address
// outside the signer keyspace.
var ErrExhausted = errors.New("derivation space exhausted")

// Address derives a deterministic address from the given seed parts. It
// returns the address together with the nonce that produced it. The same
// parts always yield the same (address, nonce) pair, and distinct part tuples
// yield distinct addresses: every part is length-prefixed before hashing so
// part boundaries cannot be confused.
func Address(parts ...[]byte) (model.Address, uint8, error) {
	for nonce := 255; nonce >= 0; nonce-- {
		candidate := hashParts(parts, uint8(nonce))
		if !onCurve(candidate) {
			return candidate, uint8(nonce), nil
		}
	}
	return model.Address{}, 0, ErrExhausted
}

// Verify recomputes the derivation and reports whether addr is the canonical
// derived address for the given parts.
func Verify(addr model.Address, parts ...[]byte) bool {
	derived, _, err := Address(parts...)
	if err != nil {
		return false
	}
	return derived == addr
}

// RegistryAddress derives the singleton registry address.
func RegistryAddress() (model.Address, uint8, error) {
	return Address([]byte(NamespaceRegistry))
}

// VaultAddress derives the vault address for an owner. Deriving from the
// owner alone is what enforces one vault per owner.
func VaultAddress(owner model.Address) (model.Address, uint8, error) {
	return Address([]byte(NamespaceVault), owner.Bytes())
}

// SubVaultAddress derives the sub-vault address for a (vault, asset) pair.
func SubVaultAddress(vault, asset model.Address) (model.Address, uint8, error) {
	return Address(vault.Bytes(), asset.Bytes())
}

func hashParts(parts [][]byte, nonce uint8) model.Address {
	h := sha256.New()
	h.Write([]byte(domainTag))
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	h.Write([]byte{nonce})
	var a model.Address
	copy(a[:], h.Sum(nil))
	return a
}

// onCurve reports whether the candidate decodes as a valid edwards25519
// point, i.e. whether it could be an externally-held signing key.
func onCurve(a model.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
