// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package authz implements the proof material for Testudo's multi-party
// authorization scheme. A proof is an ed25519 signature over a canonical
// binding of the operation name and its parameters; the custody engine decides
// per operation which identities must have produced one (owner, unlock key,
// backup identity, registry authority).
package authz

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/toeirei/testudo/internal/model"
)

var (
	// ErrSignerMismatch is returned when a proof was produced by a different
	// identity than the one the operation requires.
	ErrSignerMismatch = errors.New("proof signer does not match required identity")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid proof signature")
)

// bindTag domain-separates operation bindings from any other signed payload.
const bindTag = "testudo/op/v1"

// Proof is one identity's authorization for a specific operation invocation.
type Proof struct {
	Signer    model.Address
	Signature []byte
}

// Bind produces the canonical message for an operation and its parameters.
// Every part is length-prefixed so parameter boundaries are unambiguous.
func Bind(op string, parts ...[]byte) []byte {
	h := sha256.New()
	h.Write([]byte(bindTag))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(op)))
	h.Write(lenBuf[:])
	h.Write([]byte(op))
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	return h.Sum(nil)
}

// Sign produces a proof for the given operation binding.
func Sign(priv ed25519.PrivateKey, op string, parts ...[]byte) Proof {
	var signer model.Address
	copy(signer[:], priv.Public().(ed25519.PublicKey))
	return Proof{
		Signer:    signer,
		Signature: ed25519.Sign(priv, Bind(op, parts...)),
	}
}

// Verify checks that the proof is a valid signature by p.Signer over the
// operation binding. It does not check who the signer is; use Require for
// that.
func (p Proof) Verify(op string, parts ...[]byte) error {
	if len(p.Signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	pub := ed25519.PublicKey(p.Signer.Bytes())
	if !ed25519.Verify(pub, Bind(op, parts...), p.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Require checks that the proof was produced by want and verifies it against
// the operation binding.
func Require(p Proof, want model.Address, op string, parts ...[]byte) error {
	if p.Signer != want {
		return fmt.Errorf("%w: got %s, want %s", ErrSignerMismatch, p.Signer.Short(), want.Short())
	}
	return p.Verify(op, parts...)
}

// GenerateIdentity creates a fresh ed25519 identity and returns its address
// together with the private key.
func GenerateIdentity() (model.Address, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return model.Address{}, nil, fmt.Errorf("failed to generate identity: %w", err)
	}
	var addr model.Address
	copy(addr[:], pub)
	return addr, priv, nil
}

// AddressOf returns the ledger address of an ed25519 public key.
func AddressOf(pub ed25519.PublicKey) model.Address {
	var addr model.Address
	copy(addr[:], pub)
	return addr
}
