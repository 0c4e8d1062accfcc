// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package authz

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/toeirei/testudo/internal/model"
)

// Argon2id parameters for passphrase-derived unlock keys. Tuned to the
// interactive profile from the argon2 RFC draft; the derivation happens
// client-side, never inside an operation.
const (
	passkeyTime    = 3
	passkeyMemory  = 64 * 1024 // KiB
	passkeyThreads = 4
)

// UnlockKeyFromPassphrase deterministically derives an ed25519 unlock keypair
// from a passphrase and a per-vault salt (conventionally the owner address).
// The unlock key is a deliberately separate credential from the owner's
// primary identity: knowing the owner's private key reveals nothing about it.
func UnlockKeyFromPassphrase(passphrase string, salt []byte) (model.Address, ed25519.PrivateKey, error) {
	if passphrase == "" {
		return model.Address{}, nil, fmt.Errorf("passphrase must not be empty")
	}
	if len(salt) == 0 {
		return model.Address{}, nil, fmt.Errorf("salt must not be empty")
	}
	seed := argon2.IDKey([]byte(passphrase), salt, passkeyTime, passkeyMemory, passkeyThreads, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	return AddressOf(priv.Public().(ed25519.PublicKey)), priv, nil
}
