// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package custody

import (
	"crypto/ed25519"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/model"
)

// Proof constructors for every operation. Keeping these next to the engine's
// verification calls means a binding change can never drift between signer
// and verifier. Clients (the CLI included) should build proofs only through
// these helpers.

func SignInitRegistry(priv ed25519.PrivateKey, treasury model.Address) authz.Proof {
	return authz.Sign(priv, OpInitRegistry, treasury.Bytes())
}

func SignCloseRegistry(priv ed25519.PrivateKey) authz.Proof {
	return authz.Sign(priv, OpCloseRegistry)
}

func SignUpdateAuthority(priv ed25519.PrivateKey, newAuthority model.Address) authz.Proof {
	return authz.Sign(priv, OpUpdateAuthority, newAuthority.Bytes())
}

func SignUpdateFeeRate(priv ed25519.PrivateKey, newBps uint16) authz.Proof {
	return authz.Sign(priv, OpUpdateFeeRate, u64bytes(uint64(newBps)))
}

func SignUpdateTreasury(priv ed25519.PrivateKey, newTreasury model.Address) authz.Proof {
	return authz.Sign(priv, OpUpdateTreasury, newTreasury.Bytes())
}

func SignUpdateLimit(priv ed25519.PrivateKey, kind model.LimitKind, newValue uint16) authz.Proof {
	return authz.Sign(priv, OpUpdateLimit, []byte(kind), u64bytes(uint64(newValue)))
}

func SignAddWhitelist(priv ed25519.PrivateKey, asset model.Address) authz.Proof {
	return authz.Sign(priv, OpAddWhitelist, asset.Bytes())
}

func SignCreateVault(priv ed25519.PrivateKey, unlockKey model.Address, backup *model.Address) authz.Proof {
	parts := [][]byte{unlockKey.Bytes()}
	if backup != nil {
		parts = append(parts, backup.Bytes())
	}
	return authz.Sign(priv, OpCreateVault, parts...)
}

func SignCloseVault(priv ed25519.PrivateKey) authz.Proof {
	return authz.Sign(priv, OpCloseVault)
}

func SignUpdateBackup(priv ed25519.PrivateKey, newBackup model.Address) authz.Proof {
	return authz.Sign(priv, OpUpdateBackup, newBackup.Bytes())
}

func SignDeposit(priv ed25519.PrivateKey, ref model.AssetRef, amount uint64) authz.Proof {
	return authz.Sign(priv, OpDeposit, assetBytes(ref), u64bytes(amount))
}

func SignWithdraw(priv ed25519.PrivateKey, ref model.AssetRef, amount uint64, all bool) authz.Proof {
	allByte := []byte{0}
	if all {
		allByte = []byte{1}
	}
	return authz.Sign(priv, OpWithdraw, assetBytes(ref), u64bytes(amount), allByte)
}

func SignWithdrawToBackup(priv ed25519.PrivateKey, owner model.Address, ref model.AssetRef) authz.Proof {
	return authz.Sign(priv, OpWithdrawToBackup, owner.Bytes(), assetBytes(ref))
}

func SignCreateSubVault(priv ed25519.PrivateKey, asset model.Address) authz.Proof {
	return authz.Sign(priv, OpCreateSubVault, asset.Bytes())
}

func SignCloseSubVault(priv ed25519.PrivateKey, asset model.Address) authz.Proof {
	return authz.Sign(priv, OpCloseSubVault, asset.Bytes())
}

func SignDeleteSubVault(priv ed25519.PrivateKey, asset model.Address) authz.Proof {
	return authz.Sign(priv, OpDeleteSubVault, asset.Bytes())
}

func SignSwap(priv ed25519.PrivateKey, source, destination model.AssetRef) authz.Proof {
	return authz.Sign(priv, OpSwap, assetBytes(source), assetBytes(destination))
}
