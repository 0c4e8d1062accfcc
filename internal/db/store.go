// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/toeirei/testudo/internal/model"
)

// Store defines the interface for all database operations in Testudo.
// This allows for multiple database backends to be implemented.
//
// Every custody operation runs against a transactional Store obtained from
// RunInTx; the surrounding transaction is what gives an operation its
// all-or-nothing semantics.
type Store interface {
	// RunInTx executes fn against a Store bound to one database transaction.
	// If fn returns an error the transaction is rolled back and no write
	// performed inside it survives. Calling RunInTx on a Store that is
	// already transactional runs fn in the enclosing transaction.
	RunInTx(fn func(tx Store) error) error

	// Registry methods. The registry is a singleton; Get returns ErrNotFound
	// until it has been saved once.
	GetRegistry() (*model.Registry, error)
	SaveRegistry(r *model.Registry) error
	DeleteRegistry() error
	AddWhitelistEntry(e model.WhitelistEntry) error

	// Vault methods. The sub-vault index is loaded and saved with the vault.
	GetVault(addr model.Address) (*model.Vault, error)
	GetVaultByOwner(owner model.Address) (*model.Vault, error)
	SaveVault(v *model.Vault) error
	DeleteVault(addr model.Address) error
	ListVaults() ([]model.Vault, error)

	// Sub-vault methods.
	GetSubVault(addr model.Address) (*model.SubVault, error)
	SaveSubVault(sv *model.SubVault) error
	DeleteSubVault(addr model.Address) error
	ListSubVaults() ([]model.SubVault, error)

	// Native ledger accounts. Get returns ErrNotFound for unknown addresses;
	// Save upserts.
	GetAccount(addr model.Address) (*model.Account, error)
	SaveAccount(acc *model.Account) error
	ListAccounts() ([]model.Account, error)

	// Typed-asset holding accounts, keyed by (holder, asset).
	GetTokenAccount(holder, asset model.Address) (*model.TokenAccount, error)
	SaveTokenAccount(acc *model.TokenAccount) error
	DeleteTokenAccount(holder, asset model.Address) error
	ListTokenAccounts() ([]model.TokenAccount, error)

	// Audit log methods.
	LogAction(actor, action, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)
}
