// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package ledger models the execution environment the custody engine runs
// against: native-currency accounts, typed-asset holding accounts, and
// dispatch of opaque calls to registered programs. All state lives in the
// same store transaction as the custody records, so an aborted operation
// leaves neither side half-written.
package ledger

import (
	"errors"

	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/fee"
	"github.com/toeirei/testudo/internal/model"
)

// MinReserve is the native balance that must remain locked in any account
// carrying custody state. It is funded at creation and refunded at close.
const MinReserve uint64 = 1_000_000

var (
	// ErrInsufficientFunds is returned when a debit would take an account
	// below zero, or below its reserve where one applies.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrUnauthorized is returned when a transfer's signing authority does
	// not cover the debited account.
	ErrUnauthorized = errors.New("ledger: signing authority does not cover account")
	// ErrAccountNotEmpty is returned when closing a token account that still
	// holds a balance.
	ErrAccountNotEmpty = errors.New("ledger: token account not empty")
)

// SigningAuthority is a capability to move funds held by a fixed set of
// addresses. The custody engine mints one per verified identity for the
// duration of a single operation; programs invoked during a swap receive the
// vault's authority (which extends over its sub-vault holdings) and nothing
// broader.
type SigningAuthority struct {
	addrs    []model.Address
	reserves map[model.Address]uint64
}

// Authority mints a signing authority for the given addresses. Callers are
// expected to have verified the right to act for them before minting.
func Authority(addrs ...model.Address) *SigningAuthority {
	return &SigningAuthority{addrs: addrs}
}

// Protect sets a reserve floor for addr under this authority: any debit made
// through it keeps at least reserve locked, no matter what the invoked
// program asks for.
func (a *SigningAuthority) Protect(addr model.Address, reserve uint64) *SigningAuthority {
	if a.reserves == nil {
		a.reserves = make(map[model.Address]uint64)
	}
	a.reserves[addr] = reserve
	return a
}

// ReserveFor returns the reserve floor protecting addr, zero when none is set.
func (a *SigningAuthority) ReserveFor(addr model.Address) uint64 {
	if a == nil {
		return 0
	}
	return a.reserves[addr]
}

// Address returns the primary account the authority covers.
func (a *SigningAuthority) Address() model.Address {
	if len(a.addrs) == 0 {
		return model.Address{}
	}
	return a.addrs[0]
}

// Covers reports whether the authority permits debits from addr.
func (a *SigningAuthority) Covers(addr model.Address) bool {
	if a == nil {
		return false
	}
	for _, covered := range a.addrs {
		if covered == addr {
			return true
		}
	}
	return false
}

// Ledger exposes the execution environment's account operations over a store.
// Construct one per operation with the transaction-scoped store.
type Ledger struct {
	store db.Store
}

// New returns a Ledger bound to the given store.
func New(store db.Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the native balance of addr. Unknown accounts hold zero.
func (l *Ledger) Balance(addr model.Address) (uint64, error) {
	acc, err := l.store.GetAccount(addr)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return acc.Balance, nil
}

// Credit adds amount to addr's native balance, creating the account if it
// does not exist yet.
func (l *Ledger) Credit(addr model.Address, amount uint64) error {
	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	next, err := fee.Add(bal, amount)
	if err != nil {
		return err
	}
	return l.store.SaveAccount(&model.Account{Address: addr, Balance: next})
}

// Debit removes amount from addr's native balance. The balance may drop to
// zero but never below.
func (l *Ledger) Debit(addr model.Address, amount uint64) error {
	return l.debit(addr, amount, 0)
}

// DebitAboveReserve removes amount from addr's native balance while keeping
// at least reserve locked. Used for accounts carrying custody state.
func (l *Ledger) DebitAboveReserve(addr model.Address, amount, reserve uint64) error {
	return l.debit(addr, amount, reserve)
}

func (l *Ledger) debit(addr model.Address, amount, reserve uint64) error {
	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	if bal < reserve {
		return ErrInsufficientFunds
	}
	if bal-reserve < amount {
		return ErrInsufficientFunds
	}
	return l.store.SaveAccount(&model.Account{Address: addr, Balance: bal - amount})
}

// Transfer moves native currency from one account to another. The authority
// must cover the source account; any reserve floor it declares for the
// source is enforced.
func (l *Ledger) Transfer(from, to model.Address, amount uint64, auth *SigningAuthority) error {
	if !auth.Covers(from) {
		return ErrUnauthorized
	}
	if err := l.debit(from, amount, auth.ReserveFor(from)); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

// TransferAboveReserve is Transfer with a reserve floor on the source.
func (l *Ledger) TransferAboveReserve(from, to model.Address, amount, reserve uint64, auth *SigningAuthority) error {
	if !auth.Covers(from) {
		return ErrUnauthorized
	}
	if err := l.DebitAboveReserve(from, amount, reserve); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

// TokenBalance returns holder's balance of asset. A missing holding row reads
// as zero.
func (l *Ledger) TokenBalance(holder, asset model.Address) (uint64, error) {
	acc, err := l.store.GetTokenAccount(holder, asset)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return acc.Balance, nil
}

// HasTokenAccount reports whether a holding row exists for (holder, asset).
func (l *Ledger) HasTokenAccount(holder, asset model.Address) (bool, error) {
	_, err := l.store.GetTokenAccount(holder, asset)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureTokenAccount creates an empty holding row for (holder, asset) if one
// does not exist.
func (l *Ledger) EnsureTokenAccount(holder, asset model.Address) error {
	ok, err := l.HasTokenAccount(holder, asset)
	if err != nil || ok {
		return err
	}
	return l.store.SaveTokenAccount(&model.TokenAccount{Holder: holder, Asset: asset})
}

// TokenTransfer moves amount of asset from one holder to another. The
// authority must cover the source holder. The destination holding row is
// created on first use.
func (l *Ledger) TokenTransfer(from, to, asset model.Address, amount uint64, auth *SigningAuthority) error {
	if !auth.Covers(from) {
		return ErrUnauthorized
	}
	bal, err := l.TokenBalance(from, asset)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientFunds
	}
	toBal, err := l.TokenBalance(to, asset)
	if err != nil {
		return err
	}
	next, err := fee.Add(toBal, amount)
	if err != nil {
		return err
	}
	if err := l.store.SaveTokenAccount(&model.TokenAccount{Holder: from, Asset: asset, Balance: bal - amount}); err != nil {
		return err
	}
	return l.store.SaveTokenAccount(&model.TokenAccount{Holder: to, Asset: asset, Balance: next})
}

// CloseTokenAccount removes an empty holding row. Closing a non-empty
// account fails; callers drain it first.
func (l *Ledger) CloseTokenAccount(holder, asset model.Address, auth *SigningAuthority) error {
	if !auth.Covers(holder) {
		return ErrUnauthorized
	}
	bal, err := l.TokenBalance(holder, asset)
	if err != nil {
		return err
	}
	if bal != 0 {
		return ErrAccountNotEmpty
	}
	return l.store.DeleteTokenAccount(holder, asset)
}
