// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package ledger

import (
	"errors"
	"testing"

	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/model"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dsn := "file:test_ledger_" + t.Name() + "?mode=memory&cache=shared"
	s, err := db.NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	return New(s)
}

func addr(b byte) model.Address {
	var a model.Address
	a[0] = b
	return a
}

func TestCreditDebit(t *testing.T) {
	l := newTestLedger(t)
	a := addr(1)

	bal, err := l.Balance(a)
	if err != nil || bal != 0 {
		t.Fatalf("expected zero balance for unknown account, got %d, %v", bal, err)
	}

	if err := l.Credit(a, 1000); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := l.Debit(a, 400); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	bal, _ = l.Balance(a)
	if bal != 600 {
		t.Fatalf("expected 600, got %d", bal)
	}

	if err := l.Debit(a, 601); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestDebitAboveReserve(t *testing.T) {
	l := newTestLedger(t)
	a := addr(1)

	if err := l.Credit(a, MinReserve+500); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := l.DebitAboveReserve(a, 501, MinReserve); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected reserve to block the debit, got: %v", err)
	}
	if err := l.DebitAboveReserve(a, 500, MinReserve); err != nil {
		t.Fatalf("debit up to the reserve should pass: %v", err)
	}
	bal, _ := l.Balance(a)
	if bal != MinReserve {
		t.Fatalf("expected exactly the reserve to remain, got %d", bal)
	}
}

func TestTransfer_AuthorityRequired(t *testing.T) {
	l := newTestLedger(t)
	from, to := addr(1), addr(2)
	if err := l.Credit(from, 100); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if err := l.Transfer(from, to, 50, Authority(to)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized with wrong authority, got: %v", err)
	}
	if err := l.Transfer(from, to, 50, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized with nil authority, got: %v", err)
	}
	if err := l.Transfer(from, to, 50, Authority(from)); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	fromBal, _ := l.Balance(from)
	toBal, _ := l.Balance(to)
	if fromBal != 50 || toBal != 50 {
		t.Fatalf("expected 50/50 after transfer, got %d/%d", fromBal, toBal)
	}
}

func TestTokenTransfer_EmptyHolder(t *testing.T) {
	l := newTestLedger(t)
	from, to, asset := addr(1), addr(2), addr(9)

	if err := l.EnsureTokenAccount(from, asset); err != nil {
		t.Fatalf("EnsureTokenAccount failed: %v", err)
	}
	if err := l.TokenTransfer(from, to, asset, 1, Authority(from)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds from empty holder, got: %v", err)
	}
}

func TestTokenTransfer_MovesBalance(t *testing.T) {
	l := newTestLedger(t)
	mintSrc, holder, asset := addr(1), addr(2), addr(9)

	// A holding row written directly stands in for an external mint.
	if err := l.store.SaveTokenAccount(&model.TokenAccount{Holder: mintSrc, Asset: asset, Balance: 500}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := l.TokenTransfer(mintSrc, holder, asset, 200, Authority(mintSrc)); err != nil {
		t.Fatalf("TokenTransfer failed: %v", err)
	}
	srcBal, _ := l.TokenBalance(mintSrc, asset)
	dstBal, _ := l.TokenBalance(holder, asset)
	if srcBal != 300 || dstBal != 200 {
		t.Fatalf("expected 300/200 after transfer, got %d/%d", srcBal, dstBal)
	}

	if err := l.TokenTransfer(mintSrc, holder, asset, 200, Authority(holder)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized with destination authority, got: %v", err)
	}
}

func TestCloseTokenAccount(t *testing.T) {
	l := newTestLedger(t)
	holder, asset := addr(1), addr(9)

	if err := l.store.SaveTokenAccount(&model.TokenAccount{Holder: holder, Asset: asset, Balance: 10}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := l.CloseTokenAccount(holder, asset, Authority(holder)); !errors.Is(err, ErrAccountNotEmpty) {
		t.Fatalf("expected ErrAccountNotEmpty, got: %v", err)
	}
	if err := l.store.SaveTokenAccount(&model.TokenAccount{Holder: holder, Asset: asset, Balance: 0}); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if err := l.CloseTokenAccount(holder, asset, Authority(holder)); err != nil {
		t.Fatalf("CloseTokenAccount failed: %v", err)
	}
	ok, err := l.HasTokenAccount(holder, asset)
	if err != nil || ok {
		t.Fatalf("expected holding row to be gone, ok=%v err=%v", ok, err)
	}
}

func TestDispatcher_Invoke(t *testing.T) {
	l := newTestLedger(t)
	programAddr := addr(0xAA)
	vault, pool := addr(1), addr(2)
	if err := l.Credit(vault, 100); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	d := NewDispatcher()
	d.Register(programAddr, ProgramFunc(func(ctx *CallContext) error {
		if len(ctx.Accounts) != 2 {
			t.Fatalf("expected 2 resolved accounts, got %d", len(ctx.Accounts))
		}
		return ctx.Ledger.Transfer(ctx.Accounts[0], ctx.Accounts[1], 100, ctx.Authority)
	}))

	declared := []model.Address{vault, pool}
	call := Call{Program: programAddr, Accounts: []int{0, 1}, Data: []byte{1}}
	if err := d.Invoke(l, call, declared, Authority(vault)); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	poolBal, _ := l.Balance(pool)
	if poolBal != 100 {
		t.Fatalf("expected pool to receive 100, got %d", poolBal)
	}
}

func TestDispatcher_IndexOutOfRange(t *testing.T) {
	l := newTestLedger(t)
	programAddr := addr(0xAA)

	d := NewDispatcher()
	d.Register(programAddr, ProgramFunc(func(ctx *CallContext) error { return nil }))

	declared := []model.Address{addr(1)}
	for _, idx := range []int{1, -1} {
		call := Call{Program: programAddr, Accounts: []int{idx}}
		if err := d.Invoke(l, call, declared, nil); !errors.Is(err, ErrCallAccountIndex) {
			t.Fatalf("expected ErrCallAccountIndex for index %d, got: %v", idx, err)
		}
	}
}

func TestDispatcher_UnknownProgram(t *testing.T) {
	l := newTestLedger(t)
	d := NewDispatcher()
	call := Call{Program: addr(0xAB)}
	if err := d.Invoke(l, call, nil, nil); !errors.Is(err, ErrUnknownProgram) {
		t.Fatalf("expected ErrUnknownProgram, got: %v", err)
	}
}

func TestTransfer_ProtectedReserve(t *testing.T) {
	l := newTestLedger(t)
	from, to := addr(1), addr(2)

	if err := l.Credit(from, 150); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	auth := Authority(from).Protect(from, 100)

	if err := l.Transfer(from, to, 100, auth); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds for transfer into the reserve, got: %v", err)
	}
	if err := l.Transfer(from, to, 50, auth); err != nil {
		t.Fatalf("Transfer above reserve failed: %v", err)
	}

	bal, _ := l.Balance(from)
	if bal != 100 {
		t.Fatalf("expected reserve 100 to remain, got %d", bal)
	}
	bal, _ = l.Balance(to)
	if bal != 50 {
		t.Fatalf("expected destination 50, got %d", bal)
	}

	// An unprotected address under the same authority debits to zero.
	other := addr(3)
	if err := l.Credit(other, 40); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := l.Transfer(other, to, 40, Authority(other)); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if val := auth.ReserveFor(other); val != 0 {
		t.Fatalf("expected zero reserve for unprotected address, got %d", val)
	}
}
