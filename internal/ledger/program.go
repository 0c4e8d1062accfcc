// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package ledger

import (
	"errors"
	"fmt"

	"github.com/toeirei/testudo/internal/model"
)

var (
	// ErrUnknownProgram is returned when a call names a program address no
	// handler is registered for.
	ErrUnknownProgram = errors.New("ledger: unknown program")
	// ErrCallAccountIndex is returned when a call references an account index
	// outside the operation's declared account list.
	ErrCallAccountIndex = errors.New("ledger: call account index out of range")
)

// Call is one opaque instruction to an external program: which program to
// run, which of the operation's declared accounts it may touch (by index),
// and an uninterpreted payload.
type Call struct {
	Program  model.Address
	Accounts []int
	Data     []byte
}

// CallContext is what a program executes against: the ledger, the accounts
// resolved from the call's indexes, the calling operation's signing
// authority, and the raw payload.
type CallContext struct {
	Ledger    *Ledger
	Accounts  []model.Address
	Authority *SigningAuthority
	Data      []byte
}

// Program handles calls dispatched to one program address.
type Program interface {
	Execute(ctx *CallContext) error
}

// ProgramFunc adapts a plain function to the Program interface.
type ProgramFunc func(ctx *CallContext) error

// Execute implements Program.
func (f ProgramFunc) Execute(ctx *CallContext) error {
	return f(ctx)
}

// Dispatcher routes calls to programs registered by address.
type Dispatcher struct {
	programs map[model.Address]Program
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{programs: make(map[model.Address]Program)}
}

// Register binds a program to its address, replacing any previous binding.
func (d *Dispatcher) Register(addr model.Address, p Program) {
	d.programs[addr] = p
}

// Invoke resolves the call's account indexes against the declared account
// list and executes the program under the given authority.
func (d *Dispatcher) Invoke(l *Ledger, call Call, declared []model.Address, auth *SigningAuthority) error {
	p, ok := d.programs[call.Program]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, call.Program.Short())
	}
	accounts := make([]model.Address, len(call.Accounts))
	for i, idx := range call.Accounts {
		if idx < 0 || idx >= len(declared) {
			return fmt.Errorf("%w: index %d of %d declared", ErrCallAccountIndex, idx, len(declared))
		}
		accounts[i] = declared[idx]
	}
	return p.Execute(&CallContext{
		Ledger:    l,
		Accounts:  accounts,
		Authority: auth,
		Data:      call.Data,
	})
}
