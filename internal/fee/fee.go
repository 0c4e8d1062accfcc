// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package fee implements the basis-point fee engine. All arithmetic is
// overflow-checked and fails closed: an operation that cannot compute its fee
// exactly does not move funds.
package fee

import (
	"errors"
	"math/bits"
)

// MaxBps is the fee rate denominator: 10000 basis points = 100%.
const MaxBps = 10000

var (
	// ErrOverflow is returned when checked arithmetic fails.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrRateOutOfRange is returned for rates above 10000 bps.
	ErrRateOutOfRange = errors.New("fee rate out of range")
)

// Split computes fee = floor(amount * rateBps / 10000) and net = amount - fee.
// The multiplication is performed on a 64-bit checked product; a product that
// would not fit 64 bits is rejected rather than widened silently.
// fee + net == amount holds exactly for every successful return.
func Split(amount uint64, rateBps uint16) (feeAmt, net uint64, err error) {
	if rateBps > MaxBps {
		return 0, 0, ErrRateOutOfRange
	}
	hi, lo := bits.Mul64(amount, uint64(rateBps))
	if hi != 0 {
		return 0, 0, ErrOverflow
	}
	feeAmt = lo / MaxBps
	// Cannot happen given the formula, but the net computation is checked
	// anyway so a future fee-point change cannot underflow.
	net, err = Sub(amount, feeAmt)
	if err != nil {
		return 0, 0, err
	}
	return feeAmt, net, nil
}

// Add returns a + b, failing on overflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b, failing on underflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// SaturatingAdd returns a + b, clamping at the maximum uint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

// SaturatingSub returns a - b, clamping at zero.
func SaturatingSub(a, b uint64) uint64 {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0
	}
	return diff
}
