// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package fee

import (
	"errors"
	"math"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		amount  uint64
		rate    uint16
		wantFee uint64
		wantNet uint64
	}{
		{"default 15bps on 100k", 100_000, 15, 150, 99_850},
		{"zero rate", 100_000, 0, 0, 100_000},
		{"zero amount", 0, 15, 0, 0},
		{"full rate", 100_000, 10000, 100_000, 0},
		{"rounds down", 999, 15, 1, 998}, // 999*15/10000 = 1.4985
		{"tiny amount below one unit of fee", 10, 15, 0, 10},
		{"one bps", 10_000, 1, 1, 9_999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feeAmt, net, err := Split(tt.amount, tt.rate)
			if err != nil {
				t.Fatalf("Split(%d, %d) failed: %v", tt.amount, tt.rate, err)
			}
			if feeAmt != tt.wantFee || net != tt.wantNet {
				t.Errorf("Split(%d, %d) = (%d, %d), want (%d, %d)",
					tt.amount, tt.rate, feeAmt, net, tt.wantFee, tt.wantNet)
			}
			if feeAmt+net != tt.amount {
				t.Errorf("fee + net = %d, want exactly %d", feeAmt+net, tt.amount)
			}
		})
	}
}

func TestSplitFailsClosedOnOverflow(t *testing.T) {
	// MaxUint64 * 15 does not fit 64 bits; the engine must refuse, not wrap.
	if _, _, err := Split(math.MaxUint64, 15); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	// Rate 1 on MaxUint64 is the largest product that still fits 64 bits.
	feeAmt, net, err := Split(math.MaxUint64, 1)
	if err != nil {
		t.Errorf("Split(max, 1) failed: %v", err)
	}
	if feeAmt+net != math.MaxUint64 {
		t.Errorf("fee %d + net %d != MaxUint64", feeAmt, net)
	}
	// Rate 2 pushes the product past 64 bits; the engine must refuse, not wrap.
	if _, _, err := Split(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow for rate 2, got %v", err)
	}
	// Rate 0 never multiplies into overflow territory.
	feeAmt, net, err = Split(math.MaxUint64, 0)
	if err != nil || feeAmt != 0 || net != math.MaxUint64 {
		t.Errorf("Split(max, 0) = (%d, %d, %v), want (0, max, nil)", feeAmt, net, err)
	}
}

func TestSplitRejectsBadRate(t *testing.T) {
	if _, _, err := Split(100, 10001); !errors.Is(err, ErrRateOutOfRange) {
		t.Errorf("expected ErrRateOutOfRange, got %v", err)
	}
}

func TestCheckedAddSub(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Add overflow not detected: %v", err)
	}
	if _, err := Sub(0, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Sub underflow not detected: %v", err)
	}
	sum, err := Add(40, 2)
	if err != nil || sum != 42 {
		t.Errorf("Add(40, 2) = (%d, %v)", sum, err)
	}
	diff, err := Sub(44, 2)
	if err != nil || diff != 42 {
		t.Errorf("Sub(44, 2) = (%d, %v)", diff, err)
	}
}

func TestSaturating(t *testing.T) {
	if got := SaturatingAdd(math.MaxUint64, 5); got != math.MaxUint64 {
		t.Errorf("SaturatingAdd clamped to %d", got)
	}
	if got := SaturatingSub(3, 5); got != 0 {
		t.Errorf("SaturatingSub(3, 5) = %d, want 0", got)
	}
	if got := SaturatingAdd(1, 2); got != 3 {
		t.Errorf("SaturatingAdd(1, 2) = %d", got)
	}
}
