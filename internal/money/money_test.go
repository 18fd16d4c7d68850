package money

import (
	"math"
	"testing"
)

func TestMulBps(t *testing.T) {
	tests := []struct {
		name string
		a    Amount
		bps  int64
		want Amount
	}{
		{"seventy percent", 100000, 7000, 70000},
		{"discounted", 90000, 7000, 63000},
		{"floors fraction", 333, 7000, 233},
		{"zero", 0, 7000, 0},
		{"full", 12345, BpsDenominator, 12345},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.MulBps(tt.bps); got != tt.want {
				t.Errorf("MulBps: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPercentAndProrate(t *testing.T) {
	if got := Amount(100000).Percent(10); got != 10000 {
		t.Errorf("Percent: got %d, want 10000", got)
	}
	if got := Amount(70000).Prorate(50000, 140000); got != 25000 {
		t.Errorf("Prorate: got %d, want 25000", got)
	}
	if got := Amount(10).Prorate(1, 3); got != 3 {
		t.Errorf("Prorate floors: got %d, want 3", got)
	}
}

func TestProrateLargeAmounts(t *testing.T) {
	tests := []struct {
		name        string
		a, num, den Amount
		want        Amount
	}{
		{"full refund of a 40M rupiah order", 2_800_000_000, 4_000_000_000, 4_000_000_000, 2_800_000_000},
		{"half of it", 2_800_000_000, 2_000_000_000, 4_000_000_000, 1_400_000_000},
		{"product past int64", 9_000_000_000_000, 3_000_000_000, 9_000_000_000, 3_000_000_000_000},
		{"negative truncates toward zero", -10, 1, 3, -3},
		{"negative numerator", 7, -2, 3, -4},
		{"max int64", math.MaxInt64, 1, 1, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Prorate(tt.num, tt.den); got != tt.want {
				t.Errorf("Prorate(%d, %d, %d) = %d, want %d", tt.a, tt.num, tt.den, got, tt.want)
			}
		})
	}
	if got := Amount(4_000_000_000_000_000).MulBps(7000); got != 2_800_000_000_000_000 {
		t.Errorf("MulBps on a large amount: got %d", got)
	}
}

func TestProrateOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when the quotient does not fit")
		}
	}()
	_ = Amount(math.MaxInt64).Prorate(2, 1)
}

func TestProrateZeroDenominatorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero denominator")
		}
	}()
	_ = Amount(1).Prorate(1, 0)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		a    Amount
		cur  string
		want string
	}{
		{140000, "idr", "Rp1400.00"},
		{4900, "USD", "$49.00"},
		{-705, "usd", "-$7.05"},
		{100, "jpy", "¥100"},
		{1, "chf", "CHF 0.01"},
	}
	for _, tt := range tests {
		if got := Format(tt.a, tt.cur); got != tt.want {
			t.Errorf("Format(%d, %s): got %q, want %q", tt.a, tt.cur, got, tt.want)
		}
	}
}

func TestMinMaxSum(t *testing.T) {
	if Min(3, 5) != 3 || Max(3, 5) != 5 {
		t.Error("Min/Max mismatch")
	}
	if got := Sum(1, 2, 3); got != 6 {
		t.Errorf("Sum: got %d, want 6", got)
	}
	if Amount(-4).Abs() != 4 {
		t.Error("Abs mismatch")
	}
}
