package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToRaw(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"1.5", 18, "1500000000000000000"},
		{"2000", 6, "2000000000"},
		{"1.23456789", 6, "1234567"},
		{"0", 18, "0"},
	}
	for _, tc := range cases {
		raw, err := ToRaw(decimal.RequireFromString(tc.amount), tc.decimals)
		if err != nil {
			t.Fatalf("to raw %s: %v", tc.amount, err)
		}
		if raw.String() != tc.want {
			t.Fatalf("to raw %s mismatch: got %s want %s", tc.amount, raw, tc.want)
		}
	}
}

func TestToRawRejects(t *testing.T) {
	if _, err := ToRaw(decimal.RequireFromString("-1"), 18); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := ToRaw(decimal.New(1, 80), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for overflow, got %v", err)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(1_500_000), 6, "1.5"},
		{big.NewInt(1_000_000), 6, "1"},
		{big.NewInt(-25), 1, "-2.5"},
		{big.NewInt(42), 0, "42"},
		{nil, 18, "0"},
	}
	for _, tc := range cases {
		if got := FormatUnits(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("format %v mismatch: got %s want %s", tc.value, got, tc.want)
		}
	}
}

func TestFromRaw(t *testing.T) {
	got := FromRaw(big.NewInt(2_000_000_000), 6)
	if !got.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("from raw mismatch: got %s", got)
	}
}
