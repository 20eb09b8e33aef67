package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestNewSlippageBounds(t *testing.T) {
	slippage, err := NewSlippage(decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("new slippage: %v", err)
	}
	if slippage.Bps() != 100 {
		t.Fatalf("bps mismatch: got %d want 100", slippage.Bps())
	}
	if got := slippage.MinAmount(big.NewInt(1_000_000)); got.Cmp(big.NewInt(990_000)) != 0 {
		t.Fatalf("min amount mismatch: got %s want 990000", got)
	}
	maxIn, err := slippage.MaxAmount(big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("max amount: %v", err)
	}
	if maxIn.Cmp(big.NewInt(1_010_102)) != 0 {
		t.Fatalf("max amount mismatch: got %s want 1010102", maxIn)
	}
	if !slippage.Pct().Equal(decimal.NewFromInt(1)) {
		t.Fatalf("pct mismatch: got %s", slippage.Pct())
	}
}

func TestNewSlippageRejectsOutOfRange(t *testing.T) {
	for _, pct := range []string{"-0.01", "100.01", "250"} {
		if _, err := NewSlippage(decimal.RequireFromString(pct)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("slippage %s: expected ErrInvalidAmount, got %v", pct, err)
		}
	}
}

func TestFullSlippageHasNoMaximum(t *testing.T) {
	slippage, err := NewSlippage(decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("new slippage: %v", err)
	}
	if got := slippage.MinAmount(big.NewInt(5)); got.Sign() != 0 {
		t.Fatalf("min amount mismatch: got %s want 0", got)
	}
	if _, err := slippage.MaxAmount(big.NewInt(5)); !errors.Is(err, ErrUnboundedSlippage) {
		t.Fatalf("expected ErrUnboundedSlippage, got %v", err)
	}
}

func TestResolveSlippageFallsBack(t *testing.T) {
	slippage, err := ResolveSlippage(nil, decimal.RequireFromString("0.5"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if slippage.Bps() != 50 {
		t.Fatalf("fallback bps mismatch: got %d want 50", slippage.Bps())
	}
	explicit := decimal.RequireFromString("2.5")
	slippage, err = ResolveSlippage(&explicit, decimal.RequireFromString("0.5"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if slippage.Bps() != 250 {
		t.Fatalf("explicit bps mismatch: got %d want 250", slippage.Bps())
	}
}

func drawRaw(t *rapid.T) *big.Int {
	raw := new(big.Int).SetUint64(rapid.Uint64Range(1, 1<<63).Draw(t, "raw"))
	return raw.Lsh(raw, uint(rapid.IntRange(0, 128).Draw(t, "shift")))
}

func drawSlippage(t *rapid.T) Slippage {
	bps := rapid.Int64Range(0, BasisPoints-1).Draw(t, "bps")
	slippage, err := NewSlippage(decimal.New(bps, -2))
	if err != nil {
		t.Fatalf("new slippage: %v", err)
	}
	if slippage.Bps() != bps {
		t.Fatalf("bps mismatch: got %d want %d", slippage.Bps(), bps)
	}
	return slippage
}

func TestMinAmountProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := drawRaw(t)
		slippage := drawSlippage(t)

		if slippage.MinAmount(raw).Cmp(raw) > 0 {
			t.Fatalf("min amount above raw")
		}
		none, _ := NewSlippage(decimal.Zero)
		if none.MinAmount(raw).Cmp(raw) != 0 {
			t.Fatalf("zero slippage changed amount")
		}
	})
}

func TestMaxAmountProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := drawRaw(t)
		slippage := drawSlippage(t)

		maxIn, err := slippage.MaxAmount(raw)
		if err != nil {
			t.Fatalf("max amount: %v", err)
		}
		if maxIn.Cmp(raw) < 0 {
			t.Fatalf("max amount below raw")
		}
		none, _ := NewSlippage(decimal.Zero)
		exact, err := none.MaxAmount(raw)
		if err != nil || exact.Cmp(raw) != 0 {
			t.Fatalf("zero slippage changed amount: %v", err)
		}
	})
}

func TestMinAmountMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := drawRaw(t)
		a := drawSlippage(t)
		b := drawSlippage(t)
		if a.Bps() > b.Bps() {
			a, b = b, a
		}
		if a.MinAmount(raw).Cmp(b.MinAmount(raw)) < 0 {
			t.Fatalf("wider slippage raised the minimum")
		}
	})
}
