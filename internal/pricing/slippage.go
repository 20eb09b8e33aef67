package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// BasisPoints is the denominator of every slippage ratio.
const BasisPoints = 10000

// ErrUnboundedSlippage is returned when a maximum input is requested at 100% tolerance.
var ErrUnboundedSlippage = errors.New("slippage of 100% leaves no bound on input")

var hundred = decimal.NewFromInt(100)

// Slippage is a tolerance in whole basis points.
type Slippage struct {
	bps int64
}

// NewSlippage converts a percentage in [0, 100] to basis points, rounding half away from zero.
func NewSlippage(pct decimal.Decimal) (Slippage, error) {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return Slippage{}, fmt.Errorf("%w: slippage %s%% outside [0, 100]", ErrInvalidAmount, pct)
	}
	return Slippage{bps: pct.Mul(hundred).Round(0).IntPart()}, nil
}

// ResolveSlippage uses pct when given and the configured default otherwise.
func ResolveSlippage(pct *decimal.Decimal, fallback decimal.Decimal) (Slippage, error) {
	if pct != nil {
		return NewSlippage(*pct)
	}
	return NewSlippage(fallback)
}

// Bps returns the tolerance in basis points.
func (s Slippage) Bps() int64 {
	return s.bps
}

// Pct returns the tolerance as a percentage.
func (s Slippage) Pct() decimal.Decimal {
	return decimal.New(s.bps, -2)
}

// Retained returns the kept fraction as (10000 - bps) / 10000.
func (s Slippage) Retained() (*big.Int, *big.Int) {
	return big.NewInt(BasisPoints - s.bps), big.NewInt(BasisPoints)
}

// MinAmount returns floor(raw * retained).
func (s Slippage) MinAmount(raw *big.Int) *big.Int {
	if raw == nil {
		return new(big.Int)
	}
	num, den := s.Retained()
	out := new(big.Int).Mul(raw, num)
	return out.Div(out, den)
}

// MaxAmount returns ceil(raw / retained).
func (s Slippage) MaxAmount(raw *big.Int) (*big.Int, error) {
	num, den := s.Retained()
	if num.Sign() == 0 {
		return nil, ErrUnboundedSlippage
	}
	if raw == nil {
		return new(big.Int), nil
	}
	out := new(big.Int).Mul(raw, den)
	out.Add(out, new(big.Int).Sub(num, big.NewInt(1)))
	return out.Div(out, num), nil
}
