package pricing

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	ammFeeNumerator   = 997
	ammFeeDenominator = 1000
)

// GetAmountOut is the constant-product output for an exact input after the 0.3% fee.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: input must be positive", ErrInvalidAmount)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(ammFeeNumerator))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(ammFeeDenominator))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn is the constant-product input needed for an exact output after the 0.3% fee.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: output must be positive", ErrInvalidAmount)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(ammFeeDenominator))
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(ammFeeNumerator))
	out := numerator.Div(numerator, denominator)
	return out.Add(out, big.NewInt(1)), nil
}

// QuoteProportional returns amountA * reserveB / reserveA.
func QuoteProportional(amountA, reserveA, reserveB *big.Int) *big.Int {
	out := new(big.Int).Mul(amountA, reserveB)
	return out.Div(out, reserveA)
}

// OptimalDeposit fits desired amounts to the pool ratio without exceeding either.
// baseLimited reports that the base amount was used in full. Empty pools accept both as given.
func OptimalDeposit(desiredBase, desiredQuote, reserveBase, reserveQuote *big.Int) (*big.Int, *big.Int, bool, error) {
	if desiredBase == nil || desiredQuote == nil || desiredBase.Sign() <= 0 || desiredQuote.Sign() <= 0 {
		return nil, nil, false, fmt.Errorf("%w: both deposit amounts must be positive", ErrInvalidAmount)
	}
	if reserveBase == nil || reserveQuote == nil || reserveBase.Sign() == 0 || reserveQuote.Sign() == 0 {
		return new(big.Int).Set(desiredBase), new(big.Int).Set(desiredQuote), true, nil
	}

	quoteOptimal := QuoteProportional(desiredBase, reserveBase, reserveQuote)
	if quoteOptimal.Cmp(desiredQuote) <= 0 {
		return new(big.Int).Set(desiredBase), quoteOptimal, true, nil
	}
	baseOptimal := QuoteProportional(desiredQuote, reserveQuote, reserveBase)
	return baseOptimal, new(big.Int).Set(desiredQuote), false, nil
}

// WithdrawAmounts returns the reserves owed for burning liquidity out of totalSupply.
func WithdrawAmounts(liquidity, reserve0, reserve1, totalSupply *big.Int) (*big.Int, *big.Int, error) {
	if totalSupply == nil || totalSupply.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	amount0 := new(big.Int).Mul(liquidity, reserve0)
	amount0.Div(amount0, totalSupply)
	amount1 := new(big.Int).Mul(liquidity, reserve1)
	amount1.Div(amount1, totalSupply)
	return amount0, amount1, nil
}

// ShareOf returns floor(amount * bps / 10000).
func ShareOf(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bps))
	return out.Div(out, big.NewInt(BasisPoints))
}

// PercentToBps converts a percentage in (0, 100] to basis points.
func PercentToBps(pct decimal.Decimal) (int64, error) {
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return 0, fmt.Errorf("%w: percentage %s outside (0, 100]", ErrInvalidAmount, pct)
	}
	bps := pct.Mul(hundred).Round(0).IntPart()
	if bps == 0 {
		return 0, fmt.Errorf("%w: percentage %s rounds to zero", ErrInvalidAmount, pct)
	}
	return bps, nil
}

// PriceImpactPct compares the execution rate to the pre-trade mid rate, in percent.
// midOut/midIn is the pool's marginal rate of out per in, all in raw units.
func PriceImpactPct(amountIn, amountOut, midIn, midOut *big.Int) decimal.Decimal {
	if amountIn == nil || amountOut == nil || midIn == nil || midOut == nil ||
		amountIn.Sign() == 0 || midOut.Sign() == 0 {
		return decimal.Zero
	}
	// 1 - (amountOut * midIn) / (amountIn * midOut)
	num := new(big.Int).Mul(amountOut, midIn)
	den := new(big.Int).Mul(amountIn, midOut)
	ratio := new(big.Rat).SetFrac(num, den)
	impact := new(big.Rat).Sub(big.NewRat(1, 1), ratio)
	impact.Mul(impact, big.NewRat(100, 1))
	return decimalFromRat(impact)
}

func decimalFromRat(r *big.Rat) decimal.Decimal {
	value, err := decimal.NewFromString(r.FloatString(18))
	if err != nil {
		return decimal.Zero
	}
	return value
}
