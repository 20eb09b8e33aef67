package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for negative, zero where positive is required, or unrepresentable amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientLiquidity is returned when a pool cannot fill the requested amount.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// ToRaw scales a human amount to integer units, truncating precision beyond decimals.
// The result must fit in uint256.
func ToRaw(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	raw := amount.Shift(int32(decimals)).BigInt()
	if _, overflow := uint256.FromBig(raw); overflow {
		return nil, fmt.Errorf("%w: %s exceeds uint256", ErrInvalidAmount, amount)
	}
	return raw, nil
}

// FromRaw converts integer units to a human amount.
func FromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FormatUnits renders integer units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	if sign < 0 {
		return "-" + text
	}
	return text
}
