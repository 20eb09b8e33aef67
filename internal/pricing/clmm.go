package pricing

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	MinTick = -887272
	MaxTick = 887272

	floatPrec = 256
)

var (
	q96      = new(big.Int).Lsh(big.NewInt(1), 96)
	q96Float = new(big.Float).SetPrec(floatPrec).SetInt(q96)

	// MinSqrtRatio and MaxSqrtRatio are the Q64.96 square-root prices at MinTick and MaxTick.
	MinSqrtRatio, _ = new(big.Int).SetString("4295128739", 10)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

// tickMagics[i] is 1/sqrt(1.0001^(2^i)) in Q128.128, as used by the pool contracts.
var tickMagics = [20]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// SqrtRatioAtTick returns the Q64.96 square-root price at tick, bit-exact with the pool contracts.
// Ticks outside [MinTick, MaxTick] are clamped.
func SqrtRatioAtTick(tick int32) *big.Int {
	if tick < MinTick {
		tick = MinTick
	}
	if tick > MaxTick {
		tick = MaxTick
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	if absTick&1 != 0 {
		ratio.Set(tickMagics[0])
	}
	for i := 1; i < len(tickMagics); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickMagics[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(new(uint256.Int).SetAllOne(), ratio)
	}

	// Shift Q128.128 down to Q64.96, rounding up.
	remainder := new(uint256.Int).And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.ToBig()
}

// TickAtSqrtRatio is the greatest tick whose square-root price is at or below sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) int32 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) <= 0 {
		return MinTick
	}
	if sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick
	}
	low, high := int32(MinTick), int32(MaxTick)
	for low < high {
		mid := low + (high-low+1)/2
		if SqrtRatioAtTick(mid).Cmp(sqrtPriceX96) <= 0 {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low
}

// TickToPrice is the human price of token0 in token1 at tick.
func TickToPrice(tick int32, decimals0, decimals1 uint8) decimal.Decimal {
	return PriceFromSqrtX96(SqrtRatioAtTick(tick), decimals0, decimals1)
}

// PriceToSqrtX96 encodes a human price of token0 in token1 as a Q64.96 square-root price, rounded down.
func PriceToSqrtX96(price decimal.Decimal, decimals0, decimals1 uint8) *big.Int {
	raw := price.Shift(int32(decimals1) - int32(decimals0))
	scaled := new(big.Int).Lsh(raw.Coefficient(), 192)
	if exp := raw.Exponent(); exp >= 0 {
		scaled.Mul(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	} else {
		scaled.Quo(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
	}
	return scaled.Sqrt(scaled)
}

// PriceToTick maps a human price of token0 in token1 to the nearest usable tick at or below it.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 uint8, tickSpacing int32) (int32, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: price must be positive", ErrInvalidAmount)
	}
	if tickSpacing <= 0 {
		tickSpacing = 1
	}

	tick := floorToSpacing(int64(TickAtSqrtRatio(PriceToSqrtX96(price, decimals0, decimals1))), int64(tickSpacing))
	minUsable := ceilToSpacing(MinTick, int64(tickSpacing))
	maxUsable := floorToSpacing(MaxTick, int64(tickSpacing))
	if tick < minUsable {
		tick = minUsable
	}
	if tick > maxUsable {
		tick = maxUsable
	}
	return int32(tick), nil
}

func floorToSpacing(tick, spacing int64) int64 {
	mod := ((tick % spacing) + spacing) % spacing
	return tick - mod
}

func ceilToSpacing(tick, spacing int64) int64 {
	floored := floorToSpacing(tick, spacing)
	if floored < tick {
		return floored + spacing
	}
	return floored
}

// PriceFromSqrtX96 is the human price of token0 in token1 for a Q64.96 square-root price.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil {
		return decimal.Zero
	}
	ratio := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPriceX96)
	ratio.Quo(ratio, q96Float)
	ratio.Mul(ratio, ratio)
	value, err := decimal.NewFromString(ratio.Text('g', 40))
	if err != nil {
		return decimal.Zero
	}
	return value.Shift(int32(decimals0) - int32(decimals1))
}

// mulDiv is floor(a * b / denominator) at full precision.
func mulDiv(a, b, denominator *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, denominator)
}

func orderedRatios(sqrtA, sqrtB *big.Int) (*big.Int, *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		return sqrtB, sqrtA
	}
	return sqrtA, sqrtB
}

// liquidityForAmount0 is amount0 * (a * b / Q96) / (b - a).
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	intermediate := mulDiv(sqrtA, sqrtB, q96)
	return mulDiv(amount0, intermediate, new(big.Int).Sub(sqrtB, sqrtA))
}

// liquidityForAmount1 is amount1 * Q96 / (b - a).
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	return mulDiv(amount1, q96, new(big.Int).Sub(sqrtB, sqrtA))
}

// MaxLiquidityForAmounts returns the liquidity the amounts can back in [sqrtA, sqrtB] at sqrtP.
// Inside the range a zero amount leaves that side unconstrained, so a single amount sizes the position.
func MaxLiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	sqrtA, sqrtB = orderedRatios(sqrtA, sqrtB)
	if sqrtP == nil {
		sqrtP = new(big.Int)
	}
	if amount0 == nil {
		amount0 = new(big.Int)
	}
	if amount1 == nil {
		amount1 = new(big.Int)
	}
	if sqrtA.Cmp(sqrtB) == 0 {
		return new(big.Int)
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) < 0:
		l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		switch {
		case amount0.Sign() == 0:
			return l1
		case amount1.Sign() == 0:
			return l0
		case l0.Cmp(l1) < 0:
			return l0
		default:
			return l1
		}
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// AmountsForLiquidity returns the token amounts liquidity represents in [sqrtA, sqrtB] at sqrtP, rounded down.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	sqrtA, sqrtB = orderedRatios(sqrtA, sqrtB)
	if liquidity == nil || liquidity.Sign() == 0 || sqrtA.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	if sqrtP == nil {
		sqrtP = new(big.Int)
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return amount0ForLiquidity(sqrtA, sqrtB, liquidity), new(big.Int)
	case sqrtP.Cmp(sqrtB) < 0:
		return amount0ForLiquidity(sqrtP, sqrtB, liquidity), amount1ForLiquidity(sqrtA, sqrtP, liquidity)
	default:
		return new(big.Int), amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	}
}

// amount0ForLiquidity is (L << 96) * (b - a) / b / a.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	shifted := new(big.Int).Lsh(liquidity, 96)
	out := mulDiv(shifted, new(big.Int).Sub(sqrtB, sqrtA), sqrtB)
	return out.Quo(out, sqrtA)
}

// amount1ForLiquidity is L * (b - a) / Q96.
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	return mulDiv(liquidity, new(big.Int).Sub(sqrtB, sqrtA), q96)
}
