package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/dex"
	"koalaswap/internal/model"
)

// SwapEstimate is a priced swap in raw units, before slippage.
type SwapEstimate struct {
	RawAmountIn       *big.Int
	RawAmountOut      *big.Int
	PriceImpactPct    decimal.Decimal
	SqrtPriceAfterX96 *big.Int
	TicksCrossed      uint32
	GasEstimate       uint64
}

// LiquidityEstimate is the deposit that fits an AMM pool's ratio.
type LiquidityEstimate struct {
	RawBase     *big.Int
	RawQuote    *big.Int
	BaseLimited bool
}

// Oracle prices swaps and deposits from pool state and the on-chain quoter.
type Oracle struct {
	caller dex.Caller
	quoter common.Address
	logger *zap.Logger
}

// NewOracle builds an oracle that uses quoter for concentrated-liquidity quotes.
func NewOracle(caller dex.Caller, quoter common.Address, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{caller: caller, quoter: quoter, logger: logger}
}

// QuoteSwap prices a swap of tokenIn for tokenOut through pool. For SELL amount is the exact input;
// for BUY it is the exact output. Both tokens must be ERC20 members of the pool.
func (o *Oracle) QuoteSwap(ctx context.Context, pool model.PoolInfo, tokenIn, tokenOut model.TokenDescriptor, side model.Side, amount *big.Int) (SwapEstimate, error) {
	if amount == nil || amount.Sign() <= 0 {
		return SwapEstimate{}, fmt.Errorf("%w: swap amount must be positive", ErrInvalidAmount)
	}
	if !pool.HasToken(tokenIn) || !pool.HasToken(tokenOut) || tokenIn.SameAddress(tokenOut) {
		return SwapEstimate{}, fmt.Errorf("%w: %s/%s not in pool %s", ErrInvalidAmount, tokenIn.Symbol, tokenOut.Symbol, pool.Address)
	}
	if pool.Kind == model.PoolKindCLMM {
		return o.quoteCLMM(ctx, pool, tokenIn, tokenOut, side, amount)
	}
	return quoteAMM(pool, tokenIn, side, amount)
}

func quoteAMM(pool model.PoolInfo, tokenIn model.TokenDescriptor, side model.Side, amount *big.Int) (SwapEstimate, error) {
	reserveIn, reserveOut := pool.BaseReserve, pool.QuoteReserve
	if !pool.IsBase(tokenIn) {
		reserveIn, reserveOut = reserveOut, reserveIn
	}

	var est SwapEstimate
	if side == model.SideBuy {
		in, err := GetAmountIn(amount, reserveIn, reserveOut)
		if err != nil {
			return SwapEstimate{}, err
		}
		est.RawAmountIn, est.RawAmountOut = in, new(big.Int).Set(amount)
	} else {
		out, err := GetAmountOut(amount, reserveIn, reserveOut)
		if err != nil {
			return SwapEstimate{}, err
		}
		if out.Sign() == 0 {
			return SwapEstimate{}, fmt.Errorf("%w: output rounds to zero", ErrInsufficientLiquidity)
		}
		est.RawAmountIn, est.RawAmountOut = new(big.Int).Set(amount), out
	}
	est.PriceImpactPct = PriceImpactPct(est.RawAmountIn, est.RawAmountOut, reserveIn, reserveOut)
	return est, nil
}

func (o *Oracle) quoteCLMM(ctx context.Context, pool model.PoolInfo, tokenIn, tokenOut model.TokenDescriptor, side model.Side, amount *big.Int) (SwapEstimate, error) {
	parsed, err := dex.QuoterV2ABI()
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("parse quoter abi: %w", err)
	}

	method := "quoteExactInputSingle"
	if side == model.SideBuy {
		method = "quoteExactOutputSingle"
	}
	data, err := parsed.Pack(method,
		common.HexToAddress(tokenIn.Address),
		common.HexToAddress(tokenOut.Address),
		new(big.Int).SetUint64(uint64(pool.Fee)),
		amount,
		new(big.Int),
	)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("pack %s: %w", method, err)
	}

	resp, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.quoter, Data: data}, nil)
	if err != nil {
		o.logger.Debug("quoter call failed", zap.String("pool", pool.Address), zap.String("method", method), zap.Error(err))
		return SwapEstimate{}, fmt.Errorf("%w: quoter rejected %s: %w", ErrInsufficientLiquidity, method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 4 {
		return SwapEstimate{}, fmt.Errorf("unexpected %s values: %d", method, len(values))
	}

	quoted, ok := values[0].(*big.Int)
	if !ok {
		return SwapEstimate{}, fmt.Errorf("unexpected %s amount type %T", method, values[0])
	}
	est := SwapEstimate{}
	if side == model.SideBuy {
		est.RawAmountIn, est.RawAmountOut = quoted, new(big.Int).Set(amount)
	} else {
		est.RawAmountIn, est.RawAmountOut = new(big.Int).Set(amount), quoted
	}
	if after, ok := values[1].(*big.Int); ok {
		est.SqrtPriceAfterX96 = after
	}
	if crossed, ok := values[2].(uint32); ok {
		est.TicksCrossed = crossed
	}
	if gas, ok := values[3].(*big.Int); ok && gas.IsUint64() {
		est.GasEstimate = gas.Uint64()
	}

	midIn, midOut := midRate(pool.SqrtPriceX96, pool.IsBase(tokenIn))
	est.PriceImpactPct = PriceImpactPct(est.RawAmountIn, est.RawAmountOut, midIn, midOut)
	return est, nil
}

// midRate expresses price = sqrtP^2 / 2^192 as an integer ratio out/in.
func midRate(sqrtPriceX96 *big.Int, zeroForOne bool) (*big.Int, *big.Int) {
	if sqrtPriceX96 == nil {
		return nil, nil
	}
	priceNum := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	priceDen := new(big.Int).Lsh(big.NewInt(1), 192)
	if zeroForOne {
		return priceDen, priceNum
	}
	return priceNum, priceDen
}

// QuoteLiquidity fits an AMM deposit to the pool ratio.
func (o *Oracle) QuoteLiquidity(pool model.PoolInfo, rawBase, rawQuote *big.Int) (LiquidityEstimate, error) {
	base, quote, baseLimited, err := OptimalDeposit(rawBase, rawQuote, pool.BaseReserve, pool.QuoteReserve)
	if err != nil {
		return LiquidityEstimate{}, err
	}
	return LiquidityEstimate{RawBase: base, RawQuote: quote, BaseLimited: baseLimited}, nil
}

// PositionAmounts returns the token amounts held by liquidity in [tickLower, tickUpper] at the pool price.
func (o *Oracle) PositionAmounts(pool model.PoolInfo, tickLower, tickUpper int32, liquidity *big.Int) (*big.Int, *big.Int) {
	return AmountsForLiquidity(pool.SqrtPriceX96, SqrtRatioAtTick(tickLower), SqrtRatioAtTick(tickUpper), liquidity)
}

// MintAmounts sizes a deposit into [tickLower, tickUpper]. Either amount may be zero to size from the other.
func (o *Oracle) MintAmounts(pool model.PoolInfo, tickLower, tickUpper int32, raw0, raw1 *big.Int) (*big.Int, *big.Int, *big.Int, error) {
	if tickLower >= tickUpper {
		return nil, nil, nil, fmt.Errorf("%w: lower tick %d must be below upper tick %d", ErrInvalidAmount, tickLower, tickUpper)
	}
	sqrtP := pool.SqrtPriceX96
	sqrtA := SqrtRatioAtTick(tickLower)
	sqrtB := SqrtRatioAtTick(tickUpper)

	liquidity := MaxLiquidityForAmounts(sqrtP, sqrtA, sqrtB, raw0, raw1)
	if liquidity.Sign() == 0 {
		return nil, nil, nil, fmt.Errorf("%w: amounts cannot fund the range at the current price", ErrInvalidAmount)
	}
	amount0, amount1 := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return liquidity, amount0, amount1, nil
}

// PoolPrice is the human price of the base token in the quote token.
func PoolPrice(pool model.PoolInfo) decimal.Decimal {
	if pool.Kind == model.PoolKindCLMM {
		return PriceFromSqrtX96(pool.SqrtPriceX96, pool.BaseToken.Decimals, pool.QuoteToken.Decimals)
	}
	if pool.BaseReserve == nil || pool.QuoteReserve == nil || pool.BaseReserve.Sign() == 0 {
		return decimal.Zero
	}
	base := FromRaw(pool.BaseReserve, pool.BaseToken.Decimals)
	quote := FromRaw(pool.QuoteReserve, pool.QuoteToken.Decimals)
	return quote.DivRound(base, 18)
}
