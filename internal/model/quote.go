package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Side is the trade direction relative to the base token.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide maps a request value to a Side. Empty defaults to SELL.
func ParseSide(value string) (Side, bool) {
	switch Side(value) {
	case SideBuy:
		return SideBuy, true
	case SideSell, "":
		return SideSell, true
	default:
		return "", false
	}
}

// SwapQuote is a priced swap with slippage bounds applied.
type SwapQuote struct {
	QuoteID         string          `json:"quoteId"`
	Kind            PoolKind        `json:"kind"`
	PoolAddress     string          `json:"poolAddress"`
	Fee             uint32          `json:"feeTier,omitempty"`
	Side            Side            `json:"side"`
	TokenIn         TokenDescriptor `json:"tokenIn"`
	TokenOut        TokenDescriptor `json:"tokenOut"`
	RawAmountIn     *big.Int        `json:"-"`
	RawAmountOut    *big.Int        `json:"-"`
	AmountIn        decimal.Decimal `json:"amountIn"`
	AmountOut       decimal.Decimal `json:"amountOut"`
	RawMinAmountOut *big.Int        `json:"-"`
	RawMaxAmountIn  *big.Int        `json:"-"`
	MinAmountOut    decimal.Decimal `json:"minAmountOut"`
	MaxAmountIn     decimal.Decimal `json:"maxAmountIn"`
	Price           decimal.Decimal `json:"price"`
	PriceImpactPct  decimal.Decimal `json:"priceImpactPct"`
	SlippagePct     decimal.Decimal `json:"slippagePct"`
	GasEstimate     uint64          `json:"gasEstimate,omitempty"`
	TicksCrossed    uint32          `json:"ticksCrossed,omitempty"`
}

// LiquidityQuote is a priced AMM deposit with slippage minimums applied.
type LiquidityQuote struct {
	PoolAddress       string          `json:"poolAddress"`
	BaseToken         TokenDescriptor `json:"baseToken"`
	QuoteToken        TokenDescriptor `json:"quoteToken"`
	RawBaseAmount     *big.Int        `json:"-"`
	RawQuoteAmount    *big.Int        `json:"-"`
	RawMinBaseAmount  *big.Int        `json:"-"`
	RawMinQuoteAmount *big.Int        `json:"-"`
	BaseTokenAmount   decimal.Decimal `json:"baseTokenAmount"`
	QuoteTokenAmount  decimal.Decimal `json:"quoteTokenAmount"`
	BaseLimited       bool            `json:"baseLimited"`
	SlippagePct       decimal.Decimal `json:"slippagePct"`
}
