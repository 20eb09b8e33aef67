package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PoolKind selects between the constant-product and concentrated-liquidity pools.
type PoolKind string

const (
	PoolKindAMM  PoolKind = "amm"
	PoolKindCLMM PoolKind = "clmm"
)

// ParsePoolKind maps a request value to a PoolKind.
func ParsePoolKind(value string) (PoolKind, bool) {
	switch PoolKind(value) {
	case PoolKindAMM:
		return PoolKindAMM, true
	case PoolKindCLMM:
		return PoolKindCLMM, true
	default:
		return "", false
	}
}

// PoolInfo is a pool snapshot. BaseToken is token0 and QuoteToken is token1.
type PoolInfo struct {
	Kind         PoolKind        `json:"kind"`
	Address      string          `json:"poolAddress"`
	BaseToken    TokenDescriptor `json:"baseToken"`
	QuoteToken   TokenDescriptor `json:"quoteToken"`
	BaseReserve  *big.Int        `json:"baseReserve,omitempty"`
	QuoteReserve *big.Int        `json:"quoteReserve,omitempty"`
	LPSupply     *big.Int        `json:"lpSupply,omitempty"`
	Fee          uint32          `json:"feeTier,omitempty"`
	TickSpacing  int32           `json:"tickSpacing,omitempty"`
	Tick         int32           `json:"tick,omitempty"`
	SqrtPriceX96 *big.Int        `json:"sqrtPriceX96,omitempty"`
	Liquidity    *big.Int        `json:"liquidity,omitempty"`
	Price        decimal.Decimal `json:"price"`
}

// HasToken reports whether the pool holds the given ERC20 token.
func (p PoolInfo) HasToken(token TokenDescriptor) bool {
	return p.BaseToken.SameAddress(token) || p.QuoteToken.SameAddress(token)
}

// IsBase reports whether token is the pool's base (token0).
func (p PoolInfo) IsBase(token TokenDescriptor) bool {
	return p.BaseToken.SameAddress(token)
}

// Position is a concentrated-liquidity position NFT with derived amounts.
type Position struct {
	TokenID          *big.Int        `json:"positionAddress"`
	Owner            string          `json:"owner"`
	PoolAddress      string          `json:"poolAddress"`
	BaseToken        TokenDescriptor `json:"baseToken"`
	QuoteToken       TokenDescriptor `json:"quoteToken"`
	Fee              uint32          `json:"feeTier"`
	TickLower        int32           `json:"lowerTick"`
	TickUpper        int32           `json:"upperTick"`
	Liquidity        *big.Int        `json:"liquidity"`
	TokensOwed0      *big.Int        `json:"-"`
	TokensOwed1      *big.Int        `json:"-"`
	LowerPrice       decimal.Decimal `json:"lowerPrice"`
	UpperPrice       decimal.Decimal `json:"upperPrice"`
	Price            decimal.Decimal `json:"price"`
	BaseTokenAmount  decimal.Decimal `json:"baseTokenAmount"`
	QuoteTokenAmount decimal.Decimal `json:"quoteTokenAmount"`
	BaseFeeAmount    decimal.Decimal `json:"baseFeeAmount"`
	QuoteFeeAmount   decimal.Decimal `json:"quoteFeeAmount"`
}
