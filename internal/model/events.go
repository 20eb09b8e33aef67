package model

import "math/big"

// LiquidityEvent is a decoded deposit, withdrawal, or collection from a receipt.
// TokenID is set for position manager events and nil for pair events.
type LiquidityEvent struct {
	Name      string
	Address   string
	TokenID   *big.Int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// SwapEvent is a decoded swap. Amounts are signed from the pool's side: positive flows in.
type SwapEvent struct {
	Address string
	Amount0 *big.Int
	Amount1 *big.Int
}

// ReceiptEvents groups the events recognised in one receipt.
type ReceiptEvents struct {
	Deposits    []LiquidityEvent
	Withdrawals []LiquidityEvent
	Collects    []LiquidityEvent
	Swaps       []SwapEvent
	MintedIDs   []*big.Int
}
