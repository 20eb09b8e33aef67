package model

import "github.com/shopspring/decimal"

// TxStatus is the outcome of a submitted transaction.
type TxStatus int

const (
	TxStatusFailed    TxStatus = -1
	TxStatusPending   TxStatus = 0
	TxStatusConfirmed TxStatus = 1
)

// TransactionResult is the common envelope of every write operation.
type TransactionResult struct {
	Signature string   `json:"signature"`
	Status    TxStatus `json:"status"`
}

// AddLiquidityData reports an AMM deposit or a position increase.
type AddLiquidityData struct {
	Fee                   string          `json:"fee"`
	BaseTokenAmountAdded  decimal.Decimal `json:"baseTokenAmountAdded"`
	QuoteTokenAmountAdded decimal.Decimal `json:"quoteTokenAmountAdded"`
	BaseWrapTxHash        string          `json:"baseWrapTxHash,omitempty"`
	QuoteWrapTxHash       string          `json:"quoteWrapTxHash,omitempty"`
}

// AddLiquidityResult is returned by AMM add liquidity and position increases.
type AddLiquidityResult struct {
	TransactionResult
	Data AddLiquidityData `json:"data"`
}

// RemoveLiquidityData reports an AMM withdrawal or a position decrease.
type RemoveLiquidityData struct {
	Fee                     string          `json:"fee"`
	BaseTokenAmountRemoved  decimal.Decimal `json:"baseTokenAmountRemoved"`
	QuoteTokenAmountRemoved decimal.Decimal `json:"quoteTokenAmountRemoved"`
}

// RemoveLiquidityResult is returned by AMM remove liquidity and position decreases.
type RemoveLiquidityResult struct {
	TransactionResult
	Data RemoveLiquidityData `json:"data"`
}

// SwapData reports an executed swap.
type SwapData struct {
	Fee                     string          `json:"fee"`
	TokenIn                 string          `json:"tokenIn"`
	TokenOut                string          `json:"tokenOut"`
	AmountIn                decimal.Decimal `json:"amountIn"`
	AmountOut               decimal.Decimal `json:"amountOut"`
	BaseTokenBalanceChange  decimal.Decimal `json:"baseTokenBalanceChange"`
	QuoteTokenBalanceChange decimal.Decimal `json:"quoteTokenBalanceChange"`
}

// SwapResult is returned by swap execution.
type SwapResult struct {
	TransactionResult
	Data SwapData `json:"data"`
}

// OpenPositionData reports a minted position.
type OpenPositionData struct {
	Fee                   string          `json:"fee"`
	PositionAddress       string          `json:"positionAddress"`
	BaseTokenAmountAdded  decimal.Decimal `json:"baseTokenAmountAdded"`
	QuoteTokenAmountAdded decimal.Decimal `json:"quoteTokenAmountAdded"`
	BaseWrapTxHash        string          `json:"baseWrapTxHash,omitempty"`
	QuoteWrapTxHash       string          `json:"quoteWrapTxHash,omitempty"`
}

// OpenPositionResult is returned by position opening.
type OpenPositionResult struct {
	TransactionResult
	Data OpenPositionData `json:"data"`
}

// ClosePositionData reports a withdrawn and burned position.
type ClosePositionData struct {
	Fee                     string          `json:"fee"`
	BaseTokenAmountRemoved  decimal.Decimal `json:"baseTokenAmountRemoved"`
	QuoteTokenAmountRemoved decimal.Decimal `json:"quoteTokenAmountRemoved"`
	BaseFeeAmountCollected  decimal.Decimal `json:"baseFeeAmountCollected"`
	QuoteFeeAmountCollected decimal.Decimal `json:"quoteFeeAmountCollected"`
}

// ClosePositionResult is returned by position closing.
type ClosePositionResult struct {
	TransactionResult
	Data ClosePositionData `json:"data"`
}

// CollectFeesData reports collected position fees.
type CollectFeesData struct {
	Fee                     string          `json:"fee"`
	BaseFeeAmountCollected  decimal.Decimal `json:"baseFeeAmountCollected"`
	QuoteFeeAmountCollected decimal.Decimal `json:"quoteFeeAmountCollected"`
}

// CollectFeesResult is returned by fee collection.
type CollectFeesResult struct {
	TransactionResult
	Data CollectFeesData `json:"data"`
}
