package model

import "math/big"

// GasOptions carries the fee and limit settings for one submission.
// GasPrice is set for legacy pricing; MaxFeePerGas and MaxPriorityFeePerGas for EIP-1559.
type GasOptions struct {
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Value                *big.Int
}

// Legacy reports whether the options use a fixed gas price.
func (o GasOptions) Legacy() bool {
	return o.GasPrice != nil
}
