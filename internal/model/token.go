package model

import "strings"

// NativeSymbol marks the chain's native currency in requests and descriptors.
const NativeSymbol = "ETH"

// NativeDecimals is the decimal count of the native currency.
const NativeDecimals = 18

// TokenDescriptor captures ERC20 metadata, or the native currency when Address is NativeSymbol.
type TokenDescriptor struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name,omitempty"`
}

// NativeToken returns the descriptor used for the native currency.
func NativeToken() TokenDescriptor {
	return TokenDescriptor{
		Symbol:   NativeSymbol,
		Address:  NativeSymbol,
		Decimals: NativeDecimals,
		Name:     "Native currency",
	}
}

// IsNative reports whether the descriptor names the native currency.
func (t TokenDescriptor) IsNative() bool {
	return t.Address == NativeSymbol
}

// SameAddress reports whether both descriptors point at the same contract.
func (t TokenDescriptor) SameAddress(other TokenDescriptor) bool {
	return strings.EqualFold(t.Address, other.Address)
}

// IsNativeSymbol reports whether a request token names the native currency.
func IsNativeSymbol(symbol string) bool {
	return strings.EqualFold(strings.TrimSpace(symbol), NativeSymbol)
}
