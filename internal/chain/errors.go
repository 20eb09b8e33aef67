package chain

import (
	"errors"
	"strings"
)

var (
	// ErrWalletNotFound is returned when no signing key is held for an address.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrReverted is returned when a mined transaction has a failed status.
	ErrReverted = errors.New("transaction reverted")
)

// IsInsufficientFunds reports whether a node rejected a transaction for lack of native balance.
func IsInsufficientFunds(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient_funds")
}
