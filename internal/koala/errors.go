package koala

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"koalaswap/internal/chain"
	"koalaswap/internal/config"
	"koalaswap/internal/dex"
	"koalaswap/internal/pricing"
)

// Kind classifies orchestrator failures for callers.
type Kind string

const (
	KindMissingParameter          Kind = "MissingParameter"
	KindInvalidAmount             Kind = "InvalidAmount"
	KindUnsupportedToken          Kind = "UnsupportedToken"
	KindUnsupportedNetwork        Kind = "UnsupportedNetwork"
	KindPoolNotFound              Kind = "PoolNotFound"
	KindPositionNotFound          Kind = "PositionNotFound"
	KindWalletNotFound            Kind = "WalletNotFound"
	KindInsufficientAllowance     Kind = "InsufficientAllowance"
	KindInsufficientNativeBalance Kind = "InsufficientNativeBalance"
	KindChainSubmissionFailure    Kind = "ChainSubmissionFailure"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMissingParameter          error = &Error{Kind: KindMissingParameter}
	ErrInvalidAmount             error = &Error{Kind: KindInvalidAmount}
	ErrUnsupportedToken          error = &Error{Kind: KindUnsupportedToken}
	ErrUnsupportedNetwork        error = &Error{Kind: KindUnsupportedNetwork}
	ErrPoolNotFound              error = &Error{Kind: KindPoolNotFound}
	ErrPositionNotFound          error = &Error{Kind: KindPositionNotFound}
	ErrWalletNotFound            error = &Error{Kind: KindWalletNotFound}
	ErrInsufficientAllowance     error = &Error{Kind: KindInsufficientAllowance}
	ErrInsufficientNativeBalance error = &Error{Kind: KindInsufficientNativeBalance}
	ErrChainSubmissionFailure    error = &Error{Kind: KindChainSubmissionFailure}
)

const insufficientNativeMessage = "Insufficient ETH balance to pay for gas fees. Please add more ETH to your wallet."

// Error is a classified failure. Message is safe to show callers; Err keeps the cause.
// Wrap hashes are set when a wrap was mined before the failure. TxHash is set when a
// transaction was broadcast but its receipt never arrived, so its outcome is unknown.
type Error struct {
	Kind            Kind
	Message         string
	Err             error
	BaseWrapTxHash  string
	QuoteWrapTxHash string
	TxHash          string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func missing(field string) *Error {
	return newError(KindMissingParameter, "Missing required parameter: %s", field)
}

// AllowanceError names the token, amount, and spender a caller must approve.
type AllowanceError struct {
	Symbol      string
	Required    decimal.Decimal
	RawRequired *big.Int
	Current     *big.Int
	Spender     common.Address
	SpenderName string
}

func (e *AllowanceError) Error() string {
	return fmt.Sprintf("Insufficient allowance for %s. Please approve at least %s %s for the %s (%s)",
		e.Symbol, e.Required.String(), e.Symbol, e.SpenderName, e.Spender.Hex())
}

// classify maps collaborator errors onto a Kind. failure is the caller-safe message for
// otherwise unclassified chain errors.
func classify(err error, failure string) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var allowance *AllowanceError
	switch {
	case errors.As(err, &allowance):
		return &Error{Kind: KindInsufficientAllowance, Message: allowance.Error(), Err: err}
	case errors.Is(err, config.ErrUnsupportedNetwork):
		return &Error{Kind: KindUnsupportedNetwork, Message: err.Error(), Err: err}
	case errors.Is(err, dex.ErrPoolNotFound):
		return &Error{Kind: KindPoolNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, dex.ErrPositionNotFound):
		return &Error{Kind: KindPositionNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, dex.ErrTokenNotFound):
		return &Error{Kind: KindUnsupportedToken, Message: err.Error(), Err: err}
	case errors.Is(err, chain.ErrWalletNotFound):
		return &Error{Kind: KindWalletNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, pricing.ErrInvalidAmount),
		errors.Is(err, pricing.ErrUnboundedSlippage),
		errors.Is(err, pricing.ErrInsufficientLiquidity):
		return &Error{Kind: KindInvalidAmount, Message: err.Error(), Err: err}
	case chain.IsInsufficientFunds(err):
		return &Error{Kind: KindInsufficientNativeBalance, Message: insufficientNativeMessage, Err: err}
	default:
		return &Error{Kind: KindChainSubmissionFailure, Message: failure, Err: err}
	}
}
