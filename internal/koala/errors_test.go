package koala

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"koalaswap/internal/chain"
	"koalaswap/internal/config"
	"koalaswap/internal/dex"
	"koalaswap/internal/pricing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"network", fmt.Errorf("load: %w", config.ErrUnsupportedNetwork), KindUnsupportedNetwork},
		{"pool", fmt.Errorf("%w: 0xabc", dex.ErrPoolNotFound), KindPoolNotFound},
		{"position", fmt.Errorf("%w: 9", dex.ErrPositionNotFound), KindPositionNotFound},
		{"token", fmt.Errorf("%w: DOGE", dex.ErrTokenNotFound), KindUnsupportedToken},
		{"wallet", fmt.Errorf("%w: 0x1", chain.ErrWalletNotFound), KindWalletNotFound},
		{"amount", fmt.Errorf("%w: negative", pricing.ErrInvalidAmount), KindInvalidAmount},
		{"unbounded", pricing.ErrUnboundedSlippage, KindInvalidAmount},
		{"liquidity", fmt.Errorf("%w: quoter", pricing.ErrInsufficientLiquidity), KindInvalidAmount},
		{"gas", errors.New("insufficient funds for gas * price + value"), KindInsufficientNativeBalance},
		{"revert", fmt.Errorf("%w: 0xdead", chain.ErrReverted), KindChainSubmissionFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err, "Failed to add liquidity")
			require.Equal(t, tc.kind, got.Kind)
			require.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassifyHidesUnclassifiedCause(t *testing.T) {
	got := classify(errors.New("rpc: connection reset by peer"), "Failed to execute swap")
	require.Equal(t, "Failed to execute swap", got.Error())
	require.ErrorIs(t, got, ErrChainSubmissionFailure)
}

func TestClassifyKeepsTypedErrors(t *testing.T) {
	original := missing("poolAddress")
	got := classify(fmt.Errorf("request: %w", original), "ignored")
	require.Same(t, original, got)
	require.ErrorIs(t, got, ErrMissingParameter)
	require.NotErrorIs(t, got, ErrPoolNotFound)
}

func TestAllowanceErrorMessage(t *testing.T) {
	err := &AllowanceError{
		Symbol:      "USDC",
		Required:    decimal.RequireFromString("1"),
		RawRequired: big.NewInt(1_000_000),
		Current:     new(big.Int),
		Spender:     common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		SpenderName: "KoalaSwap router",
	}
	require.Equal(t,
		"Insufficient allowance for USDC. Please approve at least 1 USDC for the KoalaSwap router ("+err.Spender.Hex()+")",
		err.Error())
	require.Equal(t, KindInsufficientAllowance, classify(err, "").Kind)
}
