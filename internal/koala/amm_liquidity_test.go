package koala

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"koalaswap/internal/model"
)

func TestAddLiquidityTokenPair(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wethToken, testAddresses.V2Router, units(1, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(2000, 6))

	res, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wethUSDCPair,
		BaseTokenAmount:  dec("1"),
		QuoteTokenAmount: dec("2000"),
	})
	require.NoError(t, err)
	require.Equal(t, model.TxStatusConfirmed, res.Status)
	require.NotEmpty(t, res.Signature)
	require.Equal(t, "0.00021", res.Data.Fee)
	require.True(t, res.Data.BaseTokenAmountAdded.Equal(*dec("1")))
	require.True(t, res.Data.QuoteTokenAmountAdded.Equal(*dec("2000")))
	require.Empty(t, res.Data.BaseWrapTxHash)

	sub := h.gateway.last(t)
	require.Equal(t, "addLiquidity", sub.call.Method)
	require.Equal(t, testAddresses.V2Router, sub.call.To)
	require.Equal(t, uint64(ammAddLiquidityGasLimit), sub.gas.GasLimit)
	require.Nil(t, sub.gas.Value)
	args := sub.call.Args
	require.Equal(t, 0, units(1, 18).Cmp(args[2].(*big.Int)))
	require.Equal(t, 0, units(2000, 6).Cmp(args[3].(*big.Int)))
	require.Equal(t, "990000000000000000", args[4].(*big.Int).String())
	require.Equal(t, "1980000000", args[5].(*big.Int).String())
	require.Equal(t, h.signer.Address, args[6])
	require.Equal(t, testNow.Unix()+1200, args[7].(*big.Int).Int64())

	require.Len(t, h.journal.records, 1)
	record := h.journal.records[0]
	require.Equal(t, model.TxStatusConfirmed, record.Status)
	require.Equal(t, res.Signature, record.TxHash)
	require.Equal(t, opAMMAddLiquidity, record.Operation)
	require.Equal(t, uint64(88811), record.ChainID)
}

func TestAddLiquidityWrapsNativeBeforeQuoting(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wunit0Token, testAddresses.V2Router, units(10, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(10, 6))

	res, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wunit0USDCPair,
		BaseToken:        "ETH",
		QuoteToken:       "USDC",
		BaseTokenAmount:  dec("1.5"),
		QuoteTokenAmount: dec("3"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"submit:deposit", "quote", "submit:addLiquidity"}, *h.trace)
	require.Equal(t, 1, h.gateway.count("deposit"))
	require.Equal(t, "1500000000000000000", h.gateway.submits[0].gas.Value.String())
	require.Equal(t, addressOf(wunit0Token), h.gateway.submits[0].call.To)
	require.NotEmpty(t, res.Data.BaseWrapTxHash)
	require.Empty(t, res.Data.QuoteWrapTxHash)
	require.Equal(t, res.Data.BaseWrapTxHash, h.journal.records[0].BaseWrapTxHash)
}

func TestAddLiquidityReversedTokensSwapAmounts(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wethToken, testAddresses.V2Router, units(1, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(2000, 6))

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wethUSDCPair,
		BaseToken:        "USDC",
		QuoteToken:       "WETH",
		BaseTokenAmount:  dec("2000"),
		QuoteTokenAmount: dec("1"),
	})
	require.NoError(t, err)
	args := h.gateway.last(t).call.Args
	require.Equal(t, 0, units(1, 18).Cmp(args[2].(*big.Int)))
	require.Equal(t, 0, units(2000, 6).Cmp(args[3].(*big.Int)))
}

func TestAddLiquidityAllowanceShortCircuit(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wethToken, testAddresses.V2Router, units(1, 18))

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wethUSDCPair,
		BaseTokenAmount:  dec("0.0005"),
		QuoteTokenAmount: dec("1"),
	})
	typed := requireKind(t, err, KindInsufficientAllowance)
	require.Contains(t, typed.Message, "USDC")
	require.Contains(t, typed.Message, testAddresses.V2Router.Hex())

	var allowance *AllowanceError
	require.True(t, errors.As(err, &allowance))
	require.Equal(t, "1000000", allowance.RawRequired.String())
	require.Equal(t, 0, allowance.Current.Sign())

	require.Empty(t, h.gateway.submits)
	require.Empty(t, h.journal.records)
}

func TestAddLiquidityNativeEntryPoint(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(10, 6))

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wunit0USDCPair,
		BaseTokenAmount:  dec("1"),
		QuoteTokenAmount: dec("2"),
	})
	require.NoError(t, err)
	sub := h.gateway.last(t)
	require.Equal(t, "addLiquidityETH", sub.call.Method)
	require.Equal(t, addressOf(usdcToken), sub.call.Args[0])
	require.Equal(t, "2000000", sub.call.Args[1].(*big.Int).String())
	require.Equal(t, "990000000000000000", sub.call.Args[3].(*big.Int).String())
	require.Equal(t, units(1, 18).String(), sub.gas.Value.String())
	require.Zero(t, h.gateway.count("deposit"))
}

func TestAddLiquidityFailureKeepsWrapHash(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wunit0Token, testAddresses.V2Router, units(10, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(10, 6))
	h.gateway.submitErr = errors.New("insufficient funds for gas * price + value")

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wunit0USDCPair,
		BaseToken:        "ETH",
		BaseTokenAmount:  dec("1.5"),
		QuoteTokenAmount: dec("3"),
	})
	typed := requireKind(t, err, KindInsufficientNativeBalance)
	require.Equal(t, insufficientNativeMessage, typed.Message)
	require.NotEmpty(t, typed.BaseWrapTxHash)

	require.Len(t, h.journal.records, 1)
	require.Equal(t, model.TxStatusFailed, h.journal.records[0].Status)
	require.Equal(t, string(StageSubmitting), h.journal.records[0].Stage)
}

func TestAddLiquidityWrapChecksNativeBalance(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wunit0Token, testAddresses.V2Router, units(10, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(10, 6))
	h.gateway.native = units(1, 18)

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wunit0USDCPair,
		BaseToken:        "ETH",
		BaseTokenAmount:  dec("1.5"),
		QuoteTokenAmount: dec("3"),
	})
	typed := requireKind(t, err, KindInsufficientNativeBalance)
	require.Empty(t, typed.BaseWrapTxHash)
	require.Zero(t, h.gateway.count("deposit"))
	require.Empty(t, h.journal.records)
}

func TestAddLiquidityValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: h.txOptions(), BaseTokenAmount: dec("1"), QuoteTokenAmount: dec("1")})
	requireKind(t, err, KindMissingParameter)

	_, err = h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: h.txOptions(), PoolAddress: wethUSDCPair, QuoteTokenAmount: dec("1")})
	typed := requireKind(t, err, KindMissingParameter)
	require.Equal(t, "Missing required parameter: baseTokenAmount", typed.Message)

	_, err = h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: h.txOptions(), PoolAddress: wethUSDCPair, BaseTokenAmount: dec("-1"), QuoteTokenAmount: dec("1")})
	requireKind(t, err, KindInvalidAmount)

	_, err = h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: h.txOptions(), PoolAddress: "0x00000000000000000000000000000000000000ff", BaseTokenAmount: dec("1"), QuoteTokenAmount: dec("1")})
	require.ErrorIs(t, err, ErrPoolNotFound)

	_, err = h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: h.txOptions(), PoolAddress: wethUSDCPair, BaseToken: "DOGE", BaseTokenAmount: dec("1"), QuoteTokenAmount: dec("1")})
	requireKind(t, err, KindUnsupportedToken)

	opts := h.txOptions()
	opts.Network = "goerli"
	_, err = h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: opts, PoolAddress: wethUSDCPair, BaseTokenAmount: dec("1"), QuoteTokenAmount: dec("1")})
	requireKind(t, err, KindUnsupportedNetwork)

	opts = h.txOptions()
	opts.WalletAddress = "0x0000000000000000000000000000000000000bad"
	_, err = h.svc.AddLiquidity(ctx, AddLiquidityRequest{TxOptions: opts, PoolAddress: wethUSDCPair, BaseTokenAmount: dec("1"), QuoteTokenAmount: dec("1")})
	requireKind(t, err, KindWalletNotFound)

	require.Empty(t, h.gateway.submits)
}

func TestAddLiquidityDefaultsToFirstWallet(t *testing.T) {
	h := newHarness(t)
	h.gateway.approve(wethToken, testAddresses.V2Router, units(1, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(2000, 6))

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		PoolAddress:      wethUSDCPair,
		BaseTokenAmount:  dec("1"),
		QuoteTokenAmount: dec("2000"),
	})
	require.NoError(t, err)
	require.Equal(t, h.signer.Address, h.gateway.last(t).call.Args[6])
	require.Equal(t, h.wallet(), h.journal.records[0].Wallet)
}

func TestQuoteLiquidityIsReadOnly(t *testing.T) {
	h := newHarness(t)

	quote, err := h.svc.QuoteLiquidity(context.Background(), AddLiquidityRequest{
		PoolAddress:      wethUSDCPair,
		BaseTokenAmount:  dec("1"),
		QuoteTokenAmount: dec("5000"),
	})
	require.NoError(t, err)
	require.True(t, quote.BaseLimited)
	require.True(t, quote.QuoteTokenAmount.Equal(*dec("2000")))
	require.Equal(t, "1980000000", quote.RawMinQuoteAmount.String())
	require.True(t, quote.SlippagePct.Equal(*dec("1")))
	require.Empty(t, h.gateway.submits)
	require.Empty(t, h.journal.records)
}

func TestRemoveLiquidity(t *testing.T) {
	h := newHarness(t)
	pair := common0x(wethUSDCPair)
	h.gateway.balances[pair] = units(2, 18)
	h.gateway.approve(model.TokenDescriptor{Address: wethUSDCPair}, testAddresses.V2Router, units(1, 18))

	res, err := h.svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{
		TxOptions:          h.txOptions(),
		PoolAddress:        wethUSDCPair,
		PercentageToRemove: dec("50"),
	})
	require.NoError(t, err)
	require.True(t, res.Data.BaseTokenAmountRemoved.Equal(*dec("10")))
	require.True(t, res.Data.QuoteTokenAmountRemoved.Equal(*dec("20000")))

	sub := h.gateway.last(t)
	require.Equal(t, "removeLiquidity", sub.call.Method)
	require.Equal(t, units(1, 18).String(), sub.call.Args[2].(*big.Int).String())
	require.Equal(t, "9900000000000000000", sub.call.Args[3].(*big.Int).String())
	require.Equal(t, "19800000000", sub.call.Args[4].(*big.Int).String())
	require.Equal(t, uint64(ammRemoveLiquidityGasLimit), sub.gas.GasLimit)
}

func TestRemoveLiquidityRejectsEmptyBalance(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{
		TxOptions:          h.txOptions(),
		PoolAddress:        wethUSDCPair,
		PercentageToRemove: dec("100"),
	})
	requireKind(t, err, KindInvalidAmount)

	_, err = h.svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{
		TxOptions:          h.txOptions(),
		PoolAddress:        wethUSDCPair,
		PercentageToRemove: dec("150"),
	})
	requireKind(t, err, KindInvalidAmount)
	require.Empty(t, h.gateway.submits)
}

func TestRemoveLiquidityNativeLeg(t *testing.T) {
	h := newHarness(t)
	h.gateway.balances[common0x(wunit0USDCPair)] = units(4, 18)
	h.gateway.approve(model.TokenDescriptor{Address: wunit0USDCPair}, testAddresses.V2Router, units(4, 18))

	_, err := h.svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{
		TxOptions:          h.txOptions(),
		PoolAddress:        wunit0USDCPair,
		PercentageToRemove: dec("100"),
	})
	require.NoError(t, err)
	sub := h.gateway.last(t)
	require.Equal(t, "removeLiquidityETH", sub.call.Method)
	require.Equal(t, addressOf(usdcToken), sub.call.Args[0])
	// 4 of 40 LP: 100 WUNIT0 and 200 USDC before slippage.
	require.Equal(t, "198000000", sub.call.Args[2].(*big.Int).String())
	require.Equal(t, "99000000000000000000", sub.call.Args[3].(*big.Int).String())
}
