package koala

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/chain"
	"koalaswap/internal/dex"
	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
)

const (
	ammAddLiquidityGasLimit    = 500000
	ammRemoveLiquidityGasLimit = 500000
)

// AddLiquidityRequest deposits into a constant-product pool.
// BaseToken and QuoteToken are optional; "ETH" wraps that amount first.
type AddLiquidityRequest struct {
	TxOptions
	PoolAddress      string           `json:"poolAddress"`
	BaseToken        string           `json:"baseToken,omitempty"`
	QuoteToken       string           `json:"quoteToken,omitempty"`
	BaseTokenAmount  *decimal.Decimal `json:"baseTokenAmount"`
	QuoteTokenAmount *decimal.Decimal `json:"quoteTokenAmount"`
}

// RemoveLiquidityRequest withdraws a share of the wallet's LP tokens.
type RemoveLiquidityRequest struct {
	TxOptions
	PoolAddress        string           `json:"poolAddress"`
	PercentageToRemove *decimal.Decimal `json:"percentageToRemove"`
}

// QuoteLiquidity prices an AMM deposit without submitting anything.
func (s *Service) QuoteLiquidity(ctx context.Context, req AddLiquidityRequest) (model.LiquidityQuote, error) {
	return execute(ctx, s, req.Network, opAMMQuoteLiquidity, "Failed to quote liquidity", func(r *run) (model.LiquidityQuote, error) {
		baseAmount, quoteAmount, err := depositAmounts(req)
		if err != nil {
			return model.LiquidityQuote{}, err
		}
		slippage, err := s.slippage(req.SlippagePct)
		if err != nil {
			return model.LiquidityQuote{}, err
		}
		pool, err := s.ammPool(r, req.PoolAddress)
		if err != nil {
			return model.LiquidityQuote{}, err
		}
		legs, err := s.poolLegs(r.ctx, r.network, pool, req.BaseToken, req.QuoteToken, baseAmount, quoteAmount)
		if err != nil {
			return model.LiquidityQuote{}, err
		}
		r.enter(StageQuoting)
		return liquidityQuote(r.network, pool, legs, slippage)
	})
}

// AddLiquidity wraps any native legs, quotes the deposit, checks allowances, and submits it.
func (s *Service) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (model.AddLiquidityResult, error) {
	return execute(ctx, s, req.Network, opAMMAddLiquidity, "Failed to add liquidity", func(r *run) (model.AddLiquidityResult, error) {
		return s.addLiquidity(r, req)
	})
}

func depositAmounts(req AddLiquidityRequest) (decimal.Decimal, decimal.Decimal, error) {
	if strings.TrimSpace(req.PoolAddress) == "" {
		return decimal.Zero, decimal.Zero, missing("poolAddress")
	}
	baseAmount, err := requireAmount("baseTokenAmount", req.BaseTokenAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	quoteAmount, err := requireAmount("quoteTokenAmount", req.QuoteTokenAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return baseAmount, quoteAmount, nil
}

func (s *Service) ammPool(r *run, address string) (model.PoolInfo, error) {
	if strings.TrimSpace(address) == "" {
		return model.PoolInfo{}, missing("poolAddress")
	}
	pool, err := r.network.Registry.ResolvePool(r.ctx, address, model.PoolKindAMM)
	if err != nil {
		return model.PoolInfo{}, err
	}
	r.setPool(pool.Address)
	return pool, nil
}

func liquidityQuote(network *Network, pool model.PoolInfo, legs [2]leg, slippage pricing.Slippage) (model.LiquidityQuote, error) {
	rawBase, err := toRaw("baseTokenAmount", legs[0].amount, legs[0].token)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	rawQuote, err := toRaw("quoteTokenAmount", legs[1].amount, legs[1].token)
	if err != nil {
		return model.LiquidityQuote{}, err
	}

	est, err := network.Oracle.QuoteLiquidity(pool, rawBase, rawQuote)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	return model.LiquidityQuote{
		PoolAddress:       pool.Address,
		BaseToken:         legs[0].token,
		QuoteToken:        legs[1].token,
		RawBaseAmount:     est.RawBase,
		RawQuoteAmount:    est.RawQuote,
		RawMinBaseAmount:  slippage.MinAmount(est.RawBase),
		RawMinQuoteAmount: slippage.MinAmount(est.RawQuote),
		BaseTokenAmount:   human(est.RawBase, legs[0].token),
		QuoteTokenAmount:  human(est.RawQuote, legs[1].token),
		BaseLimited:       est.BaseLimited,
		SlippagePct:       slippage.Pct(),
	}, nil
}

func (s *Service) addLiquidity(r *run, req AddLiquidityRequest) (model.AddLiquidityResult, error) {
	baseAmount, quoteAmount, err := depositAmounts(req)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	gasPrice, err := req.gasPrice()
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	slippage, err := s.slippage(req.SlippagePct)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	signer, err := s.resolveWallet(r.network, req.WalletAddress)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	r.setWallet(signer.Address)

	pool, err := s.ammPool(r, req.PoolAddress)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	legs, err := s.poolLegs(r.ctx, r.network, pool, req.BaseToken, req.QuoteToken, baseAmount, quoteAmount)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	mode := fundingOf(r.ctx, r.network, legs)

	if err := r.wrapLegs(signer, &legs, gasPrice); err != nil {
		return model.AddLiquidityResult{}, err
	}

	r.enter(StageQuoting)
	quote, err := liquidityQuote(r.network, pool, legs, slippage)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	r.logger.Info("liquidity quoted",
		zap.String("pool", pool.Address),
		zap.String("base", quote.BaseTokenAmount.String()),
		zap.String("quote", quote.QuoteTokenAmount.String()),
		zap.Stringer("funding", mode),
	)

	needs := []allowanceNeed{{token: quote.BaseToken, raw: quote.RawBaseAmount}, {token: quote.QuoteToken, raw: quote.RawQuoteAmount}}
	switch mode {
	case fundNativeBase:
		needs = needs[1:]
	case fundNativeQuote:
		needs = needs[:1]
	}
	if err := r.checkAllowances(signer.Address, dex.OperationAMM, needs...); err != nil {
		return model.AddLiquidityResult{}, err
	}

	call, value, err := s.addLiquidityCall(r, signer.Address, quote, mode)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}
	sub, err := r.submit(signer, call, gasPrice, req.gasLimit(ammAddLiquidityGasLimit), value)
	if err != nil {
		return model.AddLiquidityResult{}, err
	}

	return model.AddLiquidityResult{
		TransactionResult: r.result(sub),
		Data: model.AddLiquidityData{
			Fee:                   sub.fee,
			BaseTokenAmountAdded:  quote.BaseTokenAmount,
			QuoteTokenAmountAdded: quote.QuoteTokenAmount,
			BaseWrapTxHash:        r.baseWrap,
			QuoteWrapTxHash:       r.quoteWrap,
		},
	}, nil
}

func (s *Service) addLiquidityCall(r *run, to common.Address, quote model.LiquidityQuote, mode funding) (chain.Call, *big.Int, error) {
	parsed, err := dex.V2RouterABI()
	if err != nil {
		return chain.Call{}, nil, fmt.Errorf("parse router abi: %w", err)
	}
	call := chain.Call{To: r.network.Registry.Addresses().V2Router, ABI: parsed}
	deadline := s.deadline()

	switch mode {
	case fundNativeBase:
		call.Method = "addLiquidityETH"
		call.Args = []interface{}{
			addressOf(quote.QuoteToken), quote.RawQuoteAmount, quote.RawMinQuoteAmount, quote.RawMinBaseAmount, to, deadline,
		}
		return call, quote.RawBaseAmount, nil
	case fundNativeQuote:
		call.Method = "addLiquidityETH"
		call.Args = []interface{}{
			addressOf(quote.BaseToken), quote.RawBaseAmount, quote.RawMinBaseAmount, quote.RawMinQuoteAmount, to, deadline,
		}
		return call, quote.RawQuoteAmount, nil
	default:
		call.Method = "addLiquidity"
		call.Args = []interface{}{
			addressOf(quote.BaseToken), addressOf(quote.QuoteToken),
			quote.RawBaseAmount, quote.RawQuoteAmount,
			quote.RawMinBaseAmount, quote.RawMinQuoteAmount,
			to, deadline,
		}
		return call, nil, nil
	}
}

// RemoveLiquidity burns a percentage of the wallet's LP balance.
func (s *Service) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (model.RemoveLiquidityResult, error) {
	return execute(ctx, s, req.Network, opAMMRemoveLiquidity, "Failed to remove liquidity", func(r *run) (model.RemoveLiquidityResult, error) {
		return s.removeLiquidity(r, req)
	})
}

func (s *Service) removeLiquidity(r *run, req RemoveLiquidityRequest) (model.RemoveLiquidityResult, error) {
	if strings.TrimSpace(req.PoolAddress) == "" {
		return model.RemoveLiquidityResult{}, missing("poolAddress")
	}
	if req.PercentageToRemove == nil {
		return model.RemoveLiquidityResult{}, missing("percentageToRemove")
	}
	bps, err := pricing.PercentToBps(*req.PercentageToRemove)
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}
	gasPrice, err := req.gasPrice()
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}
	slippage, err := s.slippage(req.SlippagePct)
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}
	signer, err := s.resolveWallet(r.network, req.WalletAddress)
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}
	r.setWallet(signer.Address)

	pool, err := s.ammPool(r, req.PoolAddress)
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}
	lpToken := model.TokenDescriptor{
		Symbol:   pool.BaseToken.Symbol + "-" + pool.QuoteToken.Symbol + " LP",
		Address:  pool.Address,
		Decimals: 18,
	}

	r.enter(StageQuoting)
	balance, err := r.network.Gateway.BalanceOf(r.ctx, addressOf(lpToken), signer.Address)
	if err != nil {
		return model.RemoveLiquidityResult{}, fmt.Errorf("lp balance: %w", err)
	}
	liquidity := pricing.ShareOf(balance, bps)
	if liquidity.Sign() == 0 {
		return model.RemoveLiquidityResult{}, newError(KindInvalidAmount, "No liquidity to remove from pool %s", pool.Address)
	}
	expectedBase, expectedQuote, err := pricing.WithdrawAmounts(liquidity, pool.BaseReserve, pool.QuoteReserve, pool.LPSupply)
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}
	minBase, minQuote := slippage.MinAmount(expectedBase), slippage.MinAmount(expectedQuote)
	r.logger.Info("withdrawal quoted",
		zap.String("pool", pool.Address),
		zap.String("liquidity", pricing.FormatUnits(liquidity, lpToken.Decimals)),
		zap.String("base", pricing.FormatUnits(expectedBase, pool.BaseToken.Decimals)),
		zap.String("quote", pricing.FormatUnits(expectedQuote, pool.QuoteToken.Decimals)),
	)

	if err := r.checkAllowances(signer.Address, dex.OperationAMM, allowanceNeed{token: lpToken, raw: liquidity}); err != nil {
		return model.RemoveLiquidityResult{}, err
	}

	parsed, err := dex.V2RouterABI()
	if err != nil {
		return model.RemoveLiquidityResult{}, fmt.Errorf("parse router abi: %w", err)
	}
	call := chain.Call{To: r.network.Registry.Addresses().V2Router, ABI: parsed}
	deadline := s.deadline()
	legs := [2]leg{{token: pool.BaseToken}, {token: pool.QuoteToken}}
	switch fundingOf(r.ctx, r.network, legs) {
	case fundNativeBase:
		call.Method = "removeLiquidityETH"
		call.Args = []interface{}{addressOf(pool.QuoteToken), liquidity, minQuote, minBase, signer.Address, deadline}
	case fundNativeQuote:
		call.Method = "removeLiquidityETH"
		call.Args = []interface{}{addressOf(pool.BaseToken), liquidity, minBase, minQuote, signer.Address, deadline}
	default:
		call.Method = "removeLiquidity"
		call.Args = []interface{}{
			addressOf(pool.BaseToken), addressOf(pool.QuoteToken), liquidity, minBase, minQuote, signer.Address, deadline,
		}
	}

	sub, err := r.submit(signer, call, gasPrice, req.gasLimit(ammRemoveLiquidityGasLimit), nil)
	if err != nil {
		return model.RemoveLiquidityResult{}, err
	}

	removedBase, removedQuote := expectedBase, expectedQuote
	if burns := eventsAt(sub.events.Withdrawals, pool.Address); len(burns) > 0 {
		removedBase, removedQuote = dex.TotalAmounts(burns)
	}
	return model.RemoveLiquidityResult{
		TransactionResult: r.result(sub),
		Data: model.RemoveLiquidityData{
			Fee:                     sub.fee,
			BaseTokenAmountRemoved:  human(removedBase, pool.BaseToken),
			QuoteTokenAmountRemoved: human(removedQuote, pool.QuoteToken),
		},
	}, nil
}

// eventsAt keeps events emitted by address.
func eventsAt(events []model.LiquidityEvent, address string) []model.LiquidityEvent {
	var out []model.LiquidityEvent
	for _, event := range events {
		if strings.EqualFold(event.Address, address) {
			out = append(out, event)
		}
	}
	return out
}
