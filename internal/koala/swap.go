package koala

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/chain"
	"koalaswap/internal/dex"
	"koalaswap/internal/model"
)

const swapGasLimit = 300000

// SwapRequest trades a base amount against the quote token.
// SELL spends exactly Amount of base; BUY receives exactly Amount of base.
type SwapRequest struct {
	TxOptions
	PoolAddress string           `json:"poolAddress,omitempty"`
	BaseToken   string           `json:"baseToken"`
	QuoteToken  string           `json:"quoteToken"`
	Amount      *decimal.Decimal `json:"amount"`
	Side        string           `json:"side"`
}

// swapPlan is a resolved and priced swap.
type swapPlan struct {
	pool      model.PoolInfo
	side      model.Side
	base      model.TokenDescriptor
	quote     model.TokenDescriptor
	nativeIn  bool
	nativeOut bool
	priced    model.SwapQuote
}

func swapOperation(kind model.PoolKind, quoteOnly bool) string {
	switch {
	case kind == model.PoolKindCLMM && quoteOnly:
		return opCLMMQuoteSwap
	case kind == model.PoolKindCLMM:
		return opCLMMSwap
	case quoteOnly:
		return opAMMQuoteSwap
	default:
		return opAMMSwap
	}
}

// QuoteSwap prices a swap through a pool of kind without submitting it.
func (s *Service) QuoteSwap(ctx context.Context, kind model.PoolKind, req SwapRequest) (model.SwapQuote, error) {
	return execute(ctx, s, req.Network, swapOperation(kind, true), "Failed to quote swap", func(r *run) (model.SwapQuote, error) {
		plan, err := s.planSwap(r, kind, req)
		if err != nil {
			return model.SwapQuote{}, err
		}
		return plan.priced, nil
	})
}

// ExecuteSwap prices, checks the input allowance, and submits a swap through a pool of kind.
func (s *Service) ExecuteSwap(ctx context.Context, kind model.PoolKind, req SwapRequest) (model.SwapResult, error) {
	return execute(ctx, s, req.Network, swapOperation(kind, false), "Failed to execute swap", func(r *run) (model.SwapResult, error) {
		return s.executeSwap(r, kind, req)
	})
}

// swapToken resolves a swap leg. The native symbol maps to the wrapped token for routing.
func swapToken(ctx context.Context, network *Network, field, ref string) (model.TokenDescriptor, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.TokenDescriptor{}, false, missing(field)
	}
	if model.IsNativeSymbol(ref) {
		wrapped, ok := wrappedNative(ctx, network)
		if !ok {
			return model.TokenDescriptor{}, false, newError(KindUnsupportedToken, "No wrapped native token configured for network %s", network.Name)
		}
		return wrapped, true, nil
	}
	token, err := network.Registry.ResolveToken(ctx, ref)
	if err != nil {
		return model.TokenDescriptor{}, false, err
	}
	return token, false, nil
}

func (s *Service) planSwap(r *run, kind model.PoolKind, req SwapRequest) (swapPlan, error) {
	side, ok := model.ParseSide(strings.ToUpper(strings.TrimSpace(req.Side)))
	if !ok {
		return swapPlan{}, newError(KindInvalidAmount, "Invalid side: %s", req.Side)
	}
	amount, err := requireAmount("amount", req.Amount)
	if err != nil {
		return swapPlan{}, err
	}
	slippage, err := s.slippage(req.SlippagePct)
	if err != nil {
		return swapPlan{}, err
	}

	base, baseNative, err := swapToken(r.ctx, r.network, "baseToken", req.BaseToken)
	if err != nil {
		return swapPlan{}, err
	}
	quote, quoteNative, err := swapToken(r.ctx, r.network, "quoteToken", req.QuoteToken)
	if err != nil {
		return swapPlan{}, err
	}
	if base.SameAddress(quote) {
		return swapPlan{}, newError(KindUnsupportedToken, "Cannot swap %s for %s", req.BaseToken, req.QuoteToken)
	}

	address := strings.TrimSpace(req.PoolAddress)
	if address == "" {
		address, err = r.network.Registry.FindPool(r.ctx, base, quote, kind)
		if err != nil {
			return swapPlan{}, err
		}
		r.logger.Info("pool selected", zap.String("pool", address))
	}
	pool, err := r.network.Registry.ResolvePool(r.ctx, address, kind)
	if err != nil {
		return swapPlan{}, err
	}
	r.setPool(pool.Address)
	if !pool.HasToken(base) || !pool.HasToken(quote) {
		return swapPlan{}, newError(KindUnsupportedToken, "Tokens %s/%s do not match pool %s (%s/%s)",
			base.Symbol, quote.Symbol, pool.Address, pool.BaseToken.Symbol, pool.QuoteToken.Symbol)
	}

	plan := swapPlan{pool: pool, side: side, base: base, quote: quote}
	tokenIn, tokenOut := quote, base
	plan.nativeIn, plan.nativeOut = quoteNative, baseNative
	if side == model.SideSell {
		tokenIn, tokenOut = base, quote
		plan.nativeIn, plan.nativeOut = baseNative, quoteNative
	}

	rawAmount, err := toRaw("amount", amount, base)
	if err != nil {
		return swapPlan{}, err
	}

	r.enter(StageQuoting)
	est, err := r.network.Oracle.QuoteSwap(r.ctx, pool, tokenIn, tokenOut, side, rawAmount)
	if err != nil {
		return swapPlan{}, err
	}

	priced := model.SwapQuote{
		QuoteID:         uuid.NewString(),
		Kind:            pool.Kind,
		PoolAddress:     pool.Address,
		Fee:             pool.Fee,
		Side:            side,
		TokenIn:         tokenIn,
		TokenOut:        tokenOut,
		RawAmountIn:     est.RawAmountIn,
		RawAmountOut:    est.RawAmountOut,
		AmountIn:        human(est.RawAmountIn, tokenIn),
		AmountOut:       human(est.RawAmountOut, tokenOut),
		RawMinAmountOut: new(big.Int).Set(est.RawAmountOut),
		RawMaxAmountIn:  new(big.Int).Set(est.RawAmountIn),
		PriceImpactPct:  est.PriceImpactPct,
		SlippagePct:     slippage.Pct(),
		GasEstimate:     est.GasEstimate,
		TicksCrossed:    est.TicksCrossed,
	}
	if side == model.SideSell {
		priced.RawMinAmountOut = slippage.MinAmount(est.RawAmountOut)
	} else {
		maxIn, err := slippage.MaxAmount(est.RawAmountIn)
		if err != nil {
			return swapPlan{}, err
		}
		priced.RawMaxAmountIn = maxIn
	}
	priced.MinAmountOut = human(priced.RawMinAmountOut, tokenOut)
	priced.MaxAmountIn = human(priced.RawMaxAmountIn, tokenIn)
	priced.Price = swapPrice(priced)

	r.logger.Info("swap quoted",
		zap.String("quote_id", priced.QuoteID),
		zap.String("side", string(side)),
		zap.String("amount_in", priced.AmountIn.String()),
		zap.String("amount_out", priced.AmountOut.String()),
		zap.String("price_impact_pct", priced.PriceImpactPct.StringFixed(4)),
	)
	plan.priced = priced
	return plan, nil
}

// swapPrice is the quote token paid or received per base token.
func swapPrice(q model.SwapQuote) decimal.Decimal {
	baseAmount, quoteAmount := q.AmountIn, q.AmountOut
	if q.Side == model.SideBuy {
		baseAmount, quoteAmount = q.AmountOut, q.AmountIn
	}
	if baseAmount.IsZero() {
		return decimal.Zero
	}
	return quoteAmount.DivRound(baseAmount, 18)
}

func (s *Service) executeSwap(r *run, kind model.PoolKind, req SwapRequest) (model.SwapResult, error) {
	gasPrice, err := req.gasPrice()
	if err != nil {
		return model.SwapResult{}, err
	}
	signer, err := s.resolveWallet(r.network, req.WalletAddress)
	if err != nil {
		return model.SwapResult{}, err
	}
	r.setWallet(signer.Address)

	plan, err := s.planSwap(r, kind, req)
	if err != nil {
		return model.SwapResult{}, err
	}
	q := plan.priced

	spenderKind := dex.OperationAMM
	if kind == model.PoolKindCLMM {
		spenderKind = dex.OperationCLMMSwap
	}
	if !plan.nativeIn {
		if err := r.checkAllowances(signer.Address, spenderKind, allowanceNeed{token: q.TokenIn, raw: q.RawMaxAmountIn}); err != nil {
			return model.SwapResult{}, err
		}
	}

	var (
		call  chain.Call
		value *big.Int
	)
	if kind == model.PoolKindCLMM {
		call, value, err = s.clmmSwapCall(r, signer.Address, plan)
	} else {
		call, value, err = s.ammSwapCall(r, signer.Address, plan)
	}
	if err != nil {
		return model.SwapResult{}, err
	}

	sub, err := r.submit(signer, call, gasPrice, req.gasLimit(swapGasLimit), value)
	if err != nil {
		return model.SwapResult{}, err
	}

	amountIn, amountOut := q.RawAmountIn, q.RawAmountOut
	if in, out, ok := realizedSwap(sub.events.Swaps, plan.pool, q.TokenIn); ok {
		amountIn, amountOut = in, out
	}
	humanIn, humanOut := human(amountIn, q.TokenIn), human(amountOut, q.TokenOut)

	data := model.SwapData{
		Fee:       sub.fee,
		TokenIn:   swapLegLabel(q.TokenIn, plan.nativeIn),
		TokenOut:  swapLegLabel(q.TokenOut, plan.nativeOut),
		AmountIn:  humanIn,
		AmountOut: humanOut,
	}
	if plan.side == model.SideSell {
		data.BaseTokenBalanceChange = humanIn.Neg()
		data.QuoteTokenBalanceChange = humanOut
	} else {
		data.BaseTokenBalanceChange = humanOut
		data.QuoteTokenBalanceChange = humanIn.Neg()
	}
	return model.SwapResult{TransactionResult: r.result(sub), Data: data}, nil
}

func swapLegLabel(token model.TokenDescriptor, native bool) string {
	if native {
		return model.NativeSymbol
	}
	return token.Address
}

// realizedSwap sums the pool's swap events into the wallet's input and output amounts.
func realizedSwap(events []model.SwapEvent, pool model.PoolInfo, tokenIn model.TokenDescriptor) (*big.Int, *big.Int, bool) {
	delta0, delta1 := new(big.Int), new(big.Int)
	found := false
	for _, event := range events {
		if !strings.EqualFold(event.Address, pool.Address) {
			continue
		}
		found = true
		if event.Amount0 != nil {
			delta0.Add(delta0, event.Amount0)
		}
		if event.Amount1 != nil {
			delta1.Add(delta1, event.Amount1)
		}
	}
	if !found {
		return nil, nil, false
	}
	if pool.IsBase(tokenIn) {
		return delta0, delta1.Neg(delta1), true
	}
	return delta1, delta0.Neg(delta0), true
}

func (s *Service) ammSwapCall(r *run, to common.Address, plan swapPlan) (chain.Call, *big.Int, error) {
	parsed, err := dex.V2RouterABI()
	if err != nil {
		return chain.Call{}, nil, fmt.Errorf("parse router abi: %w", err)
	}
	q := plan.priced
	path := []common.Address{addressOf(q.TokenIn), addressOf(q.TokenOut)}
	deadline := s.deadline()
	call := chain.Call{To: r.network.Registry.Addresses().V2Router, ABI: parsed}

	exactIn := plan.side == model.SideSell
	switch {
	case plan.nativeIn && exactIn:
		call.Method = "swapExactETHForTokens"
		call.Args = []interface{}{q.RawMinAmountOut, path, to, deadline}
		return call, q.RawAmountIn, nil
	case plan.nativeIn:
		call.Method = "swapETHForExactTokens"
		call.Args = []interface{}{q.RawAmountOut, path, to, deadline}
		return call, q.RawMaxAmountIn, nil
	case plan.nativeOut && exactIn:
		call.Method = "swapExactTokensForETH"
		call.Args = []interface{}{q.RawAmountIn, q.RawMinAmountOut, path, to, deadline}
	case plan.nativeOut:
		call.Method = "swapTokensForExactETH"
		call.Args = []interface{}{q.RawAmountOut, q.RawMaxAmountIn, path, to, deadline}
	case exactIn:
		call.Method = "swapExactTokensForTokens"
		call.Args = []interface{}{q.RawAmountIn, q.RawMinAmountOut, path, to, deadline}
	default:
		call.Method = "swapTokensForExactTokens"
		call.Args = []interface{}{q.RawAmountOut, q.RawMaxAmountIn, path, to, deadline}
	}
	return call, nil, nil
}

// clmmSwapCall batches the swap with the native refund and unwrap steps the legs need.
func (s *Service) clmmSwapCall(r *run, to common.Address, plan swapPlan) (chain.Call, *big.Int, error) {
	parsed, err := dex.SwapRouterABI()
	if err != nil {
		return chain.Call{}, nil, fmt.Errorf("parse swap router abi: %w", err)
	}
	q := plan.priced
	recipient := to
	if plan.nativeOut {
		recipient = dex.RouterContractAddress
	}
	fee := new(big.Int).SetUint64(uint64(plan.pool.Fee))

	var steps []dex.MethodCall
	if plan.side == model.SideSell {
		steps = append(steps, dex.MethodCall{Method: "exactInputSingle", Args: []interface{}{dex.ExactInputSingleParams{
			TokenIn:           addressOf(q.TokenIn),
			TokenOut:          addressOf(q.TokenOut),
			Fee:               fee,
			Recipient:         recipient,
			AmountIn:          q.RawAmountIn,
			AmountOutMinimum:  q.RawMinAmountOut,
			SqrtPriceLimitX96: new(big.Int),
		}}})
	} else {
		steps = append(steps, dex.MethodCall{Method: "exactOutputSingle", Args: []interface{}{dex.ExactOutputSingleParams{
			TokenIn:           addressOf(q.TokenIn),
			TokenOut:          addressOf(q.TokenOut),
			Fee:               fee,
			Recipient:         recipient,
			AmountOut:         q.RawAmountOut,
			AmountInMaximum:   q.RawMaxAmountIn,
			SqrtPriceLimitX96: new(big.Int),
		}}})
		if plan.nativeIn {
			steps = append(steps, dex.MethodCall{Method: "refundETH"})
		}
	}
	if plan.nativeOut {
		steps = append(steps, dex.MethodCall{Method: "unwrapWETH9", Args: []interface{}{q.RawMinAmountOut, to}})
	}

	data, err := dex.PackCalls(parsed, steps...)
	if err != nil {
		return chain.Call{}, nil, err
	}
	call := chain.Call{
		To:     r.network.Registry.Addresses().V3SwapRouter,
		ABI:    parsed,
		Method: "multicall",
		Args:   []interface{}{s.deadline(), data},
	}
	if !plan.nativeIn {
		return call, nil, nil
	}
	if plan.side == model.SideSell {
		return call, q.RawAmountIn, nil
	}
	return call, q.RawMaxAmountIn, nil
}
