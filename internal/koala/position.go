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
	openPositionGasLimit     = 600000
	increasePositionGasLimit = 400000
	decreasePositionGasLimit = 400000
	closePositionGasLimit    = 500000
	collectFeesGasLimit      = 200000
)

// OpenPositionRequest mints a position over [LowerPrice, UpperPrice] in quote per base.
// At least one amount must be positive; the other is sized from the range.
type OpenPositionRequest struct {
	TxOptions
	PoolAddress      string           `json:"poolAddress"`
	LowerPrice       *decimal.Decimal `json:"lowerPrice"`
	UpperPrice       *decimal.Decimal `json:"upperPrice"`
	BaseToken        string           `json:"baseToken,omitempty"`
	QuoteToken       string           `json:"quoteToken,omitempty"`
	BaseTokenAmount  *decimal.Decimal `json:"baseTokenAmount,omitempty"`
	QuoteTokenAmount *decimal.Decimal `json:"quoteTokenAmount,omitempty"`
}

// PositionLiquidityRequest adds liquidity to an existing position.
type PositionLiquidityRequest struct {
	TxOptions
	PositionAddress  string           `json:"positionAddress"`
	BaseToken        string           `json:"baseToken,omitempty"`
	QuoteToken       string           `json:"quoteToken,omitempty"`
	BaseTokenAmount  *decimal.Decimal `json:"baseTokenAmount,omitempty"`
	QuoteTokenAmount *decimal.Decimal `json:"quoteTokenAmount,omitempty"`
}

// RemovePositionRequest withdraws a percentage of a position's liquidity.
type RemovePositionRequest struct {
	TxOptions
	PositionAddress    string           `json:"positionAddress"`
	PercentageToRemove *decimal.Decimal `json:"percentageToRemove"`
}

// PositionRequest names a position for close and collect.
type PositionRequest struct {
	TxOptions
	PositionAddress string `json:"positionAddress"`
}

func depositLegAmounts(base, quote *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	baseAmount, err := optionalAmount("baseTokenAmount", base)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	quoteAmount, err := optionalAmount("quoteTokenAmount", quote)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if baseAmount.IsZero() && quoteAmount.IsZero() {
		return decimal.Zero, decimal.Zero, newError(KindMissingParameter, "Missing required parameter: baseTokenAmount or quoteTokenAmount")
	}
	return baseAmount, quoteAmount, nil
}

// positionMint is a sized deposit into a tick range.
type positionMint struct {
	liquidity *big.Int
	amount0   *big.Int
	amount1   *big.Int
	min0      *big.Int
	min1      *big.Int
}

func (s *Service) sizeDeposit(r *run, pool model.PoolInfo, legs [2]leg, tickLower, tickUpper int32, slippage pricing.Slippage) (positionMint, error) {
	r.enter(StageQuoting)
	raw0, err := toRaw("baseTokenAmount", legs[0].amount, legs[0].token)
	if err != nil {
		return positionMint{}, err
	}
	raw1, err := toRaw("quoteTokenAmount", legs[1].amount, legs[1].token)
	if err != nil {
		return positionMint{}, err
	}
	liquidity, amount0, amount1, err := r.network.Oracle.MintAmounts(pool, tickLower, tickUpper, raw0, raw1)
	if err != nil {
		return positionMint{}, err
	}
	r.logger.Info("position deposit sized",
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
		zap.String("liquidity", liquidity.String()),
		zap.String("base", pricing.FormatUnits(amount0, pool.BaseToken.Decimals)),
		zap.String("quote", pricing.FormatUnits(amount1, pool.QuoteToken.Decimals)),
	)
	return positionMint{
		liquidity: liquidity,
		amount0:   amount0,
		amount1:   amount1,
		min0:      slippage.MinAmount(amount0),
		min1:      slippage.MinAmount(amount1),
	}, nil
}

// depositNeeds lists the ERC20 legs the position manager pulls; a natively funded leg needs no approval.
func depositNeeds(pool model.PoolInfo, mint positionMint, mode funding) []allowanceNeed {
	needs := []allowanceNeed{{token: pool.BaseToken, raw: mint.amount0}, {token: pool.QuoteToken, raw: mint.amount1}}
	switch mode {
	case fundNativeBase:
		return needs[1:]
	case fundNativeQuote:
		return needs[:1]
	}
	return needs
}

// depositValue is the native value sent with a deposit.
func depositValue(mint positionMint, mode funding) *big.Int {
	switch mode {
	case fundNativeBase:
		return mint.amount0
	case fundNativeQuote:
		return mint.amount1
	}
	return nil
}

// managerCall targets the position manager; with value set, steps are batched with refundETH.
func (r *run) managerCall(value *big.Int, steps ...dex.MethodCall) (chain.Call, error) {
	parsed, err := dex.PositionManagerABI()
	if err != nil {
		return chain.Call{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	call := chain.Call{To: r.network.Registry.Addresses().V3PositionManager, ABI: parsed}
	if value != nil && value.Sign() > 0 {
		steps = append(steps, dex.MethodCall{Method: "refundETH"})
	}
	if len(steps) == 1 {
		call.Method, call.Args = steps[0].Method, steps[0].Args
		return call, nil
	}
	data, err := dex.PackCalls(parsed, steps...)
	if err != nil {
		return chain.Call{}, err
	}
	call.Method, call.Args = "multicall", []interface{}{data}
	return call, nil
}

// OpenPosition wraps native legs, sizes the deposit for the price range, and mints a position.
func (s *Service) OpenPosition(ctx context.Context, req OpenPositionRequest) (model.OpenPositionResult, error) {
	return execute(ctx, s, req.Network, opCLMMOpenPosition, "Failed to open position", func(r *run) (model.OpenPositionResult, error) {
		return s.openPosition(r, req)
	})
}

func (s *Service) openPosition(r *run, req OpenPositionRequest) (model.OpenPositionResult, error) {
	if strings.TrimSpace(req.PoolAddress) == "" {
		return model.OpenPositionResult{}, missing("poolAddress")
	}
	lower, err := requireAmount("lowerPrice", req.LowerPrice)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	upper, err := requireAmount("upperPrice", req.UpperPrice)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	if !lower.LessThan(upper) {
		return model.OpenPositionResult{}, newError(KindInvalidAmount, "lowerPrice %s must be below upperPrice %s", lower.String(), upper.String())
	}
	baseAmount, quoteAmount, err := depositLegAmounts(req.BaseTokenAmount, req.QuoteTokenAmount)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	gasPrice, err := req.gasPrice()
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	slippage, err := s.slippage(req.SlippagePct)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	signer, err := s.resolveWallet(r.network, req.WalletAddress)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	r.setWallet(signer.Address)

	pool, err := r.network.Registry.ResolvePool(r.ctx, req.PoolAddress, model.PoolKindCLMM)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	r.setPool(pool.Address)
	tickLower, tickUpper, err := rangeTicks(pool, lower, upper)
	if err != nil {
		return model.OpenPositionResult{}, err
	}

	legs, err := s.poolLegs(r.ctx, r.network, pool, req.BaseToken, req.QuoteToken, baseAmount, quoteAmount)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	mode := fundingOf(r.ctx, r.network, legs)
	if err := r.wrapLegs(signer, &legs, gasPrice); err != nil {
		return model.OpenPositionResult{}, err
	}

	mint, err := s.sizeDeposit(r, pool, legs, tickLower, tickUpper, slippage)
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	if err := r.checkAllowances(signer.Address, dex.OperationCLMMPosition, depositNeeds(pool, mint, mode)...); err != nil {
		return model.OpenPositionResult{}, err
	}

	value := depositValue(mint, mode)
	call, err := r.managerCall(value, dex.MethodCall{Method: "mint", Args: []interface{}{dex.MintParams{
		Token0:         addressOf(pool.BaseToken),
		Token1:         addressOf(pool.QuoteToken),
		Fee:            new(big.Int).SetUint64(uint64(pool.Fee)),
		TickLower:      big.NewInt(int64(tickLower)),
		TickUpper:      big.NewInt(int64(tickUpper)),
		Amount0Desired: mint.amount0,
		Amount1Desired: mint.amount1,
		Amount0Min:     mint.min0,
		Amount1Min:     mint.min1,
		Recipient:      signer.Address,
		Deadline:       s.deadline(),
	}}})
	if err != nil {
		return model.OpenPositionResult{}, err
	}
	sub, err := r.submit(signer, call, gasPrice, req.gasLimit(openPositionGasLimit), value)
	if err != nil {
		return model.OpenPositionResult{}, err
	}

	var positionID string
	if len(sub.events.MintedIDs) > 0 {
		positionID = sub.events.MintedIDs[0].String()
		r.setPosition(sub.events.MintedIDs[0])
	} else {
		r.logger.Warn("minted position id not found in receipt", zap.String("tx", sub.tx.Hash().Hex()))
	}
	added0, added1 := depositedAmounts(sub.events, mint)
	return model.OpenPositionResult{
		TransactionResult: r.result(sub),
		Data: model.OpenPositionData{
			Fee:                   sub.fee,
			PositionAddress:       positionID,
			BaseTokenAmountAdded:  human(added0, pool.BaseToken),
			QuoteTokenAmountAdded: human(added1, pool.QuoteToken),
			BaseWrapTxHash:        r.baseWrap,
			QuoteWrapTxHash:       r.quoteWrap,
		},
	}, nil
}

// rangeTicks maps a price range onto spacing-aligned ticks. A collapsed range widens by one spacing.
func rangeTicks(pool model.PoolInfo, lower, upper decimal.Decimal) (int32, int32, error) {
	tickLower, err := pricing.PriceToTick(lower, pool.BaseToken.Decimals, pool.QuoteToken.Decimals, pool.TickSpacing)
	if err != nil {
		return 0, 0, err
	}
	tickUpper, err := pricing.PriceToTick(upper, pool.BaseToken.Decimals, pool.QuoteToken.Decimals, pool.TickSpacing)
	if err != nil {
		return 0, 0, err
	}
	if tickUpper <= tickLower {
		spacing := pool.TickSpacing
		if spacing <= 0 {
			spacing = 1
		}
		tickUpper = tickLower + spacing
	}
	return tickLower, tickUpper, nil
}

func depositedAmounts(events model.ReceiptEvents, mint positionMint) (*big.Int, *big.Int) {
	if len(events.Deposits) == 0 {
		return mint.amount0, mint.amount1
	}
	return dex.TotalAmounts(events.Deposits)
}

// ownedPosition loads a position and its pool and rejects positions the signer does not own.
func (s *Service) ownedPosition(r *run, ref string, owner common.Address) (model.Position, model.PoolInfo, error) {
	id, err := parsePositionID(ref)
	if err != nil {
		return model.Position{}, model.PoolInfo{}, err
	}
	r.setPosition(id)
	position, err := r.network.Registry.ResolvePosition(r.ctx, id)
	if err != nil {
		return model.Position{}, model.PoolInfo{}, err
	}
	if !strings.EqualFold(position.Owner, owner.Hex()) {
		return model.Position{}, model.PoolInfo{}, newError(KindPositionNotFound, "Position %s is not owned by %s", id, owner.Hex())
	}
	pool, err := r.network.Registry.ResolvePool(r.ctx, position.PoolAddress, model.PoolKindCLMM)
	if err != nil {
		return model.Position{}, model.PoolInfo{}, err
	}
	r.setPool(pool.Address)
	return position, pool, nil
}

// AddPositionLiquidity increases an owned position with a deposit sized for its range.
func (s *Service) AddPositionLiquidity(ctx context.Context, req PositionLiquidityRequest) (model.AddLiquidityResult, error) {
	return execute(ctx, s, req.Network, opCLMMAddLiquidity, "Failed to add liquidity to position", func(r *run) (model.AddLiquidityResult, error) {
		baseAmount, quoteAmount, err := depositLegAmounts(req.BaseTokenAmount, req.QuoteTokenAmount)
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

		position, pool, err := s.ownedPosition(r, req.PositionAddress, signer.Address)
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

		mint, err := s.sizeDeposit(r, pool, legs, position.TickLower, position.TickUpper, slippage)
		if err != nil {
			return model.AddLiquidityResult{}, err
		}
		if err := r.checkAllowances(signer.Address, dex.OperationCLMMPosition, depositNeeds(pool, mint, mode)...); err != nil {
			return model.AddLiquidityResult{}, err
		}

		value := depositValue(mint, mode)
		call, err := r.managerCall(value, dex.MethodCall{Method: "increaseLiquidity", Args: []interface{}{dex.IncreaseLiquidityParams{
			TokenId:        position.TokenID,
			Amount0Desired: mint.amount0,
			Amount1Desired: mint.amount1,
			Amount0Min:     mint.min0,
			Amount1Min:     mint.min1,
			Deadline:       s.deadline(),
		}}})
		if err != nil {
			return model.AddLiquidityResult{}, err
		}
		sub, err := r.submit(signer, call, gasPrice, req.gasLimit(increasePositionGasLimit), value)
		if err != nil {
			return model.AddLiquidityResult{}, err
		}

		added0, added1 := depositedAmounts(sub.events, mint)
		return model.AddLiquidityResult{
			TransactionResult: r.result(sub),
			Data: model.AddLiquidityData{
				Fee:                   sub.fee,
				BaseTokenAmountAdded:  human(added0, pool.BaseToken),
				QuoteTokenAmountAdded: human(added1, pool.QuoteToken),
				BaseWrapTxHash:        r.baseWrap,
				QuoteWrapTxHash:       r.quoteWrap,
			},
		}, nil
	})
}

func decreaseStep(position model.Position, liquidity, min0, min1, deadline *big.Int) dex.MethodCall {
	return dex.MethodCall{Method: "decreaseLiquidity", Args: []interface{}{dex.DecreaseLiquidityParams{
		TokenId:    position.TokenID,
		Liquidity:  liquidity,
		Amount0Min: min0,
		Amount1Min: min1,
		Deadline:   deadline,
	}}}
}

func collectStep(position model.Position, recipient common.Address) dex.MethodCall {
	return dex.MethodCall{Method: "collect", Args: []interface{}{dex.CollectParams{
		TokenId:    position.TokenID,
		Recipient:  recipient,
		Amount0Max: dex.MaxUint128,
		Amount1Max: dex.MaxUint128,
	}}}
}

// RemovePositionLiquidity decreases an owned position by a percentage and collects the proceeds.
func (s *Service) RemovePositionLiquidity(ctx context.Context, req RemovePositionRequest) (model.RemoveLiquidityResult, error) {
	return execute(ctx, s, req.Network, opCLMMRemoveLiquidity, "Failed to remove liquidity from position", func(r *run) (model.RemoveLiquidityResult, error) {
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

		position, pool, err := s.ownedPosition(r, req.PositionAddress, signer.Address)
		if err != nil {
			return model.RemoveLiquidityResult{}, err
		}

		r.enter(StageQuoting)
		liquidity := pricing.ShareOf(position.Liquidity, bps)
		if liquidity.Sign() == 0 {
			return model.RemoveLiquidityResult{}, newError(KindInvalidAmount, "Position %s has no liquidity to remove", position.TokenID)
		}
		expected0, expected1 := r.network.Oracle.PositionAmounts(pool, position.TickLower, position.TickUpper, liquidity)

		call, err := r.managerCall(nil,
			decreaseStep(position, liquidity, slippage.MinAmount(expected0), slippage.MinAmount(expected1), s.deadline()),
			collectStep(position, signer.Address),
		)
		if err != nil {
			return model.RemoveLiquidityResult{}, err
		}
		sub, err := r.submit(signer, call, gasPrice, req.gasLimit(decreasePositionGasLimit), nil)
		if err != nil {
			return model.RemoveLiquidityResult{}, err
		}

		removed0, removed1 := expected0, expected1
		if len(sub.events.Withdrawals) > 0 {
			removed0, removed1 = dex.TotalAmounts(sub.events.Withdrawals)
		}
		return model.RemoveLiquidityResult{
			TransactionResult: r.result(sub),
			Data: model.RemoveLiquidityData{
				Fee:                     sub.fee,
				BaseTokenAmountRemoved:  human(removed0, pool.BaseToken),
				QuoteTokenAmountRemoved: human(removed1, pool.QuoteToken),
			},
		}, nil
	})
}

// ClosePosition withdraws all liquidity, collects everything owed, and burns the position.
func (s *Service) ClosePosition(ctx context.Context, req PositionRequest) (model.ClosePositionResult, error) {
	return execute(ctx, s, req.Network, opCLMMClosePosition, "Failed to close position", func(r *run) (model.ClosePositionResult, error) {
		gasPrice, err := req.gasPrice()
		if err != nil {
			return model.ClosePositionResult{}, err
		}
		slippage, err := s.slippage(req.SlippagePct)
		if err != nil {
			return model.ClosePositionResult{}, err
		}
		signer, err := s.resolveWallet(r.network, req.WalletAddress)
		if err != nil {
			return model.ClosePositionResult{}, err
		}
		r.setWallet(signer.Address)

		position, pool, err := s.ownedPosition(r, req.PositionAddress, signer.Address)
		if err != nil {
			return model.ClosePositionResult{}, err
		}

		r.enter(StageQuoting)
		expected0, expected1 := new(big.Int), new(big.Int)
		var steps []dex.MethodCall
		if position.Liquidity != nil && position.Liquidity.Sign() > 0 {
			expected0, expected1 = r.network.Oracle.PositionAmounts(pool, position.TickLower, position.TickUpper, position.Liquidity)
			steps = append(steps, decreaseStep(position, position.Liquidity, slippage.MinAmount(expected0), slippage.MinAmount(expected1), s.deadline()))
		}
		steps = append(steps,
			collectStep(position, signer.Address),
			dex.MethodCall{Method: "burn", Args: []interface{}{position.TokenID}},
		)
		call, err := r.managerCall(nil, steps...)
		if err != nil {
			return model.ClosePositionResult{}, err
		}
		sub, err := r.submit(signer, call, gasPrice, req.gasLimit(closePositionGasLimit), nil)
		if err != nil {
			return model.ClosePositionResult{}, err
		}

		removed0, removed1 := expected0, expected1
		if len(sub.events.Withdrawals) > 0 {
			removed0, removed1 = dex.TotalAmounts(sub.events.Withdrawals)
		}
		fee0, fee1 := owedAmount(position.TokensOwed0), owedAmount(position.TokensOwed1)
		if len(sub.events.Collects) > 0 {
			collected0, collected1 := dex.TotalAmounts(sub.events.Collects)
			fee0, fee1 = nonNegative(collected0.Sub(collected0, removed0)), nonNegative(collected1.Sub(collected1, removed1))
		}
		return model.ClosePositionResult{
			TransactionResult: r.result(sub),
			Data: model.ClosePositionData{
				Fee:                     sub.fee,
				BaseTokenAmountRemoved:  human(removed0, pool.BaseToken),
				QuoteTokenAmountRemoved: human(removed1, pool.QuoteToken),
				BaseFeeAmountCollected:  human(fee0, pool.BaseToken),
				QuoteFeeAmountCollected: human(fee1, pool.QuoteToken),
			},
		}, nil
	})
}

// CollectFees collects the fees owed to an owned position.
func (s *Service) CollectFees(ctx context.Context, req PositionRequest) (model.CollectFeesResult, error) {
	return execute(ctx, s, req.Network, opCLMMCollectFees, "Failed to collect fees", func(r *run) (model.CollectFeesResult, error) {
		gasPrice, err := req.gasPrice()
		if err != nil {
			return model.CollectFeesResult{}, err
		}
		signer, err := s.resolveWallet(r.network, req.WalletAddress)
		if err != nil {
			return model.CollectFeesResult{}, err
		}
		r.setWallet(signer.Address)

		position, pool, err := s.ownedPosition(r, req.PositionAddress, signer.Address)
		if err != nil {
			return model.CollectFeesResult{}, err
		}

		call, err := r.managerCall(nil, collectStep(position, signer.Address))
		if err != nil {
			return model.CollectFeesResult{}, err
		}
		sub, err := r.submit(signer, call, gasPrice, req.gasLimit(collectFeesGasLimit), nil)
		if err != nil {
			return model.CollectFeesResult{}, err
		}

		fee0, fee1 := owedAmount(position.TokensOwed0), owedAmount(position.TokensOwed1)
		if len(sub.events.Collects) > 0 {
			fee0, fee1 = dex.TotalAmounts(sub.events.Collects)
		}
		return model.CollectFeesResult{
			TransactionResult: r.result(sub),
			Data: model.CollectFeesData{
				Fee:                     sub.fee,
				BaseFeeAmountCollected:  human(fee0, pool.BaseToken),
				QuoteFeeAmountCollected: human(fee1, pool.QuoteToken),
			},
		}, nil
	})
}

func owedAmount(value *big.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(value)
}

func nonNegative(value *big.Int) *big.Int {
	if value.Sign() < 0 {
		return new(big.Int)
	}
	return value
}
