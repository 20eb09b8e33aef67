package koala

import (
	"context"
	"strings"

	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
)

// PoolRequest names a pool directly or by its token pair.
type PoolRequest struct {
	Network     string `json:"network,omitempty"`
	PoolAddress string `json:"poolAddress,omitempty"`
	BaseToken   string `json:"baseToken,omitempty"`
	QuoteToken  string `json:"quoteToken,omitempty"`
}

// PoolInfo reads a pool of kind. Without an address the deepest pool for the pair is used.
func (s *Service) PoolInfo(ctx context.Context, kind model.PoolKind, req PoolRequest) (model.PoolInfo, error) {
	return execute(ctx, s, req.Network, opPoolInfo, "Failed to fetch pool info", func(r *run) (model.PoolInfo, error) {
		address := strings.TrimSpace(req.PoolAddress)
		if address == "" {
			if strings.TrimSpace(req.BaseToken) == "" || strings.TrimSpace(req.QuoteToken) == "" {
				return model.PoolInfo{}, missing("poolAddress")
			}
			base, _, err := swapToken(r.ctx, r.network, "baseToken", req.BaseToken)
			if err != nil {
				return model.PoolInfo{}, err
			}
			quote, _, err := swapToken(r.ctx, r.network, "quoteToken", req.QuoteToken)
			if err != nil {
				return model.PoolInfo{}, err
			}
			address, err = r.network.Registry.FindPool(r.ctx, base, quote, kind)
			if err != nil {
				return model.PoolInfo{}, err
			}
		}

		pool, err := r.network.Registry.ResolvePool(r.ctx, address, kind)
		if err != nil {
			return model.PoolInfo{}, err
		}
		r.setPool(pool.Address)
		pool.Price = pricing.PoolPrice(pool)
		return pool, nil
	})
}

// PositionRef names a position to read.
type PositionRef struct {
	Network         string `json:"network,omitempty"`
	PositionAddress string `json:"positionAddress"`
}

// PositionInfo reads a position with its range prices, current amounts, and fees owed.
func (s *Service) PositionInfo(ctx context.Context, req PositionRef) (model.Position, error) {
	return execute(ctx, s, req.Network, opPositionInfo, "Failed to fetch position info", func(r *run) (model.Position, error) {
		id, err := parsePositionID(req.PositionAddress)
		if err != nil {
			return model.Position{}, err
		}
		r.setPosition(id)
		position, err := r.network.Registry.ResolvePosition(r.ctx, id)
		if err != nil {
			return model.Position{}, err
		}
		pool, err := r.network.Registry.ResolvePool(r.ctx, position.PoolAddress, model.PoolKindCLMM)
		if err != nil {
			return model.Position{}, err
		}
		r.setPool(pool.Address)

		base, quote := pool.BaseToken.Decimals, pool.QuoteToken.Decimals
		position.LowerPrice = pricing.TickToPrice(position.TickLower, base, quote)
		position.UpperPrice = pricing.TickToPrice(position.TickUpper, base, quote)
		position.Price = pricing.PoolPrice(pool)
		if position.Liquidity != nil && position.Liquidity.Sign() > 0 {
			amount0, amount1 := r.network.Oracle.PositionAmounts(pool, position.TickLower, position.TickUpper, position.Liquidity)
			position.BaseTokenAmount = human(amount0, pool.BaseToken)
			position.QuoteTokenAmount = human(amount1, pool.QuoteToken)
		}
		position.BaseFeeAmount = human(owedAmount(position.TokensOwed0), pool.BaseToken)
		position.QuoteFeeAmount = human(owedAmount(position.TokensOwed1), pool.QuoteToken)
		return position, nil
	})
}
