package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"koalaswap/internal/config"
	"koalaswap/internal/model"
)

var (
	// ErrPoolNotFound is returned when an address is not a pool of the requested kind.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrTokenNotFound is returned when a symbol or address is not a known token.
	ErrTokenNotFound = errors.New("token not found")
	// ErrPositionNotFound is returned when a position NFT id does not exist.
	ErrPositionNotFound = errors.New("position not found")
)

// RegistryConfig is the per-network token list and contracts.
type RegistryConfig struct {
	Network       string
	Tokens        []config.TokenConfig
	WrappedNative string
	FeeTiers      []uint32
	Addresses     Addresses
}

// Registry resolves tokens, pools, and positions for one network.
// Immutable metadata is cached; reserves, prices, and liquidity are always read fresh.
type Registry struct {
	cfg        RegistryConfig
	caller     Caller
	bySymbol   map[string]model.TokenDescriptor
	byAddress  map[common.Address]model.TokenDescriptor
	tokenCache *TokenMetaCache
	poolCache  *PoolMetaCache
	logger     *zap.Logger
}

// NewRegistry indexes the configured token list.
func NewRegistry(cfg RegistryConfig, caller Caller, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = config.DefaultFeeTiers
	}

	r := &Registry{
		cfg:        cfg,
		caller:     caller,
		bySymbol:   make(map[string]model.TokenDescriptor, len(cfg.Tokens)),
		byAddress:  make(map[common.Address]model.TokenDescriptor, len(cfg.Tokens)),
		tokenCache: NewTokenMetaCache(),
		poolCache:  NewPoolMetaCache(),
		logger:     logger.With(zap.String("network", cfg.Network)),
	}

	for _, token := range cfg.Tokens {
		if !common.IsHexAddress(token.Address) {
			return nil, fmt.Errorf("token %s: invalid address %q", token.Symbol, token.Address)
		}
		address := common.HexToAddress(token.Address)
		desc := model.TokenDescriptor{
			Symbol:   token.Symbol,
			Address:  address.Hex(),
			Decimals: token.Decimals,
			Name:     token.Name,
		}
		r.bySymbol[strings.ToUpper(token.Symbol)] = desc
		r.byAddress[address] = desc
	}
	return r, nil
}

// Addresses returns the network's contract addresses.
func (r *Registry) Addresses() Addresses {
	return r.cfg.Addresses
}

// ResolveToken looks up a symbol or address. "ETH" yields the native descriptor.
func (r *Registry) ResolveToken(ctx context.Context, ref string) (model.TokenDescriptor, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.TokenDescriptor{}, fmt.Errorf("%w: empty token", ErrTokenNotFound)
	}
	if model.IsNativeSymbol(ref) {
		return model.NativeToken(), nil
	}
	if desc, ok := r.bySymbol[strings.ToUpper(ref)]; ok {
		return desc, nil
	}
	if common.IsHexAddress(ref) {
		return r.tokenByAddress(ctx, common.HexToAddress(ref))
	}
	return model.TokenDescriptor{}, fmt.Errorf("%w: %s", ErrTokenNotFound, ref)
}

// WrappedNative resolves the network's wrapped native token.
func (r *Registry) WrappedNative(ctx context.Context) (model.TokenDescriptor, error) {
	if r.cfg.WrappedNative == "" || model.IsNativeSymbol(r.cfg.WrappedNative) {
		return model.TokenDescriptor{}, fmt.Errorf("%w: no wrapped native token configured", ErrTokenNotFound)
	}
	return r.ResolveToken(ctx, r.cfg.WrappedNative)
}

func (r *Registry) tokenByAddress(ctx context.Context, address common.Address) (model.TokenDescriptor, error) {
	if desc, ok := r.byAddress[address]; ok {
		return desc, nil
	}
	if desc, ok := r.tokenCache.Get(address); ok {
		return desc, nil
	}
	desc, err := FetchTokenMeta(ctx, r.caller, address, r.logger)
	if err != nil {
		return model.TokenDescriptor{}, fmt.Errorf("%w: %s: %w", ErrTokenNotFound, address.Hex(), err)
	}
	if desc.Symbol == "" {
		desc.Symbol = address.Hex()
	}
	r.tokenCache.Set(address, desc)
	return desc, nil
}

// ResolvePool reads a pool snapshot. Any failure to read the pool as the requested kind yields ErrPoolNotFound.
func (r *Registry) ResolvePool(ctx context.Context, address string, kind model.PoolKind) (model.PoolInfo, error) {
	if !common.IsHexAddress(address) {
		return model.PoolInfo{}, fmt.Errorf("%w: invalid address %q", ErrPoolNotFound, address)
	}
	pool := common.HexToAddress(address)

	meta, cached := r.poolCache.Get(pool, kind)
	if !cached {
		var err error
		if kind == model.PoolKindCLMM {
			meta, err = FetchPoolMeta(ctx, r.caller, pool)
		} else {
			meta, err = FetchPairMeta(ctx, r.caller, pool)
		}
		if err != nil {
			return model.PoolInfo{}, fmt.Errorf("%w: %s: %w", ErrPoolNotFound, pool.Hex(), err)
		}
	}

	base, err := r.tokenByAddress(ctx, meta.Token0)
	if err != nil {
		return model.PoolInfo{}, err
	}
	quote, err := r.tokenByAddress(ctx, meta.Token1)
	if err != nil {
		return model.PoolInfo{}, err
	}

	info := model.PoolInfo{
		Kind:       kind,
		Address:    pool.Hex(),
		BaseToken:  base,
		QuoteToken: quote,
	}

	if kind == model.PoolKindCLMM {
		state, err := FetchPoolState(ctx, r.caller, pool)
		if err != nil {
			return model.PoolInfo{}, fmt.Errorf("%w: pool state %s: %w", ErrPoolNotFound, pool.Hex(), err)
		}
		info.Fee = meta.Fee
		info.TickSpacing = meta.TickSpacing
		info.Tick = state.Tick
		info.SqrtPriceX96 = state.SqrtPriceX96
		info.Liquidity = state.Liquidity
	} else {
		state, err := FetchPairState(ctx, r.caller, pool)
		if err != nil {
			return model.PoolInfo{}, fmt.Errorf("%w: pair state %s: %w", ErrPoolNotFound, pool.Hex(), err)
		}
		info.BaseReserve = state.Reserve0
		info.QuoteReserve = state.Reserve1
		info.LPSupply = state.TotalSupply
	}

	// Metadata is cached only once the state read confirms the pool kind.
	if !cached {
		r.poolCache.Set(pool, kind, meta)
	}
	return info, nil
}

// FindPool locates the pool for a token pair. For CLMM the fee tier with the deepest liquidity wins.
func (r *Registry) FindPool(ctx context.Context, base, quote model.TokenDescriptor, kind model.PoolKind) (string, error) {
	if base.IsNative() || quote.IsNative() {
		return "", fmt.Errorf("%w: pool lookup needs ERC20 tokens", ErrPoolNotFound)
	}
	tokenA := common.HexToAddress(base.Address)
	tokenB := common.HexToAddress(quote.Address)

	if kind != model.PoolKindCLMM {
		pair, err := GetPair(ctx, r.caller, r.cfg.Addresses.V2Factory, tokenA, tokenB)
		if err != nil {
			return "", fmt.Errorf("get pair: %w", err)
		}
		if pair == (common.Address{}) {
			return "", fmt.Errorf("%w: no %s/%s pair", ErrPoolNotFound, base.Symbol, quote.Symbol)
		}
		return pair.Hex(), nil
	}

	var (
		best          common.Address
		bestLiquidity *big.Int
	)
	for _, fee := range r.cfg.FeeTiers {
		pool, err := GetPool(ctx, r.caller, r.cfg.Addresses.V3Factory, tokenA, tokenB, fee)
		if err != nil {
			return "", fmt.Errorf("get pool fee %d: %w", fee, err)
		}
		if pool == (common.Address{}) {
			continue
		}
		state, err := FetchPoolState(ctx, r.caller, pool)
		if err != nil {
			r.logger.Debug("skip unreadable pool", zap.String("pool", pool.Hex()), zap.Error(err))
			continue
		}
		if bestLiquidity == nil || state.Liquidity.Cmp(bestLiquidity) > 0 {
			best = pool
			bestLiquidity = state.Liquidity
		}
	}
	if bestLiquidity == nil {
		return "", fmt.Errorf("%w: no %s/%s pool", ErrPoolNotFound, base.Symbol, quote.Symbol)
	}
	return best.Hex(), nil
}

// ResolvePosition reads a position NFT and the pool it belongs to.
func (r *Registry) ResolvePosition(ctx context.Context, tokenID *big.Int) (model.Position, error) {
	if tokenID == nil || tokenID.Sign() <= 0 {
		return model.Position{}, fmt.Errorf("%w: invalid position id", ErrPositionNotFound)
	}
	state, err := FetchPosition(ctx, r.caller, r.cfg.Addresses.V3PositionManager, tokenID)
	if err != nil {
		return model.Position{}, fmt.Errorf("%w: %s: %w", ErrPositionNotFound, tokenID, err)
	}

	base, err := r.tokenByAddress(ctx, state.Token0)
	if err != nil {
		return model.Position{}, err
	}
	quote, err := r.tokenByAddress(ctx, state.Token1)
	if err != nil {
		return model.Position{}, err
	}

	pool, err := GetPool(ctx, r.caller, r.cfg.Addresses.V3Factory, state.Token0, state.Token1, state.Fee)
	if err != nil {
		return model.Position{}, fmt.Errorf("position pool: %w", err)
	}
	if pool == (common.Address{}) {
		return model.Position{}, fmt.Errorf("%w: position %s pool", ErrPoolNotFound, tokenID)
	}

	return model.Position{
		TokenID:     new(big.Int).Set(tokenID),
		Owner:       state.Owner.Hex(),
		PoolAddress: pool.Hex(),
		BaseToken:   base,
		QuoteToken:  quote,
		Fee:         state.Fee,
		TickLower:   state.TickLower,
		TickUpper:   state.TickUpper,
		Liquidity:   state.Liquidity,
		TokensOwed0: state.TokensOwed0,
		TokensOwed1: state.TokensOwed1,
	}, nil
}
