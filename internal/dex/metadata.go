package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"koalaswap/internal/model"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolMeta is the immutable part of a pool: its tokens and, for CLMM pools, fee and spacing.
type PoolMeta struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
}

type poolKey struct {
	address common.Address
	kind    model.PoolKind
}

// PoolMetaCache caches pool metadata by address and pool kind.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[poolKey]PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[poolKey]PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address, kind model.PoolKind) (PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[poolKey{address, kind}]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, kind model.PoolKind, meta PoolMeta) {
	c.mu.Lock()
	c.data[poolKey{address, kind}] = meta
	c.mu.Unlock()
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenDescriptor
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenDescriptor)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenDescriptor, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenDescriptor) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// PairState is a live snapshot of a constant-product pair.
type PairState struct {
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalSupply *big.Int
}

// PoolState is a live snapshot of a concentrated-liquidity pool.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
}

// PositionState is the raw positions() record of a position NFT plus its owner.
type PositionState struct {
	Owner       common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickLower   int32
	TickUpper   int32
	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// FetchPairMeta loads the token pair of a constant-product pair.
func FetchPairMeta(ctx context.Context, caller Caller, pair common.Address) (PoolMeta, error) {
	parsed, err := PairABI()
	if err != nil {
		return PoolMeta{}, fmt.Errorf("parse pair abi: %w", err)
	}
	token0, token1, err := fetchTokens(ctx, caller, pair, parsed)
	if err != nil {
		return PoolMeta{}, err
	}
	return PoolMeta{Token0: token0, Token1: token1}, nil
}

// FetchPairState loads reserves and LP supply of a constant-product pair.
func FetchPairState(ctx context.Context, caller Caller, pair common.Address) (PairState, error) {
	parsed, err := PairABI()
	if err != nil {
		return PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pair, parsed, "getReserves")
	if err != nil {
		return PairState{}, err
	}
	if len(values) < 2 {
		return PairState{}, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return PairState{}, fmt.Errorf("reserve1: %w", err)
	}

	values, err = callMethod(ctx, caller, pair, parsed, "totalSupply")
	if err != nil {
		return PairState{}, err
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return PairState{}, fmt.Errorf("total supply: %w", err)
	}

	return PairState{Reserve0: reserve0, Reserve1: reserve1, TotalSupply: supply}, nil
}

// FetchPoolMeta loads immutable metadata of a concentrated-liquidity pool.
func FetchPoolMeta(ctx context.Context, caller Caller, pool common.Address) (PoolMeta, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	token0, token1, err := fetchTokens(ctx, caller, pool, poolABI)
	if err != nil {
		return PoolMeta{}, err
	}

	values, err := callMethod(ctx, caller, pool, poolABI, "fee")
	if err != nil {
		return PoolMeta{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return PoolMeta{}, fmt.Errorf("fee: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "tickSpacing")
	if err != nil {
		return PoolMeta{}, err
	}
	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	return PoolMeta{
		Token0:      token0,
		Token1:      token1,
		Fee:         uint32(feeInt.Uint64()),
		TickSpacing: tickSpacing,
	}, nil
}

// FetchPoolState loads slot0 and in-range liquidity of a concentrated-liquidity pool.
func FetchPoolState(ctx context.Context, caller Caller, pool common.Address) (PoolState, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pool, poolABI, "slot0")
	if err != nil {
		return PoolState{}, err
	}
	if len(values) < 2 {
		return PoolState{}, fmt.Errorf("unexpected slot0 values: %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return PoolState{}, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return PoolState{}, fmt.Errorf("tick: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "liquidity")
	if err != nil {
		return PoolState{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	return PoolState{SqrtPriceX96: sqrtPrice, Tick: tick, Liquidity: liquidity}, nil
}

// FetchPosition loads a position NFT record and its owner from the position manager.
func FetchPosition(ctx context.Context, caller Caller, manager common.Address, tokenID *big.Int) (PositionState, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return PositionState{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := callMethod(ctx, caller, manager, parsed, "positions", tokenID)
	if err != nil {
		return PositionState{}, err
	}
	if len(values) != 12 {
		return PositionState{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}

	var state PositionState
	if state.Token0, err = asAddress(values[2]); err != nil {
		return PositionState{}, fmt.Errorf("token0: %w", err)
	}
	if state.Token1, err = asAddress(values[3]); err != nil {
		return PositionState{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := asBigInt(values[4])
	if err != nil {
		return PositionState{}, fmt.Errorf("fee: %w", err)
	}
	state.Fee = uint32(fee.Uint64())

	tickLower, err := asBigInt(values[5])
	if err != nil {
		return PositionState{}, fmt.Errorf("tick lower: %w", err)
	}
	if state.TickLower, err = int24FromBig(tickLower); err != nil {
		return PositionState{}, err
	}
	tickUpper, err := asBigInt(values[6])
	if err != nil {
		return PositionState{}, fmt.Errorf("tick upper: %w", err)
	}
	if state.TickUpper, err = int24FromBig(tickUpper); err != nil {
		return PositionState{}, err
	}
	if state.Liquidity, err = asBigInt(values[7]); err != nil {
		return PositionState{}, fmt.Errorf("liquidity: %w", err)
	}
	if state.TokensOwed0, err = asBigInt(values[10]); err != nil {
		return PositionState{}, fmt.Errorf("tokens owed0: %w", err)
	}
	if state.TokensOwed1, err = asBigInt(values[11]); err != nil {
		return PositionState{}, fmt.Errorf("tokens owed1: %w", err)
	}

	values, err = callMethod(ctx, caller, manager, parsed, "ownerOf", tokenID)
	if err != nil {
		return PositionState{}, err
	}
	if state.Owner, err = asAddress(values[0]); err != nil {
		return PositionState{}, fmt.Errorf("owner: %w", err)
	}

	return state, nil
}

// GetPair returns the factory's pair for two tokens, or the zero address.
func GetPair(ctx context.Context, caller Caller, factory, tokenA, tokenB common.Address) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, caller, factory, parsed, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// GetPool returns the factory's pool for two tokens and a fee tier, or the zero address.
func GetPool(ctx context.Context, caller Caller, factory, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, caller, factory, parsed, "getPool", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

func fetchTokens(ctx context.Context, caller Caller, pool common.Address, parsed abi.ABI) (common.Address, common.Address, error) {
	values, err := callMethod(ctx, caller, pool, parsed, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, parsed, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}
	return token0, token1, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenDescriptor, error) {
	meta := model.TokenDescriptor{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := erc20ABIString.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "name"); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
