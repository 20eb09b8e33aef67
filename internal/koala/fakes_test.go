package koala

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"koalaswap/internal/chain"
	"koalaswap/internal/dex"
	"koalaswap/internal/metrics"
	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
)

var (
	testNow = time.Unix(1_700_000_000, 0)

	wethToken   = model.TokenDescriptor{Symbol: "WETH", Address: "0x00000000000000000000000000000000000000e1", Decimals: 18}
	usdcToken   = model.TokenDescriptor{Symbol: "USDC", Address: "0x00000000000000000000000000000000000000e2", Decimals: 6}
	wunit0Token = model.TokenDescriptor{Symbol: "WUNIT0", Address: "0x00000000000000000000000000000000000000e3", Decimals: 18}

	wethUSDCPair   = "0x00000000000000000000000000000000000000b1"
	wunit0USDCPair = "0x00000000000000000000000000000000000000b2"
	wethUSDCPool   = "0x00000000000000000000000000000000000000c1"

	testAddresses = dex.Addresses{
		V2Router:          common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		V2Factory:         common.HexToAddress("0x00000000000000000000000000000000000000a2"),
		V3SwapRouter:      common.HexToAddress("0x00000000000000000000000000000000000000a3"),
		V3PositionManager: common.HexToAddress("0x00000000000000000000000000000000000000a4"),
		V3QuoterV2:        common.HexToAddress("0x00000000000000000000000000000000000000a5"),
		V3Factory:         common.HexToAddress("0x00000000000000000000000000000000000000a6"),
	}
)

func units(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

func dec(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

// submitted is one transaction the fake gateway accepted.
type submitted struct {
	call chain.Call
	gas  model.GasOptions
}

type fakeGateway struct {
	mu         sync.Mutex
	wallets    *chain.Wallets
	allowances map[string]*big.Int
	balances   map[string]*big.Int
	native     *big.Int
	submits    []submitted
	trace      *[]string
	submitErr  error
	waitErr    error
	logs       map[string][]*types.Log
	nonce      uint64
}

func newFakeGateway(t *testing.T, trace *[]string) (*fakeGateway, *chain.Signer) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := chain.NewSigner(key)
	wallets := chain.NewWallets()
	wallets.Add(signer)
	return &fakeGateway{
		wallets:    wallets,
		allowances: map[string]*big.Int{},
		balances:   map[string]*big.Int{},
		logs:       map[string][]*types.Log{},
		trace:      trace,
	}, signer
}

func allowanceKey(token, spender common.Address) string {
	return token.Hex() + "/" + spender.Hex()
}

func (g *fakeGateway) approve(token model.TokenDescriptor, spender common.Address, raw *big.Int) {
	g.allowances[allowanceKey(common.HexToAddress(token.Address), spender)] = raw
}

func (g *fakeGateway) Wallet(address common.Address) (*chain.Signer, error) {
	return g.wallets.Get(address)
}

func (g *fakeGateway) DefaultWallet() (common.Address, error) {
	return g.wallets.First()
}

func (g *fakeGateway) Allowance(_ context.Context, token, _, spender common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if value, ok := g.allowances[allowanceKey(token, spender)]; ok {
		return new(big.Int).Set(value), nil
	}
	return new(big.Int), nil
}

func (g *fakeGateway) BalanceOf(_ context.Context, token, _ common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if value, ok := g.balances[token.Hex()]; ok {
		return new(big.Int).Set(value), nil
	}
	return new(big.Int), nil
}

// NativeBalance reports native, or an effectively unlimited balance when unset.
func (g *fakeGateway) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.native != nil {
		return new(big.Int).Set(g.native), nil
	}
	return units(1_000_000, 18), nil
}

func (g *fakeGateway) PrepareGasOptions(_ context.Context, gasPrice *big.Int, gasLimit uint64) (model.GasOptions, error) {
	if gasPrice == nil {
		gasPrice = big.NewInt(1_000_000_000)
	}
	return model.GasOptions{GasLimit: gasLimit, GasPrice: gasPrice}, nil
}

func (g *fakeGateway) Submit(_ context.Context, _ *chain.Signer, call chain.Call, gas model.GasOptions) (*types.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.trace != nil {
		*g.trace = append(*g.trace, "submit:"+call.Method)
	}
	if g.submitErr != nil && call.Method != "deposit" {
		return nil, g.submitErr
	}
	g.submits = append(g.submits, submitted{call: call, gas: gas})
	g.nonce++
	to := call.To
	return types.NewTx(&types.LegacyTx{
		Nonce:    g.nonce,
		To:       &to,
		Gas:      gas.GasLimit,
		GasPrice: gas.GasPrice,
		Value:    gas.Value,
	}), nil
}

func (g *fakeGateway) Wait(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	method := g.submits[len(g.submits)-1].call.Method
	if g.waitErr != nil && method != "deposit" {
		return nil, g.waitErr
	}
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		TxHash:            tx.Hash(),
		GasUsed:           210000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
		Logs:              g.logs[method],
	}, nil
}

// last returns the most recent non-wrap submission.
func (g *fakeGateway) last(t *testing.T) submitted {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.submits) - 1; i >= 0; i-- {
		if g.submits[i].call.Method != "deposit" {
			return g.submits[i]
		}
	}
	t.Fatalf("no submission recorded")
	return submitted{}
}

func (g *fakeGateway) count(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.submits {
		if s.call.Method == method {
			n++
		}
	}
	return n
}

type fakeRegistry struct {
	tokens    []model.TokenDescriptor
	wrapped   *model.TokenDescriptor
	pools     map[string]model.PoolInfo
	positions map[string]model.Position
}

func (r *fakeRegistry) Addresses() dex.Addresses {
	return testAddresses
}

func (r *fakeRegistry) ResolveToken(_ context.Context, ref string) (model.TokenDescriptor, error) {
	for _, token := range r.tokens {
		if strings.EqualFold(token.Symbol, ref) || strings.EqualFold(token.Address, ref) {
			return token, nil
		}
	}
	return model.TokenDescriptor{}, fmt.Errorf("%w: %s", dex.ErrTokenNotFound, ref)
}

func (r *fakeRegistry) WrappedNative(context.Context) (model.TokenDescriptor, error) {
	if r.wrapped == nil {
		return model.TokenDescriptor{}, dex.ErrTokenNotFound
	}
	return *r.wrapped, nil
}

func (r *fakeRegistry) ResolvePool(_ context.Context, address string, kind model.PoolKind) (model.PoolInfo, error) {
	pool, ok := r.pools[strings.ToLower(address)]
	if !ok || pool.Kind != kind {
		return model.PoolInfo{}, fmt.Errorf("%w: %s", dex.ErrPoolNotFound, address)
	}
	return pool, nil
}

func (r *fakeRegistry) FindPool(_ context.Context, base, quote model.TokenDescriptor, kind model.PoolKind) (string, error) {
	for _, pool := range r.pools {
		if pool.Kind == kind && pool.HasToken(base) && pool.HasToken(quote) {
			return pool.Address, nil
		}
	}
	return "", fmt.Errorf("%w: no %s/%s pool", dex.ErrPoolNotFound, base.Symbol, quote.Symbol)
}

func (r *fakeRegistry) ResolvePosition(_ context.Context, tokenID *big.Int) (model.Position, error) {
	position, ok := r.positions[tokenID.String()]
	if !ok {
		return model.Position{}, fmt.Errorf("%w: %s", dex.ErrPositionNotFound, tokenID)
	}
	return position, nil
}

// tracingOracle records quote calls and can override swap quotes.
type tracingOracle struct {
	*pricing.Oracle
	trace *[]string
	swap  func(side model.Side, amount *big.Int) (pricing.SwapEstimate, error)
}

func (o *tracingOracle) QuoteSwap(ctx context.Context, pool model.PoolInfo, tokenIn, tokenOut model.TokenDescriptor, side model.Side, amount *big.Int) (pricing.SwapEstimate, error) {
	*o.trace = append(*o.trace, "quote")
	if o.swap != nil {
		return o.swap(side, amount)
	}
	return o.Oracle.QuoteSwap(ctx, pool, tokenIn, tokenOut, side, amount)
}

func (o *tracingOracle) QuoteLiquidity(pool model.PoolInfo, rawBase, rawQuote *big.Int) (pricing.LiquidityEstimate, error) {
	*o.trace = append(*o.trace, "quote")
	return o.Oracle.QuoteLiquidity(pool, rawBase, rawQuote)
}

type memoryJournal struct {
	mu      sync.Mutex
	records []model.OperationRecord
	err     error
}

func (j *memoryJournal) PutOperation(_ context.Context, record model.OperationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, record)
	return nil
}

func (j *memoryJournal) Close() error { return nil }

// harness is a service over one in-memory network.
type harness struct {
	svc      *Service
	gateway  *fakeGateway
	registry *fakeRegistry
	oracle   *tracingOracle
	signer   *chain.Signer
	journal  *memoryJournal
	metrics  *metrics.Metrics
	trace    *[]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	trace := &[]string{}
	gateway, signer := newFakeGateway(t, trace)
	wrapped := wunit0Token
	registry := &fakeRegistry{
		tokens:  []model.TokenDescriptor{wethToken, usdcToken, wunit0Token},
		wrapped: &wrapped,
		pools: map[string]model.PoolInfo{
			wethUSDCPair: {
				Kind:         model.PoolKindAMM,
				Address:      wethUSDCPair,
				BaseToken:    wethToken,
				QuoteToken:   usdcToken,
				BaseReserve:  units(100, 18),
				QuoteReserve: units(200000, 6),
				LPSupply:     units(10, 18),
			},
			wunit0USDCPair: {
				Kind:         model.PoolKindAMM,
				Address:      wunit0USDCPair,
				BaseToken:    wunit0Token,
				QuoteToken:   usdcToken,
				BaseReserve:  units(1000, 18),
				QuoteReserve: units(2000, 6),
				LPSupply:     units(40, 18),
			},
			wethUSDCPool: {
				Kind:         model.PoolKindCLMM,
				Address:      wethUSDCPool,
				BaseToken:    wethToken,
				QuoteToken:   usdcToken,
				Fee:          3000,
				TickSpacing:  60,
				SqrtPriceX96: sqrtPriceX96For(2000, 18, 6),
				Liquidity:    units(1, 18),
			},
		},
		positions: map[string]model.Position{},
	}
	oracle := &tracingOracle{Oracle: pricing.NewOracle(nil, testAddresses.V3QuoterV2, nil), trace: trace}
	journal := &memoryJournal{}
	m := metrics.New()

	svc, err := NewService(Options{DefaultNetwork: "koala", SlippagePct: decimal.NewFromInt(1)}, []*Network{{
		Name:     "koala",
		ChainID:  88811,
		Gateway:  gateway,
		Registry: registry,
		Oracle:   oracle,
	}}, journal, m, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }

	return &harness{
		svc:      svc,
		gateway:  gateway,
		registry: registry,
		oracle:   oracle,
		signer:   signer,
		journal:  journal,
		metrics:  m,
		trace:    trace,
	}
}

// sqrtPriceX96For encodes a human price of quote per base.
func sqrtPriceX96For(price float64, decimals0, decimals1 int) *big.Int {
	raw := new(big.Float).SetFloat64(price)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals1-decimals0+18)), nil))
	raw.Mul(raw, scale)
	raw.Quo(raw, new(big.Float).SetInt(units(1, 18)))
	raw.Sqrt(raw)
	raw.Mul(raw, new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))
	out, _ := raw.Int(nil)
	return out
}

func (h *harness) wallet() string {
	return h.signer.Address.Hex()
}

func (h *harness) txOptions() TxOptions {
	return TxOptions{WalletAddress: h.wallet(), SlippagePct: dec("1")}
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var typed *Error
	require.True(t, errors.As(err, &typed), "expected *Error, got %T: %v", err, err)
	require.Equal(t, kind, typed.Kind, typed.Message)
	return typed
}

// common0x returns the checksummed form of an address literal.
func common0x(address string) string {
	return common.HexToAddress(address).Hex()
}
