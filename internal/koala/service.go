package koala

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/chain"
	"koalaswap/internal/dex"
	"koalaswap/internal/metrics"
	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
	"koalaswap/internal/storage"
)

// DeadlineWindow is added to the submission time for router deadlines.
const DeadlineWindow = 20 * time.Minute

// Gateway is the chain surface the orchestrator drives. *chain.Gateway satisfies it.
type Gateway interface {
	Wallet(address common.Address) (*chain.Signer, error)
	DefaultWallet() (common.Address, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	PrepareGasOptions(ctx context.Context, gasPrice *big.Int, gasLimit uint64) (model.GasOptions, error)
	Submit(ctx context.Context, signer *chain.Signer, call chain.Call, gas model.GasOptions) (*types.Transaction, error)
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Registry resolves tokens, pools, and positions. *dex.Registry satisfies it.
type Registry interface {
	Addresses() dex.Addresses
	ResolveToken(ctx context.Context, ref string) (model.TokenDescriptor, error)
	WrappedNative(ctx context.Context) (model.TokenDescriptor, error)
	ResolvePool(ctx context.Context, address string, kind model.PoolKind) (model.PoolInfo, error)
	FindPool(ctx context.Context, base, quote model.TokenDescriptor, kind model.PoolKind) (string, error)
	ResolvePosition(ctx context.Context, tokenID *big.Int) (model.Position, error)
}

// Oracle prices swaps and deposits. *pricing.Oracle satisfies it.
type Oracle interface {
	QuoteSwap(ctx context.Context, pool model.PoolInfo, tokenIn, tokenOut model.TokenDescriptor, side model.Side, amount *big.Int) (pricing.SwapEstimate, error)
	QuoteLiquidity(pool model.PoolInfo, rawBase, rawQuote *big.Int) (pricing.LiquidityEstimate, error)
	PositionAmounts(pool model.PoolInfo, tickLower, tickUpper int32, liquidity *big.Int) (*big.Int, *big.Int)
	MintAmounts(pool model.PoolInfo, tickLower, tickUpper int32, raw0, raw1 *big.Int) (*big.Int, *big.Int, *big.Int, error)
}

// Network bundles the collaborators of one configured network.
type Network struct {
	Name     string
	ChainID  uint64
	Gateway  Gateway
	Registry Registry
	Oracle   Oracle
}

// Options are the process-wide orchestrator settings.
type Options struct {
	DefaultNetwork string
	SlippagePct    decimal.Decimal
}

// Service runs liquidity, position, and swap operations across networks.
type Service struct {
	networks       map[string]*Network
	defaultNetwork string
	slippagePct    decimal.Decimal
	decoder        *dex.ReceiptDecoder
	journal        storage.Journal
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewService validates the network set and the default slippage.
func NewService(opts Options, networks []*Network, journal storage.Journal, m *metrics.Metrics, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = storage.Nop{}
	}
	if _, err := pricing.NewSlippage(opts.SlippagePct); err != nil {
		return nil, fmt.Errorf("default slippage: %w", err)
	}
	decoder, err := dex.NewReceiptDecoder()
	if err != nil {
		return nil, fmt.Errorf("receipt decoder: %w", err)
	}

	byName := make(map[string]*Network, len(networks))
	for _, network := range networks {
		if network == nil || network.Gateway == nil || network.Registry == nil || network.Oracle == nil {
			return nil, fmt.Errorf("network %q is incomplete", networkName(network))
		}
		byName[strings.ToLower(network.Name)] = network
	}
	if _, ok := byName[strings.ToLower(opts.DefaultNetwork)]; !ok {
		return nil, fmt.Errorf("default network %q is not configured", opts.DefaultNetwork)
	}

	return &Service{
		networks:       byName,
		defaultNetwork: strings.ToLower(opts.DefaultNetwork),
		slippagePct:    opts.SlippagePct,
		decoder:        decoder,
		journal:        journal,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}, nil
}

func networkName(network *Network) string {
	if network == nil {
		return ""
	}
	return network.Name
}

// Networks lists the configured network names.
func (s *Service) Networks() []string {
	names := make([]string, 0, len(s.networks))
	for name := range s.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) network(name string) (*Network, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = s.defaultNetwork
	}
	network, ok := s.networks[name]
	if !ok {
		return nil, newError(KindUnsupportedNetwork, "Unsupported network: %s", name)
	}
	return network, nil
}

// TxOptions are the fields shared by every write request.
type TxOptions struct {
	Network       string           `json:"network,omitempty"`
	WalletAddress string           `json:"walletAddress,omitempty"`
	SlippagePct   *decimal.Decimal `json:"slippagePct,omitempty"`
	GasPrice      string           `json:"gasPrice,omitempty"`
	MaxGas        uint64           `json:"maxGas,omitempty"`
}

func (o TxOptions) gasPrice() (*big.Int, error) {
	if strings.TrimSpace(o.GasPrice) == "" {
		return nil, nil
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(o.GasPrice), 10)
	if !ok || price.Sign() < 0 {
		return nil, newError(KindInvalidAmount, "Invalid gas price: %s", o.GasPrice)
	}
	return price, nil
}

func (o TxOptions) gasLimit(fallback uint64) uint64 {
	if o.MaxGas > 0 {
		return o.MaxGas
	}
	return fallback
}

func (s *Service) slippage(pct *decimal.Decimal) (pricing.Slippage, error) {
	slippage, err := pricing.ResolveSlippage(pct, s.slippagePct)
	if err != nil {
		return pricing.Slippage{}, &Error{Kind: KindInvalidAmount, Message: "Slippage must be between 0 and 100 percent", Err: err}
	}
	return slippage, nil
}

func (s *Service) resolveWallet(network *Network, address string) (*chain.Signer, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		first, err := network.Gateway.DefaultWallet()
		if err != nil {
			return nil, &Error{Kind: KindWalletNotFound, Message: "No wallet address provided and no wallets found.", Err: err}
		}
		s.logger.Info("using first available wallet", zap.String("wallet", first.Hex()))
		return network.Gateway.Wallet(first)
	}
	if !common.IsHexAddress(address) {
		return nil, newError(KindWalletNotFound, "Invalid wallet address: %s", address)
	}
	signer, err := network.Gateway.Wallet(common.HexToAddress(address))
	if err != nil {
		return nil, &Error{Kind: KindWalletNotFound, Message: fmt.Sprintf("Wallet not found: %s", address), Err: err}
	}
	return signer, nil
}

func (s *Service) deadline() *big.Int {
	return big.NewInt(s.now().Add(DeadlineWindow).Unix())
}

// requireAmount rejects a missing or non-positive amount.
func requireAmount(field string, amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, missing(field)
	}
	if !amount.IsPositive() {
		return decimal.Zero, newError(KindInvalidAmount, "%s must be positive, got %s", field, amount.String())
	}
	return *amount, nil
}

// optionalAmount allows a missing or zero amount and rejects a negative one.
func optionalAmount(field string, amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, nil
	}
	if amount.IsNegative() {
		return decimal.Zero, newError(KindInvalidAmount, "%s must not be negative, got %s", field, amount.String())
	}
	return *amount, nil
}

func toRaw(field string, amount decimal.Decimal, token model.TokenDescriptor) (*big.Int, error) {
	raw, err := pricing.ToRaw(amount, token.Decimals)
	if err != nil {
		return nil, &Error{Kind: KindInvalidAmount, Message: fmt.Sprintf("Invalid %s: %s", field, amount.String()), Err: err}
	}
	return raw, nil
}

func human(raw *big.Int, token model.TokenDescriptor) decimal.Decimal {
	return pricing.FromRaw(raw, token.Decimals)
}

func parsePositionID(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, missing("positionAddress")
	}
	id, ok := new(big.Int).SetString(value, 0)
	if !ok || id.Sign() <= 0 {
		return nil, newError(KindPositionNotFound, "Position not found: %s", value)
	}
	return id, nil
}

func addressOf(token model.TokenDescriptor) common.Address {
	return common.HexToAddress(token.Address)
}
