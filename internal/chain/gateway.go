package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"koalaswap/internal/model"
)

// Backend is the node surface the gateway needs. ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Call is one contract method invocation to submit.
type Call struct {
	To     common.Address
	ABI    abi.ABI
	Method string
	Args   []interface{}
}

// GatewayOptions tunes read retries and the expected chain.
type GatewayOptions struct {
	ExpectedChainID uint64
	MaxRetries      int
	RetryBackoff    time.Duration
}

// Gateway signs, submits, and confirms transactions and performs token reads.
type Gateway struct {
	backend Backend
	wallets *Wallets
	chainID *big.Int
	opts    GatewayOptions
	logger  *zap.Logger
}

// NewGateway resolves the chain ID and binds wallets to backend.
func NewGateway(ctx context.Context, backend Backend, wallets *Wallets, opts GatewayOptions, logger *zap.Logger) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	if wallets == nil {
		wallets = NewWallets()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var chainID *big.Int
	err := withRetry(ctx, opts.MaxRetries, opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		chainID, err = backend.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if opts.ExpectedChainID != 0 && chainID.Uint64() != opts.ExpectedChainID {
		return nil, fmt.Errorf("chain id mismatch: node reports %s, expected %d", chainID, opts.ExpectedChainID)
	}

	return &Gateway{
		backend: backend,
		wallets: wallets,
		chainID: chainID,
		opts:    opts,
		logger:  logger,
	}, nil
}

// ChainID returns the connected chain ID.
func (g *Gateway) ChainID() *big.Int {
	return new(big.Int).Set(g.chainID)
}

// Wallet returns the signer for address.
func (g *Gateway) Wallet(address common.Address) (*Signer, error) {
	return g.wallets.Get(address)
}

// DefaultWallet returns the first loaded wallet.
func (g *Gateway) DefaultWallet() (common.Address, error) {
	return g.wallets.First()
}

// Allowance reads token.allowance(owner, spender).
func (g *Gateway) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return g.readUint256(ctx, token, "allowance", owner, spender)
}

// BalanceOf reads token.balanceOf(owner).
func (g *Gateway) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return g.readUint256(ctx, token, "balanceOf", owner)
}

// NativeBalance returns the latest native balance of owner.
func (g *Gateway) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := withRetry(ctx, g.opts.MaxRetries, g.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		balance, err = g.backend.BalanceAt(ctx, owner, nil)
		return err
	})
	return balance, err
}

func (g *Gateway) readUint256(ctx context.Context, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	var value *big.Int
	err := withRetry(ctx, g.opts.MaxRetries, g.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		value, err = callUint256(ctx, g.backend, token, method, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PrepareGasOptions fixes the fee settings for one submission.
// A positive gasPrice forces legacy pricing; otherwise EIP-1559 is used when the chain reports a base fee.
func (g *Gateway) PrepareGasOptions(ctx context.Context, gasPrice *big.Int, gasLimit uint64) (model.GasOptions, error) {
	opts := model.GasOptions{GasLimit: gasLimit}
	if gasPrice != nil && gasPrice.Sign() > 0 {
		opts.GasPrice = new(big.Int).Set(gasPrice)
		return opts, nil
	}

	header, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return model.GasOptions{}, fmt.Errorf("latest header: %w", err)
	}

	if header.BaseFee != nil {
		tip, err := g.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return model.GasOptions{}, fmt.Errorf("suggest gas tip: %w", err)
		}
		maxFee := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		maxFee.Add(maxFee, tip)
		opts.MaxFeePerGas = maxFee
		opts.MaxPriorityFeePerGas = tip
		return opts, nil
	}

	price, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return model.GasOptions{}, fmt.Errorf("suggest gas price: %w", err)
	}
	opts.GasPrice = price
	return opts, nil
}

// Submit signs and broadcasts call. It does not wait for inclusion.
func (g *Gateway) Submit(ctx context.Context, signer *Signer, call Call, gas model.GasOptions) (*types.Transaction, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", ErrWalletNotFound)
	}

	opts, err := signer.TransactOpts(g.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gas.GasLimit
	opts.Value = gas.Value
	if gas.Legacy() {
		opts.GasPrice = gas.GasPrice
	} else {
		opts.GasFeeCap = gas.MaxFeePerGas
		opts.GasTipCap = gas.MaxPriorityFeePerGas
	}

	contract := bind.NewBoundContract(call.To, call.ABI, g.backend, g.backend, g.backend)
	tx, err := contract.Transact(opts, call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", call.Method, err)
	}

	g.logger.Info("transaction submitted",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("from", signer.Address.Hex()),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gas_limit", gas.GasLimit),
	)
	return tx, nil
}

// Wait blocks until tx is mined. A failed status yields ErrReverted with the receipt.
func (g *Gateway) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, g.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

// FeePaid returns gasUsed times the effective gas price, falling back to the tx price.
func FeePaid(receipt *types.Receipt, tx *types.Transaction) *big.Int {
	price := receipt.EffectiveGasPrice
	if price == nil && tx != nil {
		price = tx.GasPrice()
	}
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
}
