package koala

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/chain"
	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
)

// Stage is a step of an orchestrated request. Stages only move forward.
type Stage string

const (
	StageResolving         Stage = "resolving"
	StageWrapping          Stage = "wrapping"
	StageQuoting           Stage = "quoting"
	StageAllowanceChecking Stage = "allowance_checking"
	StageSubmitting        Stage = "submitting"
	StageConfirming        Stage = "confirming"
	StageFormatting        Stage = "formatting"
)

const (
	opAMMAddLiquidity     = "amm.add-liquidity"
	opAMMRemoveLiquidity  = "amm.remove-liquidity"
	opAMMQuoteLiquidity   = "amm.quote-liquidity"
	opAMMSwap             = "amm.swap"
	opAMMQuoteSwap        = "amm.quote-swap"
	opCLMMSwap            = "clmm.swap"
	opCLMMQuoteSwap       = "clmm.quote-swap"
	opCLMMOpenPosition    = "clmm.open-position"
	opCLMMAddLiquidity    = "clmm.add-liquidity"
	opCLMMRemoveLiquidity = "clmm.remove-liquidity"
	opCLMMClosePosition   = "clmm.close-position"
	opCLMMCollectFees     = "clmm.collect-fees"
	opPoolInfo            = "pool-info"
	opPositionInfo        = "position-info"
)

// run tracks one request through its stages and reports the outcome.
type run struct {
	svc       *Service
	ctx       context.Context
	network   *Network
	operation string
	stage     Stage
	started   time.Time
	logger    *zap.Logger
	record    model.OperationRecord
	onChain   bool
	baseWrap  string
	quoteWrap string
	unmined   string // broadcast, receipt not yet seen
}

// submission is a mined transaction with its decoded receipt.
type submission struct {
	tx      *types.Transaction
	receipt *types.Receipt
	fee     string
	events  model.ReceiptEvents
}

func (s *Service) begin(ctx context.Context, network *Network, operation string) *run {
	id := uuid.NewString()
	started := s.now()
	r := &run{
		svc:       s,
		ctx:       ctx,
		network:   network,
		operation: operation,
		started:   started,
		logger: s.logger.With(
			zap.String("operation", operation),
			zap.String("network", network.Name),
			zap.String("run", id),
		),
		record: model.OperationRecord{
			ID:        id,
			Network:   network.Name,
			ChainID:   network.ChainID,
			Operation: operation,
			Status:    model.TxStatusPending,
			StartedAt: started.UTC().Format(time.RFC3339Nano),
		},
	}
	r.enter(StageResolving)
	return r
}

// execute runs fn as one tracked request on the named network.
func execute[T any](ctx context.Context, s *Service, networkName, operation, failure string, fn func(r *run) (T, error)) (T, error) {
	var zero T
	network, err := s.network(networkName)
	if err != nil {
		return zero, err
	}
	r := s.begin(ctx, network, operation)
	out, err := fn(r)
	if err != nil {
		return zero, r.fail(err, failure)
	}
	r.succeed()
	return out, nil
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.record.Stage = string(stage)
	r.logger.Debug("stage", zap.String("stage", string(stage)))
}

func (r *run) setWallet(address common.Address) {
	r.record.Wallet = address.Hex()
	r.logger = r.logger.With(zap.String("wallet", address.Hex()))
}

func (r *run) setPool(address string) {
	r.record.PoolAddress = address
}

func (r *run) setPosition(id *big.Int) {
	r.record.PositionID = id.String()
}

func (r *run) setWrap(base bool, hash string) {
	r.onChain = true
	if base {
		r.baseWrap = hash
		r.record.BaseWrapTxHash = hash
		return
	}
	r.quoteWrap = hash
	r.record.QuoteWrapTxHash = hash
}

func (r *run) result(sub submission) model.TransactionResult {
	return model.TransactionResult{
		Signature: sub.tx.Hash().Hex(),
		Status:    model.TxStatusConfirmed,
	}
}

// submit prepares gas, broadcasts call, and blocks until it is mined.
func (r *run) submit(signer *chain.Signer, call chain.Call, gasPrice *big.Int, gasLimit uint64, value *big.Int) (submission, error) {
	r.enter(StageSubmitting)
	gas, err := r.network.Gateway.PrepareGasOptions(r.ctx, gasPrice, gasLimit)
	if err != nil {
		return submission{}, fmt.Errorf("prepare gas: %w", err)
	}
	if value != nil && value.Sign() > 0 {
		gas.Value = new(big.Int).Set(value)
		if err := r.ensureNative(signer, gas); err != nil {
			return submission{}, err
		}
	}

	tx, err := r.network.Gateway.Submit(r.ctx, signer, call, gas)
	if err != nil {
		return submission{}, err
	}
	r.onChain = true
	r.unmined = tx.Hash().Hex()
	r.record.TxHash = r.unmined

	r.enter(StageConfirming)
	receipt, err := r.network.Gateway.Wait(r.ctx, tx)
	if receipt != nil {
		r.unmined = ""
	}
	if err != nil {
		return submission{}, err
	}

	r.enter(StageFormatting)
	fee := pricing.FormatUnits(chain.FeePaid(receipt, tx), model.NativeDecimals)
	r.record.Fee = fee

	events, err := r.svc.decoder.Decode(receipt.Logs)
	if err != nil {
		r.logger.Warn("decode receipt logs", zap.String("tx", tx.Hash().Hex()), zap.Error(err))
		events = model.ReceiptEvents{}
	}

	r.logger.Info("transaction confirmed",
		zap.String("method", call.Method),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.String("fee", fee),
	)
	return submission{tx: tx, receipt: receipt, fee: fee, events: events}, nil
}

// fail classifies err, logs the original, and journals anything already on chain.
// A broadcast transaction without a receipt is journaled as pending, not failed.
func (r *run) fail(err error, failure string) error {
	classified := *classify(err, failure)
	classified.BaseWrapTxHash = r.baseWrap
	classified.QuoteWrapTxHash = r.quoteWrap
	classified.TxHash = r.unmined

	r.logger.Error("operation failed",
		zap.String("stage", string(r.stage)),
		zap.String("kind", string(classified.Kind)),
		zap.Error(err),
	)
	r.svc.metrics.ObserveStageError(r.operation, string(r.stage), string(classified.Kind))
	r.svc.metrics.ObserveOperation(r.network.Name, r.operation, "failure", r.svc.now().Sub(r.started))

	if r.onChain {
		r.record.Status = model.TxStatusFailed
		if r.unmined != "" {
			r.record.Status = model.TxStatusPending
		}
		r.record.Error = classified.Message
		r.persist()
	}
	return &classified
}

func (r *run) succeed() {
	r.svc.metrics.ObserveOperation(r.network.Name, r.operation, "success", r.svc.now().Sub(r.started))
	if !r.onChain {
		return
	}
	r.record.Status = model.TxStatusConfirmed
	if fee, err := decimal.NewFromString(r.record.Fee); err == nil {
		r.svc.metrics.ObserveGasFee(r.network.Name, fee.InexactFloat64())
	}
	r.persist()
}

func (r *run) persist() {
	r.record.FinishedAt = r.svc.now().UTC().Format(time.RFC3339Nano)
	if err := r.svc.journal.PutOperation(context.WithoutCancel(r.ctx), r.record); err != nil {
		r.logger.Warn("journal write failed", zap.Error(err))
	}
}
