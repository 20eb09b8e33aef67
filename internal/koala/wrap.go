package koala

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/chain"
	"koalaswap/internal/dex"
	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
)

const wrapGasLimit = 100000

// wrap deposits amount of native currency into the wrapped token and waits for it to be mined.
func (r *run) wrap(signer *chain.Signer, wrapped model.TokenDescriptor, amount decimal.Decimal, gasPrice *big.Int) (string, error) {
	r.enter(StageWrapping)
	raw, err := toRaw("wrap amount", amount, model.NativeToken())
	if err != nil {
		return "", err
	}
	parsed, err := dex.WrappedNativeABI()
	if err != nil {
		return "", fmt.Errorf("parse wrapped native abi: %w", err)
	}

	r.logger.Info("wrapping native currency",
		zap.String("amount", amount.String()),
		zap.String("token", wrapped.Symbol),
	)
	gas, err := r.network.Gateway.PrepareGasOptions(r.ctx, gasPrice, wrapGasLimit)
	if err != nil {
		return "", fmt.Errorf("prepare wrap gas: %w", err)
	}
	gas.Value = raw
	if err := r.ensureNative(signer, gas); err != nil {
		return "", err
	}

	tx, err := r.network.Gateway.Submit(r.ctx, signer, chain.Call{
		To:     addressOf(wrapped),
		ABI:    parsed,
		Method: "deposit",
	}, gas)
	if err != nil {
		return "", fmt.Errorf("wrap %s: %w", amount.String(), err)
	}
	r.onChain = true
	r.unmined = tx.Hash().Hex()
	receipt, err := r.network.Gateway.Wait(r.ctx, tx)
	if receipt != nil {
		r.unmined = ""
	}
	if err != nil {
		return "", fmt.Errorf("wrap %s: %w", amount.String(), err)
	}

	hash := tx.Hash().Hex()
	r.svc.metrics.ObserveWrap(r.network.Name)
	r.logger.Info("wrapped native currency",
		zap.String("amount", amount.String()),
		zap.String("token", wrapped.Symbol),
		zap.String("tx", hash),
	)
	return hash, nil
}

// wrapLegs wraps every leg the caller named as native, base first, each mined before the next step.
func (r *run) wrapLegs(signer *chain.Signer, legs *[2]leg, gasPrice *big.Int) error {
	for i := range legs {
		if !legs[i].wrap || !legs[i].amount.IsPositive() {
			continue
		}
		hash, err := r.wrap(signer, legs[i].token, legs[i].amount, gasPrice)
		if err != nil {
			return err
		}
		r.setWrap(i == 0, hash)
	}
	return nil
}

// ensureNative fails with InsufficientNativeBalance when the signer cannot cover the
// value plus the worst-case gas of a transaction.
func (r *run) ensureNative(signer *chain.Signer, gas model.GasOptions) error {
	need := new(big.Int)
	if gas.Value != nil {
		need.Set(gas.Value)
	}
	price := gas.GasPrice
	if !gas.Legacy() {
		price = gas.MaxFeePerGas
	}
	if price != nil {
		need.Add(need, new(big.Int).Mul(price, new(big.Int).SetUint64(gas.GasLimit)))
	}

	balance, err := r.network.Gateway.NativeBalance(r.ctx, signer.Address)
	if err != nil {
		return fmt.Errorf("native balance: %w", err)
	}
	if balance.Cmp(need) < 0 {
		r.logger.Warn("native balance below requirement",
			zap.String("balance", pricing.FormatUnits(balance, model.NativeDecimals)),
			zap.String("required", pricing.FormatUnits(need, model.NativeDecimals)),
		)
		return newError(KindInsufficientNativeBalance, insufficientNativeMessage)
	}
	return nil
}
