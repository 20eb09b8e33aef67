package koala

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"koalaswap/internal/dex"
	"koalaswap/internal/model"
	"koalaswap/internal/pricing"
)

// allowanceNeed is one ERC20 amount a contract will pull from the wallet.
type allowanceNeed struct {
	token model.TokenDescriptor
	raw   *big.Int
}

// checkAllowances reads every allowance before reporting the first shortfall in need order.
// Native and zero legs need no approval.
func (r *run) checkAllowances(owner common.Address, kind dex.OperationKind, needs ...allowanceNeed) error {
	r.enter(StageAllowanceChecking)
	spender, spenderName := r.network.Registry.Addresses().Spender(kind)

	current := make([]*big.Int, len(needs))
	g, ctx := errgroup.WithContext(r.ctx)
	for i, need := range needs {
		if need.token.IsNative() || need.raw == nil || need.raw.Sign() == 0 {
			continue
		}
		i, need := i, need
		g.Go(func() error {
			value, err := r.network.Gateway.Allowance(ctx, addressOf(need.token), owner, spender)
			if err != nil {
				return fmt.Errorf("allowance %s: %w", need.token.Symbol, err)
			}
			current[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, need := range needs {
		if current[i] == nil {
			continue
		}
		r.logger.Info("allowance checked",
			zap.String("token", need.token.Symbol),
			zap.String("spender", spender.Hex()),
			zap.String("current", pricing.FormatUnits(current[i], need.token.Decimals)),
			zap.String("needed", pricing.FormatUnits(need.raw, need.token.Decimals)),
		)
		if current[i].Cmp(need.raw) < 0 {
			return &AllowanceError{
				Symbol:      need.token.Symbol,
				Required:    human(need.raw, need.token),
				RawRequired: new(big.Int).Set(need.raw),
				Current:     current[i],
				Spender:     spender,
				SpenderName: spenderName,
			}
		}
	}
	return nil
}
