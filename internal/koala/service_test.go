package koala

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewServiceValidation(t *testing.T) {
	h := newHarness(t)
	network := h.svc.networks["koala"]

	_, err := NewService(Options{DefaultNetwork: "mainnet", SlippagePct: decimal.NewFromInt(1)}, []*Network{network}, nil, nil, nil)
	require.Error(t, err)

	_, err = NewService(Options{DefaultNetwork: "koala", SlippagePct: decimal.NewFromInt(101)}, []*Network{network}, nil, nil, nil)
	require.Error(t, err)

	_, err = NewService(Options{DefaultNetwork: "koala"}, []*Network{{Name: "koala"}}, nil, nil, nil)
	require.Error(t, err)

	svc, err := NewService(Options{DefaultNetwork: "KOALA"}, []*Network{network, {Name: "mainnet", Gateway: network.Gateway, Registry: network.Registry, Oracle: network.Oracle}}, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"koala", "mainnet"}, svc.Networks())
}

func TestDeadlineIsTwentyMinutesOut(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, testNow.Unix()+1200, h.svc.deadline().Int64())

	h.svc.now = time.Now
	before := time.Now().Unix()
	got := h.svc.deadline().Int64()
	require.GreaterOrEqual(t, got, before+1200)
	require.LessOrEqual(t, got, time.Now().Unix()+1200)
}

func TestJournalFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.journal.err = errors.New("disk full")
	h.gateway.approve(wethToken, testAddresses.V2Router, units(1, 18))
	h.gateway.approve(usdcToken, testAddresses.V2Router, units(2000, 6))

	_, err := h.svc.AddLiquidity(context.Background(), AddLiquidityRequest{
		TxOptions:        h.txOptions(),
		PoolAddress:      wethUSDCPair,
		BaseTokenAmount:  dec("1"),
		QuoteTokenAmount: dec("2000"),
	})
	require.NoError(t, err)
}

func TestOperationMetrics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.QuoteLiquidity(ctx, AddLiquidityRequest{PoolAddress: wethUSDCPair, BaseTokenAmount: dec("1"), QuoteTokenAmount: dec("2000")})
	require.NoError(t, err)
	_, err = h.svc.QuoteLiquidity(ctx, AddLiquidityRequest{PoolAddress: wethUSDCPair})
	require.Error(t, err)

	require.Equal(t, 1.0, counter(t, h, "koala_operations_total", map[string]string{"operation": opAMMQuoteLiquidity, "outcome": "success"}))
	require.Equal(t, 1.0, counter(t, h, "koala_operations_total", map[string]string{"operation": opAMMQuoteLiquidity, "outcome": "failure"}))
	require.Equal(t, 1.0, counter(t, h, "koala_stage_errors_total", map[string]string{"stage": string(StageResolving), "kind": string(KindMissingParameter)}))
}

func counter(t *testing.T, h *harness, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := h.metrics.Registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
