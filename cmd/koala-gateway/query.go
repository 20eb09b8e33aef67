package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"koalaswap/internal/config"
	"koalaswap/internal/koala"
	"koalaswap/internal/model"
)

// withReadOnlyService loads config, wires the orchestrator without a journal, and runs fn.
func withReadOnlyService(cmd *cobra.Command, fn func(ctx context.Context, svc *koala.Service) (interface{}, error)) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := buildGateway(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	out, err := fn(ctx, gw.service)
	if err != nil {
		logger.Debug("query failed", zap.Error(err))
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func poolKindFlag(cmd *cobra.Command) (model.PoolKind, error) {
	raw, _ := cmd.Flags().GetString("kind")
	kind, ok := model.ParsePoolKind(raw)
	if !ok {
		return "", fmt.Errorf("invalid kind %q, expected amm or clmm", raw)
	}
	return kind, nil
}

func runPoolInfo(cmd *cobra.Command, _ []string) error {
	kind, err := poolKindFlag(cmd)
	if err != nil {
		return err
	}
	network, _ := cmd.Flags().GetString("network")
	pool, _ := cmd.Flags().GetString("pool")
	base, _ := cmd.Flags().GetString("base")
	quote, _ := cmd.Flags().GetString("quote")

	return withReadOnlyService(cmd, func(ctx context.Context, svc *koala.Service) (interface{}, error) {
		return svc.PoolInfo(ctx, kind, koala.PoolRequest{
			Network:     network,
			PoolAddress: pool,
			BaseToken:   base,
			QuoteToken:  quote,
		})
	})
}

func runQuoteSwap(cmd *cobra.Command, _ []string) error {
	kind, err := poolKindFlag(cmd)
	if err != nil {
		return err
	}
	network, _ := cmd.Flags().GetString("network")
	pool, _ := cmd.Flags().GetString("pool")
	base, _ := cmd.Flags().GetString("base")
	quote, _ := cmd.Flags().GetString("quote")
	side, _ := cmd.Flags().GetString("side")
	rawAmount, _ := cmd.Flags().GetString("amount")
	rawSlippage, _ := cmd.Flags().GetString("slippage-pct")

	var amount *decimal.Decimal
	if rawAmount != "" {
		parsed, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return fmt.Errorf("parse amount: %w", err)
		}
		amount = &parsed
	}
	slippage, err := decimal.NewFromString(rawSlippage)
	if err != nil {
		return fmt.Errorf("parse slippage-pct: %w", err)
	}

	return withReadOnlyService(cmd, func(ctx context.Context, svc *koala.Service) (interface{}, error) {
		return svc.QuoteSwap(ctx, kind, koala.SwapRequest{
			TxOptions:   koala.TxOptions{Network: network, SlippagePct: &slippage},
			PoolAddress: pool,
			BaseToken:   base,
			QuoteToken:  quote,
			Amount:      amount,
			Side:        side,
		})
	})
}

func runPositionInfo(cmd *cobra.Command, _ []string) error {
	network, _ := cmd.Flags().GetString("network")
	position, _ := cmd.Flags().GetString("position")

	return withReadOnlyService(cmd, func(ctx context.Context, svc *koala.Service) (interface{}, error) {
		return svc.PositionInfo(ctx, koala.PositionRef{Network: network, PositionAddress: position})
	})
}
