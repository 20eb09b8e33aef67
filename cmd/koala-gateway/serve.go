package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"koalaswap/internal/api"
	"koalaswap/internal/config"
)

func runServe(cmd *cobra.Command, _ []string) error {
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

	journal, err := openJournal(ctx, cfg.Journal, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	gw, err := buildGateway(ctx, cfg, journal, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	server, err := api.NewServer(api.Config{
		Listen:         cfg.Listen,
		RatePerMinute:  cfg.RateLimit,
		AllowedOrigins: cfg.CORSOrigins,
	}, gw.service, gw.metrics, logger)
	if err != nil {
		return err
	}

	logger.Info("gateway start",
		zap.String("listen", cfg.Listen),
		zap.String("default_network", cfg.DefaultNetwork),
		zap.Strings("networks", gw.service.Networks()),
		zap.String("slippage_pct", cfg.SlippagePct.String()),
		zap.Int("rate_limit", cfg.RateLimit),
	)

	return server.Run(ctx)
}
