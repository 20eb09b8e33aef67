package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "koala-gateway",
		Short:        "KoalaSwap liquidity and swap gateway",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("default-network", "koala", "network used when a request names none")
	root.PersistentFlags().String("rpc", "", "RPC URL of the default network")
	root.PersistentFlags().Int("max-retries", 3, "maximum retry attempts for chain reads")
	root.PersistentFlags().Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connector HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", ":15888", "HTTP listen address")
	serveCmd.Flags().Int("rate-limit", 120, "requests per minute per client IP, 0 disables")
	serveCmd.Flags().String("slippage-pct", "1", "default slippage percentage")
	serveCmd.Flags().StringSlice("cors-origins", nil, "allowed CORS origins (comma-separated)")
	root.AddCommand(serveCmd)

	poolCmd := &cobra.Command{
		Use:   "pool-info",
		Short: "Print a pool's tokens, reserves or tick state, and price",
		RunE:  runPoolInfo,
	}
	poolCmd.Flags().String("kind", "amm", "pool kind (amm, clmm)")
	poolCmd.Flags().String("network", "", "network name")
	poolCmd.Flags().String("pool", "", "pool address")
	poolCmd.Flags().String("base", "", "base token symbol or address, used when --pool is empty")
	poolCmd.Flags().String("quote", "", "quote token symbol or address, used when --pool is empty")
	root.AddCommand(poolCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote-swap",
		Short: "Price a swap without submitting it",
		RunE:  runQuoteSwap,
	}
	quoteCmd.Flags().String("kind", "amm", "pool kind (amm, clmm)")
	quoteCmd.Flags().String("network", "", "network name")
	quoteCmd.Flags().String("pool", "", "pool address, found from the pair when empty")
	quoteCmd.Flags().String("base", "", "base token symbol or address")
	quoteCmd.Flags().String("quote", "", "quote token symbol or address")
	quoteCmd.Flags().String("amount", "", "base token amount")
	quoteCmd.Flags().String("side", "SELL", "trade side (BUY, SELL)")
	quoteCmd.Flags().String("slippage-pct", "1", "slippage percentage")
	root.AddCommand(quoteCmd)

	positionCmd := &cobra.Command{
		Use:   "position-info",
		Short: "Print a concentrated-liquidity position",
		RunE:  runPositionInfo,
	}
	positionCmd.Flags().String("network", "", "network name")
	positionCmd.Flags().String("position", "", "position NFT token id")
	root.AddCommand(positionCmd)

	exportCmd := &cobra.Command{
		Use:   "journal-export",
		Short: "Copy a JSONL operation journal into Postgres",
		RunE:  runJournalExport,
	}
	exportCmd.Flags().String("in", "", "input journal JSONL, defaults to journal.path")
	exportCmd.Flags().String("pg-dsn", "", "Postgres DSN, defaults to journal.pg-dsn")
	exportCmd.Flags().Int("batch-size", 500, "records per database batch")
	root.AddCommand(exportCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
