package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"koalaswap/internal/config"
	"koalaswap/internal/storage"
	"koalaswap/internal/storage/postgres"
)

func runJournalExport(cmd *cobra.Command, _ []string) error {
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

	input, _ := cmd.Flags().GetString("in")
	if input == "" {
		input = cfg.Journal.Path
	}
	dsn, _ := cmd.Flags().GetString("pg-dsn")
	if dsn == "" {
		dsn = cfg.Journal.PGDSN
	}
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if dsn == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := storage.NewJsonlStorage(input).ReadOperations()
	if err != nil {
		return err
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := store.PutOperations(ctx, records[start:end]); err != nil {
			return fmt.Errorf("write batch at %d: %w", start, err)
		}
	}

	logger.Info("journal exported",
		zap.String("in", input),
		zap.Int("records", len(records)),
		zap.Int("batch_size", batchSize),
	)
	return nil
}
