package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"koalaswap/internal/chain"
	"koalaswap/internal/config"
	"koalaswap/internal/dex"
	"koalaswap/internal/koala"
	"koalaswap/internal/metrics"
	"koalaswap/internal/pricing"
	"koalaswap/internal/storage"
	"koalaswap/internal/storage/postgres"
)

// gateway is the wired orchestrator and the resources it holds open.
type gateway struct {
	service *koala.Service
	metrics *metrics.Metrics
	closers []func()
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}

// buildGateway connects every network that has an RPC URL and builds the orchestrator.
// A nil journal disables journaling.
func buildGateway(ctx context.Context, cfg config.Config, journal storage.Journal, logger *zap.Logger) (*gateway, error) {
	g := &gateway{metrics: metrics.New()}

	wallets, err := chain.LoadWallets(cfg.Wallets.PrivateKeys, cfg.Wallets.KeystoreDir, cfg.Wallets.Password, logger)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	var networks []*koala.Network
	for _, name := range cfg.Networks.Names() {
		nc := cfg.Networks[name]
		if nc.RPC == "" {
			if name == cfg.DefaultNetwork {
				g.Close()
				return nil, fmt.Errorf("rpc url is required for network %s", name)
			}
			logger.Debug("network has no rpc, skipping", zap.String("network", name))
			continue
		}

		network, closeFn, err := connectNetwork(ctx, cfg, name, nc, wallets, logger)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		g.closers = append(g.closers, closeFn)
		networks = append(networks, network)
	}

	svc, err := koala.NewService(koala.Options{
		DefaultNetwork: cfg.DefaultNetwork,
		SlippagePct:    cfg.SlippagePct,
	}, networks, journal, g.metrics, logger)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.service = svc
	return g, nil
}

func connectNetwork(ctx context.Context, cfg config.Config, name string, nc config.NetworkConfig, wallets *chain.Wallets, logger *zap.Logger) (*koala.Network, func(), error) {
	netLogger := logger.With(zap.String("network", name))

	addresses, err := dex.ParseAddresses(nc.Contracts)
	if err != nil {
		return nil, nil, err
	}

	client, err := chain.NewClient(ctx, nc.RPC)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	gw, err := chain.NewGateway(ctx, client.Eth(), wallets, chain.GatewayOptions{
		ExpectedChainID: nc.ChainID,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, netLogger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	registry, err := dex.NewRegistry(dex.RegistryConfig{
		Network:       name,
		Tokens:        nc.Tokens,
		WrappedNative: nc.WrappedNative,
		FeeTiers:      nc.FeeTiers,
		Addresses:     addresses,
	}, client, netLogger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	netLogger.Info("network connected",
		zap.String("rpc", nc.RPC),
		zap.String("chain_id", gw.ChainID().String()),
		zap.Int("tokens", len(nc.Tokens)),
	)

	return &koala.Network{
		Name:     name,
		ChainID:  gw.ChainID().Uint64(),
		Gateway:  gw,
		Registry: registry,
		Oracle:   pricing.NewOracle(client, addresses.V3QuoterV2, netLogger),
	}, client.Close, nil
}

// openJournal prefers Postgres when a DSN is configured and falls back to the JSONL file.
func openJournal(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (storage.Journal, error) {
	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("journal to postgres")
		return store, nil
	case cfg.Path != "":
		logger.Info("journal to file", zap.String("path", cfg.Path))
		return storage.NewJsonlStorage(cfg.Path), nil
	default:
		logger.Warn("operation journal disabled")
		return storage.Nop{}, nil
	}
}
