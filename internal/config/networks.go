package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedNetwork is returned for network names with no configuration.
var ErrUnsupportedNetwork = errors.New("unsupported network")

// NetworkConfig describes one chain deployment of the exchange.
type NetworkConfig struct {
	RPC           string        `mapstructure:"rpc"`
	ChainID       uint64        `mapstructure:"chain-id"`
	WrappedNative string        `mapstructure:"wrapped-native"`
	Contracts     Contracts     `mapstructure:"contracts"`
	Tokens        []TokenConfig `mapstructure:"tokens"`
	FeeTiers      []uint32      `mapstructure:"fee-tiers"`
}

// Contracts holds the deployed contract addresses as hex strings.
type Contracts struct {
	V2Router          string `mapstructure:"v2-router"`
	V2Factory         string `mapstructure:"v2-factory"`
	V3SwapRouter      string `mapstructure:"v3-swap-router"`
	V3PositionManager string `mapstructure:"v3-nft-manager"`
	V3QuoterV2        string `mapstructure:"v3-quoter-v2"`
	V3Factory         string `mapstructure:"v3-factory"`
}

// TokenConfig is one token list entry.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	Name     string `mapstructure:"name"`
}

// Networks maps lower-case network names to their configuration.
type Networks map[string]NetworkConfig

// Get returns the named network or ErrUnsupportedNetwork.
func (n Networks) Get(name string) (NetworkConfig, error) {
	network, ok := n[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, name)
	}
	return network, nil
}

// Names returns the configured network names in sorted order.
func (n Networks) Names() []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge overlays configured networks onto n. Zero fields keep the existing value.
func (n Networks) Merge(configured map[string]NetworkConfig) Networks {
	out := make(Networks, len(n)+len(configured))
	for name, network := range n {
		out[name] = network
	}
	for name, override := range configured {
		name = strings.ToLower(name)
		out[name] = out[name].merge(override)
	}
	return out
}

func (c NetworkConfig) merge(o NetworkConfig) NetworkConfig {
	if o.RPC != "" {
		c.RPC = o.RPC
	}
	if o.ChainID != 0 {
		c.ChainID = o.ChainID
	}
	if o.WrappedNative != "" {
		c.WrappedNative = o.WrappedNative
	}
	if len(o.Tokens) > 0 {
		c.Tokens = o.Tokens
	}
	if len(o.FeeTiers) > 0 {
		c.FeeTiers = o.FeeTiers
	}
	c.Contracts = c.Contracts.merge(o.Contracts)
	return c
}

func (c Contracts) merge(o Contracts) Contracts {
	pick := func(base, override string) string {
		if override != "" {
			return override
		}
		return base
	}
	return Contracts{
		V2Router:          pick(c.V2Router, o.V2Router),
		V2Factory:         pick(c.V2Factory, o.V2Factory),
		V3SwapRouter:      pick(c.V3SwapRouter, o.V3SwapRouter),
		V3PositionManager: pick(c.V3PositionManager, o.V3PositionManager),
		V3QuoterV2:        pick(c.V3QuoterV2, o.V3QuoterV2),
		V3Factory:         pick(c.V3Factory, o.V3Factory),
	}
}

// DefaultFeeTiers are the concentrated-liquidity fee tiers tried when locating a pool.
var DefaultFeeTiers = []uint32{100, 500, 3000, 10000}

// DefaultNetworks returns the built-in deployment on Unit Zero mainnet and its alias.
func DefaultNetworks() Networks {
	unitZero := NetworkConfig{
		ChainID:       88811,
		WrappedNative: "WUNIT0",
		Contracts: Contracts{
			V2Router:          "0x7A2044296804EDec53beAAA8fe9D802E5be19e0a",
			V2Factory:         "0xcF3Ee60d29531B668Ae89FD3577E210082Da220b",
			V3SwapRouter:      "0x7A2044296804EDec53beAAA8fe9D802E5be19e0a",
			V3PositionManager: "0xa759C5ccF40acdf101BC6623f5b65363186a293b",
			V3QuoterV2:        "0xA02C6705e8B54a27113aCc0283Fd3882582433dc",
			V3Factory:         "0xcF3Ee60d29531B668Ae89FD3577E210082Da220b",
		},
		FeeTiers: append([]uint32(nil), DefaultFeeTiers...),
	}
	return Networks{
		"koala":   unitZero,
		"mainnet": unitZero,
	}
}
