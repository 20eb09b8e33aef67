package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"koalaswap/internal/config"
)

// OperationKind selects which contract must be approved to spend a token.
type OperationKind int

const (
	OperationAMM OperationKind = iota
	OperationCLMMSwap
	OperationCLMMPosition
)

func (k OperationKind) String() string {
	switch k {
	case OperationAMM:
		return "amm"
	case OperationCLMMSwap:
		return "clmm-swap"
	case OperationCLMMPosition:
		return "clmm-position"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

// Addresses are the parsed contract addresses of one network.
type Addresses struct {
	V2Router          common.Address
	V2Factory         common.Address
	V3SwapRouter      common.Address
	V3PositionManager common.Address
	V3QuoterV2        common.Address
	V3Factory         common.Address
}

// ParseAddresses validates every configured contract address.
func ParseAddresses(c config.Contracts) (Addresses, error) {
	var out Addresses
	fields := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"v2-router", c.V2Router, &out.V2Router},
		{"v2-factory", c.V2Factory, &out.V2Factory},
		{"v3-swap-router", c.V3SwapRouter, &out.V3SwapRouter},
		{"v3-nft-manager", c.V3PositionManager, &out.V3PositionManager},
		{"v3-quoter-v2", c.V3QuoterV2, &out.V3QuoterV2},
		{"v3-factory", c.V3Factory, &out.V3Factory},
	}

	for _, field := range fields {
		if !common.IsHexAddress(field.value) {
			return Addresses{}, fmt.Errorf("contract %s: invalid address %q", field.name, field.value)
		}
		*field.dst = common.HexToAddress(field.value)
	}
	return out, nil
}

// Spender returns the contract that pulls tokens for kind and its display name.
func (a Addresses) Spender(kind OperationKind) (common.Address, string) {
	switch kind {
	case OperationCLMMSwap:
		return a.V3SwapRouter, "KoalaSwap swap router"
	case OperationCLMMPosition:
		return a.V3PositionManager, "KoalaSwap position manager"
	default:
		return a.V2Router, "KoalaSwap router"
	}
}
