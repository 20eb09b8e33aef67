package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"koalaswap/internal/model"
)

type receiptEvent int

const (
	pairMint receiptEvent = iota
	pairBurn
	pairSwap
	poolSwap
	positionIncrease
	positionDecrease
	positionCollect
	positionTransfer
)

// ReceiptDecoder extracts realized amounts from pair, pool, and position manager logs.
type ReceiptDecoder struct {
	pairABI    abi.ABI
	poolABI    abi.ABI
	managerABI abi.ABI
	topics     map[common.Hash]receiptEvent
}

// NewReceiptDecoder builds a decoder for every event the gateway's transactions emit.
func NewReceiptDecoder() (*ReceiptDecoder, error) {
	pair, err := PairABI()
	if err != nil {
		return nil, err
	}
	pool, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	manager, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}

	return &ReceiptDecoder{
		pairABI:    pair,
		poolABI:    pool,
		managerABI: manager,
		topics: map[common.Hash]receiptEvent{
			pair.Events["Mint"].ID:                 pairMint,
			pair.Events["Burn"].ID:                 pairBurn,
			pair.Events["Swap"].ID:                 pairSwap,
			pool.Events["Swap"].ID:                 poolSwap,
			manager.Events["IncreaseLiquidity"].ID: positionIncrease,
			manager.Events["DecreaseLiquidity"].ID: positionDecrease,
			manager.Events["Collect"].ID:           positionCollect,
			manager.Events["Transfer"].ID:          positionTransfer,
		},
	}, nil
}

// Decode walks logs in order. Unrecognised logs, and ERC20 transfers, are skipped.
func (d *ReceiptDecoder) Decode(logs []*types.Log) (model.ReceiptEvents, error) {
	var out model.ReceiptEvents
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		kind, ok := d.topics[log.Topics[0]]
		if !ok {
			continue
		}

		switch kind {
		case pairMint, pairBurn:
			event := d.pairABI.Events["Mint"]
			if kind == pairBurn {
				event = d.pairABI.Events["Burn"]
			}
			values, err := unpackNonIndexed(event, log.Data)
			if err != nil {
				return out, err
			}
			amounts, err := bigInts(values, 2)
			if err != nil {
				return out, fmt.Errorf("%s: %w", event.Name, err)
			}
			decoded := model.LiquidityEvent{
				Name:    event.Name,
				Address: log.Address.Hex(),
				Amount0: amounts[0],
				Amount1: amounts[1],
			}
			if kind == pairMint {
				out.Deposits = append(out.Deposits, decoded)
			} else {
				out.Withdrawals = append(out.Withdrawals, decoded)
			}

		case pairSwap:
			event := d.pairABI.Events["Swap"]
			values, err := unpackNonIndexed(event, log.Data)
			if err != nil {
				return out, err
			}
			amounts, err := bigInts(values, 4)
			if err != nil {
				return out, fmt.Errorf("%s: %w", event.Name, err)
			}
			out.Swaps = append(out.Swaps, model.SwapEvent{
				Address: log.Address.Hex(),
				Amount0: new(big.Int).Sub(amounts[0], amounts[2]),
				Amount1: new(big.Int).Sub(amounts[1], amounts[3]),
			})

		case poolSwap:
			event := d.poolABI.Events["Swap"]
			values, err := unpackNonIndexed(event, log.Data)
			if err != nil {
				return out, err
			}
			amounts, err := bigInts(values, 2)
			if err != nil {
				return out, fmt.Errorf("%s: %w", event.Name, err)
			}
			out.Swaps = append(out.Swaps, model.SwapEvent{
				Address: log.Address.Hex(),
				Amount0: amounts[0],
				Amount1: amounts[1],
			})

		case positionIncrease, positionDecrease, positionCollect:
			decoded, err := d.decodePositionEvent(kind, log)
			if err != nil {
				return out, err
			}
			switch kind {
			case positionIncrease:
				out.Deposits = append(out.Deposits, decoded)
			case positionDecrease:
				out.Withdrawals = append(out.Withdrawals, decoded)
			default:
				out.Collects = append(out.Collects, decoded)
			}

		case positionTransfer:
			// ERC20 Transfer shares the topic but carries only two indexed arguments.
			if len(log.Topics) != 4 {
				continue
			}
			if common.BytesToAddress(log.Topics[1].Bytes()) != (common.Address{}) {
				continue
			}
			out.MintedIDs = append(out.MintedIDs, new(big.Int).SetBytes(log.Topics[3].Bytes()))
		}
	}
	return out, nil
}

func (d *ReceiptDecoder) decodePositionEvent(kind receiptEvent, log *types.Log) (model.LiquidityEvent, error) {
	name := "IncreaseLiquidity"
	switch kind {
	case positionDecrease:
		name = "DecreaseLiquidity"
	case positionCollect:
		name = "Collect"
	}
	event := d.managerABI.Events[name]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	var indexed struct {
		TokenId *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.LiquidityEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	if len(values) != 3 {
		return model.LiquidityEvent{}, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}

	decoded := model.LiquidityEvent{
		Name:    name,
		Address: log.Address.Hex(),
		TokenID: indexed.TokenId,
	}
	if kind == positionCollect {
		amounts, err := bigInts(values[1:], 2)
		if err != nil {
			return model.LiquidityEvent{}, fmt.Errorf("%s: %w", name, err)
		}
		decoded.Amount0, decoded.Amount1 = amounts[0], amounts[1]
		return decoded, nil
	}

	amounts, err := bigInts(values, 3)
	if err != nil {
		return model.LiquidityEvent{}, fmt.Errorf("%s: %w", name, err)
	}
	decoded.Liquidity, decoded.Amount0, decoded.Amount1 = amounts[0], amounts[1], amounts[2]
	return decoded, nil
}

func bigInts(values []interface{}, want int) ([]*big.Int, error) {
	if len(values) < want {
		return nil, fmt.Errorf("expected %d values, got %d", want, len(values))
	}
	out := make([]*big.Int, want)
	for i := 0; i < want; i++ {
		v, err := asBigInt(values[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

// TotalAmounts sums amount0 and amount1 over events.
func TotalAmounts(events []model.LiquidityEvent) (*big.Int, *big.Int) {
	amount0, amount1 := new(big.Int), new(big.Int)
	for _, event := range events {
		if event.Amount0 != nil {
			amount0.Add(amount0, event.Amount0)
		}
		if event.Amount1 != nil {
			amount1.Add(amount1, event.Amount1)
		}
	}
	return amount0, amount1
}
