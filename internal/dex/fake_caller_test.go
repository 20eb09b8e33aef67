package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// fakeCaller answers eth_call by method name for each target address.
type fakeCaller struct {
	abis      []abi.ABI
	responses map[common.Address]map[string][]interface{}
	calls     map[string]int
}

func newFakeCaller() *fakeCaller {
	var abis []abi.ABI
	for _, get := range []func() (abi.ABI, error){
		erc20ABIString.get, PairABI, V3PoolABI, FactoryABI, PositionManagerABI, QuoterV2ABI,
	} {
		parsed, err := get()
		if err != nil {
			panic(err)
		}
		abis = append(abis, parsed)
	}
	return &fakeCaller{
		abis:      abis,
		responses: make(map[common.Address]map[string][]interface{}),
		calls:     make(map[string]int),
	}
}

func (f *fakeCaller) on(address common.Address, method string, outputs ...interface{}) {
	if f.responses[address] == nil {
		f.responses[address] = make(map[string][]interface{})
	}
	f.responses[address][method] = outputs
}

// onArgs answers only calls whose packed arguments match args.
func (f *fakeCaller) onArgs(address common.Address, method string, args []interface{}, outputs ...interface{}) {
	for _, parsed := range f.abis {
		m, ok := parsed.Methods[method]
		if !ok {
			continue
		}
		packed, err := m.Inputs.Pack(args...)
		if err != nil {
			panic(err)
		}
		f.on(address, method+"/"+hexutil.Encode(packed), outputs...)
		return
	}
	panic("unknown method " + method)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	for _, parsed := range f.abis {
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		f.calls[fmt.Sprintf("%s.%s", msg.To.Hex(), method.Name)]++
		outputs, ok := f.responses[*msg.To][method.Name+"/"+hexutil.Encode(msg.Data[4:])]
		if !ok {
			outputs, ok = f.responses[*msg.To][method.Name]
		}
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(outputs...)
	}
	return nil, errors.New("unknown selector")
}
