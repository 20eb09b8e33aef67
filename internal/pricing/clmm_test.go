package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"koalaswap/internal/model"
)

var q96Int = new(big.Int).Lsh(big.NewInt(1), 96)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad integer %q", s)
	}
	return v
}

func TestSqrtRatioAtTickMatchesPoolContracts(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
		{0, "79228162514264337593543950336"},
		{1, "79232123823359799118286999568"},
		{-1, "79224201403219477170569942574"},
		{6931, "112040957517951813098925484553"},
	}
	for _, tc := range cases {
		if got := SqrtRatioAtTick(tc.tick); got.Cmp(mustBig(t, tc.want)) != 0 {
			t.Fatalf("tick %d ratio mismatch: got %s want %s", tc.tick, got, tc.want)
		}
	}
	if got := SqrtRatioAtTick(MaxTick + 10); got.Cmp(MaxSqrtRatio) != 0 {
		t.Fatalf("ticks above the maximum should clamp: got %s", got)
	}
}

func TestTickAtSqrtRatioRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick + 1, -200312, -6932, -1, 0, 1, 6931, 200311, MaxTick - 1} {
		ratio := SqrtRatioAtTick(tick)
		if got := TickAtSqrtRatio(ratio); got != tick {
			t.Fatalf("tick %d round trip: got %d", tick, got)
		}
		below := new(big.Int).Sub(ratio, big.NewInt(1))
		if got := TickAtSqrtRatio(below); got != tick-1 {
			t.Fatalf("one below tick %d: got %d", tick, got)
		}
	}
}

func TestTickToPrice(t *testing.T) {
	if got := TickToPrice(0, 18, 18); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("tick 0 price mismatch: got %s", got)
	}
	if got := TickToPrice(0, 18, 6); !got.Equal(decimal.New(1, 12)) {
		t.Fatalf("decimal shift mismatch: got %s", got)
	}
}

func TestPriceToTick(t *testing.T) {
	cases := []struct {
		price   string
		spacing int32
		want    int32
	}{
		{"1", 60, 0},
		{"2", 1, 6931},
		{"2", 60, 6900},
		{"0.5", 60, -6960},
		{"1e300", 60, 887220},
		{"1e-300", 60, -887220},
	}
	for _, tc := range cases {
		got, err := PriceToTick(decimal.RequireFromString(tc.price), 18, 18, tc.spacing)
		if err != nil {
			t.Fatalf("price %s: %v", tc.price, err)
		}
		if got != tc.want {
			t.Fatalf("price %s tick mismatch: got %d want %d", tc.price, got, tc.want)
		}
	}
	if _, err := PriceToTick(decimal.Zero, 18, 18, 60); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPriceToTickRoundsDown(t *testing.T) {
	price := decimal.RequireFromString("1850.25")
	tick, err := PriceToTick(price, 18, 6, 10)
	if err != nil {
		t.Fatalf("price to tick: %v", err)
	}
	if TickToPrice(tick, 18, 6).GreaterThan(price) {
		t.Fatalf("tick %d price above requested price", tick)
	}
	if !TickToPrice(tick+10, 18, 6).GreaterThan(price) {
		t.Fatalf("tick %d is not the nearest usable tick", tick)
	}
}

func TestPriceFromSqrtX96(t *testing.T) {
	if got := PriceFromSqrtX96(q96Int, 18, 6); !got.Equal(decimal.New(1, 12)) {
		t.Fatalf("price mismatch: got %s", got)
	}
	double := new(big.Int).Lsh(q96Int, 1)
	if got := PriceFromSqrtX96(double, 18, 18); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("price mismatch: got %s", got)
	}
}

func clmmPool(sqrtPriceX96 *big.Int) model.PoolInfo {
	return model.PoolInfo{
		Kind:         model.PoolKindCLMM,
		BaseToken:    model.TokenDescriptor{Symbol: "WUNIT0", Address: "0x00000000000000000000000000000000000000a1", Decimals: 18},
		QuoteToken:   model.TokenDescriptor{Symbol: "USDC", Address: "0x00000000000000000000000000000000000000a2", Decimals: 18},
		Fee:          3000,
		TickSpacing:  60,
		SqrtPriceX96: sqrtPriceX96,
	}
}

func TestMintAmountsInRange(t *testing.T) {
	oracle := NewOracle(nil, [20]byte{}, nil)
	pool := clmmPool(q96Int)
	raw0 := e(1, 18)

	liquidity, amount0, amount1, err := oracle.MintAmounts(pool, -600, 600, raw0, new(big.Int))
	if err != nil {
		t.Fatalf("mint amounts: %v", err)
	}
	if liquidity.Sign() <= 0 {
		t.Fatalf("expected positive liquidity")
	}
	if amount0.Cmp(raw0) > 0 || new(big.Int).Sub(raw0, amount0).Cmp(big.NewInt(1)) > 0 {
		t.Fatalf("amount0 mismatch: got %s want about %s", amount0, raw0)
	}
	if amount1.Sign() <= 0 {
		t.Fatalf("expected the paired amount1 to be positive")
	}

	held0, held1 := oracle.PositionAmounts(pool, -600, 600, liquidity)
	if held0.Cmp(amount0) != 0 || held1.Cmp(amount1) != 0 {
		t.Fatalf("position amounts mismatch: %s/%s vs %s/%s", held0, held1, amount0, amount1)
	}

	_, limited0, limited1, err := oracle.MintAmounts(pool, -600, 600, raw0, big.NewInt(1000))
	if err != nil {
		t.Fatalf("mint amounts: %v", err)
	}
	if limited1.Cmp(big.NewInt(1000)) > 0 || limited0.Cmp(raw0) >= 0 {
		t.Fatalf("amount1 should bind: %s/%s", limited0, limited1)
	}
}

func TestMintAmountsOutOfRange(t *testing.T) {
	oracle := NewOracle(nil, [20]byte{}, nil)

	below := clmmPool(SqrtRatioAtTick(-1200))
	_, amount0, amount1, err := oracle.MintAmounts(below, -600, 600, e(1, 18), new(big.Int))
	if err != nil {
		t.Fatalf("mint amounts: %v", err)
	}
	if amount0.Sign() <= 0 || amount1.Sign() != 0 {
		t.Fatalf("below range should hold only token0: %s/%s", amount0, amount1)
	}

	above := clmmPool(SqrtRatioAtTick(1200))
	if _, _, _, err := oracle.MintAmounts(above, -600, 600, e(1, 18), new(big.Int)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount above range with only token0, got %v", err)
	}

	if _, _, _, err := oracle.MintAmounts(below, 600, -600, e(1, 18), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for inverted ticks, got %v", err)
	}
}

func TestMintAmountsLargeDepositWithinOneWei(t *testing.T) {
	oracle := NewOracle(nil, [20]byte{}, nil)
	raw0 := e(1000, 18)

	for name, pool := range map[string]model.PoolInfo{
		"below range": clmmPool(SqrtRatioAtTick(-1200)),
		"in range":    clmmPool(q96Int),
	} {
		liquidity, amount0, _, err := oracle.MintAmounts(pool, -600, 600, raw0, new(big.Int))
		if err != nil {
			t.Fatalf("%s: mint amounts: %v", name, err)
		}
		shortfall := new(big.Int).Sub(raw0, amount0)
		if shortfall.Sign() < 0 || shortfall.Cmp(big.NewInt(1)) > 0 {
			t.Fatalf("%s: amount0 %s drifts from deposit %s", name, amount0, raw0)
		}
		held0, _ := oracle.PositionAmounts(pool, -600, 600, liquidity)
		if held0.Cmp(amount0) != 0 {
			t.Fatalf("%s: position amount0 %s differs from minted %s", name, held0, amount0)
		}
	}
}
