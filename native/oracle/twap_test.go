package oracle

import (
	"math/big"
	"testing"

	"isolend/native/fpmath"
)

// cumulative builds observation pairs for a constant tick held over the
// window.
func cumulative(tick int64, window uint32) []int64 {
	return []int64{0, tick * int64(window)}
}

func TestTwapTickMean(t *testing.T) {
	pool := &fakePool{token0: weth, token1: usd, ticks: cumulative(100, 600)}
	tick, err := twapTick(pool, 600)
	if err != nil {
		t.Fatalf("twap tick: %v", err)
	}
	if tick != 100 {
		t.Fatalf("unexpected mean tick: %d", tick)
	}

	// Negative deltas round toward negative infinity.
	pool.ticks = []int64{0, -601}
	tick, err = twapTick(pool, 600)
	if err != nil {
		t.Fatalf("twap tick: %v", err)
	}
	if tick != -2 {
		t.Fatalf("expected floor rounding to -2, got %d", tick)
	}
}

func TestTwapPriceFlatAndInverted(t *testing.T) {
	pool := &fakePool{token0: weth, token1: usd, ticks: cumulative(0, 600)}

	price, err := twapPrice(pool, weth, 600, 18, 18)
	if err != nil {
		t.Fatalf("twap price: %v", err)
	}
	if price.Cmp(fpmath.WAD) != 0 {
		t.Fatalf("flat pool should price at 1 WAD, got %s", price)
	}

	// token1 pricing inverts the ratio; still 1 at tick zero.
	price, err = twapPrice(pool, usd, 600, 18, 18)
	if err != nil {
		t.Fatalf("twap price inverted: %v", err)
	}
	if price.Cmp(fpmath.WAD) != 0 {
		t.Fatalf("inverted flat pool should price at 1 WAD, got %s", price)
	}
}

func TestTwapPricePositiveTick(t *testing.T) {
	// tick 6932 ≈ doubling: 1.0001^6932 ≈ 2.0003.
	pool := &fakePool{token0: weth, token1: usd, ticks: cumulative(6932, 600)}
	price, err := twapPrice(pool, weth, 600, 18, 18)
	if err != nil {
		t.Fatalf("twap price: %v", err)
	}
	two := new(big.Int).Lsh(fpmath.WAD, 1)
	low := new(big.Int).Mul(two, big.NewInt(999))
	low.Quo(low, big.NewInt(1000))
	high := new(big.Int).Mul(two, big.NewInt(1001))
	high.Quo(high, big.NewInt(1000))
	if price.Cmp(low) < 0 || price.Cmp(high) > 0 {
		t.Fatalf("price outside 0.1%% of 2 WAD: %s", price)
	}
}

func TestTwapPriceDecimalGap(t *testing.T) {
	// A 6-decimal quote asset shifts the WAD price by 1e12.
	pool := &fakePool{token0: weth, token1: usd, ticks: cumulative(0, 600)}
	price, err := twapPrice(pool, weth, 600, 18, 6)
	if err != nil {
		t.Fatalf("twap price: %v", err)
	}
	want := new(big.Int).Mul(fpmath.WAD, new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil))
	if price.Cmp(want) != 0 {
		t.Fatalf("decimal normalization mismatch: got %s want %s", price, want)
	}
}

func TestTwapPriceRejectsForeignToken(t *testing.T) {
	pool := &fakePool{token0: weth, token1: usd, ticks: cumulative(0, 600)}
	if _, err := twapPrice(pool, authority, 600, 18, 18); err == nil {
		t.Fatalf("expected rejection for token outside the pair")
	}
}
