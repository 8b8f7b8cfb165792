package rates

import (
	"math/big"
	"testing"

	"isolend/native/fpmath"
)

// pct converts whole basis points into a WAD fraction.
func pct(bps int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(bps), fpmath.WAD)
	return out.Quo(out, big.NewInt(10_000))
}

func mustModel(t *testing.T, base, slope1, slope2, kink *big.Int) *Model {
	t.Helper()
	m, err := NewModel(base, slope1, slope2, kink)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func TestUtilizationBounds(t *testing.T) {
	m := mustModel(t, pct(0), pct(400), pct(7500), pct(8000))

	if util := m.Utilization(big.NewInt(0), big.NewInt(0)); util.Sign() != 0 {
		t.Fatalf("empty pool utilization should be zero, got %s", util)
	}

	cases := []struct{ supply, borrow int64 }{
		{1000, 0}, {1000, 1}, {1000, 500}, {1000, 1000}, {1, 1},
	}
	for _, tc := range cases {
		util := m.Utilization(big.NewInt(tc.supply), big.NewInt(tc.borrow))
		if util.Sign() < 0 || util.Cmp(fpmath.WAD) > 0 {
			t.Fatalf("utilization out of [0, WAD]: supply=%d borrow=%d util=%s", tc.supply, tc.borrow, util)
		}
	}
}

func TestBorrowRateMonotonicInBorrow(t *testing.T) {
	m := mustModel(t, pct(200), pct(400), pct(7500), pct(8000))
	supply := big.NewInt(1_000_000)

	prev := big.NewInt(-1)
	for borrow := int64(0); borrow <= 5_000_000; borrow += 50_000 {
		rate := m.BorrowRateAPR(supply, big.NewInt(borrow))
		if rate.Cmp(prev) < 0 {
			t.Fatalf("borrow rate decreased at borrow=%d: %s < %s", borrow, rate, prev)
		}
		prev = rate
	}
}

func TestSupplyRateNeverExceedsBorrowRate(t *testing.T) {
	m := mustModel(t, pct(100), pct(400), pct(7500), pct(8000))
	reserve := pct(1000)

	for borrow := int64(0); borrow <= 900; borrow += 100 {
		supply := big.NewInt(1000)
		b := big.NewInt(borrow)
		supplyRate := m.SupplyRateAPR(supply, b, reserve)
		borrowRate := m.BorrowRateAPR(supply, b)
		if supplyRate.Cmp(borrowRate) > 0 {
			t.Fatalf("supply rate %s exceeds borrow rate %s at borrow=%d", supplyRate, borrowRate, borrow)
		}
	}
}

func TestScenarioKinkedCurve(t *testing.T) {
	// base=0, slopeBefore=4%, slopeAfter=75%, kink=80%; utilization 90%
	// must land within 0.1% of a 10.7% APR.
	m := mustModel(t, pct(0), pct(400), pct(7500), pct(8000))

	// borrow/(supply+borrow) = 0.9
	supply := big.NewInt(100)
	borrow := big.NewInt(900)
	if util := m.Utilization(supply, borrow); util.Cmp(pct(9000)) != 0 {
		t.Fatalf("expected 90%% utilization, got %s", util)
	}

	rate := m.BorrowRateAPR(supply, borrow)
	want := pct(1070)
	tolerance := pct(10)
	diff := new(big.Int).Sub(rate, want)
	if diff.Sign() < 0 {
		diff.Neg(diff)
	}
	if diff.Cmp(tolerance) > 0 {
		t.Fatalf("borrow rate outside tolerance: got %s want %s +/- %s", rate, want, tolerance)
	}
}

func TestRatePerSecond(t *testing.T) {
	apr := pct(1000) // 10%
	perSecond := RatePerSecond(apr)
	recomposed := new(big.Int).Mul(perSecond, big.NewInt(SecondsPerYear))
	if recomposed.Cmp(apr) > 0 {
		t.Fatalf("per-second rate must floor: %s * year > %s", perSecond, apr)
	}
	remainder := new(big.Int).Sub(apr, recomposed)
	if remainder.Cmp(big.NewInt(SecondsPerYear)) >= 0 {
		t.Fatalf("per-second flooring lost more than one year quantum: %s", remainder)
	}
	if RatePerSecond(nil).Sign() != 0 || RatePerSecond(big.NewInt(0)).Sign() != 0 {
		t.Fatalf("zero rates must stay zero")
	}
}

func TestNewModelValidation(t *testing.T) {
	if _, err := NewModel(pct(0), pct(400), pct(7500), pct(0)); err == nil {
		t.Fatalf("expected kink validation failure at zero")
	}
	if _, err := NewModel(pct(0), pct(400), pct(7500), fpmath.Wad()); err == nil {
		t.Fatalf("expected kink validation failure at one")
	}
	if _, err := NewModel(nil, pct(400), pct(7500), pct(8000)); err == nil {
		t.Fatalf("expected nil parameter failure")
	}
	if _, err := NewModel(big.NewInt(-1), pct(400), pct(7500), pct(8000)); err == nil {
		t.Fatalf("expected negative parameter failure")
	}
}
