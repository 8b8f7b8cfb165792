// Package rates implements the kinked utilization interest-rate curve
// shared by every lending market.
package rates

import (
	"errors"
	"math/big"

	"isolend/native/fpmath"
)

// SecondsPerYear uses a 365-day year for APR to per-second conversion.
const SecondsPerYear = 31_536_000

var (
	errNilParameter = errors.New("rates: curve parameters must be non-nil and non-negative")
	errKinkRange    = errors.New("rates: kink must lie strictly between 0 and 1")
)

// Model encapsulates the immutable parameters that shape how borrow rates
// react to market utilization. All fields are WAD fractions.
type Model struct {
	// BaseRate is the minimum borrow APR applied at zero utilization.
	BaseRate *big.Int
	// SlopeBeforeKink is the APR increase per unit of utilization up to
	// the kink point.
	SlopeBeforeKink *big.Int
	// SlopeAfterKink is the APR increase per unit of utilization applied
	// to the portion of utilization beyond the kink.
	SlopeAfterKink *big.Int
	// Kink is the utilization ratio where the slope changes.
	Kink *big.Int
}

// NewModel validates and constructs an interest rate model. Parameters are
// WAD fractions, e.g. a 4% slope is 0.04e18.
func NewModel(baseRate, slopeBeforeKink, slopeAfterKink, kink *big.Int) (*Model, error) {
	for _, p := range []*big.Int{baseRate, slopeBeforeKink, slopeAfterKink, kink} {
		if p == nil || p.Sign() < 0 {
			return nil, errNilParameter
		}
	}
	if kink.Sign() == 0 || kink.Cmp(fpmath.WAD) >= 0 {
		return nil, errKinkRange
	}
	return &Model{
		BaseRate:        new(big.Int).Set(baseRate),
		SlopeBeforeKink: new(big.Int).Set(slopeBeforeKink),
		SlopeAfterKink:  new(big.Int).Set(slopeAfterKink),
		Kink:            new(big.Int).Set(kink),
	}, nil
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	return &Model{
		BaseRate:        new(big.Int).Set(m.BaseRate),
		SlopeBeforeKink: new(big.Int).Set(m.SlopeBeforeKink),
		SlopeAfterKink:  new(big.Int).Set(m.SlopeAfterKink),
		Kink:            new(big.Int).Set(m.Kink),
	}
}

// Utilization computes borrow/(supply+borrow) as a WAD fraction, defined as
// zero when no liquidity exists.
func (m *Model) Utilization(supply, borrow *big.Int) *big.Int {
	if supply == nil || borrow == nil || borrow.Sign() <= 0 {
		return big.NewInt(0)
	}
	total := new(big.Int).Add(supply, borrow)
	if total.Sign() == 0 {
		return big.NewInt(0)
	}
	util, err := fpmath.MulDivDown(borrow, fpmath.WAD, total)
	if err != nil {
		return big.NewInt(0)
	}
	return util
}

// BorrowRateAPR derives the piecewise-linear borrow APR at the current
// utilization. The slope below the kink applies to the full utilization up
// to the kink; the steeper slope applies only to the excess beyond it.
func (m *Model) BorrowRateAPR(supply, borrow *big.Int) *big.Int {
	if m == nil {
		return big.NewInt(0)
	}
	rate := new(big.Int).Set(m.BaseRate)
	util := m.Utilization(supply, borrow)
	if util.Sign() == 0 {
		return rate
	}

	belowKink := util
	if util.Cmp(m.Kink) > 0 {
		belowKink = m.Kink
	}
	contribution, err := fpmath.MulDown(belowKink, m.SlopeBeforeKink)
	if err != nil {
		return rate
	}
	rate.Add(rate, contribution)

	if util.Cmp(m.Kink) > 0 {
		excess := new(big.Int).Sub(util, m.Kink)
		steep, err := fpmath.MulDown(excess, m.SlopeAfterKink)
		if err != nil {
			return rate
		}
		rate.Add(rate, steep)
	}
	return rate
}

// SupplyRateAPR derives the supplier-side APR: borrow rate scaled by
// utilization and reduced by the reserve factor. Always at most the borrow
// rate.
func (m *Model) SupplyRateAPR(supply, borrow, reserveFactor *big.Int) *big.Int {
	if m == nil {
		return big.NewInt(0)
	}
	borrowRate := m.BorrowRateAPR(supply, borrow)
	util := m.Utilization(supply, borrow)
	if borrowRate.Sign() == 0 || util.Sign() == 0 {
		return big.NewInt(0)
	}
	gross, err := fpmath.MulDown(borrowRate, util)
	if err != nil {
		return big.NewInt(0)
	}
	if reserveFactor == nil || reserveFactor.Sign() <= 0 {
		return gross
	}
	keep := new(big.Int).Sub(fpmath.WAD, reserveFactor)
	if keep.Sign() <= 0 {
		return big.NewInt(0)
	}
	net, err := fpmath.MulDown(gross, keep)
	if err != nil {
		return big.NewInt(0)
	}
	return net
}

// RatePerSecond converts an annual rate to a per-second rate, floored.
func RatePerSecond(apr *big.Int) *big.Int {
	if apr == nil || apr.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(apr, big.NewInt(SecondsPerYear))
}

// DefaultModel provides a starting configuration with a modest base rate
// and a sharply steeper slope past 80% utilization.
var DefaultModel = &Model{
	BaseRate:        big.NewInt(20_000_000_000_000_000),  // 2%
	SlopeBeforeKink: big.NewInt(150_000_000_000_000_000), // 15%
	SlopeAfterKink:  big.NewInt(600_000_000_000_000_000), // 60%
	Kink:            big.NewInt(800_000_000_000_000_000), // 80%
}
