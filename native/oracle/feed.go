// Package oracle resolves USD token prices from a primary push feed with a
// TWAP fallback, applying freshness, validity and cross-source deviation
// checks. Prices are WAD-scaled; every failure is surfaced to the caller
// and never silently substituted with a default.
package oracle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RoundData mirrors the answer envelope of a push-style price feed.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound *big.Int
}

// PriceFeed is the primary push-feed contract.
type PriceFeed interface {
	LatestRoundData() (RoundData, error)
	Decimals() uint8
}

// Slot0 carries the instantaneous state of a fallback pool.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int64
	Unlocked     bool
}

// PoolObserver is the TWAP fallback contract: cumulative-tick observations
// over requested lookback offsets, plus the pool's token pair metadata.
type PoolObserver interface {
	Observe(secondsAgos []uint32) (tickCumulatives []int64, secondsPerLiquidityX128 []*big.Int, err error)
	Token0() common.Address
	Token1() common.Address
	Fee() uint32
	Slot0() (Slot0, error)
}

// UptimeFeed reports sequencer liveness for L2 deployments. StartedAt is
// the unix time of the most recent restart; Up reports current liveness.
type UptimeFeed interface {
	Status() (up bool, startedAt uint64, err error)
}
