package oracle

import (
	"math/big"
	"sync"
	"time"
)

// StaticFeed is a PriceFeed serving an operator-set WAD price with a
// fresh timestamp on every round. It backs development deployments and
// tests where no push feed is reachable; the router treats it like any
// other primary source.
type StaticFeed struct {
	mu    sync.RWMutex
	price *big.Int
	round uint64
	now   func() uint64
}

// NewStaticFeed constructs a feed pinned at the given WAD price.
func NewStaticFeed(price *big.Int) *StaticFeed {
	return &StaticFeed{
		price: new(big.Int).Set(price),
		now:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetPrice repins the feed, advancing the round.
func (f *StaticFeed) SetPrice(price *big.Int) {
	f.mu.Lock()
	f.price = new(big.Int).Set(price)
	f.round++
	f.mu.Unlock()
}

// SetNowFunc overrides the clock, primarily for tests.
func (f *StaticFeed) SetNowFunc(now func() uint64) {
	if now == nil {
		return
	}
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// LatestRoundData reports the pinned price as a complete, current round.
func (f *StaticFeed) LatestRoundData() (RoundData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	now := f.now()
	round := new(big.Int).SetUint64(f.round + 1)
	return RoundData{
		RoundID:         round,
		Answer:          new(big.Int).Set(f.price),
		StartedAt:       now,
		UpdatedAt:       now,
		AnsweredInRound: round,
	}, nil
}

// Decimals reports the WAD scale.
func (f *StaticFeed) Decimals() uint8 { return 18 }
