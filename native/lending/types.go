// Package lending implements the per-market pool engine: share-based
// supply and borrow accounting, continuous interest accrual, collateral
// management and health-factor enforcement.
package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/fpmath"
)

// MarketConfig is the immutable configuration of one isolated market.
// Fractional parameters are WAD-scaled and validated once at pool
// construction.
type MarketConfig struct {
	// Key identifies the market inside the persistence layer and the
	// shared liquidator.
	Key string
	// CollateralToken and BorrowToken must differ; each market pairs
	// exactly one collateral asset against one borrow asset.
	CollateralToken common.Address
	BorrowToken     common.Address
	// CollateralDecimals and BorrowDecimals normalize oracle valuations
	// across token precisions.
	CollateralDecimals uint8
	BorrowDecimals     uint8
	// LTV caps new borrowing; LiquidationThreshold is the risk-adjusted
	// collateral weight in the health factor. LTV <= LiquidationThreshold.
	LTV                  *big.Int
	LiquidationThreshold *big.Int
	// LiquidationPenalty is the collateral bonus granted on liquidation.
	LiquidationPenalty *big.Int
	// ReserveFactor is the share of accrued interest routed to reserves.
	ReserveFactor *big.Int
	// Treasury holds the pool's token custody on the ledger.
	Treasury common.Address
	// Liquidator is the only caller admitted to the seize hook.
	Liquidator common.Address
	// Factory is the only caller allowed to deactivate the market and to
	// withdraw reserves.
	Factory common.Address
}

// Validate enforces the structural market invariants.
func (c MarketConfig) Validate() error {
	if c.Key == "" {
		return errEmptyKey
	}
	if c.CollateralToken == (common.Address{}) || c.BorrowToken == (common.Address{}) {
		return errZeroAddress
	}
	if c.CollateralToken == c.BorrowToken {
		return errSameToken
	}
	for _, fraction := range []*big.Int{c.LTV, c.LiquidationThreshold, c.LiquidationPenalty, c.ReserveFactor} {
		if fraction == nil || fraction.Sign() < 0 || fraction.Cmp(fpmath.WAD) > 0 {
			return errInvalidParameters
		}
	}
	if c.LTV.Cmp(c.LiquidationThreshold) > 0 {
		return errInvalidParameters
	}
	return nil
}

// Market is the mutable accounting state owned by exactly one pool.
// TotalSupplyAssets and TotalBorrowAssets are borrow-token amounts;
// TotalCollateral is a collateral-token amount.
type Market struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	TotalCollateral   *big.Int
	// Reserves is the protocol's claim carved out of accrued interest.
	// It is part of TotalSupplyAssets custody but excluded from the
	// supply-share conversion law.
	Reserves *big.Int
	// BorrowIndex converts borrow shares to current debt. WAD, starts at
	// 1.0 and never decreases.
	BorrowIndex *big.Int
	// LastAccrualTime is the unix second of the latest accrual.
	LastAccrualTime uint64
	// Active is cleared by the factory on deactivation.
	Active bool
}

// NewMarket returns a zeroed market with a unit borrow index.
func NewMarket() *Market {
	return &Market{
		TotalSupplyAssets: big.NewInt(0),
		TotalSupplyShares: big.NewInt(0),
		TotalBorrowAssets: big.NewInt(0),
		TotalBorrowShares: big.NewInt(0),
		TotalCollateral:   big.NewInt(0),
		Reserves:          big.NewInt(0),
		BorrowIndex:       fpmath.Wad(),
		Active:            true,
	}
}

// normalize backfills nil fields after decoding from persistence.
func (m *Market) normalize() {
	if m.TotalSupplyAssets == nil {
		m.TotalSupplyAssets = big.NewInt(0)
	}
	if m.TotalSupplyShares == nil {
		m.TotalSupplyShares = big.NewInt(0)
	}
	if m.TotalBorrowAssets == nil {
		m.TotalBorrowAssets = big.NewInt(0)
	}
	if m.TotalBorrowShares == nil {
		m.TotalBorrowShares = big.NewInt(0)
	}
	if m.TotalCollateral == nil {
		m.TotalCollateral = big.NewInt(0)
	}
	if m.Reserves == nil {
		m.Reserves = big.NewInt(0)
	}
	if m.BorrowIndex == nil || m.BorrowIndex.Sign() == 0 {
		m.BorrowIndex = fpmath.Wad()
	}
}

// Position tracks one user inside one market. A position with all fields
// at zero carries no obligations and may be purged from indexes.
type Position struct {
	User             common.Address
	SupplyShares     *big.Int
	CollateralAmount *big.Int
	BorrowShares     *big.Int
}

func (p *Position) normalize() {
	if p.SupplyShares == nil {
		p.SupplyShares = big.NewInt(0)
	}
	if p.CollateralAmount == nil {
		p.CollateralAmount = big.NewInt(0)
	}
	if p.BorrowShares == nil {
		p.BorrowShares = big.NewInt(0)
	}
}

// Empty reports whether the position carries no balances at all.
func (p *Position) Empty() bool {
	return p.SupplyShares.Sign() == 0 && p.CollateralAmount.Sign() == 0 && p.BorrowShares.Sign() == 0
}

// ActionPauses exposes fine-grained switches for pausing individual
// lending flows.
type ActionPauses struct {
	Supply    bool
	Borrow    bool
	Repay     bool
	Liquidate bool
}

// PoolState is the narrow persistence boundary the engine mutates.
type PoolState interface {
	GetMarket(key string) (*Market, error)
	PutMarket(key string, market *Market) error
	GetPosition(key string, user common.Address) (*Position, error)
	PutPosition(key string, position *Position) error
	// DeletePosition purges a fully closed position from any index.
	DeletePosition(key string, user common.Address) error
	// ListPositions enumerates every open position in a market.
	ListPositions(key string) ([]*Position, error)
}

// TokenLedger is the external asset-transfer boundary. The engine checks
// the payer's balance before mutating any state and only invokes the
// transfer after its own mutations are persisted, so a short balance
// never leaves a half-applied operation behind.
type TokenLedger interface {
	BalanceOf(token, account common.Address) *big.Int
	Transfer(token common.Address, from, to common.Address, amount *big.Int) error
}

// PriceSource resolves WAD USD prices; satisfied by the oracle router.
type PriceSource interface {
	GetPrice(token common.Address) (*big.Int, error)
}

// MaxHealthFactor is the sentinel returned for debt-free positions.
var MaxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
