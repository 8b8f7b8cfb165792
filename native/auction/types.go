// Package auction implements the Dutch-auction liquidator: time-decaying
// collateral pricing, close-factor-sized auctions and a one-active-auction
// index per pool and user.
package auction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/fpmath"
	"isolend/native/lending"
)

// Status is the auction lifecycle state. Terminal states never transition
// again.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusSettled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSettled:
		return "settled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Config shapes every auction started by the engine. Fractions are WAD.
type Config struct {
	// Duration is the decay window in seconds.
	Duration uint64
	// StartPremium inflates the oracle price at auction open.
	StartPremium *big.Int
	// EndDiscount deflates the oracle price at auction close.
	EndDiscount *big.Int
	// CloseFactor caps the debt fraction put up for repayment per auction.
	CloseFactor *big.Int
}

// Validate enforces the configuration bounds.
func (c Config) Validate() error {
	if c.Duration == 0 {
		return ErrInvalidDuration
	}
	if c.StartPremium == nil || c.StartPremium.Sign() < 0 {
		return ErrInvalidStartPremium
	}
	if c.EndDiscount == nil || c.EndDiscount.Sign() < 0 || c.EndDiscount.Cmp(fpmath.WAD) >= 0 {
		return ErrInvalidEndDiscount
	}
	if c.CloseFactor == nil || c.CloseFactor.Sign() <= 0 || c.CloseFactor.Cmp(fpmath.WAD) > 0 {
		return ErrInvalidCloseFactor
	}
	return nil
}

// Auction is one liquidation record. DebtToRepay and CollateralForSale
// shrink as fills land; the record settles when DebtToRepay reaches zero.
type Auction struct {
	ID                uint64
	Market            string
	User              common.Address
	DebtToRepay       *big.Int
	CollateralForSale *big.Int
	StartPrice        *big.Int
	EndPrice          *big.Int
	StartTime         uint64
	EndTime           uint64
	Status            Status
}

// Active reports whether the auction still accepts fills or cancellation.
func (a *Auction) Active() bool { return a != nil && a.Status == StatusActive }

func (a *Auction) normalize() {
	if a.DebtToRepay == nil {
		a.DebtToRepay = big.NewInt(0)
	}
	if a.CollateralForSale == nil {
		a.CollateralForSale = big.NewInt(0)
	}
	if a.StartPrice == nil {
		a.StartPrice = big.NewInt(0)
	}
	if a.EndPrice == nil {
		a.EndPrice = big.NewInt(0)
	}
}

// clone returns an independent copy safe to hand to callers.
func (a *Auction) clone() *Auction {
	if a == nil {
		return nil
	}
	return &Auction{
		ID:                a.ID,
		Market:            a.Market,
		User:              a.User,
		DebtToRepay:       new(big.Int).Set(a.DebtToRepay),
		CollateralForSale: new(big.Int).Set(a.CollateralForSale),
		StartPrice:        new(big.Int).Set(a.StartPrice),
		EndPrice:          new(big.Int).Set(a.EndPrice),
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            a.Status,
	}
}

// Pool is the lending-side surface the liquidator drives. Satisfied by
// *lending.Pool.
type Pool interface {
	Key() string
	Config() lending.MarketConfig
	IsLiquidatable(user common.Address) (bool, error)
	DebtOf(user common.Address) (*big.Int, error)
	Position(user common.Address) (*lending.Position, error)
	LiquidateSeize(caller, user common.Address, debtRepaid, collateralSeized *big.Int, recipient common.Address) error
}

// State is the persistence boundary for auction records and the
// active-auction index.
type State interface {
	NextAuctionID() (uint64, error)
	GetAuction(id uint64) (*Auction, error)
	PutAuction(a *Auction) error
	// ActiveAuction resolves the (market, user) index to an auction ID.
	ActiveAuction(market string, user common.Address) (uint64, bool, error)
	SetActiveAuction(market string, user common.Address, id uint64) error
	ClearActiveAuction(market string, user common.Address) error
	// ListAuctions enumerates every stored auction for read surfaces.
	ListAuctions() ([]*Auction, error)
}
