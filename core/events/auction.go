package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeAuctionStarted is emitted when a liquidation auction opens.
	TypeAuctionStarted = "auction.started"
	// TypeAuctionLiquidated is emitted on each partial or full fill.
	TypeAuctionLiquidated = "auction.liquidated"
	// TypeAuctionSettled is emitted when an auction's debt reaches zero.
	TypeAuctionSettled = "auction.settled"
	// TypeAuctionCancelled is emitted when an expired auction is removed.
	TypeAuctionCancelled = "auction.cancelled"
)

type AuctionStarted struct {
	AuctionID         uint64
	Market            string
	User              common.Address
	DebtToRepay       *big.Int
	CollateralForSale *big.Int
	StartPrice        *big.Int
	EndPrice          *big.Int
	StartTime         uint64
	EndTime           uint64
}

func (AuctionStarted) EventType() string { return TypeAuctionStarted }

type AuctionLiquidated struct {
	AuctionID          uint64
	Market             string
	User               common.Address
	Liquidator         common.Address
	DebtRepaid         *big.Int
	CollateralReceived *big.Int
	Price              *big.Int
}

func (AuctionLiquidated) EventType() string { return TypeAuctionLiquidated }

type AuctionSettled struct {
	AuctionID uint64
	Market    string
	User      common.Address
}

func (AuctionSettled) EventType() string { return TypeAuctionSettled }

type AuctionCancelled struct {
	AuctionID uint64
	Market    string
	User      common.Address
}

func (AuctionCancelled) EventType() string { return TypeAuctionCancelled }
