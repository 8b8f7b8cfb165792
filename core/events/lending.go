package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeLendingSupplied is emitted when a supplier deposits borrow asset.
	TypeLendingSupplied = "lending.supplied"
	// TypeLendingWithdrawn is emitted when a supplier redeems shares.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingCollateralDeposited is emitted on collateral deposits.
	TypeLendingCollateralDeposited = "lending.collateral_deposited"
	// TypeLendingCollateralWithdrawn is emitted on collateral withdrawals.
	TypeLendingCollateralWithdrawn = "lending.collateral_withdrawn"
	// TypeLendingBorrowed is emitted when a borrower draws liquidity.
	TypeLendingBorrowed = "lending.borrowed"
	// TypeLendingRepaid is emitted when debt is repaid.
	TypeLendingRepaid = "lending.repaid"
	// TypeLendingInterestAccrued is emitted whenever accrual moves the
	// borrow index.
	TypeLendingInterestAccrued = "lending.interest_accrued"
	// TypeLendingPositionLiquidated is emitted when the liquidator hook
	// seizes collateral and reduces debt.
	TypeLendingPositionLiquidated = "lending.position_liquidated"
)

type LendingSupplied struct {
	Market   string
	Supplier common.Address
	Amount   *big.Int
	Shares   *big.Int
}

func (LendingSupplied) EventType() string { return TypeLendingSupplied }

type LendingWithdrawn struct {
	Market   string
	Supplier common.Address
	Amount   *big.Int
	Shares   *big.Int
}

func (LendingWithdrawn) EventType() string { return TypeLendingWithdrawn }

type LendingCollateralDeposited struct {
	Market string
	User   common.Address
	Amount *big.Int
}

func (LendingCollateralDeposited) EventType() string { return TypeLendingCollateralDeposited }

type LendingCollateralWithdrawn struct {
	Market string
	User   common.Address
	Amount *big.Int
}

func (LendingCollateralWithdrawn) EventType() string { return TypeLendingCollateralWithdrawn }

type LendingBorrowed struct {
	Market   string
	Borrower common.Address
	Amount   *big.Int
	Shares   *big.Int
}

func (LendingBorrowed) EventType() string { return TypeLendingBorrowed }

type LendingRepaid struct {
	Market   string
	Borrower common.Address
	Amount   *big.Int
	Shares   *big.Int
}

func (LendingRepaid) EventType() string { return TypeLendingRepaid }

type LendingInterestAccrued struct {
	Market      string
	Interest    *big.Int
	Reserves    *big.Int
	BorrowIndex *big.Int
	Utilization *big.Int
	Elapsed     uint64
}

func (LendingInterestAccrued) EventType() string { return TypeLendingInterestAccrued }

type LendingPositionLiquidated struct {
	Market           string
	Borrower         common.Address
	Recipient        common.Address
	DebtRepaid       *big.Int
	CollateralSeized *big.Int
}

func (LendingPositionLiquidated) EventType() string { return TypeLendingPositionLiquidated }
