package lending

import "errors"

var (
	errNilState                   = errors.New("lending pool: state not configured")
	errNilMarket                  = errors.New("lending pool: market not initialised")
	errEmptyKey                   = errors.New("lending pool: market key required")
	errZeroAddress                = errors.New("lending pool: zero address")
	errSameToken                  = errors.New("lending pool: collateral and borrow token must differ")
	errInvalidParameters          = errors.New("lending pool: market parameters out of range")
	errModulePaused               = errors.New("lending pool: flow paused")
	errMarketInactive             = errors.New("lending pool: market deactivated")
	errZeroAmount                 = errors.New("lending pool: amount must be positive")
	errInsufficientBalance        = errors.New("lending pool: insufficient share balance")
	errInsufficientFunds          = errors.New("lending pool: insufficient token balance")
	errInsufficientLiquidity      = errors.New("lending pool: insufficient liquidity")
	errInsufficientCollateral     = errors.New("lending pool: insufficient collateral")
	errWouldBeUndercollateralized = errors.New("lending pool: health factor would fall below 1")
	errNoDebt                     = errors.New("lending pool: no outstanding debt")
	errOnlyLiquidator             = errors.New("lending pool: caller is not the liquidator")
	errOnlyFactory                = errors.New("lending pool: caller is not the factory")
	errUnknownMarket              = errors.New("lending pool: unknown market")
)

// Exported aliases so collaborating packages and RPC error mapping can
// match engine failures with errors.Is.
var (
	ErrZeroAmount                 = errZeroAmount
	ErrSameToken                  = errSameToken
	ErrInvalidParameters          = errInvalidParameters
	ErrModulePaused               = errModulePaused
	ErrMarketInactive             = errMarketInactive
	ErrInsufficientBalance        = errInsufficientBalance
	ErrInsufficientFunds          = errInsufficientFunds
	ErrInsufficientLiquidity      = errInsufficientLiquidity
	ErrInsufficientCollateral     = errInsufficientCollateral
	ErrWouldBeUndercollateralized = errWouldBeUndercollateralized
	ErrNoDebt                     = errNoDebt
	ErrOnlyLiquidator             = errOnlyLiquidator
	ErrOnlyFactory                = errOnlyFactory
	ErrUnknownMarket              = errUnknownMarket
)
