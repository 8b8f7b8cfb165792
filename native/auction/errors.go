package auction

import (
	"errors"
	"fmt"
)

var (
	ErrNilState                = errors.New("auction engine: state not configured")
	ErrUnknownPool             = errors.New("auction engine: pool not registered")
	ErrUnknownAuction          = errors.New("auction engine: auction not found")
	ErrAuctionNotActive        = errors.New("auction engine: auction not active")
	ErrAuctionAlreadyExists    = errors.New("auction engine: active auction already exists")
	ErrAuctionExpired          = errors.New("auction engine: auction expired")
	ErrAuctionNotExpired       = errors.New("auction engine: auction not yet expired")
	ErrPositionNotLiquidatable = errors.New("auction engine: position not liquidatable")
	ErrInsufficientRepayment   = errors.New("auction engine: repayment must be positive")
	ErrModulePaused            = errors.New("auction engine: liquidations paused")
)

// ErrInvalidConfig is the root of every configuration failure; the
// variants below wrap it so callers can match broadly or precisely.
var (
	ErrInvalidConfig       = errors.New("auction engine: invalid configuration")
	ErrInvalidDuration     = fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	ErrInvalidStartPremium = fmt.Errorf("%w: start premium must be non-negative", ErrInvalidConfig)
	ErrInvalidEndDiscount  = fmt.Errorf("%w: end discount must lie in [0, 1)", ErrInvalidConfig)
	ErrInvalidCloseFactor  = fmt.Errorf("%w: close factor must lie in (0, 1]", ErrInvalidConfig)
)
