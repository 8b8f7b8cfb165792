package oracle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotConfigured        = errors.New("oracle router: token not configured")
	ErrStalePrice           = errors.New("oracle router: price exceeds staleness window")
	ErrInvalidPrice         = errors.New("oracle router: feed returned invalid price")
	ErrIncompleteRound      = errors.New("oracle router: feed round incomplete")
	ErrFutureTimestamp      = errors.New("oracle router: feed timestamp in the future")
	ErrSequencerDown        = errors.New("oracle router: sequencer down or within grace period")
	ErrDeviationTooHigh     = errors.New("oracle router: source deviation exceeds tolerance")
	ErrNotAuthorized        = errors.New("oracle router: caller is not the configuration authority")
	ErrInvalidConfiguration = errors.New("oracle router: invalid oracle configuration")
)

// BothOraclesFailedError reports that neither the primary feed nor the
// TWAP fallback produced a usable price for the token.
type BothOraclesFailedError struct {
	Token       common.Address
	PrimaryErr  error
	FallbackErr error
}

func (e *BothOraclesFailedError) Error() string {
	return fmt.Sprintf("oracle router: both sources failed for %s (primary: %v, fallback: %v)",
		e.Token.Hex(), e.PrimaryErr, e.FallbackErr)
}
