package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"isolend/native/auction"
	"isolend/native/lending"
	"isolend/native/oracle"
)

type apiError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps engine failures onto HTTP statuses: validation problems
// are 400s, missing resources 404s, state conflicts 409s, and oracle or
// pause conditions 503s so clients retry later.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lending.ErrZeroAmount),
		errors.Is(err, lending.ErrInvalidParameters),
		errors.Is(err, auction.ErrInsufficientRepayment),
		errors.Is(err, auction.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrUnknownAuction),
		errors.Is(err, auction.ErrUnknownPool),
		errors.Is(err, lending.ErrUnknownMarket),
		errors.Is(err, oracle.ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrOnlyLiquidator),
		errors.Is(err, lending.ErrOnlyFactory),
		errors.Is(err, oracle.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrAuctionAlreadyExists),
		errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionExpired),
		errors.Is(err, auction.ErrAuctionNotExpired),
		errors.Is(err, auction.ErrPositionNotLiquidatable),
		errors.Is(err, lending.ErrWouldBeUndercollateralized),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInsufficientFunds),
		errors.Is(err, lending.ErrNoDebt),
		errors.Is(err, lending.ErrMarketInactive):
		return http.StatusConflict
	case errors.Is(err, lending.ErrModulePaused),
		errors.Is(err, auction.ErrModulePaused),
		errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrIncompleteRound),
		errors.Is(err, oracle.ErrFutureTimestamp),
		errors.Is(err, oracle.ErrSequencerDown),
		errors.Is(err, oracle.ErrDeviationTooHigh):
		return http.StatusServiceUnavailable
	}
	var both *oracle.BothOraclesFailedError
	if errors.As(err, &both) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	writeJSON(w, status, apiError{
		Status:    status,
		Message:   err.Error(),
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
