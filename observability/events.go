package observability

import (
	"isolend/core/events"
)

// MetricsEmitter bridges the engine event stream into Prometheus
// collectors. It wraps another emitter so events still reach their
// primary sink.
type MetricsEmitter struct {
	next events.Emitter
}

// NewMetricsEmitter wraps next with metric recording. A nil next falls
// back to the no-op emitter.
func NewMetricsEmitter(next events.Emitter) *MetricsEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MetricsEmitter{next: next}
}

// Emit records metrics for the event and forwards it.
func (m *MetricsEmitter) Emit(e events.Event) {
	switch evt := e.(type) {
	case events.LendingSupplied:
		Lending().RecordOperation(evt.Market, "deposit")
	case events.LendingWithdrawn:
		Lending().RecordOperation(evt.Market, "withdraw")
	case events.LendingCollateralDeposited:
		Lending().RecordOperation(evt.Market, "deposit_collateral")
	case events.LendingCollateralWithdrawn:
		Lending().RecordOperation(evt.Market, "withdraw_collateral")
	case events.LendingBorrowed:
		Lending().RecordOperation(evt.Market, "borrow")
	case events.LendingRepaid:
		Lending().RecordOperation(evt.Market, "repay")
	case events.LendingInterestAccrued:
		Lending().RecordAccrual(evt.Market, evt.BorrowIndex, evt.Reserves)
		Lending().RecordUtilization(evt.Market, evt.Utilization)
	case events.LendingPositionLiquidated:
		Lending().RecordOperation(evt.Market, "liquidate_seize")
	case events.OracleFallbackUsed:
		Oracle().RecordFallback(evt.Token.Hex(), evt.Price)
	case events.AuctionStarted:
		Auctions().RecordStart(evt.Market)
	case events.AuctionLiquidated:
		Auctions().RecordFill(evt.Market, evt.DebtRepaid)
	case events.AuctionSettled:
		Auctions().RecordOutcome(evt.Market, "settled")
	case events.AuctionCancelled:
		Auctions().RecordOutcome(evt.Market, "cancelled")
	}
	m.next.Emit(e)
}
