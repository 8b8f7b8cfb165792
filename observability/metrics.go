package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics

	auctionMetricsOnce sync.Once
	auctionRegistry    *AuctionMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// HTTP API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "isolend",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// LendingMetrics captures per-market pool activity.
type LendingMetrics struct {
	operations  *prometheus.CounterVec
	borrowIndex *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	reserves    *prometheus.CounterVec
}

// Lending returns the singleton metrics registry for the pool engines.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "lending",
				Name:      "operations_total",
				Help:      "Count of pool operations segmented by market and operation.",
			}, []string{"market", "operation"}),
			borrowIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "isolend",
				Subsystem: "lending",
				Name:      "borrow_index",
				Help:      "Current borrow index per market, WAD scaled to a float.",
			}, []string{"market"}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "isolend",
				Subsystem: "lending",
				Name:      "utilization",
				Help:      "Fraction of supplied assets currently borrowed (0-1).",
			}, []string{"market"}),
			reserves: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "lending",
				Name:      "reserves_accrued_total",
				Help:      "Cumulative protocol reserves accrued per market in borrow-asset units.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.borrowIndex,
			lendingRegistry.utilization,
			lendingRegistry.reserves,
		)
	})
	return lendingRegistry
}

// RecordOperation increments the operation counter for a market.
func (m *LendingMetrics) RecordOperation(market, operation string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(labelMarket(market), operation).Inc()
}

// RecordAccrual updates the borrow index gauge and accumulates the
// reserve share routed by one accrual.
func (m *LendingMetrics) RecordAccrual(market string, borrowIndex, reserveShare *big.Int) {
	if m == nil {
		return
	}
	label := labelMarket(market)
	m.borrowIndex.WithLabelValues(label).Set(wadToFloat(borrowIndex))
	m.reserves.WithLabelValues(label).Add(bigToFloat(reserveShare))
}

// RecordUtilization updates the utilization gauge for a market.
func (m *LendingMetrics) RecordUtilization(market string, utilization *big.Int) {
	if m == nil {
		return
	}
	m.utilization.WithLabelValues(labelMarket(market)).Set(wadToFloat(utilization))
}

// OracleMetrics tracks price resolution outcomes per token.
type OracleMetrics struct {
	fallbacks *prometheus.CounterVec
	failures  *prometheus.CounterVec
	prices    *prometheus.GaugeVec
}

// Oracle returns the metrics registry for the price router.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "oracle",
				Name:      "fallbacks_total",
				Help:      "Count of TWAP fallbacks taken after a primary feed failure.",
			}, []string{"token"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "oracle",
				Name:      "failures_total",
				Help:      "Count of price resolutions that failed outright.",
			}, []string{"token", "reason"}),
			prices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "isolend",
				Subsystem: "oracle",
				Name:      "price",
				Help:      "Last resolved price per token, WAD scaled to a float.",
			}, []string{"token"}),
		}
		prometheus.MustRegister(
			oracleRegistry.fallbacks,
			oracleRegistry.failures,
			oracleRegistry.prices,
		)
	})
	return oracleRegistry
}

// RecordFallback increments the fallback counter and records the price the
// fallback resolved to.
func (m *OracleMetrics) RecordFallback(token string, price *big.Int) {
	if m == nil {
		return
	}
	label := labelToken(token)
	m.fallbacks.WithLabelValues(label).Inc()
	if price != nil {
		m.prices.WithLabelValues(label).Set(wadToFloat(price))
	}
}

// RecordFailure increments the failure counter for the supplied reason.
func (m *OracleMetrics) RecordFailure(token, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.failures.WithLabelValues(labelToken(token), reason).Inc()
}

// RecordPrice updates the last-resolved-price gauge.
func (m *OracleMetrics) RecordPrice(token string, price *big.Int) {
	if m == nil {
		return
	}
	m.prices.WithLabelValues(labelToken(token)).Set(wadToFloat(price))
}

// AuctionMetrics tracks liquidation auction throughput.
type AuctionMetrics struct {
	started  *prometheus.CounterVec
	fills    *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	debtSold *prometheus.CounterVec
}

// Auctions returns the metrics registry for the auction engine.
func Auctions() *AuctionMetrics {
	auctionMetricsOnce.Do(func() {
		auctionRegistry = &AuctionMetrics{
			started: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "auction",
				Name:      "started_total",
				Help:      "Count of liquidation auctions opened per market.",
			}, []string{"market"}),
			fills: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "auction",
				Name:      "fills_total",
				Help:      "Count of partial or full auction fills per market.",
			}, []string{"market"}),
			outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "auction",
				Name:      "outcomes_total",
				Help:      "Terminal auction outcomes segmented by market and result.",
			}, []string{"market", "result"}),
			debtSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "isolend",
				Subsystem: "auction",
				Name:      "debt_repaid_total",
				Help:      "Cumulative debt repaid through auctions in borrow-asset units.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(
			auctionRegistry.started,
			auctionRegistry.fills,
			auctionRegistry.outcomes,
			auctionRegistry.debtSold,
		)
	})
	return auctionRegistry
}

// RecordStart increments the started counter for a market.
func (m *AuctionMetrics) RecordStart(market string) {
	if m == nil {
		return
	}
	m.started.WithLabelValues(labelMarket(market)).Inc()
}

// RecordFill records a fill and the debt it repaid.
func (m *AuctionMetrics) RecordFill(market string, debtRepaid *big.Int) {
	if m == nil {
		return
	}
	label := labelMarket(market)
	m.fills.WithLabelValues(label).Inc()
	m.debtSold.WithLabelValues(label).Add(bigToFloat(debtRepaid))
}

// RecordOutcome records a terminal auction result ("settled" or
// "cancelled").
func (m *AuctionMetrics) RecordOutcome(market, result string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(labelMarket(market), result).Inc()
}

func labelMarket(market string) string {
	trimmed := strings.TrimSpace(market)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func labelToken(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}

// wadToFloat renders a WAD fraction as a plain float for gauge values.
func wadToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	scaled := new(big.Float).SetInt(value)
	scaled.Quo(scaled, big.NewFloat(1e18))
	floatVal, _ := scaled.Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
