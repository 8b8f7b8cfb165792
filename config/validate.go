package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate checks the structural invariants the engines rely on before
// any wiring happens. Fraction fields are bps so 10000 means 100%.
func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"Treasury":   c.Treasury,
		"Liquidator": c.Liquidator,
		"Factory":    c.Factory,
	} {
		if !common.IsHexAddress(addr) || common.HexToAddress(addr) == (common.Address{}) {
			return fmt.Errorf("config: %s must be a non-zero hex address", name)
		}
	}

	if c.Rates.KinkBps <= 0 || c.Rates.KinkBps >= 10_000 {
		return fmt.Errorf("config: rates.KinkBps must lie strictly between 0 and 10000")
	}
	for name, bps := range map[string]int64{
		"rates.BaseRateBps":        c.Rates.BaseRateBps,
		"rates.SlopeBeforeKinkBps": c.Rates.SlopeBeforeKinkBps,
		"rates.SlopeAfterKinkBps":  c.Rates.SlopeAfterKinkBps,
	} {
		if bps < 0 {
			return fmt.Errorf("config: %s must be non-negative", name)
		}
	}

	if c.Auction.DurationSeconds == 0 {
		return fmt.Errorf("config: auction.DurationSeconds must be positive")
	}
	if c.Auction.StartPremiumBps < 0 {
		return fmt.Errorf("config: auction.StartPremiumBps must be non-negative")
	}
	if c.Auction.EndDiscountBps < 0 || c.Auction.EndDiscountBps >= 10_000 {
		return fmt.Errorf("config: auction.EndDiscountBps must lie in [0, 10000)")
	}
	if c.Auction.CloseFactorBps <= 0 || c.Auction.CloseFactorBps > 10_000 {
		return fmt.Errorf("config: auction.CloseFactorBps must lie in (0, 10000]")
	}

	if len(c.Markets) == 0 {
		return fmt.Errorf("config: at least one market is required")
	}
	seen := make(map[string]struct{}, len(c.Markets))
	for _, m := range c.Markets {
		key := strings.TrimSpace(m.Key)
		if key == "" {
			return fmt.Errorf("config: market.Key is required")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: duplicate market key %q", key)
		}
		seen[key] = struct{}{}
		if !common.IsHexAddress(m.CollateralToken) || !common.IsHexAddress(m.BorrowToken) {
			return fmt.Errorf("config: market %q token addresses must be hex", key)
		}
		if common.HexToAddress(m.CollateralToken) == common.HexToAddress(m.BorrowToken) {
			return fmt.Errorf("config: market %q collateral and borrow token must differ", key)
		}
		if m.LTVBps <= 0 || m.LTVBps > m.LiquidationThresholdBps {
			return fmt.Errorf("config: market %q LTVBps must be positive and at most LiquidationThresholdBps", key)
		}
		if m.LiquidationThresholdBps > 10_000 {
			return fmt.Errorf("config: market %q LiquidationThresholdBps must be at most 10000", key)
		}
		if m.LiquidationPenaltyBps < 0 || m.LiquidationPenaltyBps > 10_000 {
			return fmt.Errorf("config: market %q LiquidationPenaltyBps must lie in [0, 10000]", key)
		}
		if m.ReserveFactorBps < 0 || m.ReserveFactorBps > 10_000 {
			return fmt.Errorf("config: market %q ReserveFactorBps must lie in [0, 10000]", key)
		}
	}

	priced := make(map[common.Address]struct{}, len(c.Oracles))
	for _, o := range c.Oracles {
		if !common.IsHexAddress(o.Token) || common.HexToAddress(o.Token) == (common.Address{}) {
			return fmt.Errorf("config: oracle Token must be a non-zero hex address, got %q", o.Token)
		}
		token := common.HexToAddress(o.Token)
		if _, dup := priced[token]; dup {
			return fmt.Errorf("config: duplicate oracle entry for token %s", token.Hex())
		}
		priced[token] = struct{}{}
		if price, ok := new(big.Int).SetString(o.DevPrice, 10); !ok || price.Sign() <= 0 {
			return fmt.Errorf("config: oracle %s DevPrice must be a positive decimal string", token.Hex())
		}
		if o.MaxStalenessSeconds == 0 {
			return fmt.Errorf("config: oracle %s MaxStalenessSeconds must be positive", token.Hex())
		}
		if o.MaxDeviationBps < 0 || o.MaxDeviationBps >= 10_000 {
			return fmt.Errorf("config: oracle %s MaxDeviationBps must lie in [0, 10000)", token.Hex())
		}
	}
	// Every market token needs a price source or health checks fail at
	// runtime with OracleNotConfigured.
	for _, m := range c.Markets {
		for _, token := range []string{m.CollateralToken, m.BorrowToken} {
			if _, ok := priced[common.HexToAddress(token)]; !ok {
				return fmt.Errorf("config: market %q token %s has no oracle entry", m.Key, token)
			}
		}
	}
	return nil
}
