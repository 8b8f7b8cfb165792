package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/auction"
	"isolend/native/lending"
	"isolend/native/oracle"
	"isolend/native/rates"
)

// Config is the daemon configuration decoded from TOML. Fractions are
// expressed in basis points (10000 = 100%) and converted to WAD at
// wiring time.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	Env        string `toml:"Env"`

	Treasury   string `toml:"Treasury"`
	Liquidator string `toml:"Liquidator"`
	Factory    string `toml:"Factory"`

	Rates   Rates    `toml:"rates"`
	Auction Auction  `toml:"auction"`
	Markets []Market `toml:"market"`
	Oracles []Oracle `toml:"oracle"`
}

// Rates configures the shared interest-rate curve.
type Rates struct {
	BaseRateBps        int64 `toml:"BaseRateBps"`
	SlopeBeforeKinkBps int64 `toml:"SlopeBeforeKinkBps"`
	SlopeAfterKinkBps  int64 `toml:"SlopeAfterKinkBps"`
	KinkBps            int64 `toml:"KinkBps"`
}

// Auction configures the Dutch-auction liquidator.
type Auction struct {
	DurationSeconds uint64 `toml:"DurationSeconds"`
	StartPremiumBps int64  `toml:"StartPremiumBps"`
	EndDiscountBps  int64  `toml:"EndDiscountBps"`
	CloseFactorBps  int64  `toml:"CloseFactorBps"`
}

// Oracle configures price sourcing for one token. DevPrice pins a
// static primary feed, as a WAD-scaled decimal string; deployments with
// a live push feed or TWAP pool swap their adapters in at wiring time.
type Oracle struct {
	Token               string `toml:"Token"`
	DevPrice            string `toml:"DevPrice"`
	MaxStalenessSeconds uint64 `toml:"MaxStalenessSeconds"`
	MaxDeviationBps     int64  `toml:"MaxDeviationBps"`
	TwapWindowSeconds   uint32 `toml:"TwapWindowSeconds"`
}

// Market configures one isolated lending market.
type Market struct {
	Key                     string `toml:"Key"`
	CollateralToken         string `toml:"CollateralToken"`
	BorrowToken             string `toml:"BorrowToken"`
	CollateralDecimals      uint8  `toml:"CollateralDecimals"`
	BorrowDecimals          uint8  `toml:"BorrowDecimals"`
	LTVBps                  int64  `toml:"LTVBps"`
	LiquidationThresholdBps int64  `toml:"LiquidationThresholdBps"`
	LiquidationPenaltyBps   int64  `toml:"LiquidationPenaltyBps"`
	ReserveFactorBps        int64  `toml:"ReserveFactorBps"`
}

// bpsToWad converts basis points into a WAD fraction.
func bpsToWad(bps int64) *big.Int {
	wad := big.NewInt(1_000_000_000_000_000_000)
	out := new(big.Int).Mul(big.NewInt(bps), wad)
	return out.Div(out, big.NewInt(10_000))
}

// RatesModel builds the interest-rate model from the decoded curve.
func (c *Config) RatesModel() (*rates.Model, error) {
	return rates.NewModel(
		bpsToWad(c.Rates.BaseRateBps),
		bpsToWad(c.Rates.SlopeBeforeKinkBps),
		bpsToWad(c.Rates.SlopeAfterKinkBps),
		bpsToWad(c.Rates.KinkBps),
	)
}

// AuctionConfig builds the liquidator configuration.
func (c *Config) AuctionConfig() auction.Config {
	return auction.Config{
		Duration:     c.Auction.DurationSeconds,
		StartPremium: bpsToWad(c.Auction.StartPremiumBps),
		EndDiscount:  bpsToWad(c.Auction.EndDiscountBps),
		CloseFactor:  bpsToWad(c.Auction.CloseFactorBps),
	}
}

// OracleSetting pairs a token with its router configuration.
type OracleSetting struct {
	Token  common.Address
	Config oracle.Config
}

// OracleSettings builds the per-token router configurations, pinning a
// static feed at the configured development price.
func (c *Config) OracleSettings() ([]OracleSetting, error) {
	out := make([]OracleSetting, 0, len(c.Oracles))
	for _, o := range c.Oracles {
		price, ok := new(big.Int).SetString(o.DevPrice, 10)
		if !ok || price.Sign() <= 0 {
			return nil, fmt.Errorf("config: oracle %s DevPrice must be a positive decimal string", o.Token)
		}
		out = append(out, OracleSetting{
			Token: common.HexToAddress(o.Token),
			Config: oracle.Config{
				PrimaryFeed:  oracle.NewStaticFeed(price),
				MaxStaleness: o.MaxStalenessSeconds,
				MaxDeviation: bpsToWad(o.MaxDeviationBps),
				TwapWindow:   o.TwapWindowSeconds,
				Enabled:      true,
			},
		})
	}
	return out, nil
}

// MarketConfigs builds the per-market pool configurations, stamping in
// the shared authority addresses.
func (c *Config) MarketConfigs() []lending.MarketConfig {
	out := make([]lending.MarketConfig, 0, len(c.Markets))
	for _, m := range c.Markets {
		out = append(out, lending.MarketConfig{
			Key:                  m.Key,
			CollateralToken:      common.HexToAddress(m.CollateralToken),
			BorrowToken:          common.HexToAddress(m.BorrowToken),
			CollateralDecimals:   m.CollateralDecimals,
			BorrowDecimals:       m.BorrowDecimals,
			LTV:                  bpsToWad(m.LTVBps),
			LiquidationThreshold: bpsToWad(m.LiquidationThresholdBps),
			LiquidationPenalty:   bpsToWad(m.LiquidationPenaltyBps),
			ReserveFactor:        bpsToWad(m.ReserveFactorBps),
			Treasury:             common.HexToAddress(c.Treasury),
			Liquidator:           common.HexToAddress(c.Liquidator),
			Factory:              common.HexToAddress(c.Factory),
		})
	}
	return out
}
