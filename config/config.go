// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads the configuration from the given path, creating a default
// file when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./isolend-data"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "local"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file with a
// single ETH/USDC market.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: ":8080",
		DataDir:    "./isolend-data",
		Env:        "local",
		Treasury:   "0x00000000000000000000000000000000000000f1",
		Liquidator: "0x00000000000000000000000000000000000000f2",
		Factory:    "0x00000000000000000000000000000000000000f3",
		Rates: Rates{
			BaseRateBps:        200,
			SlopeBeforeKinkBps: 1500,
			SlopeAfterKinkBps:  6000,
			KinkBps:            8000,
		},
		Auction: Auction{
			DurationSeconds: 600,
			StartPremiumBps: 500,
			EndDiscountBps:  1000,
			CloseFactorBps:  10000,
		},
		Markets: []Market{{
			Key:                     "eth-usdc",
			CollateralToken:         "0x0000000000000000000000000000000000000c01",
			BorrowToken:             "0x0000000000000000000000000000000000000b01",
			CollateralDecimals:      18,
			BorrowDecimals:          6,
			LTVBps:                  7500,
			LiquidationThresholdBps: 8000,
			LiquidationPenaltyBps:   500,
			ReserveFactorBps:        1000,
		}},
		Oracles: []Oracle{
			{
				Token:               "0x0000000000000000000000000000000000000c01",
				DevPrice:            "2500000000000000000000",
				MaxStalenessSeconds: 3600,
			},
			{
				Token:               "0x0000000000000000000000000000000000000b01",
				DevPrice:            "1000000000000000000",
				MaxStalenessSeconds: 3600,
			},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
