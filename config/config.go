// Package config loads the application settings from a config file and
// MDASH_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings of the dashboard.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Database string       `mapstructure:"database"` // path to the SQLite file
	EODHD    EODHDConfig  `mapstructure:"eodhd"`
	Ledger   LedgerConfig `mapstructure:"ledger"`
	Poller   PollerConfig `mapstructure:"poller"`
}

// EODHDConfig configures the market data feed.
type EODHDConfig struct {
	APIToken string `mapstructure:"api_token"`
}

// LedgerConfig configures the accounting core.
type LedgerConfig struct {
	// CashSymbol is the settlement-fund symbol idle cash sweeps into.
	CashSymbol string `mapstructure:"cash_symbol"`
}

// PollerConfig configures the background refresh schedules.
type PollerConfig struct {
	// QuoteCron is the cron expression for live quote refreshes.
	QuoteCron string `mapstructure:"quote_cron"`
	// BackfillCron is the cron expression for daily close backfills.
	BackfillCron string `mapstructure:"backfill_cron"`
	// QuoteTimeout bounds a single refresh run.
	QuoteTimeout time.Duration `mapstructure:"quote_timeout"`
}

// Load reads config.yaml (from the working directory or ~/.mdash) and
// overrides with MDASH_* environment variables, e.g. MDASH_DATABASE or
// MDASH_EODHD_API_TOKEN.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.mdash")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database", "mdash.db")
	// An explicit empty default keeps the key visible to AutomaticEnv.
	v.SetDefault("eodhd.api_token", "")
	v.SetDefault("ledger.cash_symbol", "VMFXX")
	// Weekdays, every 5 minutes during extended US market hours.
	v.SetDefault("poller.quote_cron", "*/5 13-21 * * 1-5")
	// Nightly, after the feed has settled the day's closes.
	v.SetDefault("poller.backfill_cron", "30 2 * * *")
	v.SetDefault("poller.quote_timeout", time.Minute)
}

func validate(cfg *Config) error {
	if cfg.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if cfg.Ledger.CashSymbol == "" {
		return fmt.Errorf("ledger.cash_symbol is required")
	}
	return nil
}
