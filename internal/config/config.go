package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// Ledger gateway (the node-side signer that fronts the game contract)
	LedgerRPCURL      string `env:"LEDGER_RPC_URL,required"`
	LedgerContract    string `env:"LEDGER_CONTRACT_ADDRESS,required"`
	LedgerVariant     string `env:"LEDGER_VARIANT" envDefault:"standard"`
	LedgerQueryWindow uint64 `env:"LEDGER_QUERY_WINDOW" envDefault:"30"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Akave blob archive (S3-compatible)
	AkaveEndpoint  string `env:"AKAVE_ENDPOINT"`
	AkaveBucket    string `env:"AKAVE_BUCKET"`
	AkaveAccessKey string `env:"AKAVE_ACCESS_KEY"`
	AkaveSecretKey string `env:"AKAVE_SECRET_KEY"`

	// Blockscout Merits points service
	MeritsAPIURL        string `env:"MERITS_API_URL" envDefault:"https://merits-staging.blockscout.com/api/v1"`
	MeritsPartnerAPIURL string `env:"MERITS_PARTNER_API_URL" envDefault:"https://merits-staging.blockscout.com/partner/api/v1"`
	MeritsAPIKey        string `env:"MERITS_API_KEY"`
	MeritsRewardAmount  string `env:"MERITS_REWARD_AMOUNT" envDefault:"10"`

	// Session history reconciliation
	HistoryWindowBlocks  uint64 `env:"HISTORY_WINDOW_BLOCKS" envDefault:"1000"`
	HistoryMaxRecords    int    `env:"HISTORY_MAX_RECORDS" envDefault:"5"`
	HistoryRefreshSec    int    `env:"HISTORY_REFRESH_SECONDS" envDefault:"60"`
	HistoryCacheTTLSec   int    `env:"HISTORY_CACHE_TTL_SECONDS" envDefault:"120"`
}

// Load parses configuration from environment variables. A .env file, if any,
// is loaded by the caller before this runs.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.LedgerVariant != "standard" && c.LedgerVariant != "entropy" {
		return fmt.Errorf("invalid LEDGER_VARIANT: %q (must be \"standard\" or \"entropy\")", c.LedgerVariant)
	}

	if c.LedgerQueryWindow == 0 {
		return fmt.Errorf("LEDGER_QUERY_WINDOW must be positive")
	}

	if c.HistoryMaxRecords <= 0 {
		return fmt.Errorf("HISTORY_MAX_RECORDS must be positive")
	}

	return nil
}
