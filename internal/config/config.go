// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	// LedgerDir holds the per-day signature ledger files.
	LedgerDir string `env:"LEDGER_DIR" envDefault:"ledger"`
	// ItemDelay is the pause between postings, rate-limiting the
	// extraction collaborator.
	ItemDelay time.Duration `env:"ITEM_DELAY" envDefault:"2s"`
	// TaxonomyCap bounds how many taxonomy entries are loaded and cached
	// per run. Must be positive; there is no "unlimited" setting.
	TaxonomyCap int `env:"TAXONOMY_CAP" envDefault:"10000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.TaxonomyCap <= 0 {
		return Config{}, fmt.Errorf("TAXONOMY_CAP must be positive, got %d", cfg.TaxonomyCap)
	}
	return cfg, nil
}
