/*
Package config loads the runtime configuration from environment variables.

The whole surface mirrors the operator's .env file: bot credential, the
protected deliverable, payment destination identifiers, price, support
handle and the snapshot location. Price is a decimal so instruction texts
never round.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config is the process configuration.
type Config struct {
	BotToken string `env:"API_TOKEN,required"`
	FilePath string `env:"FILE_PATH,required"`

	SberbankAccount string `env:"SBERBANK_ACCOUNT"`
	YMoneyAccount   string `env:"YMONEY_ACCOUNT"`
	PayeerAccount   string `env:"PAYEER_ACCOUNT"`
	CryptoAccount   string `env:"CRYPTO_ACCOUNT"`

	Price         decimal.Decimal `env:"PRICE" envDefault:"800"`
	SupportHandle string          `env:"SUPPORT_USERNAME"`

	SnapshotPath string `env:"STORAGE_FILE" envDefault:"customers.json"`
	AdminPort    int    `env:"ADMIN_PORT" envDefault:"8080"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
