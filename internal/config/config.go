// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds daemon configuration. Every field has an environment
// variable; cmd flags override the parsed values.
type Config struct {
	// Backend API.
	APIBaseURL     string        `env:"BILLPAY_API_URL" envDefault:"http://localhost:8090/api"`
	APIToken       string        `env:"BILLPAY_API_TOKEN"`
	RequestTimeout time.Duration `env:"BILLPAY_REQUEST_TIMEOUT" envDefault:"15s"`

	// HTTP surfaces.
	ListenAddr  string `env:"BILLPAY_LISTEN_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"BILLPAY_METRICS_ADDR" envDefault:":9091"`

	// Storage. Empty DSN/addr selects the in-memory implementations.
	PostgresDSN string `env:"BILLPAY_POSTGRES_DSN"`
	RedisAddr   string `env:"BILLPAY_REDIS_ADDR"`

	// Rate feed. Empty endpoint disables the feed; rates default to 1.
	RatesEndpoint string   `env:"BILLPAY_RATES_WS_URL"`
	RatesSymbols  []string `env:"BILLPAY_RATES_SYMBOLS" envSeparator:","`

	// Purchase flow.
	Network    string            `env:"BILLPAY_NETWORK" envDefault:"mainnet"`
	SignerURL  string            `env:"BILLPAY_SIGNER_URL" envDefault:"http://localhost:8091"`
	Recipients map[string]string `env:"BILLPAY_RECIPIENTS" envSeparator:"," envKeyValSeparator:"="`

	// Background work.
	BalancePollInterval time.Duration `env:"BILLPAY_BALANCE_POLL_INTERVAL" envDefault:"30s"`
	CachePurgeInterval  time.Duration `env:"BILLPAY_CACHE_PURGE_INTERVAL" envDefault:"10m"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
