// Package daemon holds server configuration.
// Config is TOML on disk (~/.mystic/config.toml); provider secrets can
// also come from the environment so they stay out of the file.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Database  DatabaseConfig  `toml:"database"`
	EventLog  EventLogConfig  `toml:"eventlog"`
	Providers ProvidersConfig `toml:"providers"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Dir string `toml:"dir"`
}

// EventLogConfig configures the raw webhook archive.
type EventLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// ProvidersConfig holds per-provider gateway credentials.
type ProvidersConfig struct {
	Stripe StripeConfig `toml:"stripe"`
	PayPal PayPalConfig `toml:"paypal"`
}

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey     string `toml:"secret_key"`
	WebhookSecret string `toml:"webhook_secret"`
	BaseURL       string `toml:"base_url"`
}

// PayPalConfig holds PayPal credentials.
type PayPalConfig struct {
	ClientID      string `toml:"client_id"`
	Secret        string `toml:"secret"`
	WebhookSecret string `toml:"webhook_secret"`
	BaseURL       string `toml:"base_url"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	home := dataHome()
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8484,
			Metrics: true,
		},
		Database: DatabaseConfig{
			Dir: home,
		},
		EventLog: EventLogConfig{
			Enabled: true,
			Path:    filepath.Join(home, "webhooks.db"),
		},
	}
}

// Load reads the config file over the defaults, then applies
// environment overrides for secrets. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = filepath.Join(dataHome(), "config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets secrets come from the environment, taking precedence
// over the file.
func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"MYSTIC_STRIPE_SECRET_KEY", &cfg.Providers.Stripe.SecretKey},
		{"MYSTIC_STRIPE_WEBHOOK_SECRET", &cfg.Providers.Stripe.WebhookSecret},
		{"MYSTIC_PAYPAL_CLIENT_ID", &cfg.Providers.PayPal.ClientID},
		{"MYSTIC_PAYPAL_SECRET", &cfg.Providers.PayPal.Secret},
		{"MYSTIC_PAYPAL_WEBHOOK_SECRET", &cfg.Providers.PayPal.WebhookSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// dataHome returns the MysticOracle data directory.
func dataHome() string {
	if env := os.Getenv("MYSTIC_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mystic")
}
