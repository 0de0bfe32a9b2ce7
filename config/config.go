// Package config loads service configuration from an optional YAML
// file with environment variable overrides. Every knob has a default
// so the service starts with no configuration at all.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Port        string        `yaml:"port"`
	DatabaseURL string        `yaml:"databaseUrl"`
	AssetAPI    AssetAPI      `yaml:"assetApi"`
	Pricing     PricingConfig `yaml:"pricing"`
	LeadTime    LeadTime      `yaml:"leadTime"`
}

// AssetAPI configures the upstream inventory service client.
type AssetAPI struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// PricingConfig holds the fallback pricing figures applied when no
// pricing rule matches a component.
type PricingConfig struct {
	MarginPercent string `yaml:"marginPercent"`
	LaborCost     string `yaml:"laborCost"`
	Currency      string `yaml:"currency"`
}

// LeadTime holds the fallback work durations for the lead time
// calculation.
type LeadTime struct {
	ComponentMinutes   int `yaml:"componentMinutes"`
	QAMinutes          int `yaml:"qaMinutes"`
	WorkingHoursPerDay int `yaml:"workingHoursPerDay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port: "8080",
		AssetAPI: AssetAPI{
			Timeout: 5 * time.Second,
		},
		Pricing: PricingConfig{
			MarginPercent: "18",
			LaborCost:     "25.00",
			Currency:      "EUR",
		},
		LeadTime: LeadTime{
			ComponentMinutes:   30,
			QAMinutes:          45,
			WorkingHoursPerDay: 8,
		},
	}
}

// Load reads configuration from path when it is non-empty, then applies
// environment overrides. Missing file fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ASSET_API_URL"); v != "" {
		cfg.AssetAPI.BaseURL = v
	}

	if _, err := cfg.MarginPercent(); err != nil {
		return nil, err
	}
	if _, err := cfg.LaborCost(); err != nil {
		return nil, err
	}
	if cfg.LeadTime.WorkingHoursPerDay <= 0 {
		return nil, fmt.Errorf("workingHoursPerDay must be positive, got %d", cfg.LeadTime.WorkingHoursPerDay)
	}

	return cfg, nil
}

// MarginPercent parses the configured margin rate.
func (c *Config) MarginPercent() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Pricing.MarginPercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid marginPercent %q: %w", c.Pricing.MarginPercent, err)
	}
	return d, nil
}

// LaborCost parses the configured default labor cost.
func (c *Config) LaborCost() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Pricing.LaborCost)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid laborCost %q: %w", c.Pricing.LaborCost, err)
	}
	return d, nil
}
