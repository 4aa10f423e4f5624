package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/quota"
	"github.com/xraph/quota/account"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/pricing"
)

// Config is the daemon configuration file. Secrets are read from the
// environment, not from this file.
type Config struct {
	Listen        string        `yaml:"listen"`
	BasePath      string        `yaml:"base_path"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`
	RedisAddr     string        `yaml:"redis_addr"`
	Palette       []string      `yaml:"palette"`

	Mail    MailConfig    `yaml:"mail"`
	Gateway GatewayConfig `yaml:"gateway"`

	Tiers    []TierConfig    `yaml:"tiers"`
	TaxRates []TaxConfig     `yaml:"tax_rates"`
	Accounts []AccountConfig `yaml:"accounts"`
}

// MailConfig sets the sender of notification emails.
type MailConfig struct {
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
}

// GatewayConfig points the payment gateway client at an endpoint.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
}

// TierConfig seeds one reference rate.
type TierConfig struct {
	Country   string  `yaml:"country"`
	Feature   string  `yaml:"feature"`
	BasePrice float64 `yaml:"base_price"`
	Count     int64   `yaml:"count"`
	Currency  string  `yaml:"currency"`
	Heading   string  `yaml:"heading"`
	Label     string  `yaml:"label"`
}

// TaxConfig seeds one country tax rate.
type TaxConfig struct {
	Country    string  `yaml:"country"`
	TaxType    string  `yaml:"tax_type"`
	Percentage float64 `yaml:"percentage"`
}

// AccountConfig seeds one login identity and, for masters, its slaves.
type AccountConfig struct {
	ID     string   `yaml:"id"`
	Email  string   `yaml:"email"`
	Master bool     `yaml:"master"`
	Slaves []string `yaml:"slaves"`
}

// Secrets are read from the environment (optionally via .env).
type Secrets struct {
	JWTSecret        string
	SendGridAPIKey   string
	GatewayKeyID     string
	GatewayKeySecret string
}

func defaultConfig() Config {
	return Config{
		Listen:        ":8080",
		BasePath:      "/quota",
		SweepSchedule: "@hourly",
		LockTimeout:   10 * time.Second,
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	for i, t := range c.Tiers {
		if !feature.Valid(feature.Key(t.Feature)) {
			return fmt.Errorf("tiers[%d]: unknown feature %q", i, t.Feature)
		}
		if t.Count <= 0 {
			return fmt.Errorf("tiers[%d]: count must be positive", i)
		}
	}
	for i, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if !a.Master && len(a.Slaves) > 0 {
			return fmt.Errorf("accounts[%d]: only masters have slaves", i)
		}
	}
	return nil
}

func loadSecrets() Secrets {
	return Secrets{
		JWTSecret:        os.Getenv("QUOTA_JWT_SECRET"),
		SendGridAPIKey:   os.Getenv("QUOTA_SENDGRID_API_KEY"),
		GatewayKeyID:     os.Getenv("QUOTA_GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("QUOTA_GATEWAY_KEY_SECRET"),
	}
}

// seed loads reference data and accounts into eng. Masters are registered
// before their slaves are attached.
func seed(ctx context.Context, eng *quota.Engine, cfg Config) error {
	for _, t := range cfg.Tiers {
		if err := eng.SetTier(ctx, &pricing.Tier{
			Country:   t.Country,
			Feature:   feature.Key(t.Feature),
			BasePrice: t.BasePrice,
			Count:     t.Count,
			Currency:  t.Currency,
			Heading:   t.Heading,
			Label:     t.Label,
		}); err != nil {
			return fmt.Errorf("seed tier %s/%s: %w", t.Country, t.Feature, err)
		}
	}

	for _, r := range cfg.TaxRates {
		if err := eng.SetTaxRate(ctx, &pricing.TaxRate{
			Country:    r.Country,
			TaxType:    r.TaxType,
			Percentage: r.Percentage,
		}); err != nil {
			return fmt.Errorf("seed tax rate %s: %w", r.Country, err)
		}
	}

	for _, a := range cfg.Accounts {
		if err := eng.RegisterAccount(ctx, &account.Account{
			ID:       a.ID,
			Email:    a.Email,
			IsMaster: a.Master,
		}); err != nil && !quota.IsConflict(err) {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}
	for _, a := range cfg.Accounts {
		for _, slave := range a.Slaves {
			if err := eng.AttachSlave(ctx, a.ID, slave); err != nil {
				return fmt.Errorf("seed slave %s of %s: %w", slave, a.ID, err)
			}
		}
	}
	return nil
}
