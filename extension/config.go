package extension

import "time"

// Config holds the quota extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.quota" or "quota" keys).
type Config struct {
	// DisableRoutes prevents building and providing the HTTP API.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableSweeper prevents the expired view charge sweeper from running.
	DisableSweeper bool `json:"disable_sweeper" mapstructure:"disable_sweeper" yaml:"disable_sweeper"`

	// BasePath is the URL prefix for quota routes (default: "/quota").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// CatalogCacheSize is the number of countries whose pricing is cached
	// (default: 64).
	CatalogCacheSize int `json:"catalog_cache_size" mapstructure:"catalog_cache_size" yaml:"catalog_cache_size"`

	// CatalogCacheTTL controls how long cached tiers and tax rates are
	// served before re-reading the store (default: 5m).
	CatalogCacheTTL time.Duration `json:"catalog_cache_ttl" mapstructure:"catalog_cache_ttl" yaml:"catalog_cache_ttl"`

	// LockTimeout bounds how long a view charge waits for its account
	// group lock (default: 10s).
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// SweepSchedule is the cron spec of the expired view charge sweeper
	// (default: "@hourly").
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule" yaml:"sweep_schedule"`

	// Palette lists the colors new packages are drawn from.
	Palette []string `json:"palette" mapstructure:"palette" yaml:"palette"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:         "/quota",
		CatalogCacheSize: 64,
		CatalogCacheTTL:  5 * time.Minute,
		LockTimeout:      10 * time.Second,
		SweepSchedule:    "@hourly",
	}
}
