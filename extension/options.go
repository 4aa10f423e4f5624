package extension

import (
	"time"

	"github.com/xraph/quota"
	"github.com/xraph/quota/identity"
	"github.com/xraph/quota/plugin"
	"github.com/xraph/quota/store"
)

// Option configures the quota Forge extension.
type Option func(*Extension)

// WithStore sets the store for the quota engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a quota.Option through to the underlying engine.
func WithEngineOption(opt quota.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a quota plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, quota.WithPlugin(p))
	}
}

// WithDecoder sets the token decoder used by the HTTP API. Without one the
// API is not built.
func WithDecoder(d identity.Decoder) Option {
	return func(e *Extension) { e.decoder = d }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents building the HTTP API.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableSweeper prevents the view charge sweeper from running.
func WithDisableSweeper() Option {
	return func(e *Extension) { e.config.DisableSweeper = true }
}

// WithBasePath sets the URL prefix for quota routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCatalogCache sizes the pricing catalog cache.
func WithCatalogCache(size int, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.CatalogCacheSize = size
		e.config.CatalogCacheTTL = ttl
	}
}

// WithLockTimeout bounds how long a view charge waits for its group lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.LockTimeout = d }
}

// WithSweepSchedule sets the cron spec of the view charge sweeper.
func WithSweepSchedule(spec string) Option {
	return func(e *Extension) { e.config.SweepSchedule = spec }
}

// WithPalette sets the colors new packages are drawn from.
func WithPalette(colors ...string) Option {
	return func(e *Extension) { e.config.Palette = colors }
}
