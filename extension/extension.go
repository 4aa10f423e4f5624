// Package extension provides the Forge extension adapter for quota.
//
// It implements the forge.Extension interface to integrate the quota engine
// into a Forge application with DI registration and lifecycle management.
// The extension owns the expired view charge sweeper and, when a token
// decoder is configured, provides the HTTP API as *api.Handlers.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.quota" or "quota" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/quota"
	"github.com/xraph/quota/api"
	"github.com/xraph/quota/identity"
	"github.com/xraph/quota/scheduler"
	"github.com/xraph/quota/store"
	"github.com/xraph/quota/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "quota"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription packages, balances and view metering"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the quota engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *quota.Engine
	store      store.Store
	decoder    identity.Decoder
	handlers   *api.Handlers
	sweeper    *scheduler.Sweeper
	engineOpts []quota.Option
}

// New creates a new quota Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *quota.Engine { return e.engine }

// Handler returns the HTTP API mounted at the configured base path, or nil
// when routes are disabled or no decoder was configured.
func (e *Extension) Handler() http.Handler {
	if e.handlers == nil {
		return nil
	}
	return e.handlers.Handler(e.config.BasePath)
}

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = quota.New(e.store, e.buildEngineOpts()...)

	if !e.config.DisableSweeper {
		e.sweeper = scheduler.NewSweeper(e.store, scheduler.WithSchedule(e.config.SweepSchedule))
	}

	if err := vessel.Provide(fapp.Container(), func() (*quota.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	if e.decoder == nil {
		e.Logger().Warn("quota: no token decoder configured, HTTP API disabled")
		return nil
	}

	e.handlers = api.New(e.engine, e.decoder)
	return vessel.Provide(fapp.Container(), func() (*api.Handlers, error) {
		return e.handlers, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("quota: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	if e.sweeper != nil {
		if err := e.sweeper.Start(ctx); err != nil {
			_ = e.engine.Stop() //nolint:errcheck // start already failed
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("quota: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs quota.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []quota.Option {
	opts := make([]quota.Option, 0, len(e.engineOpts)+4)

	// Apply config-derived options.
	if e.config.DisableMigrate {
		opts = append(opts, quota.WithoutMigrate())
	}
	if e.config.CatalogCacheSize > 0 && e.config.CatalogCacheTTL > 0 {
		opts = append(opts, quota.WithCatalogCache(e.config.CatalogCacheSize, e.config.CatalogCacheTTL))
	}
	if e.config.LockTimeout > 0 {
		opts = append(opts, quota.WithLockTimeout(e.config.LockTimeout))
	}
	if len(e.config.Palette) > 0 {
		opts = append(opts, quota.WithPalette(e.config.Palette...))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("quota: configuration is required but not found in config files; " +
				"ensure 'extensions.quota' or 'quota' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("quota: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_sweeper", e.config.DisableSweeper),
		forge.F("base_path", e.config.BasePath),
		forge.F("catalog_cache_size", e.config.CatalogCacheSize),
		forge.F("catalog_cache_ttl", e.config.CatalogCacheTTL),
		forge.F("sweep_schedule", e.config.SweepSchedule),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.quota", "quota"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("quota: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("quota: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.CatalogCacheSize == 0 {
		cfg.CatalogCacheSize = defaults.CatalogCacheSize
	}
	if cfg.CatalogCacheTTL == 0 {
		cfg.CatalogCacheTTL = defaults.CatalogCacheTTL
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = defaults.SweepSchedule
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableSweeper {
		yamlConfig.DisableSweeper = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.SweepSchedule == "" {
		yamlConfig.SweepSchedule = programmaticConfig.SweepSchedule
	}
	if len(yamlConfig.Palette) == 0 {
		yamlConfig.Palette = programmaticConfig.Palette
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CatalogCacheSize == 0 {
		yamlConfig.CatalogCacheSize = programmaticConfig.CatalogCacheSize
	}
	if yamlConfig.CatalogCacheTTL == 0 {
		yamlConfig.CatalogCacheTTL = programmaticConfig.CatalogCacheTTL
	}
	if yamlConfig.LockTimeout == 0 {
		yamlConfig.LockTimeout = programmaticConfig.LockTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
