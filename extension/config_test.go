package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{SweepSchedule: "@every 10m"})

	if cfg.SweepSchedule != "@every 10m" {
		t.Errorf("SweepSchedule = %q, want kept", cfg.SweepSchedule)
	}
	if cfg.BasePath != "/quota" || cfg.CatalogCacheSize != 64 || cfg.CatalogCacheTTL != 5*time.Minute {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name  string
		yaml  Config
		prog  Config
		check func(t *testing.T, got Config)
	}{
		{
			name: "yaml wins",
			yaml: Config{BasePath: "/billing", CatalogCacheTTL: time.Minute},
			prog: Config{BasePath: "/other", CatalogCacheTTL: time.Hour},
			check: func(t *testing.T, got Config) {
				if got.BasePath != "/billing" || got.CatalogCacheTTL != time.Minute {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "programmatic fills gaps",
			yaml: Config{},
			prog: Config{SweepSchedule: "@daily", Palette: []string{"#000000"}, LockTimeout: time.Second},
			check: func(t *testing.T, got Config) {
				if got.SweepSchedule != "@daily" || len(got.Palette) != 1 || got.LockTimeout != time.Second {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "programmatic bools override",
			yaml: Config{},
			prog: Config{DisableRoutes: true, DisableMigrate: true, DisableSweeper: true},
			check: func(t *testing.T, got Config) {
				if !got.DisableRoutes || !got.DisableMigrate || !got.DisableSweeper {
					t.Errorf("got %+v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mergeConfigurations(tt.yaml, tt.prog))
		})
	}
}

func TestBuildEngineOpts(t *testing.T) {
	e := New(WithDisableMigrate(), WithPalette("#111111"))
	e.config = mergeWithDefaults(e.config)

	// migrate, cache, lock timeout, palette
	if got := len(e.buildEngineOpts()); got != 4 {
		t.Errorf("options = %d, want 4", got)
	}
}
