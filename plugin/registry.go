package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onPackageComposed       []OnPackageComposed
	onPackageReplaced       []OnPackageReplaced
	onPackageDeactivated    []OnPackageDeactivated
	onSubscriptionActivated []OnSubscriptionActivated
	onSubscriptionAdjusted  []OnSubscriptionAdjusted
	onExtrasGranted         []OnExtrasGranted
	onViewsCharged          []OnViewsCharged
	onBalanceInsufficient   []OnBalanceInsufficient
	onPromoCreated          []OnPromoCreated
	onPromoUpdated          []OnPromoUpdated
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPackageComposed); ok {
		r.onPackageComposed = append(r.onPackageComposed, v)
	}
	if v, ok := p.(OnPackageReplaced); ok {
		r.onPackageReplaced = append(r.onPackageReplaced, v)
	}
	if v, ok := p.(OnPackageDeactivated); ok {
		r.onPackageDeactivated = append(r.onPackageDeactivated, v)
	}
	if v, ok := p.(OnSubscriptionActivated); ok {
		r.onSubscriptionActivated = append(r.onSubscriptionActivated, v)
	}
	if v, ok := p.(OnSubscriptionAdjusted); ok {
		r.onSubscriptionAdjusted = append(r.onSubscriptionAdjusted, v)
	}
	if v, ok := p.(OnExtrasGranted); ok {
		r.onExtrasGranted = append(r.onExtrasGranted, v)
	}
	if v, ok := p.(OnViewsCharged); ok {
		r.onViewsCharged = append(r.onViewsCharged, v)
	}
	if v, ok := p.(OnBalanceInsufficient); ok {
		r.onBalanceInsufficient = append(r.onBalanceInsufficient, v)
	}
	if v, ok := p.(OnPromoCreated); ok {
		r.onPromoCreated = append(r.onPromoCreated, v)
	}
	if v, ok := p.(OnPromoUpdated); ok {
		r.onPromoUpdated = append(r.onPromoUpdated, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnPackageComposed", reflect.TypeFor[OnPackageComposed]()},
	{"OnPackageReplaced", reflect.TypeFor[OnPackageReplaced]()},
	{"OnPackageDeactivated", reflect.TypeFor[OnPackageDeactivated]()},
	{"OnSubscriptionActivated", reflect.TypeFor[OnSubscriptionActivated]()},
	{"OnSubscriptionAdjusted", reflect.TypeFor[OnSubscriptionAdjusted]()},
	{"OnExtrasGranted", reflect.TypeFor[OnExtrasGranted]()},
	{"OnViewsCharged", reflect.TypeFor[OnViewsCharged]()},
	{"OnBalanceInsufficient", reflect.TypeFor[OnBalanceInsufficient]()},
	{"OnPromoCreated", reflect.TypeFor[OnPromoCreated]()},
	{"OnPromoUpdated", reflect.TypeFor[OnPromoUpdated]()},
}

// implementedInterfaces returns the hook interfaces p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", func(r *Registry) []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func(r *Registry) []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPackageComposed emits a package composed event.
func (r *Registry) EmitPackageComposed(ctx context.Context, pkg *bundle.Package) {
	emit(ctx, r, "OnPackageComposed", func(r *Registry) []OnPackageComposed { return r.onPackageComposed }, func(p OnPackageComposed) error {
		return p.OnPackageComposed(ctx, pkg)
	})
}

// EmitPackageReplaced emits a package replaced event.
func (r *Registry) EmitPackageReplaced(ctx context.Context, oldPkg, newPkg *bundle.Package) {
	emit(ctx, r, "OnPackageReplaced", func(r *Registry) []OnPackageReplaced { return r.onPackageReplaced }, func(p OnPackageReplaced) error {
		return p.OnPackageReplaced(ctx, oldPkg, newPkg)
	})
}

// EmitPackageDeactivated emits a package deactivated event.
func (r *Registry) EmitPackageDeactivated(ctx context.Context, pkgID string) {
	emit(ctx, r, "OnPackageDeactivated", func(r *Registry) []OnPackageDeactivated { return r.onPackageDeactivated }, func(p OnPackageDeactivated) error {
		return p.OnPackageDeactivated(ctx, pkgID)
	})
}

// EmitSubscriptionActivated emits a subscription activated event.
func (r *Registry) EmitSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionActivated", func(r *Registry) []OnSubscriptionActivated { return r.onSubscriptionActivated }, func(p OnSubscriptionActivated) error {
		return p.OnSubscriptionActivated(ctx, sub)
	})
}

// EmitSubscriptionAdjusted emits a subscription adjusted event.
func (r *Registry) EmitSubscriptionAdjusted(ctx context.Context, subID string, counts map[feature.Key]int64) {
	emit(ctx, r, "OnSubscriptionAdjusted", func(r *Registry) []OnSubscriptionAdjusted { return r.onSubscriptionAdjusted }, func(p OnSubscriptionAdjusted) error {
		return p.OnSubscriptionAdjusted(ctx, subID, counts)
	})
}

// EmitExtrasGranted emits an extras granted event.
func (r *Registry) EmitExtrasGranted(ctx context.Context, subID string, extra subscription.Extra) {
	emit(ctx, r, "OnExtrasGranted", func(r *Registry) []OnExtrasGranted { return r.onExtrasGranted }, func(p OnExtrasGranted) error {
		return p.OnExtrasGranted(ctx, subID, extra)
	})
}

// EmitViewsCharged emits a views charged event.
func (r *Registry) EmitViewsCharged(ctx context.Context, groupID, subID string, candidateIDs []string) {
	emit(ctx, r, "OnViewsCharged", func(r *Registry) []OnViewsCharged { return r.onViewsCharged }, func(p OnViewsCharged) error {
		return p.OnViewsCharged(ctx, groupID, subID, candidateIDs)
	})
}

// EmitBalanceInsufficient emits a balance insufficient event.
func (r *Registry) EmitBalanceInsufficient(ctx context.Context, subID string, key feature.Key, requested, remaining int64) {
	emit(ctx, r, "OnBalanceInsufficient", func(r *Registry) []OnBalanceInsufficient { return r.onBalanceInsufficient }, func(p OnBalanceInsufficient) error {
		return p.OnBalanceInsufficient(ctx, subID, key, requested, remaining)
	})
}

// EmitPromoCreated emits a promo created event.
func (r *Registry) EmitPromoCreated(ctx context.Context, pr *promo.Promo) {
	emit(ctx, r, "OnPromoCreated", func(r *Registry) []OnPromoCreated { return r.onPromoCreated }, func(p OnPromoCreated) error {
		return p.OnPromoCreated(ctx, pr)
	})
}

// EmitPromoUpdated emits a promo updated event.
func (r *Registry) EmitPromoUpdated(ctx context.Context, oldPromo, newPromo *promo.Promo) {
	emit(ctx, r, "OnPromoUpdated", func(r *Registry) []OnPromoUpdated { return r.onPromoUpdated }, func(p OnPromoUpdated) error {
		return p.OnPromoUpdated(ctx, oldPromo, newPromo)
	})
}

// emit calls fn for every plugin selected by hooks, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks func(*Registry) []T, fn func(T) error) {
	r.mu.RLock()
	plugins := hooks(r)
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a request.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
