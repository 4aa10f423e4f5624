// Package plugin lets extensions hook into quota lifecycle events.
// A plugin implements Plugin plus any of the hook interfaces below; the
// registry discovers them by type assertion at registration.
package plugin

import (
	"context"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *quota.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Package hooks
// ──────────────────────────────────────────────────

// OnPackageComposed is called after a new package is persisted.
type OnPackageComposed interface {
	Plugin
	OnPackageComposed(ctx context.Context, pkg *bundle.Package) error
}

// OnPackageReplaced is called after a package is replaced in place.
type OnPackageReplaced interface {
	Plugin
	OnPackageReplaced(ctx context.Context, oldPkg, newPkg *bundle.Package) error
}

// OnPackageDeactivated is called after a package is deactivated.
type OnPackageDeactivated interface {
	Plugin
	OnPackageDeactivated(ctx context.Context, pkgID string) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated is called after a subscription is created.
type OnSubscriptionActivated interface {
	Plugin
	OnSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionAdjusted is called after an admin overwrites counts.
type OnSubscriptionAdjusted interface {
	Plugin
	OnSubscriptionAdjusted(ctx context.Context, subID string, counts map[feature.Key]int64) error
}

// OnExtrasGranted is called after a top-up is applied.
type OnExtrasGranted interface {
	Plugin
	OnExtrasGranted(ctx context.Context, subID string, extra subscription.Extra) error
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

// OnViewsCharged is called after candidate views are charged to a group.
type OnViewsCharged interface {
	Plugin
	OnViewsCharged(ctx context.Context, groupID, subID string, candidateIDs []string) error
}

// OnBalanceInsufficient is called when a consume is refused.
type OnBalanceInsufficient interface {
	Plugin
	OnBalanceInsufficient(ctx context.Context, subID string, key feature.Key, requested, remaining int64) error
}

// ──────────────────────────────────────────────────
// Promo hooks
// ──────────────────────────────────────────────────

// OnPromoCreated is called after a promo is created.
type OnPromoCreated interface {
	Plugin
	OnPromoCreated(ctx context.Context, p *promo.Promo) error
}

// OnPromoUpdated is called after a promo is updated.
type OnPromoUpdated interface {
	Plugin
	OnPromoUpdated(ctx context.Context, oldPromo, newPromo *promo.Promo) error
}
