// Package observability provides a metrics extension for quota that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/plugin"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnPackageComposed       = (*MetricsExtension)(nil)
	_ plugin.OnPackageReplaced       = (*MetricsExtension)(nil)
	_ plugin.OnPackageDeactivated    = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionActivated = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionAdjusted  = (*MetricsExtension)(nil)
	_ plugin.OnExtrasGranted         = (*MetricsExtension)(nil)
	_ plugin.OnViewsCharged          = (*MetricsExtension)(nil)
	_ plugin.OnBalanceInsufficient   = (*MetricsExtension)(nil)
	_ plugin.OnPromoCreated          = (*MetricsExtension)(nil)
	_ plugin.OnPromoUpdated          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a quota plugin to track commerce metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Package metrics
	PackageComposed     Counter
	PackageReplaced     Counter
	PackageDeactivated  Counter
	PackageMonthlyTotal Histogram

	// Subscription metrics
	SubscriptionActivated Counter
	SubscriptionAdjusted  Counter
	ExtrasGranted         Counter
	ExtrasUnits           Counter

	// Metering metrics
	ViewsCharged        Counter
	ViewsPerCharge      Histogram
	BalanceInsufficient Counter

	// Promo metrics
	PromoCreated Counter
	PromoUpdated Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Package metrics
		PackageComposed:     factory.Counter("quota.package.composed"),
		PackageReplaced:     factory.Counter("quota.package.replaced"),
		PackageDeactivated:  factory.Counter("quota.package.deactivated"),
		PackageMonthlyTotal: factory.Histogram("quota.package.total_monthly"),

		// Subscription metrics
		SubscriptionActivated: factory.Counter("quota.subscription.activated"),
		SubscriptionAdjusted:  factory.Counter("quota.subscription.adjusted"),
		ExtrasGranted:         factory.Counter("quota.subscription.extras.granted"),
		ExtrasUnits:           factory.Counter("quota.subscription.extras.units"),

		// Metering metrics
		ViewsCharged:        factory.Counter("quota.views.charged"),
		ViewsPerCharge:      factory.Histogram("quota.views.per_charge"),
		BalanceInsufficient: factory.Counter("quota.balance.insufficient"),

		// Promo metrics
		PromoCreated: factory.Counter("quota.promo.created"),
		PromoUpdated: factory.Counter("quota.promo.updated"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Package hooks
// ──────────────────────────────────────────────────

// OnPackageComposed implements plugin.OnPackageComposed.
func (m *MetricsExtension) OnPackageComposed(_ context.Context, pkg *bundle.Package) error {
	m.PackageComposed.Inc()
	m.PackageMonthlyTotal.Observe(pkg.TotalMonthly)
	return nil
}

// OnPackageReplaced implements plugin.OnPackageReplaced.
func (m *MetricsExtension) OnPackageReplaced(_ context.Context, _, newPkg *bundle.Package) error {
	m.PackageReplaced.Inc()
	m.PackageMonthlyTotal.Observe(newPkg.TotalMonthly)
	return nil
}

// OnPackageDeactivated implements plugin.OnPackageDeactivated.
func (m *MetricsExtension) OnPackageDeactivated(_ context.Context, _ string) error {
	m.PackageDeactivated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (m *MetricsExtension) OnSubscriptionActivated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionActivated.Inc()
	return nil
}

// OnSubscriptionAdjusted implements plugin.OnSubscriptionAdjusted.
func (m *MetricsExtension) OnSubscriptionAdjusted(_ context.Context, _ string, _ map[feature.Key]int64) error {
	m.SubscriptionAdjusted.Inc()
	return nil
}

// OnExtrasGranted implements plugin.OnExtrasGranted.
func (m *MetricsExtension) OnExtrasGranted(_ context.Context, _ string, extra subscription.Extra) error {
	m.ExtrasGranted.Inc()
	var units int64
	for _, n := range extra.Deltas {
		units += n
	}
	m.ExtrasUnits.Add(float64(units))
	return nil
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

// OnViewsCharged implements plugin.OnViewsCharged.
func (m *MetricsExtension) OnViewsCharged(_ context.Context, _, _ string, candidateIDs []string) error {
	n := float64(len(candidateIDs))
	m.ViewsCharged.Add(n)
	m.ViewsPerCharge.Observe(n)
	return nil
}

// OnBalanceInsufficient implements plugin.OnBalanceInsufficient.
func (m *MetricsExtension) OnBalanceInsufficient(_ context.Context, _ string, _ feature.Key, _, _ int64) error {
	m.BalanceInsufficient.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Promo hooks
// ──────────────────────────────────────────────────

// OnPromoCreated implements plugin.OnPromoCreated.
func (m *MetricsExtension) OnPromoCreated(_ context.Context, _ *promo.Promo) error {
	m.PromoCreated.Inc()
	return nil
}

// OnPromoUpdated implements plugin.OnPromoUpdated.
func (m *MetricsExtension) OnPromoUpdated(_ context.Context, _, _ *promo.Promo) error {
	m.PromoUpdated.Inc()
	return nil
}
