package store

import (
	"context"
	"time"

	"github.com/xraph/quota/account"
	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/viewcharge"
)

// Store is the unified storage interface for all quota entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Pricing methods
	UpsertTier(ctx context.Context, t *pricing.Tier) error
	GetTier(ctx context.Context, country string, key feature.Key) (*pricing.Tier, error)
	ListTiers(ctx context.Context, country string) ([]*pricing.Tier, error)
	UpsertTaxRate(ctx context.Context, r *pricing.TaxRate) error
	GetTaxRate(ctx context.Context, country string) (*pricing.TaxRate, error)

	// Package methods
	CreatePackage(ctx context.Context, p *bundle.Package) error
	GetPackage(ctx context.Context, pkgID id.PackageID) (*bundle.Package, error)
	ListPackages(ctx context.Context, opts bundle.ListOpts) ([]*bundle.Package, error)
	ReplacePackage(ctx context.Context, p *bundle.Package) error
	DeactivatePackage(ctx context.Context, pkgID id.PackageID) error

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID string) (*subscription.Subscription, error)
	DeactivateSubscription(ctx context.Context, subID id.SubscriptionID) error
	ConsumeIfSufficient(ctx context.Context, subID id.SubscriptionID, key feature.Key, amount int64) (bool, error)
	GrantExtras(ctx context.Context, subID id.SubscriptionID, extra subscription.Extra) error
	SetCounts(ctx context.Context, subID id.SubscriptionID, counts map[feature.Key]int64) error

	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID string) (*account.Account, error)
	FindMaster(ctx context.Context, slaveID string) (*account.Account, error)
	AddSlave(ctx context.Context, masterID, slaveID string) error

	// View charge methods
	FindViewCharges(ctx context.Context, employerIDs, candidateIDs []string, at time.Time) ([]*viewcharge.ViewCharge, error)
	InsertViewCharges(ctx context.Context, charges []*viewcharge.ViewCharge) error
	PurgeExpiredViewCharges(ctx context.Context, at time.Time) (int64, error)

	// Promo methods
	CreatePromo(ctx context.Context, p *promo.Promo) error
	GetPromo(ctx context.Context, promoID id.PromoID) (*promo.Promo, error)
	GetPromoByCode(ctx context.Context, code, country string) (*promo.Promo, error)
	ListPromos(ctx context.Context, opts promo.ListOpts) ([]*promo.Promo, error)
	UpdatePromo(ctx context.Context, p *promo.Promo) error

	// Audit methods
	AppendAudit(ctx context.Context, e *audit.Entry) error
	ListAudit(ctx context.Context, opts audit.ListOpts) ([]*audit.Entry, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
