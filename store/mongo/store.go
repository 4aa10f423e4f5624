package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	quota "github.com/xraph/quota"
	"github.com/xraph/quota/account"
	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/promo"
	quotastore "github.com/xraph/quota/store"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/viewcharge"
)

// Collection name constants.
const (
	colTiers         = "quota_tiers"
	colTaxRates      = "quota_tax_rates"
	colPackages      = "quota_packages"
	colSubscriptions = "quota_subscriptions"
	colAccounts      = "quota_accounts"
	colViewCharges   = "quota_view_charges"
	colPromos        = "quota_promos"
	colAudit         = "quota_audit"
)

// compile-time interface check
var _ quotastore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Subscriptions keep balances and top-up history in one document, so
// consumption and grants are single-document atomic updates.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all quota collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("quota/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Pricing Store ====================

func (s *Store) UpsertTier(ctx context.Context, t *pricing.Tier) error {
	c := *t
	if c.ID.IsNil() {
		c.ID = id.NewTierID()
	}
	m := toTierModel(&c)
	ts := now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"country": m.Country, "feature": m.Feature}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"base_price": m.BasePrice,
				"count":      m.Count,
				"currency":   m.Currency,
				"heading":    m.Heading,
				"label":      m.Label,
				"updated_at": ts,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": ts,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: upsert tier: %w", err)
	}
	return nil
}

func (s *Store) GetTier(ctx context.Context, country string, key feature.Key) (*pricing.Tier, error) {
	var m tierModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"country": pricing.NormalizeCountry(country), "feature": string(key)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, pricing.ErrTierNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get tier: %w", err)
	}
	return fromTierModel(&m)
}

func (s *Store) ListTiers(ctx context.Context, country string) ([]*pricing.Tier, error) {
	var models []tierModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{"country": pricing.NormalizeCountry(country)}).
		Sort(bson.D{{Key: "feature", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota/mongo: list tiers: %w", err)
	}

	result := make([]*pricing.Tier, len(models))
	for i := range models {
		t, err := fromTierModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) UpsertTaxRate(ctx context.Context, r *pricing.TaxRate) error {
	c := *r
	if c.ID.IsNil() {
		c.ID = id.NewTaxID()
	}
	m := toTaxRateModel(&c)
	ts := now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"country": m.Country}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"tax_type":   m.TaxType,
				"percentage": m.Percentage,
				"updated_at": ts,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": ts,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: upsert tax rate: %w", err)
	}
	return nil
}

func (s *Store) GetTaxRate(ctx context.Context, country string) (*pricing.TaxRate, error) {
	var m taxRateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"country": pricing.NormalizeCountry(country)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, pricing.ErrTaxRateNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get tax rate: %w", err)
	}
	return fromTaxRateModel(&m)
}

// ==================== Package Store ====================

func (s *Store) CreatePackage(ctx context.Context, p *bundle.Package) error {
	m := toPackageModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quota.ErrConflict
		}
		return fmt.Errorf("quota/mongo: create package: %w", err)
	}
	return nil
}

func (s *Store) GetPackage(ctx context.Context, pkgID id.PackageID) (*bundle.Package, error) {
	var m packageModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": pkgID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrPackageNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get package: %w", err)
	}
	return fromPackageModel(&m)
}

func (s *Store) ListPackages(ctx context.Context, opts bundle.ListOpts) ([]*bundle.Package, error) {
	var models []packageModel

	filter := bson.M{}
	if c := pricing.NormalizeCountry(opts.Country); c != "" {
		filter["country"] = c
	}
	if opts.ActiveOnly {
		filter["is_active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("quota/mongo: list packages: %w", err)
	}

	result := make([]*bundle.Package, len(models))
	for i := range models {
		p, err := fromPackageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) ReplacePackage(ctx context.Context, p *bundle.Package) error {
	m := toPackageModel(p)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: replace package: %w", err)
	}
	if res.MatchedCount() == 0 {
		return quota.ErrPackageNotFound
	}
	return nil
}

func (s *Store) DeactivatePackage(ctx context.Context, pkgID id.PackageID) error {
	res, err := s.mdb.NewUpdate((*packageModel)(nil)).
		Filter(bson.M{"_id": pkgID.String()}).
		Set("is_active", false).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: deactivate package: %w", err)
	}
	if res.MatchedCount() == 0 {
		return quota.ErrPackageNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quota.ErrConflict
		}
		return fmt.Errorf("quota/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID, "is_active": true}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get active subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) DeactivateSubscription(ctx context.Context, subID id.SubscriptionID) error {
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		Set("is_active", false).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: deactivate subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ConsumeIfSufficient(ctx context.Context, subID id.SubscriptionID, key feature.Key, amount int64) (bool, error) {
	field := balanceField(key)

	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String(), field: bson.M{"$gte": amount}}).
		SetUpdate(bson.M{
			"$inc": bson.M{field: -amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("quota/mongo: consume balance: %w", err)
	}
	if res.MatchedCount() > 0 {
		return true, nil
	}
	if err := s.subscriptionExists(ctx, subID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) GrantExtras(ctx context.Context, subID id.SubscriptionID, extra subscription.Extra) error {
	inc := bson.M{}
	for key, n := range extra.Deltas {
		inc[balanceField(key)] = n
	}

	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		SetUpdate(bson.M{
			"$inc":  inc,
			"$push": bson.M{"extras": toExtraModel(extra)},
			"$set":  bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: grant extras: %w", err)
	}
	if res.MatchedCount() == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) SetCounts(ctx context.Context, subID id.SubscriptionID, counts map[feature.Key]int64) error {
	set := bson.M{"updated_at": now()}
	for key, n := range counts {
		set[balanceField(key)] = n
	}

	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		SetUpdate(bson.M{"$set": set}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: set counts: %w", err)
	}
	if res.MatchedCount() == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) subscriptionExists(ctx context.Context, subID id.SubscriptionID) error {
	n, err := s.mdb.Collection(colSubscriptions).CountDocuments(ctx, bson.M{"_id": subID.String()})
	if err != nil {
		return fmt.Errorf("quota/mongo: count subscription: %w", err)
	}
	if n == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quota.ErrAccountExists
		}
		return fmt.Errorf("quota/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) FindMaster(ctx context.Context, slaveID string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"is_master": true, "slave_users": slaveID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("quota/mongo: find master: %w", err)
	}
	return fromAccountModel(&m), nil
}

// AddSlave relies on the unique index over slave_users to keep a slave
// under at most one master.
func (s *Store) AddSlave(ctx context.Context, masterID, slaveID string) error {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": masterID, "slave_users": bson.M{"$ne": slaveID}}).
		SetUpdate(bson.M{
			"$push": bson.M{"slave_users": slaveID},
			"$set":  bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quota.ErrSlaveAttached
		}
		return fmt.Errorf("quota/mongo: add slave: %w", err)
	}
	if res.MatchedCount() > 0 {
		return nil
	}

	if _, err := s.GetAccount(ctx, masterID); err != nil {
		return err
	}
	return quota.ErrSlaveAttached
}

// ==================== View Charge Store ====================

func (s *Store) FindViewCharges(ctx context.Context, employerIDs, candidateIDs []string, at time.Time) ([]*viewcharge.ViewCharge, error) {
	if len(employerIDs) == 0 || len(candidateIDs) == 0 {
		return []*viewcharge.ViewCharge{}, nil
	}

	var models []viewChargeModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"employer_id":  bson.M{"$in": employerIDs},
			"candidate_id": bson.M{"$in": candidateIDs},
			"expiration":   bson.M{"$gt": at.UTC()},
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota/mongo: find view charges: %w", err)
	}

	result := make([]*viewcharge.ViewCharge, len(models))
	for i := range models {
		c, err := fromViewChargeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) InsertViewCharges(ctx context.Context, charges []*viewcharge.ViewCharge) error {
	for _, c := range charges {
		m := toViewChargeModel(c)
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("quota/mongo: insert view charge: %w", err)
		}
	}
	return nil
}

func (s *Store) PurgeExpiredViewCharges(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*viewChargeModel)(nil)).
		Filter(bson.M{"expiration": bson.M{"$lte": at.UTC()}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("quota/mongo: purge view charges: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Promo Store ====================

func (s *Store) CreatePromo(ctx context.Context, p *promo.Promo) error {
	m := toPromoModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quota.ErrPromoExists
		}
		return fmt.Errorf("quota/mongo: create promo: %w", err)
	}
	return nil
}

func (s *Store) GetPromo(ctx context.Context, promoID id.PromoID) (*promo.Promo, error) {
	var m promoModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": promoID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrPromoNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get promo: %w", err)
	}
	return fromPromoModel(&m)
}

func (s *Store) GetPromoByCode(ctx context.Context, code, country string) (*promo.Promo, error) {
	var m promoModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"code":    promo.NormalizeCode(code),
			"country": pricing.NormalizeCountry(country),
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, quota.ErrPromoNotFound
		}
		return nil, fmt.Errorf("quota/mongo: get promo by code: %w", err)
	}
	return fromPromoModel(&m)
}

func (s *Store) ListPromos(ctx context.Context, opts promo.ListOpts) ([]*promo.Promo, error) {
	var models []promoModel

	filter := bson.M{}
	if c := pricing.NormalizeCountry(opts.Country); c != "" {
		filter["country"] = c
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("quota/mongo: list promos: %w", err)
	}

	result := make([]*promo.Promo, len(models))
	for i := range models {
		p, err := fromPromoModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePromo(ctx context.Context, p *promo.Promo) error {
	m := toPromoModel(p)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quota.ErrPromoExists
		}
		return fmt.Errorf("quota/mongo: update promo: %w", err)
	}
	if res.MatchedCount() == 0 {
		return quota.ErrPromoNotFound
	}
	return nil
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	m := toAuditModel(e)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("quota/mongo: append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, opts audit.ListOpts) ([]*audit.Entry, error) {
	var models []auditModel

	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.TargetID != "" {
		filter["target_id"] = opts.TargetID
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("quota/mongo: list audit: %w", err)
	}

	result := make([]*audit.Entry, len(models))
	for i := range models {
		e, err := fromAuditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// balanceField returns the dotted path of a feature's count.
func balanceField(key feature.Key) string {
	return "balances." + string(key) + ".count"
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all quota collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTiers: {
			{
				Keys:    bson.D{{Key: "country", Value: 1}, {Key: "feature", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTaxRates: {
			{
				Keys:    bson.D{{Key: "country", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colPackages: {
			{Keys: bson.D{{Key: "country", Value: 1}, {Key: "is_active", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "package_id", Value: 1}}},
		},
		colAccounts: {
			{
				// Masters with no slaves stay out of the index.
				Keys: bson.D{{Key: "slave_users", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"slave_users": bson.M{"$type": "string"}}),
			},
		},
		colViewCharges: {
			{Keys: bson.D{{Key: "employer_id", Value: 1}, {Key: "candidate_id", Value: 1}, {Key: "expiration", Value: 1}}},
			{Keys: bson.D{{Key: "expiration", Value: 1}}},
		},
		colPromos: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}, {Key: "country", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "country", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "target_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
