package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

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

// compile-time interface check
var _ quotastore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// SQLite has no data-modifying CTEs, so GrantExtras and SetCounts run one
// statement per feature. Each statement is atomic on its own.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("quota/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("quota/sqlite: migration failed: %w", err)
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
	stamp(&m.CreatedAt, &m.UpdatedAt)

	_, err := s.sdb.NewInsert(m).
		OnConflict("(country, feature) DO UPDATE").
		Set("base_price = EXCLUDED.base_price").
		Set("count = EXCLUDED.count").
		Set("currency = EXCLUDED.currency").
		Set("heading = EXCLUDED.heading").
		Set("label = EXCLUDED.label").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetTier(ctx context.Context, country string, key feature.Key) (*pricing.Tier, error) {
	m := new(tierModel)
	err := s.sdb.NewSelect(m).
		Where("country = ?", pricing.NormalizeCountry(country)).
		Where("feature = ?", string(key)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pricing.ErrTierNotFound
		}
		return nil, err
	}
	return fromTierModel(m)
}

func (s *Store) ListTiers(ctx context.Context, country string) ([]*pricing.Tier, error) {
	var models []tierModel
	err := s.sdb.NewSelect(&models).
		Where("country = ?", pricing.NormalizeCountry(country)).
		OrderExpr("feature ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	stamp(&m.CreatedAt, &m.UpdatedAt)

	_, err := s.sdb.NewInsert(m).
		OnConflict("(country) DO UPDATE").
		Set("tax_type = EXCLUDED.tax_type").
		Set("percentage = EXCLUDED.percentage").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetTaxRate(ctx context.Context, country string) (*pricing.TaxRate, error) {
	m := new(taxRateModel)
	err := s.sdb.NewSelect(m).
		Where("country = ?", pricing.NormalizeCountry(country)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pricing.ErrTaxRateNotFound
		}
		return nil, err
	}
	return fromTaxRateModel(m)
}

// ==================== Package Store ====================

func (s *Store) CreatePackage(ctx context.Context, p *bundle.Package) error {
	m := toPackageModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return quota.ErrConflict
	}
	return err
}

func (s *Store) GetPackage(ctx context.Context, pkgID id.PackageID) (*bundle.Package, error) {
	m := new(packageModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", pkgID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrPackageNotFound
		}
		return nil, err
	}
	return fromPackageModel(m)
}

func (s *Store) ListPackages(ctx context.Context, opts bundle.ListOpts) ([]*bundle.Package, error) {
	var models []packageModel
	q := s.sdb.NewSelect(&models)

	if c := pricing.NormalizeCountry(opts.Country); c != "" {
		q = q.Where("country = ?", c)
	}
	if opts.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrPackageNotFound
	}
	return nil
}

func (s *Store) DeactivatePackage(ctx context.Context, pkgID id.PackageID) error {
	res, err := s.sdb.NewUpdate((*packageModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", now()).
		Where("id = ?", pkgID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrPackageNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return quota.ErrConflict
		}
		return err
	}

	balances := toBalanceModels(sub)
	if len(balances) == 0 {
		return nil
	}
	_, err := s.sdb.NewInsert(&balances).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s.loadSubscription(ctx, m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("is_active = ?", true).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s.loadSubscription(ctx, m)
}

func (s *Store) DeactivateSubscription(ctx context.Context, subID id.SubscriptionID) error {
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", now()).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

// ConsumeIfSufficient debits in a single guarded UPDATE, so concurrent
// callers can never drive a count below zero.
func (s *Store) ConsumeIfSufficient(ctx context.Context, subID id.SubscriptionID, key feature.Key, amount int64) (bool, error) {
	res, err := s.sdb.NewUpdate((*balanceModel)(nil)).
		Set("count = count - ?", amount).
		Where("subscription_id = ?", subID.String()).
		Where("feature = ?", string(key)).
		Where("count >= ?", amount).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}
	if err := s.subscriptionExists(ctx, subID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) GrantExtras(ctx context.Context, subID id.SubscriptionID, extra subscription.Extra) error {
	if err := s.subscriptionExists(ctx, subID); err != nil {
		return err
	}

	for _, key := range feature.Keys() {
		n, ok := extra.Deltas[key]
		if !ok {
			continue
		}
		m := &balanceModel{SubscriptionID: subID.String(), Feature: string(key), Count: n}
		_, err := s.sdb.NewInsert(m).
			OnConflict("(subscription_id, feature) DO UPDATE").
			Set("count = quota_balances.count + EXCLUDED.count").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	deltas, err := json.Marshal(deltaMap(extra.Deltas))
	if err != nil {
		return err
	}
	e := &extraModel{
		ID:             id.NewExtraID().String(),
		SubscriptionID: subID.String(),
		Deltas:         string(deltas),
		CreatedBy:      extra.CreatedBy,
		PaymentID:      extra.PaymentID,
		Note:           extra.Note,
		CreatedAt:      extra.CreatedAt.UTC(),
	}
	if _, err := s.sdb.NewInsert(e).Exec(ctx); err != nil {
		return err
	}
	return s.touchSubscription(ctx, subID)
}

func (s *Store) SetCounts(ctx context.Context, subID id.SubscriptionID, counts map[feature.Key]int64) error {
	if err := s.subscriptionExists(ctx, subID); err != nil {
		return err
	}

	for _, key := range feature.Keys() {
		n, ok := counts[key]
		if !ok {
			continue
		}
		m := &balanceModel{SubscriptionID: subID.String(), Feature: string(key), Count: n}
		_, err := s.sdb.NewInsert(m).
			OnConflict("(subscription_id, feature) DO UPDATE").
			Set("count = EXCLUDED.count").
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return s.touchSubscription(ctx, subID)
}

func (s *Store) touchSubscription(ctx context.Context, subID id.SubscriptionID) error {
	_, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("updated_at = ?", now()).
		Where("id = ?", subID.String()).
		Exec(ctx)
	return err
}

func (s *Store) loadSubscription(ctx context.Context, m *subscriptionModel) (*subscription.Subscription, error) {
	var balances []balanceModel
	err := s.sdb.NewSelect(&balances).
		Where("subscription_id = ?", m.ID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var extras []extraModel
	err = s.sdb.NewSelect(&extras).
		Where("subscription_id = ?", m.ID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m, balances, extras)
}

func (s *Store) subscriptionExists(ctx context.Context, subID id.SubscriptionID) error {
	var n int64
	err := s.sdb.NewRaw(`SELECT COUNT(*) FROM quota_subscriptions WHERE id = ?`, subID.String()).Scan(ctx, &n)
	if err != nil {
		return err
	}
	if n == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return quota.ErrAccountExists
		}
		return err
	}

	for _, slaveID := range a.SlaveUsers {
		if err := s.AddSlave(ctx, a.ID, slaveID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrIdentityNotFound
		}
		return nil, err
	}

	var slaves []slaveModel
	err = s.sdb.NewSelect(&slaves).
		Where("master_id = ?", accountID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromAccountModel(m, slaves), nil
}

func (s *Store) FindMaster(ctx context.Context, slaveID string) (*account.Account, error) {
	link := new(slaveModel)
	err := s.sdb.NewSelect(link).
		Where("slave_id = ?", slaveID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrIdentityNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, link.MasterID)
}

// AddSlave relies on slave_id being the primary key of the link table to
// keep a slave under at most one master.
func (s *Store) AddSlave(ctx context.Context, masterID, slaveID string) error {
	var n int64
	err := s.sdb.NewRaw(`SELECT COUNT(*) FROM quota_accounts WHERE id = ?`, masterID).Scan(ctx, &n)
	if err != nil {
		return err
	}
	if n == 0 {
		return quota.ErrIdentityNotFound
	}

	m := &slaveModel{SlaveID: slaveID, MasterID: masterID, CreatedAt: now()}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return quota.ErrSlaveAttached
		}
		return err
	}
	return nil
}

// ==================== View Charge Store ====================

func (s *Store) FindViewCharges(ctx context.Context, employerIDs, candidateIDs []string, at time.Time) ([]*viewcharge.ViewCharge, error) {
	if len(employerIDs) == 0 || len(candidateIDs) == 0 {
		return []*viewcharge.ViewCharge{}, nil
	}

	var models []viewChargeModel
	err := s.sdb.NewSelect(&models).
		Where("employer_id IN ("+placeholders(len(employerIDs))+")", anySlice(employerIDs)...).
		Where("candidate_id IN ("+placeholders(len(candidateIDs))+")", anySlice(candidateIDs)...).
		Where("expiration > ?", at.UTC()).
		Scan(ctx)
	if err != nil {
		return nil, err
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
	if len(charges) == 0 {
		return nil
	}
	models := make([]viewChargeModel, len(charges))
	for i, c := range charges {
		models[i] = *toViewChargeModel(c)
	}
	_, err := s.sdb.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) PurgeExpiredViewCharges(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*viewChargeModel)(nil)).
		Where("expiration <= ?", at.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Promo Store ====================

func (s *Store) CreatePromo(ctx context.Context, p *promo.Promo) error {
	m := toPromoModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return quota.ErrPromoExists
	}
	return err
}

func (s *Store) GetPromo(ctx context.Context, promoID id.PromoID) (*promo.Promo, error) {
	m := new(promoModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", promoID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrPromoNotFound
		}
		return nil, err
	}
	return fromPromoModel(m)
}

func (s *Store) GetPromoByCode(ctx context.Context, code, country string) (*promo.Promo, error) {
	m := new(promoModel)
	err := s.sdb.NewSelect(m).
		Where("code = ?", promo.NormalizeCode(code)).
		Where("country = ?", pricing.NormalizeCountry(country)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrPromoNotFound
		}
		return nil, err
	}
	return fromPromoModel(m)
}

func (s *Store) ListPromos(ctx context.Context, opts promo.ListOpts) ([]*promo.Promo, error) {
	var models []promoModel
	q := s.sdb.NewSelect(&models)

	if c := pricing.NormalizeCountry(opts.Country); c != "" {
		q = q.Where("country = ?", c)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return quota.ErrPromoExists
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrPromoNotFound
	}
	return nil
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	m := toAuditModel(e)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAudit(ctx context.Context, opts audit.ListOpts) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.sdb.NewSelect(&models)

	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.TargetID != "" {
		q = q.Where("target_id = ?", opts.TargetID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// stamp fills zero timestamps with the current time.
func stamp(created, updated *time.Time) {
	t := now()
	if created.IsZero() {
		*created = t
	}
	if updated.IsZero() {
		*updated = t
	}
}

func deltaMap(m map[feature.Key]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
