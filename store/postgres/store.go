package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("quota/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("quota/postgres: migration failed: %w", err)
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

	_, err := s.pg.NewInsert(m).
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
	err := s.pg.NewSelect(m).
		Where("country = $1", pricing.NormalizeCountry(country)).
		Where("feature = $2", string(key)).
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
	err := s.pg.NewSelect(&models).
		Where("country = $1", pricing.NormalizeCountry(country)).
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

	_, err := s.pg.NewInsert(m).
		OnConflict("(country) DO UPDATE").
		Set("tax_type = EXCLUDED.tax_type").
		Set("percentage = EXCLUDED.percentage").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetTaxRate(ctx context.Context, country string) (*pricing.TaxRate, error) {
	m := new(taxRateModel)
	err := s.pg.NewSelect(m).
		Where("country = $1", pricing.NormalizeCountry(country)).
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return quota.ErrConflict
	}
	return err
}

func (s *Store) GetPackage(ctx context.Context, pkgID id.PackageID) (*bundle.Package, error) {
	m := new(packageModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", pkgID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if c := pricing.NormalizeCountry(opts.Country); c != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("country = $%d", argIdx), c)
	}
	if opts.ActiveOnly {
		argIdx++
		q = q.Where(fmt.Sprintf("is_active = $%d", argIdx), true)
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
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
	res, err := s.pg.NewUpdate((*packageModel)(nil)).
		Set("is_active = $1", false).
		Set("updated_at = $2", now()).
		Where("id = $3", pkgID.String()).
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
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return quota.ErrConflict
		}
		return err
	}

	balances := toBalanceModels(sub)
	if len(balances) == 0 {
		return nil
	}
	_, err := s.pg.NewInsert(&balances).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", subID.String()).
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
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID).
		Where("is_active = $2", true).
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
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("is_active = $1", false).
		Set("updated_at = $2", now()).
		Where("id = $3", subID.String()).
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
	res, err := s.pg.NewUpdate((*balanceModel)(nil)).
		Set("count = count - $1", amount).
		Where("subscription_id = $2", subID.String()).
		Where("feature = $3", string(key)).
		Where("count >= $4", amount).
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

// GrantExtras bumps every balance and logs the top-up in one statement.
func (s *Store) GrantExtras(ctx context.Context, subID id.SubscriptionID, extra subscription.Extra) error {
	deltas, err := json.Marshal(deltaMap(extra.Deltas))
	if err != nil {
		return err
	}

	var matched int64
	err = s.pg.NewRaw(`
		WITH sub AS (
			SELECT id FROM quota_subscriptions WHERE id = $1
		), deltas AS (
			SELECT key AS feature, value::bigint AS n FROM jsonb_each_text($2::jsonb)
		), bumped AS (
			INSERT INTO quota_balances (subscription_id, feature, count)
			SELECT sub.id, deltas.feature, deltas.n FROM sub, deltas
			ON CONFLICT (subscription_id, feature) DO UPDATE
			SET count = quota_balances.count + EXCLUDED.count
			RETURNING 1
		), logged AS (
			INSERT INTO quota_subscription_extras (id, subscription_id, deltas, created_by, payment_id, note, created_at)
			SELECT $3, sub.id, $2::jsonb, $4, $5, $6, $7 FROM sub
			RETURNING 1
		), touched AS (
			UPDATE quota_subscriptions SET updated_at = $7 WHERE id IN (SELECT id FROM sub)
			RETURNING 1
		)
		SELECT COUNT(*) FROM sub
	`, subID.String(), string(deltas), id.NewExtraID().String(),
		extra.CreatedBy, extra.PaymentID, extra.Note, extra.CreatedAt.UTC()).Scan(ctx, &matched)
	if err != nil {
		return err
	}
	if matched == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) SetCounts(ctx context.Context, subID id.SubscriptionID, counts map[feature.Key]int64) error {
	payload, err := json.Marshal(deltaMap(counts))
	if err != nil {
		return err
	}

	var matched int64
	err = s.pg.NewRaw(`
		WITH sub AS (
			SELECT id FROM quota_subscriptions WHERE id = $1
		), counts AS (
			SELECT key AS feature, value::bigint AS n FROM jsonb_each_text($2::jsonb)
		), written AS (
			INSERT INTO quota_balances (subscription_id, feature, count)
			SELECT sub.id, counts.feature, counts.n FROM sub, counts
			ON CONFLICT (subscription_id, feature) DO UPDATE
			SET count = EXCLUDED.count
			RETURNING 1
		), touched AS (
			UPDATE quota_subscriptions SET updated_at = $3 WHERE id IN (SELECT id FROM sub)
			RETURNING 1
		)
		SELECT COUNT(*) FROM sub
	`, subID.String(), string(payload), now()).Scan(ctx, &matched)
	if err != nil {
		return err
	}
	if matched == 0 {
		return quota.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) loadSubscription(ctx context.Context, m *subscriptionModel) (*subscription.Subscription, error) {
	var balances []balanceModel
	err := s.pg.NewSelect(&balances).
		Where("subscription_id = $1", m.ID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var extras []extraModel
	err = s.pg.NewSelect(&extras).
		Where("subscription_id = $1", m.ID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m, balances, extras)
}

func (s *Store) subscriptionExists(ctx context.Context, subID id.SubscriptionID) error {
	var n int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM quota_subscriptions WHERE id = $1`, subID.String()).Scan(ctx, &n)
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
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
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
	err := s.pg.NewSelect(m).
		Where("id = $1", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrIdentityNotFound
		}
		return nil, err
	}

	var slaves []slaveModel
	err = s.pg.NewSelect(&slaves).
		Where("master_id = $1", accountID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromAccountModel(m, slaves), nil
}

func (s *Store) FindMaster(ctx context.Context, slaveID string) (*account.Account, error) {
	link := new(slaveModel)
	err := s.pg.NewSelect(link).
		Where("slave_id = $1", slaveID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, quota.ErrIdentityNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, link.MasterID)
}

func (s *Store) AddSlave(ctx context.Context, masterID, slaveID string) error {
	m := &slaveModel{SlaveID: slaveID, MasterID: masterID, CreatedAt: now()}
	_, err := s.pg.NewInsert(m).Exec(ctx)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return quota.ErrSlaveAttached
	case isForeignKeyViolation(err):
		return quota.ErrIdentityNotFound
	default:
		return err
	}
}

// ==================== View Charge Store ====================

func (s *Store) FindViewCharges(ctx context.Context, employerIDs, candidateIDs []string, at time.Time) ([]*viewcharge.ViewCharge, error) {
	if len(employerIDs) == 0 || len(candidateIDs) == 0 {
		return []*viewcharge.ViewCharge{}, nil
	}

	var models []viewChargeModel
	err := s.pg.NewSelect(&models).
		Where("employer_id = ANY($1)", employerIDs).
		Where("candidate_id = ANY($2)", candidateIDs).
		Where("expiration > $3", at.UTC()).
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
	_, err := s.pg.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) PurgeExpiredViewCharges(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*viewChargeModel)(nil)).
		Where("expiration <= $1", at.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Promo Store ====================

func (s *Store) CreatePromo(ctx context.Context, p *promo.Promo) error {
	m := toPromoModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return quota.ErrPromoExists
	}
	return err
}

func (s *Store) GetPromo(ctx context.Context, promoID id.PromoID) (*promo.Promo, error) {
	m := new(promoModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", promoID.String()).
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
	err := s.pg.NewSelect(m).
		Where("code = $1", promo.NormalizeCode(code)).
		Where("country = $2", pricing.NormalizeCountry(country)).
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
	q := s.pg.NewSelect(&models)

	if c := pricing.NormalizeCountry(opts.Country); c != "" {
		q = q.Where("country = $1", c)
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAudit(ctx context.Context, opts audit.ListOpts) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if opts.TargetID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("target_id = $%d", argIdx), opts.TargetID)
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

func isUniqueViolation(err error) bool {
	return hasSQLState(err, "23505")
}

func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, "23503")
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
