package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the quota store.
var Migrations = migrate.NewGroup("quota")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_quota_pricing",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_tiers (
    id          TEXT PRIMARY KEY,
    country     TEXT NOT NULL,
    feature     TEXT NOT NULL,
    base_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
    count       BIGINT NOT NULL CHECK (count > 0),
    currency    TEXT NOT NULL DEFAULT '',
    heading     TEXT NOT NULL DEFAULT '',
    label       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_quota_tiers_country_feature ON quota_tiers (country, feature);

CREATE TABLE IF NOT EXISTS quota_tax_rates (
    id          TEXT PRIMARY KEY,
    country     TEXT NOT NULL,
    tax_type    TEXT NOT NULL DEFAULT '',
    percentage  DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_quota_tax_rates_country ON quota_tax_rates (country);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS quota_tax_rates;
DROP TABLE IF EXISTS quota_tiers;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_quota_packages",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_packages (
    id                              TEXT PRIMARY KEY,
    name                            TEXT NOT NULL DEFAULT '',
    description                     TEXT NOT NULL DEFAULT '',
    country                         TEXT NOT NULL,
    currency                        TEXT NOT NULL DEFAULT '',
    color                           TEXT NOT NULL DEFAULT '',
    features                        JSONB NOT NULL DEFAULT '[]',
    package_discount                DOUBLE PRECISION NOT NULL DEFAULT 0,
    monthly_discount                DOUBLE PRECISION NOT NULL DEFAULT 0,
    yearly_discount                 DOUBLE PRECISION NOT NULL DEFAULT 0,
    tax_type                        TEXT NOT NULL DEFAULT '',
    tax_amount                      DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_monthly_before_tax        DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_yearly_before_tax         DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_monthly                   DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_yearly                    DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_monthly_original          DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_yearly_original           DOUBLE PRECISION NOT NULL DEFAULT 0,
    monthly_discount_amount         DOUBLE PRECISION NOT NULL DEFAULT 0,
    yearly_discount_amount          DOUBLE PRECISION NOT NULL DEFAULT 0,
    package_discount_monthly_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
    package_discount_yearly_amount  DOUBLE PRECISION NOT NULL DEFAULT 0,
    plan_id_monthly                 TEXT NOT NULL DEFAULT '',
    plan_id_annually                TEXT NOT NULL DEFAULT '',
    is_active                       BOOLEAN NOT NULL DEFAULT TRUE,
    is_free                         BOOLEAN NOT NULL DEFAULT FALSE,
    is_custom                       BOOLEAN NOT NULL DEFAULT FALSE,
    created_by                      TEXT NOT NULL DEFAULT '',
    created_at                      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quota_packages_country ON quota_packages (country, is_active, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS quota_packages`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_quota_subscriptions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_subscriptions (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    is_free     BOOLEAN NOT NULL DEFAULT FALSE,
    package_id  TEXT NOT NULL DEFAULT '',
    period      TEXT NOT NULL DEFAULT 'monthly',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quota_subscriptions_user ON quota_subscriptions (user_id, is_active, created_at DESC);

CREATE TABLE IF NOT EXISTS quota_balances (
    subscription_id TEXT NOT NULL REFERENCES quota_subscriptions (id) ON DELETE CASCADE,
    feature         TEXT NOT NULL,
    is_included     BOOLEAN NOT NULL DEFAULT FALSE,
    count           BIGINT NOT NULL DEFAULT 0 CHECK (count >= 0),
    expiry_days     INT NOT NULL DEFAULT 0,
    PRIMARY KEY (subscription_id, feature)
);

CREATE TABLE IF NOT EXISTS quota_subscription_extras (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES quota_subscriptions (id) ON DELETE CASCADE,
    deltas          JSONB NOT NULL DEFAULT '{}',
    created_by      TEXT NOT NULL DEFAULT '',
    payment_id      TEXT NOT NULL DEFAULT '',
    note            TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quota_extras_subscription ON quota_subscription_extras (subscription_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS quota_subscription_extras;
DROP TABLE IF EXISTS quota_balances;
DROP TABLE IF EXISTS quota_subscriptions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_quota_accounts",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_accounts (
    id          TEXT PRIMARY KEY,
    email       TEXT NOT NULL DEFAULT '',
    is_master   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS quota_account_slaves (
    slave_id    TEXT PRIMARY KEY,
    master_id   TEXT NOT NULL REFERENCES quota_accounts (id) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quota_account_slaves_master ON quota_account_slaves (master_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS quota_account_slaves;
DROP TABLE IF EXISTS quota_accounts;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_quota_view_charges",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_view_charges (
    id            TEXT PRIMARY KEY,
    group_id      TEXT NOT NULL,
    employer_id   TEXT NOT NULL,
    candidate_id  TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expiration    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quota_view_charges_lookup ON quota_view_charges (employer_id, candidate_id, expiration);
CREATE INDEX IF NOT EXISTS idx_quota_view_charges_expiration ON quota_view_charges (expiration);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS quota_view_charges`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_quota_promos",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_promos (
    id           TEXT PRIMARY KEY,
    code         TEXT NOT NULL,
    country      TEXT NOT NULL,
    type         TEXT NOT NULL,
    amount       DOUBLE PRECISION NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    expiration   TIMESTAMPTZ,
    user_ids     JSONB NOT NULL DEFAULT '[]',
    package_ids  JSONB NOT NULL DEFAULT '[]',
    created_by   TEXT NOT NULL DEFAULT '',
    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_quota_promos_code_country ON quota_promos (code, country);
CREATE INDEX IF NOT EXISTS idx_quota_promos_country ON quota_promos (country, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS quota_promos`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_quota_audit",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS quota_audit (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    target_id   TEXT NOT NULL,
    updated_by  TEXT NOT NULL DEFAULT '',
    data        JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quota_audit_target ON quota_audit (type, target_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS quota_audit`)
				return err
			},
		},
	)
}
