package pricing

import (
	"context"

	"github.com/xraph/quota/feature"
)

// Store persists reference rates and tax rates.
type Store interface {
	UpsertTier(ctx context.Context, t *Tier) error
	GetTier(ctx context.Context, country string, key feature.Key) (*Tier, error)
	ListTiers(ctx context.Context, country string) ([]*Tier, error)
	UpsertTaxRate(ctx context.Context, r *TaxRate) error
	GetTaxRate(ctx context.Context, country string) (*TaxRate, error)
}
