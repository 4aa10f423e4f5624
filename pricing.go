package quota

import (
	"context"

	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/types"
)

// ──────────────────────────────────────────────────
// Reference Rates
// ──────────────────────────────────────────────────

// SetTier creates or replaces the reference rate for t's country and
// feature and drops that country from the catalog cache.
func (e *Engine) SetTier(ctx context.Context, t *pricing.Tier) error {
	if !feature.Valid(t.Feature) {
		return ValidationError{Field: "feature", Message: "unknown feature " + string(t.Feature)}
	}
	if t.Count <= 0 {
		return ErrZeroTierCount
	}
	if t.BasePrice < 0 {
		return ValidationError{Field: "base_price", Message: "must be at least 0"}
	}

	t.Country = pricing.NormalizeCountry(t.Country)
	if t.ID.IsNil() {
		t.ID = id.NewTierID()
		t.Entity = types.NewEntityAt(e.clock())
	} else {
		t.Touch(e.clock())
	}

	if err := e.store.UpsertTier(ctx, t); err != nil {
		return e.storeFault(ctx, "upsert tier", err)
	}
	e.catalog.Invalidate(t.Country)
	return nil
}

// ListTiers returns the reference rates of country.
func (e *Engine) ListTiers(ctx context.Context, country string) ([]*pricing.Tier, error) {
	return e.store.ListTiers(ctx, pricing.NormalizeCountry(country))
}

// SetTaxRate creates or replaces the tax rate of r's country.
func (e *Engine) SetTaxRate(ctx context.Context, r *pricing.TaxRate) error {
	if r.Percentage < 0 || r.Percentage > 100 {
		return ValidationError{Field: "percentage", Message: "must be between 0 and 100"}
	}

	r.Country = pricing.NormalizeCountry(r.Country)
	if r.ID.IsNil() {
		r.ID = id.NewTaxID()
		r.Entity = types.NewEntityAt(e.clock())
	} else {
		r.Touch(e.clock())
	}

	if err := e.store.UpsertTaxRate(ctx, r); err != nil {
		return e.storeFault(ctx, "upsert tax rate", err)
	}
	e.catalog.Invalidate(r.Country)
	return nil
}
