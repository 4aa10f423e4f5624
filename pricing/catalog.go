package pricing

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Source is the read side of Store used by Catalog.
type Source interface {
	ListTiers(ctx context.Context, country string) ([]*Tier, error)
	GetTaxRate(ctx context.Context, country string) (*TaxRate, error)
}

// Catalog serves per-country tier sets and tax rates from an expiring LRU
// in front of a Source. Entries are dropped on Invalidate or after ttl.
type Catalog struct {
	src   Source
	tiers *lru.LRU[string, TierSet]
	taxes *lru.LRU[string, *TaxRate]
}

// NewCatalog creates a catalog caching up to size countries for ttl.
// A size <= 0 defaults to 64.
func NewCatalog(src Source, size int, ttl time.Duration) *Catalog {
	if size <= 0 {
		size = 64
	}
	return &Catalog{
		src:   src,
		tiers: lru.NewLRU[string, TierSet](size, nil, ttl),
		taxes: lru.NewLRU[string, *TaxRate](size, nil, ttl),
	}
}

// Tiers returns the tier set for country. An empty set is not cached.
func (c *Catalog) Tiers(ctx context.Context, country string) (TierSet, error) {
	country = NormalizeCountry(country)
	if set, ok := c.tiers.Get(country); ok {
		return set, nil
	}

	tiers, err := c.src.ListTiers(ctx, country)
	if err != nil {
		return nil, err
	}
	set := NewTierSet(tiers)
	if len(set) > 0 {
		c.tiers.Add(country, set)
	}
	return set, nil
}

// Tax returns the tax rate for country. A country without a rate is taxed
// at zero and the zero rate is cached like any other.
func (c *Catalog) Tax(ctx context.Context, country string) (*TaxRate, error) {
	country = NormalizeCountry(country)
	if r, ok := c.taxes.Get(country); ok {
		return r, nil
	}

	r, err := c.src.GetTaxRate(ctx, country)
	switch {
	case errors.Is(err, ErrTaxRateNotFound):
		r = &TaxRate{Country: country}
	case err != nil:
		return nil, err
	}
	c.taxes.Add(country, r)
	return r, nil
}

// Currency returns the currency of country's reference rates.
func (c *Catalog) Currency(ctx context.Context, country string) (string, error) {
	set, err := c.Tiers(ctx, country)
	if err != nil {
		return "", err
	}
	cur := set.Currency()
	if cur == "" {
		return "", ErrTierNotFound
	}
	return cur, nil
}

// Invalidate drops cached entries for country.
func (c *Catalog) Invalidate(country string) {
	country = NormalizeCountry(country)
	c.tiers.Remove(country)
	c.taxes.Remove(country)
}
