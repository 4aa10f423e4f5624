// Package pricing holds per-country reference rates and tax rates, and the
// pure functions that turn them into prices.
package pricing

import (
	"errors"
	"strings"

	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/types"
)

var (
	ErrTierNotFound    = errors.New("quota: pricing tier not found")
	ErrTaxRateNotFound = errors.New("quota: tax rate not found")
	// ErrZeroTierCount means a tier's unit count is zero. The tier is broken
	// reference data; dividing by it would produce Inf prices.
	ErrZeroTierCount = errors.New("quota: pricing tier has zero count")
)

// Tier is the reference rate for one feature in one country: BasePrice buys
// Count units. Tiers are edited by admins and only read while pricing.
type Tier struct {
	types.Entity
	ID        id.TierID   `json:"id"`
	Country   string      `json:"country"`
	Feature   feature.Key `json:"feature"`
	BasePrice float64     `json:"base_price"`
	Count     int64       `json:"count"`
	Currency  string      `json:"currency"`
	Heading   string      `json:"heading,omitempty"`
	Label     string      `json:"label,omitempty"`
}

// UnitPrice returns BasePrice/Count.
func (t *Tier) UnitPrice() (float64, error) {
	if t.Count == 0 {
		return 0, ErrZeroTierCount
	}
	return t.BasePrice / float64(t.Count), nil
}

// TaxRate is the tax applied to packages sold in a country.
type TaxRate struct {
	types.Entity
	ID         id.TaxID `json:"id"`
	Country    string   `json:"country"`
	TaxType    string   `json:"tax_type"`
	Percentage float64  `json:"percentage"`
}

// TierSet is the tiers of one country keyed by feature.
type TierSet map[feature.Key]*Tier

// NewTierSet indexes tiers by feature. Later entries win on duplicates.
func NewTierSet(tiers []*Tier) TierSet {
	set := make(TierSet, len(tiers))
	for _, t := range tiers {
		set[t.Feature] = t
	}
	return set
}

// Get returns the tier for key.
func (s TierSet) Get(key feature.Key) (*Tier, bool) {
	t, ok := s[key]
	return t, ok
}

// Currency returns the currency of the set. All tiers of a country share
// one currency; the first non-empty one is returned.
func (s TierSet) Currency() string {
	for _, key := range feature.Keys() {
		if t, ok := s[key]; ok && t.Currency != "" {
			return strings.ToLower(t.Currency)
		}
	}
	for _, t := range s {
		if t.Currency != "" {
			return strings.ToLower(t.Currency)
		}
	}
	return ""
}

// NormalizeCountry upper-cases and trims an ISO country code.
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
