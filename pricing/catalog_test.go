package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/quota/feature"
)

type countingSource struct {
	tiers     map[string][]*Tier
	taxes     map[string]*TaxRate
	tierCalls int
	taxCalls  int
}

func (s *countingSource) ListTiers(_ context.Context, country string) ([]*Tier, error) {
	s.tierCalls++
	return s.tiers[country], nil
}

func (s *countingSource) GetTaxRate(_ context.Context, country string) (*TaxRate, error) {
	s.taxCalls++
	if r, ok := s.taxes[country]; ok {
		return r, nil
	}
	return nil, ErrTaxRateNotFound
}

func newSource() *countingSource {
	return &countingSource{
		tiers: map[string][]*Tier{
			"IN": {
				{Country: "IN", Feature: feature.Jobs, BasePrice: 100, Count: 50, Currency: "INR"},
				{Country: "IN", Feature: feature.Views, BasePrice: 10, Count: 10, Currency: "INR"},
			},
		},
		taxes: map[string]*TaxRate{
			"IN": {Country: "IN", TaxType: "GST", Percentage: 18},
		},
	}
}

func TestCatalogCachesTiers(t *testing.T) {
	src := newSource()
	c := NewCatalog(src, 8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		set, err := c.Tiers(ctx, "in")
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := set.Get(feature.Jobs); !ok {
			t.Fatal("expected jobs tier")
		}
	}
	if src.tierCalls != 1 {
		t.Errorf("expected one source call, got %d", src.tierCalls)
	}

	c.Invalidate("IN")
	if _, err := c.Tiers(ctx, "IN"); err != nil {
		t.Fatal(err)
	}
	if src.tierCalls != 2 {
		t.Errorf("expected reload after invalidate, got %d calls", src.tierCalls)
	}
}

func TestCatalogEmptyCountryNotCached(t *testing.T) {
	src := newSource()
	c := NewCatalog(src, 8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		set, err := c.Tiers(ctx, "FR")
		if err != nil {
			t.Fatal(err)
		}
		if len(set) != 0 {
			t.Fatalf("expected empty set, got %d", len(set))
		}
	}
	if src.tierCalls != 2 {
		t.Errorf("expected empty sets to skip the cache, got %d calls", src.tierCalls)
	}
}

func TestCatalogTax(t *testing.T) {
	src := newSource()
	c := NewCatalog(src, 8, time.Minute)
	ctx := context.Background()

	r, err := c.Tax(ctx, "IN")
	if err != nil {
		t.Fatal(err)
	}
	if r.Percentage != 18 || r.TaxType != "GST" {
		t.Errorf("unexpected rate %+v", r)
	}

	zero, err := c.Tax(ctx, "AE")
	if err != nil {
		t.Fatalf("missing rate should be zero, got %v", err)
	}
	if zero.Percentage != 0 {
		t.Errorf("expected zero tax, got %v", zero.Percentage)
	}
	if _, err := c.Tax(ctx, "AE"); err != nil {
		t.Fatal(err)
	}
	if src.taxCalls != 2 {
		t.Errorf("expected zero rate to be cached, got %d calls", src.taxCalls)
	}
}

func TestCatalogCurrency(t *testing.T) {
	c := NewCatalog(newSource(), 8, time.Minute)
	ctx := context.Background()

	cur, err := c.Currency(ctx, "IN")
	if err != nil {
		t.Fatal(err)
	}
	if cur != "inr" {
		t.Errorf("got %q, want inr", cur)
	}

	if _, err := c.Currency(ctx, "FR"); err != ErrTierNotFound {
		t.Errorf("expected ErrTierNotFound, got %v", err)
	}
}
