package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/quota/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"PackageID", id.NewPackageID, "pkg_"},
		{"SubscriptionID", id.NewSubscriptionID, "sub_"},
		{"PromoID", id.NewPromoID, "promo_"},
		{"AuditID", id.NewAuditID, "aud_"},
		{"TierID", id.NewTierID, "tier_"},
		{"TaxID", id.NewTaxID, "tax_"},
		{"ViewChargeID", id.NewViewChargeID, "vch_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"PackageID", id.NewPackageID, id.ParsePackageID},
		{"SubscriptionID", id.NewSubscriptionID, id.ParseSubscriptionID},
		{"PromoID", id.NewPromoID, id.ParsePromoID},
		{"AuditID", id.NewAuditID, id.ParseAuditID},
		{"TierID", id.NewTierID, id.ParseTierID},
		{"TaxID", id.NewTaxID, id.ParseTaxID},
		{"ViewChargeID", id.NewViewChargeID, id.ParseViewChargeID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParsePackageID rejects sub_", id.NewSubscriptionID().String(), id.ParsePackageID},
		{"ParseSubscriptionID rejects pkg_", id.NewPackageID().String(), id.ParseSubscriptionID},
		{"ParsePromoID rejects aud_", id.NewAuditID().String(), id.ParsePromoID},
		{"ParseTierID rejects tax_", id.NewTaxID().String(), id.ParseTierID},
		{"ParseViewChargeID rejects promo_", id.NewPromoID().String(), id.ParseViewChargeID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("expected NULL value, got %v (%v)", v, err)
	}
}

func TestScan(t *testing.T) {
	original := id.NewPackageID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatalf("Scan(string) failed: %v", err)
	}
	if fromString.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromString.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("expected nil after Scan(nil)")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestFromString(t *testing.T) {
	got, err := id.FromString("")
	if err != nil || !got.IsNil() {
		t.Fatalf("expected Nil for empty string, got %v (%v)", got, err)
	}
	if _, err := id.FromString("not-an-id"); err == nil {
		t.Error("expected error for malformed id")
	}
}
