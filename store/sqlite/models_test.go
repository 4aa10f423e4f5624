package sqlite

import (
	"testing"
	"time"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
)

func TestPackageModelFeatures(t *testing.T) {
	p := &bundle.Package{
		ID:      id.NewPackageID(),
		Name:    "Starter",
		Country: "IN",
		Features: []bundle.FeatureLine{{
			LineRequest:  bundle.LineRequest{IsIncluded: true, MonthlyCount: 200},
			Feature:      feature.Jobs,
			TotalMonthly: 360,
		}},
		TotalMonthly: 378,
	}

	got, err := fromPackageModel(toPackageModel(p))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Features) != 1 || got.Features[0].Feature != feature.Jobs || got.Features[0].MonthlyCount != 200 {
		t.Errorf("features = %+v", got.Features)
	}
	if got.TotalMonthly != 378 || got.ID.String() != p.ID.String() {
		t.Errorf("package = %+v", got)
	}
}

func TestPromoModelLists(t *testing.T) {
	pkgID := id.NewPackageID()
	p := &promo.Promo{
		ID:         id.NewPromoID(),
		Code:       " launch ",
		Country:    "in",
		Type:       "percentage",
		Amount:     10,
		PackageIDs: []id.PackageID{pkgID},
	}

	m := toPromoModel(p)
	if m.Code != "LAUNCH" || m.Country != "IN" {
		t.Errorf("normalized = %q/%q", m.Code, m.Country)
	}
	if m.UserIDs != "[]" {
		t.Errorf("user_ids = %s, want []", m.UserIDs)
	}

	got, err := fromPromoModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserIDs != nil {
		t.Errorf("UserIDs = %v, want nil", got.UserIDs)
	}
	if len(got.PackageIDs) != 1 || got.PackageIDs[0].String() != pkgID.String() {
		t.Errorf("PackageIDs = %v", got.PackageIDs)
	}
}

func TestSubscriptionModelBalances(t *testing.T) {
	sub := &subscription.Subscription{
		ID:        id.NewSubscriptionID(),
		UserID:    "m1",
		PackageID: id.NewPackageID(),
		Period:    types.PeriodMonthly,
		Balances: map[feature.Key]subscription.Balance{
			feature.Views: {IsIncluded: true, Count: 5, ExpiryAfterPackageExpiry: 30},
			feature.Jobs:  {IsIncluded: true, Count: 2},
		},
	}
	extras := []extraModel{{
		ID:        id.NewExtraID().String(),
		Deltas:    `{"numberOfViews":10}`,
		CreatedBy: "adm_1",
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}

	got, err := fromSubscriptionModel(toSubscriptionModel(sub), toBalanceModels(sub), extras)
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining(feature.Views) != 5 || got.Balances[feature.Views].ExpiryAfterPackageExpiry != 30 {
		t.Errorf("views = %+v", got.Balances[feature.Views])
	}
	if len(got.Extras) != 1 || got.Extras[0].Deltas[feature.Views] != 10 {
		t.Errorf("extras = %+v", got.Extras)
	}
}

func TestUnmarshalList(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		err  bool
	}{
		{"", 0, false},
		{"[]", 0, false},
		{`["a","b"]`, 2, false},
		{"{", 0, true},
	}
	for _, tt := range tests {
		var out []string
		err := unmarshalList(tt.raw, &out)
		if (err != nil) != tt.err {
			t.Errorf("%q: err = %v", tt.raw, err)
			continue
		}
		if len(out) != tt.want {
			t.Errorf("%q: len = %d, want %d", tt.raw, len(out), tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?,?,?" {
		t.Errorf("placeholders(3) = %q", got)
	}
}
