package mongo

import (
	"testing"

	"github.com/xraph/quota/account"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
)

func TestSubscriptionModel(t *testing.T) {
	sub := &subscription.Subscription{
		ID:        id.NewSubscriptionID(),
		UserID:    "m1",
		IsActive:  true,
		PackageID: id.NewPackageID(),
		Period:    types.PeriodYearly,
		Balances: map[feature.Key]subscription.Balance{
			feature.Views: {IsIncluded: true, Count: 5, ExpiryAfterPackageExpiry: 30},
		},
		Extras: []subscription.Extra{{
			Deltas:    map[feature.Key]int64{feature.Views: 10},
			CreatedBy: "adm_1",
			PaymentID: "pay_ABC",
		}},
	}

	m := toSubscriptionModel(sub)
	if m.Balances[string(feature.Views)].Count != 5 {
		t.Errorf("model balances = %+v", m.Balances)
	}

	got, err := fromSubscriptionModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining(feature.Views) != 5 || got.Period != types.PeriodYearly {
		t.Errorf("subscription = %+v", got)
	}
	if len(got.Extras) != 1 || got.Extras[0].PaymentID != "pay_ABC" || got.Extras[0].Deltas[feature.Views] != 10 {
		t.Errorf("extras = %+v", got.Extras)
	}
}

func TestAccountModelNeverNilSlaves(t *testing.T) {
	m := toAccountModel(&account.Account{ID: "m1", IsMaster: true})
	if m.SlaveUsers == nil {
		t.Error("SlaveUsers is nil, want empty")
	}
}

func TestBalanceField(t *testing.T) {
	if got := balanceField(feature.Views); got != "balances.numberOfViews.count" {
		t.Errorf("balanceField = %q", got)
	}
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	for _, col := range []string{colTiers, colTaxRates, colPackages, colSubscriptions, colAccounts, colViewCharges, colPromos, colAudit} {
		if len(idx[col]) == 0 {
			t.Errorf("%s has no indexes", col)
		}
	}
}
