package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/quota"
	"github.com/xraph/quota/account"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
	"github.com/xraph/quota/viewcharge"
)

func newSub(t *testing.T, s *Store, views int64) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		Entity:   types.NewEntity(),
		ID:       id.NewSubscriptionID(),
		UserID:   "m1",
		IsActive: true,
		Balances: map[feature.Key]subscription.Balance{
			feature.Views: {IsIncluded: true, Count: views},
		},
	}
	if err := s.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestConsumeIfSufficientConcurrent(t *testing.T) {
	s := New()
	sub := newSub(t, s, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var won atomic.Int64
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeIfSufficient(ctx, sub.ID, feature.Views, 1)
			if err != nil {
				t.Error(err)
			}
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	if won.Load() != 10 {
		t.Errorf("expected 10 successful consumes, got %d", won.Load())
	}
	got, _ := s.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 0 {
		t.Errorf("expected zero balance, got %d", got.Remaining(feature.Views))
	}
}

func TestGrantExtrasAndCopies(t *testing.T) {
	s := New()
	sub := newSub(t, s, 1)
	ctx := context.Background()

	extra := subscription.NewExtra(map[feature.Key]int64{feature.Views: 4, feature.Jobs: 2}, subscription.GrantMeta{CreatedBy: "adm"}, time.Now())
	if err := s.GrantExtras(ctx, sub.ID, extra); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 5 || got.Remaining(feature.Jobs) != 2 || len(got.Extras) != 1 {
		t.Fatalf("unexpected subscription %+v", got)
	}

	got.Balances[feature.Views] = subscription.Balance{Count: 1000}
	again, _ := s.GetSubscription(ctx, sub.ID)
	if again.Remaining(feature.Views) != 5 {
		t.Error("returned subscription aliases store state")
	}

	if err := s.GrantExtras(ctx, id.NewSubscriptionID(), extra); !errors.Is(err, quota.ErrSubscriptionNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPromoUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	in := &promo.Promo{ID: id.NewPromoID(), Code: "SAVE10", Country: "IN"}
	if err := s.CreatePromo(ctx, in); err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePromo(ctx, &promo.Promo{ID: id.NewPromoID(), Code: "save10", Country: "in"}); !errors.Is(err, quota.ErrPromoExists) {
		t.Errorf("duplicate create: got %v", err)
	}

	ae := &promo.Promo{ID: id.NewPromoID(), Code: "SAVE10", Country: "AE"}
	if err := s.CreatePromo(ctx, ae); err != nil {
		t.Fatalf("other country should succeed: %v", err)
	}

	ae.Country = "IN"
	if err := s.UpdatePromo(ctx, ae); !errors.Is(err, quota.ErrPromoExists) {
		t.Errorf("duplicate update: got %v", err)
	}

	in.Code = "SAVE20"
	if err := s.UpdatePromo(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPromoByCode(ctx, "SAVE10", "IN"); !errors.Is(err, quota.ErrPromoNotFound) {
		t.Errorf("old code should be released, got %v", err)
	}
}

func TestViewChargesFindAndPurge(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := s.InsertViewCharges(ctx, []*viewcharge.ViewCharge{
		{ID: id.NewViewChargeID(), EmployerID: "m1", CandidateID: "a", Expiration: viewcharge.NeverExpires},
		{ID: id.NewViewChargeID(), EmployerID: "s1", CandidateID: "b", Expiration: now.Add(time.Hour)},
		{ID: id.NewViewChargeID(), EmployerID: "s1", CandidateID: "c", Expiration: now.Add(-time.Hour)},
		{ID: id.NewViewChargeID(), EmployerID: "x", CandidateID: "a", Expiration: viewcharge.NeverExpires},
	})
	if err != nil {
		t.Fatal(err)
	}

	found, err := s.FindViewCharges(ctx, []string{"m1", "s1"}, []string{"a", "b", "c"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 live charges, got %d", len(found))
	}

	purged, err := s.PurgeExpiredViewCharges(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
}

func TestAddSlaveConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, a := range []string{"m1", "m2"} {
		if err := s.CreateAccount(ctx, newMaster(a)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AddSlave(ctx, "m1", "s1"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSlave(ctx, "m2", "s1"); !errors.Is(err, quota.ErrSlaveAttached) {
		t.Errorf("expected ErrSlaveAttached, got %v", err)
	}

	m, err := s.FindMaster(ctx, "s1")
	if err != nil || m.ID != "m1" {
		t.Errorf("find master: %v %v", m, err)
	}
}

func TestCreateAccountSlaveConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateAccount(ctx, &account.Account{ID: "m1", IsMaster: true, SlaveUsers: []string{"s1"}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		slaves []string
	}{
		{"attached elsewhere", []string{"s2", "s1"}},
		{"repeated", []string{"s3", "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateAccount(ctx, &account.Account{ID: "m2", IsMaster: true, SlaveUsers: tt.slaves})
			if !errors.Is(err, quota.ErrSlaveAttached) {
				t.Errorf("expected ErrSlaveAttached, got %v", err)
			}
			if _, err := s.GetAccount(ctx, "m2"); !errors.Is(err, quota.ErrIdentityNotFound) {
				t.Errorf("rejected account was stored: %v", err)
			}
		})
	}

	m, err := s.FindMaster(ctx, "s1")
	if err != nil || m.ID != "m1" {
		t.Errorf("find master: %v %v", m, err)
	}
}

func newMaster(accountID string) *account.Account {
	return &account.Account{ID: accountID, IsMaster: true}
}
