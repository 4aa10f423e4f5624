package quota_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/quota"
	"github.com/xraph/quota/account"
	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/gateway"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/notify"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/store/memory"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
	"github.com/xraph/quota/viewcharge"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	eng    *quota.Engine
	store  *memory.Store
	faults *faultStore
	gw     *gateway.Fake
	mailer *notify.LogSender
}

var errStoreDown = errors.New("store down")

// faultStore fails selected writes on demand.
type faultStore struct {
	*memory.Store
	failViewCharges   atomic.Bool
	failSubscriptions atomic.Bool
}

func (f *faultStore) InsertViewCharges(ctx context.Context, charges []*viewcharge.ViewCharge) error {
	if f.failViewCharges.Load() {
		return errStoreDown
	}
	return f.Store.InsertViewCharges(ctx, charges)
}

func (f *faultStore) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if f.failSubscriptions.Load() {
		return errStoreDown
	}
	return f.Store.CreateSubscription(ctx, sub)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:  memory.New(),
		gw:     gateway.NewFake(),
		mailer: notify.NewLogSender(nil),
	}
	h.faults = &faultStore{Store: h.store}
	h.eng = quota.New(h.faults,
		quota.WithGateway(h.gw),
		quota.WithNotifier(h.mailer),
		quota.WithClock(func() time.Time { return fixedNow }),
		quota.WithPalette("#111111", "#222222"),
	)

	ctx := context.Background()
	if err := h.eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.eng.Stop() })

	for _, tier := range []*pricing.Tier{
		{Country: "IN", Feature: feature.Jobs, BasePrice: 100, Count: 50, Currency: "INR"},
		{Country: "IN", Feature: feature.Views, BasePrice: 10, Count: 10, Currency: "INR"},
		{Country: "US", Feature: feature.Jobs, BasePrice: 20, Count: 10, Currency: "USD"},
	} {
		if err := h.eng.SetTier(ctx, tier); err != nil {
			t.Fatalf("SetTier: %v", err)
		}
	}
	if err := h.eng.SetTaxRate(ctx, &pricing.TaxRate{Country: "IN", TaxType: "GST", Percentage: 5}); err != nil {
		t.Fatalf("SetTaxRate: %v", err)
	}
	return h
}

func jobsRequest() *bundle.ComposeRequest {
	return &bundle.ComposeRequest{
		Name:            "Starter",
		Country:         "IN",
		AdminID:         "adm_1",
		MonthlyDiscount: 10,
		Features: map[feature.Key]bundle.LineRequest{
			feature.Jobs: {IsIncluded: true, MonthlyCount: 200},
		},
	}
}

func viewsRequest(views int64) *bundle.ComposeRequest {
	return &bundle.ComposeRequest{
		Name:    "Views",
		Country: "IN",
		AdminID: "adm_1",
		Features: map[feature.Key]bundle.LineRequest{
			feature.Views: {IsIncluded: true, MonthlyCount: views, ExpiryAfterPackageExpiry: 30},
		},
	}
}

// ──────────────────────────────────────────────────
// Packages
// ──────────────────────────────────────────────────

func TestSavePackage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pkg, err := h.eng.SavePackage(ctx, jobsRequest())
	if err != nil {
		t.Fatalf("SavePackage: %v", err)
	}

	line, _ := pkg.Line(feature.Jobs)
	if line.TotalMonthlyOriginal != 400 || line.TotalMonthly != 360 {
		t.Errorf("jobs line = %v/%v, want 400/360", line.TotalMonthlyOriginal, line.TotalMonthly)
	}
	if pkg.TotalMonthly != 378 {
		t.Errorf("TotalMonthly = %v, want 378", pkg.TotalMonthly)
	}
	if pkg.Currency != "inr" {
		t.Errorf("Currency = %q, want inr", pkg.Currency)
	}
	if pkg.PlanIDMonthly == "" || pkg.PlanIDAnnually == "" {
		t.Errorf("plan ids not set: %q %q", pkg.PlanIDMonthly, pkg.PlanIDAnnually)
	}
	if pkg.Color != "#111111" && pkg.Color != "#222222" {
		t.Errorf("Color = %q, not from palette", pkg.Color)
	}

	var monthly gateway.PlanRequest
	for _, r := range h.gw.Requests() {
		if r.Period == types.PeriodMonthly {
			monthly = r
		}
	}
	if monthly.Amount.Amount != 37800 || monthly.Metadata["country"] != "IN" {
		t.Errorf("monthly plan request = %+v", monthly)
	}

	entries, err := h.eng.ListAudit(ctx, audit.TypePackage, pkg.ID.String(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(entries))
	}

	got, err := h.eng.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !bundle.Verify(got) {
		t.Error("stored package totals do not verify")
	}
}

func TestSavePackageGatewayFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gw.FailOn(types.PeriodYearly, &gateway.Error{Status: 502, Message: "bad gateway"})

	_, err := h.eng.SavePackage(ctx, jobsRequest())
	if !errors.Is(err, quota.ErrUpstreamFailure) {
		t.Fatalf("err = %v, want ErrUpstreamFailure", err)
	}
	var gerr *gateway.Error
	if !errors.As(err, &gerr) || gerr.Status != 502 {
		t.Errorf("gateway error not preserved: %v", err)
	}

	pkgs, _ := h.eng.ListActivePackages(ctx, "IN")
	if len(pkgs) != 0 {
		t.Errorf("packages persisted = %d, want 0", len(pkgs))
	}
	entries, _ := h.eng.ListAudit(ctx, audit.TypePackage, "", 0, 0)
	if len(entries) != 0 {
		t.Errorf("audit entries = %d, want 0", len(entries))
	}
}

func TestSavePackageReplace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	orig, err := h.eng.SavePackage(ctx, jobsRequest())
	if err != nil {
		t.Fatal(err)
	}

	req := jobsRequest()
	req.PackageID = orig.ID
	req.Name = "Starter Plus"
	req.MonthlyDiscount = 0
	replaced, err := h.eng.SavePackage(ctx, req)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	if replaced.ID.String() != orig.ID.String() {
		t.Errorf("ID changed: %s -> %s", orig.ID, replaced.ID)
	}
	if replaced.Color != orig.Color || !replaced.CreatedAt.Equal(orig.CreatedAt) {
		t.Error("color or creation time not kept")
	}
	if replaced.TotalMonthly != 420 {
		t.Errorf("TotalMonthly = %v, want 420", replaced.TotalMonthly)
	}

	entries, _ := h.eng.ListAudit(ctx, audit.TypePackage, orig.ID.String(), 0, 0)
	if len(entries) != 2 {
		t.Errorf("audit entries = %d, want 2", len(entries))
	}

	req.PackageID = id.NewPackageID()
	if _, err := h.eng.SavePackage(ctx, req); !quota.IsNotFound(err) {
		t.Errorf("replace unknown: err = %v, want not found", err)
	}
}

func TestSavePackageFree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := jobsRequest()
	req.IsFree = true
	pkg, err := h.eng.SavePackage(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.TotalMonthly != 0 || pkg.TotalYearly != 0 || pkg.TotalMonthlyOriginal != 0 {
		t.Errorf("free package has totals: %+v", pkg)
	}
	if pkg.PlanIDMonthly != "" || pkg.PlanIDAnnually != "" {
		t.Error("free package has plan ids")
	}
	if n := len(h.gw.Requests()); n != 0 {
		t.Errorf("gateway calls = %d, want 0", n)
	}
}

func TestSavePackageInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*bundle.ComposeRequest)
	}{
		{"missing name", func(r *bundle.ComposeRequest) { r.Name = "" }},
		{"bad country", func(r *bundle.ComposeRequest) { r.Country = "IND" }},
		{"discount over 100", func(r *bundle.ComposeRequest) { r.MonthlyDiscount = 120 }},
		{"missing tier", func(r *bundle.ComposeRequest) { r.Country = "AE" }},
		{"unknown feature", func(r *bundle.ComposeRequest) {
			r.Features["numberOfRobots"] = bundle.LineRequest{IsIncluded: true}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jobsRequest()
			tt.mutate(req)
			if _, err := h.eng.SavePackage(ctx, req); !quota.IsInvalidInput(err) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}
	if n := len(h.gw.Requests()); n != 0 {
		t.Errorf("gateway calls = %d, want 0", n)
	}
}

func TestQuotePackage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pkg, err := h.eng.QuotePackage(ctx, jobsRequest())
	if err != nil {
		t.Fatal(err)
	}
	if pkg.TotalMonthly != 378 || !pkg.ID.IsNil() {
		t.Errorf("quote = %v id=%s", pkg.TotalMonthly, pkg.ID)
	}
	if len(h.gw.Requests()) != 0 {
		t.Error("quote called the gateway")
	}
}

func TestDeactivatePackage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pkg, err := h.eng.SavePackage(ctx, jobsRequest())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.eng.DeactivatePackage(ctx, pkg.ID, "adm_root"); err != nil {
		t.Fatal(err)
	}
	if pkgs, _ := h.eng.ListActivePackages(ctx, "IN"); len(pkgs) != 0 {
		t.Errorf("active packages = %d, want 0", len(pkgs))
	}
	if _, err := h.eng.ActivateSubscription(ctx, "m1", pkg.ID, types.PeriodMonthly); !errors.Is(err, quota.ErrPackageInactive) {
		t.Errorf("activate inactive: err = %v", err)
	}
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

func activate(t *testing.T, h *harness, req *bundle.ComposeRequest, userID string) *subscription.Subscription {
	t.Helper()
	ctx := context.Background()

	pkg, err := h.eng.SavePackage(ctx, req)
	if err != nil {
		t.Fatalf("SavePackage: %v", err)
	}
	sub, err := h.eng.ActivateSubscription(ctx, userID, pkg.ID, types.PeriodMonthly)
	if err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	return sub
}

func TestActivateReplacesActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := activate(t, h, viewsRequest(5), "m1")
	second := activate(t, h, viewsRequest(7), "m1")

	old, err := h.eng.GetSubscription(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.IsActive {
		t.Error("previous subscription still active")
	}

	cur, err := h.eng.GetSubscriptionByUser(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID.String() != second.ID.String() || cur.Remaining(feature.Views) != 7 {
		t.Errorf("active = %s with %d views", cur.ID, cur.Remaining(feature.Views))
	}
}

func TestActivateKeepsPreviousOnFailedWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := activate(t, h, viewsRequest(5), "m1")
	pkg, err := h.eng.SavePackage(ctx, viewsRequest(7))
	if err != nil {
		t.Fatal(err)
	}

	h.faults.failSubscriptions.Store(true)
	if _, err := h.eng.ActivateSubscription(ctx, "m1", pkg.ID, types.PeriodMonthly); !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want store fault", err)
	}

	cur, err := h.eng.GetSubscriptionByUser(ctx, "m1")
	if err != nil {
		t.Fatalf("user lost their subscription: %v", err)
	}
	if cur.ID.String() != first.ID.String() || !cur.IsActive || cur.Remaining(feature.Views) != 5 {
		t.Errorf("active = %s with %d views", cur.ID, cur.Remaining(feature.Views))
	}
}

func TestGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.eng.RegisterAccount(ctx, &account.Account{ID: "m1", Email: "hr@acme.test", IsMaster: true}); err != nil {
		t.Fatal(err)
	}
	sub := activate(t, h, viewsRequest(5), "m1")
	deltas := map[feature.Key]int64{feature.Views: 10}

	for _, bad := range []string{"12345", "pay_", "pay_a_pay_b"} {
		_, err := h.eng.Grant(ctx, sub.ID, deltas, subscription.GrantMeta{CreatedBy: "adm_1", PaymentID: bad})
		if !errors.Is(err, quota.ErrInvalidPaymentID) {
			t.Errorf("payment id %q: err = %v", bad, err)
		}
	}
	got, _ := h.eng.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 5 || len(got.Extras) != 0 {
		t.Fatalf("invalid grant changed the subscription: %+v", got)
	}

	got, err := h.eng.Grant(ctx, sub.ID, deltas, subscription.GrantMeta{CreatedBy: "adm_1", PaymentID: "pay_ABC123", Note: "upsell"})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if got.Remaining(feature.Views) != 15 {
		t.Errorf("views = %d, want 15", got.Remaining(feature.Views))
	}
	if len(got.Extras) != 1 || got.Extras[0].PaymentID != "pay_ABC123" {
		t.Errorf("extras = %+v", got.Extras)
	}
	if sent := h.mailer.Sent(); len(sent) != 1 || sent[0].ToEmail != "hr@acme.test" {
		t.Errorf("notifications = %+v", sent)
	}

	if _, err := h.eng.Grant(ctx, sub.ID, map[feature.Key]int64{feature.Views: 0}, subscription.GrantMeta{CreatedBy: "adm_1"}); !quota.IsInvalidInput(err) {
		t.Errorf("zero delta: err = %v", err)
	}
	if _, err := h.eng.Grant(ctx, sub.ID, deltas, subscription.GrantMeta{}); !quota.IsInvalidInput(err) {
		t.Errorf("missing createdBy: err = %v", err)
	}
}

func TestConsume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := activate(t, h, viewsRequest(5), "m1")

	if err := h.eng.Consume(ctx, sub.ID, feature.Views, 0); !quota.IsInvalidInput(err) {
		t.Errorf("zero amount: err = %v", err)
	}
	if err := h.eng.Consume(ctx, sub.ID, feature.Views, 3); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := h.eng.Consume(ctx, sub.ID, feature.Views, 3); !errors.Is(err, quota.ErrInsufficientBalance) {
		t.Errorf("overdraw: err = %v", err)
	}
	got, _ := h.eng.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 2 {
		t.Errorf("views = %d, want 2", got.Remaining(feature.Views))
	}
}

func TestAdjustSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := activate(t, h, viewsRequest(5), "m1")

	if _, err := h.eng.AdjustSubscription(ctx, sub.ID, map[feature.Key]int64{feature.Views: -1}, "adm_root"); !quota.IsInvalidInput(err) {
		t.Errorf("negative: err = %v", err)
	}

	got, err := h.eng.AdjustSubscription(ctx, sub.ID, map[feature.Key]int64{feature.Views: 40}, "adm_root")
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining(feature.Views) != 40 {
		t.Errorf("views = %d, want 40", got.Remaining(feature.Views))
	}

	entries, _ := h.eng.ListAudit(ctx, audit.TypeSubscription, sub.ID.String(), 0, 0)
	if len(entries) != 1 || entries[0].UpdatedBy != "adm_root" {
		t.Errorf("audit = %+v", entries)
	}
}

// ──────────────────────────────────────────────────
// Accounts and views
// ──────────────────────────────────────────────────

func registerGroup(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	for _, a := range []*account.Account{
		{ID: "m1", IsMaster: true},
		{ID: "s1"},
		{ID: "orphan"},
	} {
		if err := h.eng.RegisterAccount(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.eng.AttachSlave(ctx, "m1", "s1"); err != nil {
		t.Fatal(err)
	}
}

func TestResolveGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registerGroup(t, h)

	for _, who := range []string{"m1", "s1"} {
		g, err := h.eng.ResolveGroup(ctx, who)
		if err != nil {
			t.Fatalf("%s: %v", who, err)
		}
		if g.MasterID != "m1" || !slices.Equal(g.MemberIDs, []string{"s1", "m1"}) {
			t.Errorf("%s: group = %+v", who, g)
		}
	}

	_, err := h.eng.ResolveGroup(ctx, "orphan")
	if !errors.Is(err, quota.ErrAccountNotFound) || quota.IsNotFound(err) {
		t.Errorf("orphan: err = %v, want integrity fault", err)
	}
	if _, err := h.eng.ResolveGroup(ctx, "ghost"); !quota.IsNotFound(err) {
		t.Errorf("unknown: err = %v, want not found", err)
	}

	if err := h.eng.AttachSlave(ctx, "m1", "s1"); !quota.IsConflict(err) {
		t.Errorf("re-attach: err = %v, want conflict", err)
	}
	if err := h.eng.AttachSlave(ctx, "orphan", "m1"); !errors.Is(err, quota.ErrNotMaster) {
		t.Errorf("non-master: err = %v", err)
	}
}

func TestChargeViewsRefundsUnloggedDebit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registerGroup(t, h)
	sub := activate(t, h, viewsRequest(5), "m1")

	h.faults.failViewCharges.Store(true)
	if _, err := h.eng.ChargeViews(ctx, "m1", []string{"A", "B"}, sub.ID); !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want store fault", err)
	}
	got, _ := h.eng.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 5 {
		t.Fatalf("views after failed charge = %d, want 5", got.Remaining(feature.Views))
	}
	if n := len(got.Extras); n != 1 || got.Extras[0].Deltas[feature.Views] != 2 {
		t.Errorf("refund extras = %+v", got.Extras)
	}

	// The retry pays once for the same candidates.
	h.faults.failViewCharges.Store(false)
	res, err := h.eng.ChargeViews(ctx, "m1", []string{"A", "B"}, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Remaining != 3 || len(res.Charged) != 2 {
		t.Errorf("retry = %+v", res)
	}
	got, _ = h.eng.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 3 {
		t.Errorf("views after retry = %d, want 3", got.Remaining(feature.Views))
	}
}

func TestChargeViewsConcurrentGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registerGroup(t, h)
	sub := activate(t, h, viewsRequest(5), "m1")

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	charged := make([]int, workers)
	for i := range workers {
		employer := "m1"
		if i%2 == 1 {
			employer = "s1"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.eng.ChargeViews(ctx, employer, []string{"A"}, sub.ID)
			errs[i] = err
			if err == nil {
				charged[i] = len(res.Charged)
			}
		}()
	}
	wg.Wait()

	total := 0
	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
		total += charged[i]
	}
	if total != 1 {
		t.Errorf("candidate charged %d times, want 1", total)
	}

	got, _ := h.eng.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 4 {
		t.Errorf("views = %d, want 4", got.Remaining(feature.Views))
	}
	rows, err := h.store.FindViewCharges(ctx, []string{"m1", "s1"}, []string{"A"}, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("live charges = %d, want 1", len(rows))
	}
}

func TestAccountGroupInvariant(t *testing.T) {
	tests := []struct {
		name  string
		write func(context.Context, *quota.Engine) error
		check func(error) bool
	}{
		{
			name: "register with a slave attached elsewhere",
			write: func(ctx context.Context, eng *quota.Engine) error {
				return eng.RegisterAccount(ctx, &account.Account{ID: "m2", IsMaster: true, SlaveUsers: []string{"s1"}})
			},
			check: quota.IsConflict,
		},
		{
			name: "register with a master as slave",
			write: func(ctx context.Context, eng *quota.Engine) error {
				return eng.RegisterAccount(ctx, &account.Account{ID: "m2", IsMaster: true, SlaveUsers: []string{"m1"}})
			},
			check: func(err error) bool { return errors.Is(err, quota.ErrMasterAsSlave) },
		},
		{
			name: "register with an unknown slave",
			write: func(ctx context.Context, eng *quota.Engine) error {
				return eng.RegisterAccount(ctx, &account.Account{ID: "m2", IsMaster: true, SlaveUsers: []string{"ghost"}})
			},
			check: quota.IsNotFound,
		},
		{
			name: "register with a repeated slave",
			write: func(ctx context.Context, eng *quota.Engine) error {
				return eng.RegisterAccount(ctx, &account.Account{ID: "m2", IsMaster: true, SlaveUsers: []string{"orphan", "orphan"}})
			},
			check: quota.IsInvalidInput,
		},
		{
			name: "attach a master",
			write: func(ctx context.Context, eng *quota.Engine) error {
				if err := eng.RegisterAccount(ctx, &account.Account{ID: "m2", IsMaster: true}); err != nil {
					return err
				}
				return eng.AttachSlave(ctx, "m2", "m1")
			},
			check: func(err error) bool { return errors.Is(err, quota.ErrMasterAsSlave) && quota.IsConflict(err) },
		},
		{
			name: "attach an unknown slave",
			write: func(ctx context.Context, eng *quota.Engine) error {
				return eng.AttachSlave(ctx, "m1", "ghost")
			},
			check: quota.IsNotFound,
		},
		{
			name: "attach to an unknown master",
			write: func(ctx context.Context, eng *quota.Engine) error {
				return eng.AttachSlave(ctx, "ghost", "orphan")
			},
			check: quota.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			registerGroup(t, h)

			if err := tt.write(ctx, h.eng); !tt.check(err) {
				t.Fatalf("err = %v", err)
			}

			// The existing group is untouched and the rejected ids stay out of it.
			for _, who := range []string{"m1", "s1"} {
				g, err := h.eng.ResolveGroup(ctx, who)
				if err != nil || g.MasterID != "m1" {
					t.Errorf("%s: group = %+v, %v", who, g, err)
				}
			}
			if _, err := h.eng.ResolveGroup(ctx, "orphan"); !errors.Is(err, quota.ErrAccountNotFound) {
				t.Errorf("orphan: err = %v", err)
			}
			if _, err := h.eng.ResolveGroup(ctx, "ghost"); !quota.IsNotFound(err) {
				t.Errorf("ghost: err = %v", err)
			}
		})
	}
}

func TestRegisterAccountWithSlaves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registerGroup(t, h)

	if err := h.eng.RegisterAccount(ctx, &account.Account{ID: "m2", IsMaster: true, SlaveUsers: []string{"orphan"}}); err != nil {
		t.Fatal(err)
	}
	g, err := h.eng.ResolveGroup(ctx, "orphan")
	if err != nil || g.MasterID != "m2" {
		t.Errorf("orphan: group = %+v, %v", g, err)
	}
}

func TestChargeViews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registerGroup(t, h)
	sub := activate(t, h, viewsRequest(5), "m1")

	res, err := h.eng.ChargeViews(ctx, "m1", []string{"A", "B", "A"}, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Remaining != 3 || len(res.Charged) != 2 {
		t.Errorf("first charge = %+v", res)
	}

	// A slave viewing the same candidates pays only for the new one.
	res, err = h.eng.ChargeViews(ctx, "s1", []string{"A", "B", "C"}, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Remaining != 2 || !slices.Equal(res.Charged, []string{"C"}) || !slices.Equal(res.AlreadyCharged, []string{"A", "B"}) {
		t.Errorf("second charge = %+v", res)
	}

	res, err = h.eng.ChargeViews(ctx, "m1", []string{"A", "C"}, sub.ID)
	if err != nil || len(res.Charged) != 0 || res.Remaining != 2 {
		t.Errorf("repeat charge = %+v, %v", res, err)
	}

	_, err = h.eng.ChargeViews(ctx, "m1", []string{"D", "E", "F"}, sub.ID)
	if !errors.Is(err, quota.ErrInsufficientBalance) {
		t.Fatalf("overdraw: err = %v", err)
	}
	got, _ := h.eng.GetSubscription(ctx, sub.ID)
	if got.Remaining(feature.Views) != 2 {
		t.Errorf("views after overdraw = %d, want 2", got.Remaining(feature.Views))
	}

	if _, err := h.eng.ChargeViews(ctx, "orphan", []string{"A"}, sub.ID); !errors.Is(err, quota.ErrAccountNotFound) {
		t.Errorf("orphan: err = %v", err)
	}
}

func TestChargeViewsExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registerGroup(t, h)
	sub := activate(t, h, viewsRequest(5), "m1")

	if _, err := h.eng.ChargeViews(ctx, "m1", []string{"A"}, sub.ID); err != nil {
		t.Fatal(err)
	}

	later := quota.New(h.store, quota.WithClock(func() time.Time { return fixedNow.AddDate(0, 0, 31) }))
	n, err := later.PurgeExpiredViewCharges(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v; want 1", n, err)
	}

	res, err := later.ChargeViews(ctx, "m1", []string{"A"}, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Charged) != 1 || res.Remaining != 3 {
		t.Errorf("recharge after expiry = %+v", res)
	}
}

// ──────────────────────────────────────────────────
// Promos
// ──────────────────────────────────────────────────

func promoRequest(code, country string) *promo.Request {
	return &promo.Request{Code: code, Country: country, Type: promo.TypePercentage, Amount: 15, AdminID: "adm_1"}
}

func TestPromoUniqueness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.eng.CreatePromo(ctx, promoRequest("launch", "IN"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Code != "LAUNCH" || p.Currency != "inr" || !p.IsActive {
		t.Errorf("promo = %+v", p)
	}

	if _, err := h.eng.CreatePromo(ctx, promoRequest("LAUNCH", "in")); !quota.IsConflict(err) {
		t.Errorf("duplicate create: err = %v", err)
	}

	us, err := h.eng.CreatePromo(ctx, promoRequest("LAUNCH", "US"))
	if err != nil {
		t.Fatalf("other country: %v", err)
	}
	if us.Currency != "usd" {
		t.Errorf("US currency = %q", us.Currency)
	}

	other, err := h.eng.CreatePromo(ctx, promoRequest("SPRING", "IN"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.eng.UpdatePromo(ctx, other.ID, promoRequest("LAUNCH", "IN")); !quota.IsConflict(err) {
		t.Errorf("duplicate update: err = %v", err)
	}

	req := promoRequest("SPRING", "IN")
	req.Amount = 20
	updated, err := h.eng.UpdatePromo(ctx, other.ID, req)
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if updated.Amount != 20 {
		t.Errorf("amount = %v, want 20", updated.Amount)
	}
	entries, _ := h.eng.ListAudit(ctx, audit.TypePromo, other.ID.String(), 0, 0)
	if len(entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(entries))
	}
}

func TestPromoValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	over := promoRequest("BIG", "IN")
	over.Amount = 150
	if _, err := h.eng.CreatePromo(ctx, over); !quota.IsInvalidInput(err) {
		t.Errorf("percentage over 100: err = %v", err)
	}

	flat := promoRequest("FLAT", "IN")
	flat.Type = promo.TypeAmount
	flat.Amount = 500
	if _, err := h.eng.CreatePromo(ctx, flat); err != nil {
		t.Errorf("amount promo: %v", err)
	}

	if _, err := h.eng.CreatePromo(ctx, promoRequest("NOPE", "AE")); !quota.IsInvalidInput(err) {
		t.Errorf("country without tiers: err = %v", err)
	}
}

func TestListPromosPaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, code := range []string{"A1", "A2", "A3"} {
		if _, err := h.eng.CreatePromo(ctx, promoRequest(code, "IN")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.eng.CreatePromo(ctx, promoRequest("B1", "US")); err != nil {
		t.Fatal(err)
	}

	first, _ := h.eng.ListPromos(ctx, "IN", 1, 2)
	second, _ := h.eng.ListPromos(ctx, "IN", 2, 2)
	if len(first) != 2 || len(second) != 1 {
		t.Errorf("pages = %d, %d; want 2, 1", len(first), len(second))
	}
	all, _ := h.eng.ListPromos(ctx, "", 0, 0)
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}
}
