package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/quota"
	"github.com/xraph/quota/account"
	"github.com/xraph/quota/api"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/gateway"
	"github.com/xraph/quota/identity"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/store/memory"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
)

var tokens = map[string]*identity.Identity{
	"admin": {UserID: "adm_1", Role: "admin"},
	"root":  {UserID: "adm_root", Role: "admin", SuperAdmin: true},
	"m1":    {UserID: "m1", Role: "employer"},
	"s1":    {UserID: "s1", Role: "employer"},
}

func decoder() identity.Decoder {
	return identity.DecoderFunc(func(_ context.Context, token string) (*identity.Identity, error) {
		id, ok := tokens[token]
		if !ok {
			return nil, &identity.AuthError{Reason: "invalid token"}
		}
		return id, nil
	})
}

type fixture struct {
	engine *quota.Engine
	gw     *gateway.Fake
	router http.Handler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	gw := gateway.NewFake()
	engine := quota.New(memory.New(),
		quota.WithGateway(gw),
		quota.WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Stop() })

	require.NoError(t, engine.SetTier(ctx, &pricing.Tier{Country: "IN", Feature: feature.Jobs, BasePrice: 100, Count: 50, Currency: "INR"}))
	require.NoError(t, engine.SetTier(ctx, &pricing.Tier{Country: "IN", Feature: feature.Views, BasePrice: 10, Count: 10, Currency: "INR"}))
	require.NoError(t, engine.SetTaxRate(ctx, &pricing.TaxRate{Country: "IN", TaxType: "GST", Percentage: 5}))

	return &fixture{
		engine: engine,
		gw:     gw,
		router: api.New(engine, decoder()).Router(),
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func jobsPackage(admin string) map[string]any {
	return map[string]any{
		"name":            "Starter",
		"country":         "IN",
		"adminId":         admin,
		"monthlyDiscount": 10,
		"features": map[string]any{
			string(feature.Jobs): map[string]any{"isIncluded": true, "monthlyCount": 200},
		},
	}
}

func (f *fixture) viewsSubscription(t *testing.T, views int64) *subscription.Subscription {
	t.Helper()
	ctx := context.Background()

	for _, a := range []*account.Account{{ID: "m1", IsMaster: true}, {ID: "s1"}, {ID: "orphan"}} {
		require.NoError(t, f.engine.RegisterAccount(ctx, a))
	}
	require.NoError(t, f.engine.AttachSlave(ctx, "m1", "s1"))

	pkg, err := f.engine.SavePackage(ctx, &bundle.ComposeRequest{
		Name:    "Views",
		Country: "IN",
		AdminID: "adm_1",
		Features: map[feature.Key]bundle.LineRequest{
			feature.Views: {IsIncluded: true, MonthlyCount: views, ExpiryAfterPackageExpiry: 30},
		},
	})
	require.NoError(t, err)

	sub, err := f.engine.ActivateSubscription(ctx, "m1", pkg.ID, types.PeriodMonthly)
	require.NoError(t, err)
	return sub
}

func TestAuthentication(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic admin"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/packages?country=IN", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestSavePackage(t *testing.T) {
	f := setup(t)

	w := f.do(t, "POST", "/packages", "admin", jobsPackage("adm_1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	pkg := decodeBody[bundle.Package](t, w)
	assert.Equal(t, "Starter", pkg.Name)
	assert.InDelta(t, 378.0, pkg.TotalMonthly, 0.001)
	assert.Equal(t, 2, len(f.gw.Requests()))

	w = f.do(t, "GET", "/packages/"+pkg.ID.String(), "m1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pkg.ID.String(), decodeBody[bundle.Package](t, w).ID.String())

	w = f.do(t, "GET", "/packages?country=IN", "m1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[struct {
		Packages []bundle.Package `json:"packages"`
		Count    int              `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)
}

func TestSavePackageAdminMismatch(t *testing.T) {
	f := setup(t)

	w := f.do(t, "POST", "/packages", "admin", jobsPackage("adm_other"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, len(f.gw.Requests()))
}

func TestSavePackageErrors(t *testing.T) {
	f := setup(t)

	missingRate := jobsPackage("adm_1")
	missingRate["country"] = "US"

	tests := []struct {
		name   string
		status int
		setup  func()
		body   any
	}{
		{"missing tier", http.StatusBadRequest, nil, missingRate},
		{"gateway failure", http.StatusBadGateway, func() { f.gw.FailOn(types.PeriodYearly, &gateway.Error{Status: 500, Message: "down"}) }, jobsPackage("adm_1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w := f.do(t, "POST", "/packages", "admin", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := f.do(t, "GET", "/packages?country=IN", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestQuotePackage(t *testing.T) {
	f := setup(t)

	body := jobsPackage("")
	w := f.do(t, "POST", "/packages/quote", "admin", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	pkg := decodeBody[bundle.Package](t, w)
	assert.InDelta(t, 378.0, pkg.TotalMonthly, 0.001)
	assert.Equal(t, 0, len(f.gw.Requests()))
}

func TestGetPackageBadID(t *testing.T) {
	f := setup(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/packages/not-an-id", "m1", nil).Code)
}

func TestDeactivatePackage(t *testing.T) {
	f := setup(t)

	w := f.do(t, "POST", "/packages", "admin", jobsPackage("adm_1"))
	require.Equal(t, http.StatusCreated, w.Code)
	pkg := decodeBody[bundle.Package](t, w)
	path := "/packages/" + pkg.ID.String() + "/deactivate"

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "POST", path, "admin", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "POST", path, "root", nil).Code)

	// One snapshot at creation, one before deactivation.
	w = f.do(t, "GET", "/audit?type=package&targetId="+pkg.ID.String(), "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestPromos(t *testing.T) {
	f := setup(t)

	body := map[string]any{
		"promoCode": "LAUNCH",
		"country":   "IN",
		"type":      "percentage",
		"amount":    15,
		"adminId":   "adm_1",
	}

	w := f.do(t, "POST", "/promos", "admin", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[map[string]any](t, w)

	assert.Equal(t, http.StatusConflict, f.do(t, "POST", "/promos", "admin", body).Code)

	body["amount"] = 20
	w = f.do(t, "PUT", "/promos/"+created["id"].(string), "admin", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 20.0, decodeBody[map[string]any](t, w)["amount"], 0.001)

	w = f.do(t, "GET", "/promos?country=IN&page=1&limit=10", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LAUNCH")

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/promos?country=IN&page=0", "admin", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/promos", "admin", nil).Code)
}

func TestUpgradeSubscription(t *testing.T) {
	f := setup(t)
	sub := f.viewsSubscription(t, 5)
	path := "/subscriptions/" + sub.ID.String() + "/upgrade"

	w := f.do(t, "POST", path, "admin", map[string]any{
		"adminId":   "adm_1",
		"paymentId": "pay_ABC123",
		"deltas":    map[string]int64{string(feature.Views): 10},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[subscription.Subscription](t, w)
	assert.Equal(t, int64(15), got.Remaining(feature.Views))

	w = f.do(t, "POST", path, "admin", map[string]any{
		"adminId":   "adm_1",
		"paymentId": "pay_pay_x",
		"deltas":    map[string]int64{string(feature.Views): 10},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "GET", "/subscriptions/"+sub.ID.String(), "m1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = decodeBody[subscription.Subscription](t, w)
	assert.Equal(t, int64(15), got.Remaining(feature.Views))
}

func TestAdjustSubscription(t *testing.T) {
	f := setup(t)
	sub := f.viewsSubscription(t, 5)
	path := "/subscriptions/" + sub.ID.String()
	body := map[string]any{"balances": map[string]int64{string(feature.Views): 42}}

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "PUT", path, "admin", body).Code)

	w := f.do(t, "PUT", path, "root", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[subscription.Subscription](t, w)
	assert.Equal(t, int64(42), got.Remaining(feature.Views))

	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", path, "root", map[string]any{"balances": map[string]int64{}}).Code)
}

func TestChargeViews(t *testing.T) {
	f := setup(t)
	sub := f.viewsSubscription(t, 2)

	charge := func(token, employer string, candidates ...string) *httptest.ResponseRecorder {
		return f.do(t, "POST", "/views/charge", token, map[string]any{
			"employerId":     employer,
			"candidateIds":   candidates,
			"subscriptionId": sub.ID.String(),
		})
	}

	w := charge("s1", "s1", "A", "B")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[quota.ChargeResult](t, w)
	assert.Equal(t, int64(0), res.Remaining)
	assert.ElementsMatch(t, []string{"A", "B"}, res.Charged)

	w = charge("m1", "m1", "A")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"A"}, decodeBody[quota.ChargeResult](t, w).AlreadyCharged)

	assert.Equal(t, http.StatusPaymentRequired, charge("m1", "m1", "C").Code)
	assert.Equal(t, http.StatusUnauthorized, charge("m1", "s1", "C").Code)
	assert.Equal(t, http.StatusBadRequest, charge("m1", "m1").Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := setup(t)
	sub := f.viewsSubscription(t, 2)
	tokens["orphan"] = &identity.Identity{UserID: "orphan"}
	t.Cleanup(func() { delete(tokens, "orphan") })

	w := f.do(t, "POST", "/views/charge", "orphan", map[string]any{
		"employerId":     "orphan",
		"candidateIds":   []string{"A"},
		"subscriptionId": sub.ID.String(),
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}
