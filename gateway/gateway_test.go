package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/quota/types"
)

func TestHTTPClientCreatePlan(t *testing.T) {
	var got planBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/plans", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"plan_123","entity":"plan"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("key", "secret", WithBaseURL(srv.URL))
	plan, err := c.CreatePlan(context.Background(), PlanRequest{
		Period:   types.PeriodMonthly,
		Name:     "Starter",
		Amount:   types.New(37800, "inr"),
		Metadata: map[string]string{"country": "IN"},
	})
	require.NoError(t, err)
	assert.Equal(t, "plan_123", plan.ID)
	assert.Equal(t, "monthly", got.Period)
	assert.Equal(t, 1, got.Interval)
	assert.Equal(t, int64(37800), got.Item.Amount)
	assert.Equal(t, "INR", got.Item.Currency)
	assert.Equal(t, "IN", got.Notes["country"])
}

func TestHTTPClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount is required"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient("k", "s", WithBaseURL(srv.URL)).CreatePlan(context.Background(), PlanRequest{Period: types.PeriodYearly})
	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusBadRequest, gerr.Status)
	assert.Equal(t, "amount is required", gerr.Message)
}

func TestFake(t *testing.T) {
	f := NewFake()
	f.FailOn(types.PeriodYearly, &Error{Status: 500, Message: "down"})

	p, err := f.CreatePlan(context.Background(), PlanRequest{Period: types.PeriodMonthly})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	_, err = f.CreatePlan(context.Background(), PlanRequest{Period: types.PeriodYearly})
	require.Error(t, err)
	assert.Len(t, f.Requests(), 2)

	f.FailOn(types.PeriodYearly, nil)
	_, err = f.CreatePlan(context.Background(), PlanRequest{Period: types.PeriodYearly})
	require.NoError(t, err)
}
