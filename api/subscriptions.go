package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xraph/quota"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/subscription"
)

// AdjustRequest sets absolute balances on a subscription.
type AdjustRequest struct {
	Balances map[feature.Key]int64 `json:"balances" validate:"required,min=1"`
}

// UpgradeRequest grants top-ups to a subscription.
type UpgradeRequest struct {
	AdminID   string                `json:"adminId" validate:"required"`
	PaymentID string                `json:"paymentId"`
	Note      string                `json:"note" validate:"max=500"`
	Deltas    map[feature.Key]int64 `json:"deltas" validate:"required,min=1"`
}

// GetSubscription handles GET /subscriptions/{id}.
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	subID, ok := h.subscriptionID(w, r)
	if !ok {
		return
	}

	sub, err := h.engine.GetSubscription(r.Context(), subID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// AdjustSubscription handles PUT /subscriptions/{id}.
func (h *Handlers) AdjustSubscription(w http.ResponseWriter, r *http.Request) {
	admin, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	subID, ok := h.subscriptionID(w, r)
	if !ok {
		return
	}

	var req AdjustRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.engine.AdjustSubscription(r.Context(), subID, req.Balances, admin.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// UpgradeSubscription handles POST /subscriptions/{id}/upgrade.
func (h *Handlers) UpgradeSubscription(w http.ResponseWriter, r *http.Request) {
	subID, ok := h.subscriptionID(w, r)
	if !ok {
		return
	}

	var req UpgradeRequest
	if !decode(w, r, &req) {
		return
	}
	if _, ok := requireSelf(w, r, req.AdminID); !ok {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.engine.Grant(r.Context(), subID, req.Deltas, subscription.GrantMeta{
		CreatedBy: req.AdminID,
		PaymentID: req.PaymentID,
		Note:      req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handlers) subscriptionID(w http.ResponseWriter, r *http.Request) (id.SubscriptionID, bool) {
	subID, err := id.ParseSubscriptionID(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, quota.ValidationError{Field: "id", Message: "is not a subscription id"})
		return id.SubscriptionID{}, false
	}
	return subID, true
}
