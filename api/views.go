package api

import (
	"net/http"

	"github.com/xraph/quota/id"
)

// ChargeRequest charges an employer's views of candidate profiles.
type ChargeRequest struct {
	EmployerID     string            `json:"employerId" validate:"required"`
	CandidateIDs   []string          `json:"candidateIds" validate:"required,min=1,dive,required"`
	SubscriptionID id.SubscriptionID `json:"subscriptionId"`
}

// ChargeViews handles POST /views/charge. The caller must be the employer.
func (h *Handlers) ChargeViews(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	who, ok := caller(w, r)
	if !ok {
		return
	}
	if who.UserID != req.EmployerID {
		writeMessage(w, http.StatusUnauthorized, "identity does not match employer")
		return
	}

	res, err := h.engine.ChargeViews(r.Context(), req.EmployerID, req.CandidateIDs, req.SubscriptionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
