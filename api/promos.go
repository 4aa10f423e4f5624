package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xraph/quota"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/promo"
)

// CreatePromo handles POST /promos.
func (h *Handlers) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promo.Request
	if !decode(w, r, &req) {
		return
	}
	if _, ok := requireSelf(w, r, req.AdminID); !ok {
		return
	}

	p, err := h.engine.CreatePromo(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePromo handles PUT /promos/{id}.
func (h *Handlers) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	promoID, err := id.ParsePromoID(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, quota.ValidationError{Field: "id", Message: "is not a promo id"})
		return
	}

	var req promo.Request
	if !decode(w, r, &req) {
		return
	}
	if _, ok := requireSelf(w, r, req.AdminID); !ok {
		return
	}

	p, err := h.engine.UpdatePromo(r.Context(), promoID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListPromos handles GET /promos?country=&page=&limit=.
func (h *Handlers) ListPromos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := q.Get("country")
	if country == "" {
		writeMessage(w, http.StatusBadRequest, "country is required")
		return
	}

	page, ok := intParam(w, q.Get("page"), 1, "page")
	if !ok {
		return
	}
	limit, ok := intParam(w, q.Get("limit"), 20, "limit")
	if !ok {
		return
	}

	promos, err := h.engine.ListPromos(r.Context(), country, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if promos == nil {
		promos = []*promo.Promo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"promos": promos,
		"page":   page,
		"limit":  limit,
	})
}

// intParam parses a positive query parameter, falling back to def when the
// parameter is absent.
func intParam(w http.ResponseWriter, raw string, def int, name string) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeMessage(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}
