package api

import (
	"net/http"
	"strconv"

	"github.com/xraph/quota/audit"
)

// ListAudit handles GET /audit?type=&targetId=&limit=&offset=. Omitted
// filters match everything.
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := audit.Type(q.Get("type"))
	targetID := q.Get("targetId")

	limit, ok := intParam(w, q.Get("limit"), 50, "limit")
	if !ok {
		return
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	entries, err := h.engine.ListAudit(r.Context(), typ, targetID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
