package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xraph/quota"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/id"
)

// SavePackage handles POST /packages. A body with a packageId replaces that
// package.
func (h *Handlers) SavePackage(w http.ResponseWriter, r *http.Request) {
	var req bundle.ComposeRequest
	if !decode(w, r, &req) {
		return
	}
	if _, ok := requireSelf(w, r, req.AdminID); !ok {
		return
	}

	pkg, err := h.engine.SavePackage(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

// QuotePackage handles POST /packages/quote. Nothing is persisted.
func (h *Handlers) QuotePackage(w http.ResponseWriter, r *http.Request) {
	var req bundle.ComposeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AdminID == "" {
		if who, ok := IdentityFrom(r.Context()); ok {
			req.AdminID = who.UserID
		}
	}

	pkg, err := h.engine.QuotePackage(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// ListPackages handles GET /packages?country=.
func (h *Handlers) ListPackages(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		writeMessage(w, http.StatusBadRequest, "country is required")
		return
	}

	pkgs, err := h.engine.ListActivePackages(r.Context(), country)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if pkgs == nil {
		pkgs = []*bundle.Package{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"packages": pkgs,
		"count":    len(pkgs),
	})
}

// GetPackage handles GET /packages/{id}.
func (h *Handlers) GetPackage(w http.ResponseWriter, r *http.Request) {
	pkgID, ok := h.packageID(w, r)
	if !ok {
		return
	}

	pkg, err := h.engine.GetPackage(r.Context(), pkgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// DeactivatePackage handles POST /packages/{id}/deactivate.
func (h *Handlers) DeactivatePackage(w http.ResponseWriter, r *http.Request) {
	admin, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	pkgID, ok := h.packageID(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeactivatePackage(r.Context(), pkgID, admin.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) packageID(w http.ResponseWriter, r *http.Request) (id.PackageID, bool) {
	pkgID, err := id.ParsePackageID(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, quota.ValidationError{Field: "id", Message: "is not a package id"})
		return id.PackageID{}, false
	}
	return pkgID, true
}
