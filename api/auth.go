package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/xraph/quota/identity"
)

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom returns the caller identity stored by Authenticate.
func IdentityFrom(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*identity.Identity)
	return id, ok && id != nil
}

// Authenticate decodes the bearer token of every request. Requests without
// a valid token are rejected with 401.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			writeMessage(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		id, err := h.decoder.DecodeToken(r.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if !identity.IsAuthError(err) {
				h.logger.ErrorContext(r.Context(), "api: decode token", "error", err)
			}
			writeMessage(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// caller returns the request identity, or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

// requireSelf checks that the caller is userID. Super admins may act for
// anyone.
func requireSelf(w http.ResponseWriter, r *http.Request, userID string) (*identity.Identity, bool) {
	id, ok := caller(w, r)
	if !ok {
		return nil, false
	}
	if userID == "" || (id.UserID != userID && !id.SuperAdmin) {
		writeMessage(w, http.StatusUnauthorized, "identity does not match request")
		return nil, false
	}
	return id, true
}

// requireSuperAdmin checks that the caller is a super admin.
func requireSuperAdmin(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	id, ok := caller(w, r)
	if !ok {
		return nil, false
	}
	if !id.SuperAdmin {
		writeMessage(w, http.StatusUnauthorized, "super admin required")
		return nil, false
	}
	return id, true
}
