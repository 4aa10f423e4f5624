// Package api exposes the quota engine over HTTP.
//
// Every route requires a bearer token decoded by an identity.Decoder. Admin
// routes additionally require the adminId in the body to match the caller,
// or the caller to be a super admin where noted.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/xraph/quota"
	"github.com/xraph/quota/identity"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handlers serves the quota HTTP API.
type Handlers struct {
	engine   *quota.Engine
	decoder  identity.Decoder
	logger   *slog.Logger
	validate *validator.Validate
}

// Option configures Handlers.
type Option func(*Handlers)

// WithLogger sets the logger used for internal errors.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) { h.logger = l }
}

// New creates Handlers over engine, authenticating callers with decoder.
func New(engine *quota.Engine, decoder identity.Decoder, opts ...Option) *Handlers {
	h := &Handlers{
		engine:   engine,
		decoder:  decoder,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers quota routes on router. The caller is expected
// to wrap router with Authenticate.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Packages
	router.HandleFunc("/packages", h.SavePackage).Methods("POST")
	router.HandleFunc("/packages/quote", h.QuotePackage).Methods("POST")
	router.HandleFunc("/packages", h.ListPackages).Methods("GET")
	router.HandleFunc("/packages/{id}", h.GetPackage).Methods("GET")
	router.HandleFunc("/packages/{id}/deactivate", h.DeactivatePackage).Methods("POST")

	// Promos
	router.HandleFunc("/promos", h.CreatePromo).Methods("POST")
	router.HandleFunc("/promos/{id}", h.UpdatePromo).Methods("PUT")
	router.HandleFunc("/promos", h.ListPromos).Methods("GET")

	// Subscriptions
	router.HandleFunc("/subscriptions/{id}", h.GetSubscription).Methods("GET")
	router.HandleFunc("/subscriptions/{id}", h.AdjustSubscription).Methods("PUT")
	router.HandleFunc("/subscriptions/{id}/upgrade", h.UpgradeSubscription).Methods("POST")

	// Views
	router.HandleFunc("/views/charge", h.ChargeViews).Methods("POST")

	// Audit
	router.HandleFunc("/audit", h.ListAudit).Methods("GET")
}

// Router returns a router with every route registered behind Authenticate.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.Authenticate)
	h.RegisterRoutes(router)
	return router
}

// Handler returns the API as an http.Handler rooted at prefix.
func (h *Handlers) Handler(prefix string) http.Handler {
	if prefix == "" || prefix == "/" {
		return h.Router()
	}
	router := mux.NewRouter()
	sub := router.PathPrefix(prefix).Subrouter()
	sub.Use(h.Authenticate)
	h.RegisterRoutes(sub)
	return router
}
