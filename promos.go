package quota

import (
	"context"
	"fmt"

	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/types"
)

// ──────────────────────────────────────────────────
// Promo Codes
// ──────────────────────────────────────────────────

// CreatePromo creates a promo code. The currency comes from the country's
// reference rates, so a country without tiers cannot have promos.
func (e *Engine) CreatePromo(ctx context.Context, req *promo.Request) (*promo.Promo, error) {
	currency, err := e.checkPromo(ctx, req)
	if err != nil {
		return nil, err
	}

	p := &promo.Promo{
		Entity:    types.NewEntityAt(e.clock()),
		ID:        id.NewPromoID(),
		CreatedBy: req.AdminID,
		IsActive:  true,
	}
	req.Apply(p)
	p.Currency = currency

	if err := e.ensureCodeFree(ctx, p.Code, p.Country, id.Nil); err != nil {
		return nil, err
	}
	if err := e.store.CreatePromo(ctx, p); err != nil {
		return nil, e.storeFault(ctx, "create promo", err)
	}

	e.plugins.EmitPromoCreated(ctx, p)
	return p, nil
}

// UpdatePromo replaces the editable fields of a promo. The previous state
// is snapshotted to the audit trail first.
func (e *Engine) UpdatePromo(ctx context.Context, promoID id.PromoID, req *promo.Request) (*promo.Promo, error) {
	currency, err := e.checkPromo(ctx, req)
	if err != nil {
		return nil, err
	}

	old, err := e.store.GetPromo(ctx, promoID)
	if err != nil {
		return nil, err
	}

	updated := *old
	req.Apply(&updated)
	updated.Currency = currency
	updated.Touch(e.clock())

	if err := e.ensureCodeFree(ctx, updated.Code, updated.Country, promoID); err != nil {
		return nil, err
	}
	if err := e.recordAudit(ctx, audit.TypePromo, promoID.String(), req.AdminID, old); err != nil {
		return nil, err
	}
	if err := e.store.UpdatePromo(ctx, &updated); err != nil {
		return nil, e.storeFault(ctx, "update promo", err)
	}

	e.plugins.EmitPromoUpdated(ctx, old, &updated)
	return &updated, nil
}

// GetPromo retrieves a promo by ID.
func (e *Engine) GetPromo(ctx context.Context, promoID id.PromoID) (*promo.Promo, error) {
	return e.store.GetPromo(ctx, promoID)
}

// ListPromos returns one page of promos, newest first. Pages start at 1;
// limit defaults to DefaultPageSize and is capped at MaxPageSize.
func (e *Engine) ListPromos(ctx context.Context, country string, pageNum, limit int) ([]*promo.Promo, error) {
	if pageNum < 1 {
		pageNum = 1
	}
	limit, _ = page(limit, 0)
	return e.store.ListPromos(ctx, promo.ListOpts{
		Country: country,
		Limit:   limit,
		Offset:  (pageNum - 1) * limit,
	})
}

func (e *Engine) checkPromo(ctx context.Context, req *promo.Request) (string, error) {
	if req == nil {
		return "", ValidationError{Field: "request", Message: "is required"}
	}
	if err := e.check(req); err != nil {
		return "", err
	}
	if err := req.Check(); err != nil {
		return "", err
	}

	currency, err := e.catalog.Currency(ctx, req.Country)
	if err != nil {
		if IsInvalidInput(err) {
			return "", fmt.Errorf("%w: no pricing tiers for country %s", ErrInvalidInput, req.Country)
		}
		return "", e.storeFault(ctx, "load currency", err)
	}
	return currency, nil
}

// ensureCodeFree fails with ErrPromoExists when another promo holds code in
// country. self is excluded.
func (e *Engine) ensureCodeFree(ctx context.Context, code, country string, self id.PromoID) error {
	holder, err := e.store.GetPromoByCode(ctx, code, country)
	switch {
	case IsNotFound(err):
		return nil
	case err != nil:
		return e.storeFault(ctx, "get promo by code", err)
	case holder.ID.String() == self.String() && !self.IsNil():
		return nil
	default:
		return ErrPromoExists
	}
}
