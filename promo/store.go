package promo

import (
	"context"

	"github.com/xraph/quota/id"
)

// Store persists promos. Create and Update reject a (code, country) pair
// already held by another promo.
type Store interface {
	Create(ctx context.Context, p *Promo) error
	Get(ctx context.Context, promoID id.PromoID) (*Promo, error)
	GetByCode(ctx context.Context, code, country string) (*Promo, error)
	List(ctx context.Context, opts ListOpts) ([]*Promo, error)
	Update(ctx context.Context, p *Promo) error
}

// ListOpts filters promo listings.
type ListOpts struct {
	Country string
	Limit   int
	Offset  int
}
