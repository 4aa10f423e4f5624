package bundle

import (
	"context"

	"github.com/xraph/quota/id"
)

// Store persists packages. Packages are never deleted.
type Store interface {
	Create(ctx context.Context, p *Package) error
	Get(ctx context.Context, pkgID id.PackageID) (*Package, error)
	List(ctx context.Context, opts ListOpts) ([]*Package, error)
	Replace(ctx context.Context, p *Package) error
	Deactivate(ctx context.Context, pkgID id.PackageID) error
}

// ListOpts filters package listings.
type ListOpts struct {
	Country    string
	ActiveOnly bool
	Limit      int
	Offset     int
}
