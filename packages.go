package quota

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/gateway"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/types"
)

// ──────────────────────────────────────────────────
// Package Management
// ──────────────────────────────────────────────────

// QuotePackage prices req without creating plans or persisting anything.
func (e *Engine) QuotePackage(ctx context.Context, req *bundle.ComposeRequest) (*bundle.Package, error) {
	return e.compose(ctx, req)
}

// SavePackage prices req, creates its billing plans and persists it. A
// request with a PackageID replaces that package in place, keeping its
// creation time and color. A gateway failure persists nothing.
func (e *Engine) SavePackage(ctx context.Context, req *bundle.ComposeRequest) (*bundle.Package, error) {
	pkg, err := e.compose(ctx, req)
	if err != nil {
		return nil, err
	}

	var existing *bundle.Package
	if !req.PackageID.IsNil() {
		existing, err = e.store.GetPackage(ctx, req.PackageID)
		if err != nil {
			return nil, err
		}
	}

	if !pkg.IsFree {
		if err := e.createPlans(ctx, pkg); err != nil {
			return nil, err
		}
	}

	now := e.clock()
	if existing != nil {
		pkg.ID = existing.ID
		pkg.Entity = existing.Entity
		pkg.Touch(now)
		pkg.Color = existing.Color

		if err := e.recordAudit(ctx, audit.TypePackage, pkg.ID.String(), req.AdminID, pkg); err != nil {
			return nil, err
		}
		if err := e.store.ReplacePackage(ctx, pkg); err != nil {
			return nil, e.storeFault(ctx, "replace package", err)
		}

		e.plugins.EmitPackageReplaced(ctx, existing, pkg)
		return pkg, nil
	}

	pkg.ID = id.NewPackageID()
	pkg.Entity = types.NewEntityAt(now)
	pkg.Color = e.randomColor()

	if err := e.recordAudit(ctx, audit.TypePackage, pkg.ID.String(), req.AdminID, pkg); err != nil {
		return nil, err
	}
	if err := e.store.CreatePackage(ctx, pkg); err != nil {
		return nil, e.storeFault(ctx, "create package", err)
	}

	e.plugins.EmitPackageComposed(ctx, pkg)
	return pkg, nil
}

// GetPackage retrieves a package by ID.
func (e *Engine) GetPackage(ctx context.Context, pkgID id.PackageID) (*bundle.Package, error) {
	return e.store.GetPackage(ctx, pkgID)
}

// ListActivePackages returns the active packages sold in country. An empty
// country lists every country.
func (e *Engine) ListActivePackages(ctx context.Context, country string) ([]*bundle.Package, error) {
	return e.store.ListPackages(ctx, bundle.ListOpts{Country: country, ActiveOnly: true})
}

// DeactivatePackage withdraws a package from sale. Existing subscriptions
// keep their balances.
func (e *Engine) DeactivatePackage(ctx context.Context, pkgID id.PackageID, adminID string) error {
	pkg, err := e.store.GetPackage(ctx, pkgID)
	if err != nil {
		return err
	}

	if err := e.recordAudit(ctx, audit.TypePackage, pkgID.String(), adminID, pkg); err != nil {
		return err
	}
	if err := e.store.DeactivatePackage(ctx, pkgID); err != nil {
		return e.storeFault(ctx, "deactivate package", err)
	}

	e.plugins.EmitPackageDeactivated(ctx, pkgID.String())
	return nil
}

func (e *Engine) compose(ctx context.Context, req *bundle.ComposeRequest) (*bundle.Package, error) {
	if req == nil {
		return nil, ValidationError{Field: "request", Message: "is required"}
	}
	if err := e.check(req); err != nil {
		return nil, err
	}

	tiers, err := e.catalog.Tiers(ctx, req.Country)
	if err != nil {
		return nil, e.storeFault(ctx, "load tiers", err)
	}
	tax, err := e.catalog.Tax(ctx, req.Country)
	if err != nil {
		return nil, e.storeFault(ctx, "load tax rate", err)
	}

	return bundle.Compose(tiers, tax, req)
}

// createPlans creates the monthly and yearly plans concurrently and sets
// their ids on pkg only when both succeed.
func (e *Engine) createPlans(ctx context.Context, pkg *bundle.Package) error {
	if e.gateway == nil {
		return fmt.Errorf("%w: no payment gateway configured", ErrUpstreamFailure)
	}

	var monthly, yearly *gateway.Plan
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := e.gateway.CreatePlan(gctx, planRequest(pkg, types.PeriodMonthly))
		monthly = p
		return err
	})
	g.Go(func() error {
		p, err := e.gateway.CreatePlan(gctx, planRequest(pkg, types.PeriodYearly))
		yearly = p
		return err
	})

	if err := g.Wait(); err != nil {
		e.logger.ErrorContext(ctx, "plan creation failed",
			"package", pkg.Name,
			"country", pkg.Country,
			"error", err,
		)
		return fmt.Errorf("%w: create plan: %w", ErrUpstreamFailure, err)
	}

	pkg.PlanIDMonthly = monthly.ID
	pkg.PlanIDAnnually = yearly.ID
	return nil
}

func planRequest(pkg *bundle.Package, period types.Period) gateway.PlanRequest {
	return gateway.PlanRequest{
		Period:      period,
		Interval:    1,
		Name:        pkg.Name,
		Description: pkg.Description,
		Amount:      pkg.Amount(period),
		Metadata: map[string]string{
			"country":     pkg.Country,
			"packageName": pkg.Name,
		},
	}
}

func (e *Engine) randomColor() string {
	if len(e.palette) == 0 {
		return ""
	}
	return e.palette[e.pick(len(e.palette))]
}
