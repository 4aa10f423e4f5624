// Package audithook bridges quota lifecycle events to an audit trail backend.
//
// It complements the engine's own pre-mutation snapshots with an event
// stream of what happened after each change. Backends implement Recorder;
// SlogRecorder writes events to a structured logger.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/plugin"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnPackageComposed       = (*Extension)(nil)
	_ plugin.OnPackageReplaced       = (*Extension)(nil)
	_ plugin.OnPackageDeactivated    = (*Extension)(nil)
	_ plugin.OnSubscriptionActivated = (*Extension)(nil)
	_ plugin.OnSubscriptionAdjusted  = (*Extension)(nil)
	_ plugin.OnExtrasGranted         = (*Extension)(nil)
	_ plugin.OnViewsCharged          = (*Extension)(nil)
	_ plugin.OnBalanceInsufficient   = (*Extension)(nil)
	_ plugin.OnPromoCreated          = (*Extension)(nil)
	_ plugin.OnPromoUpdated          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one recorded lifecycle event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder returns a Recorder that logs each event at info level, or
// warn for anything that is not a success.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		if evt.Outcome != OutcomeSuccess {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "audit",
			"action", evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"category", evt.Category,
			"metadata", evt.Metadata,
		)
		return nil
	})
}

// Extension bridges quota lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Package hooks
// ──────────────────────────────────────────────────

// OnPackageComposed implements plugin.OnPackageComposed.
func (e *Extension) OnPackageComposed(ctx context.Context, pkg *bundle.Package) error {
	return e.record(ctx, ActionPackageComposed, SeverityInfo, OutcomeSuccess,
		ResourcePackage, pkg.ID.String(), CategoryCatalog, nil,
		"country", pkg.Country,
		"total_monthly", pkg.TotalMonthly,
		"total_yearly", pkg.TotalYearly,
		"created_by", pkg.CreatedBy,
	)
}

// OnPackageReplaced implements plugin.OnPackageReplaced.
func (e *Extension) OnPackageReplaced(ctx context.Context, oldPkg, newPkg *bundle.Package) error {
	return e.record(ctx, ActionPackageReplaced, SeverityInfo, OutcomeSuccess,
		ResourcePackage, newPkg.ID.String(), CategoryCatalog, nil,
		"old_total_monthly", oldPkg.TotalMonthly,
		"new_total_monthly", newPkg.TotalMonthly,
		"updated_by", newPkg.CreatedBy,
	)
}

// OnPackageDeactivated implements plugin.OnPackageDeactivated.
func (e *Extension) OnPackageDeactivated(ctx context.Context, pkgID string) error {
	return e.record(ctx, ActionPackageDeactivated, SeverityWarning, OutcomeSuccess,
		ResourcePackage, pkgID, CategoryCatalog, nil,
		"package_id", pkgID,
	)
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (e *Extension) OnSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionActivated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"user_id", sub.UserID,
		"package_id", sub.PackageID.String(),
		"period", string(sub.Period),
	)
}

// OnSubscriptionAdjusted implements plugin.OnSubscriptionAdjusted.
func (e *Extension) OnSubscriptionAdjusted(ctx context.Context, subID string, counts map[feature.Key]int64) error {
	return e.record(ctx, ActionSubscriptionAdjusted, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"counts", counts,
	)
}

// OnExtrasGranted implements plugin.OnExtrasGranted.
func (e *Extension) OnExtrasGranted(ctx context.Context, subID string, extra subscription.Extra) error {
	return e.record(ctx, ActionExtrasGranted, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"deltas", extra.Deltas,
		"payment_id", extra.PaymentID,
		"created_by", extra.CreatedBy,
	)
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

// OnViewsCharged implements plugin.OnViewsCharged.
func (e *Extension) OnViewsCharged(ctx context.Context, groupID, subID string, candidateIDs []string) error {
	return e.record(ctx, ActionViewsCharged, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subID, CategoryUsage, nil,
		"group_id", groupID,
		"charged", len(candidateIDs),
	)
}

// OnBalanceInsufficient implements plugin.OnBalanceInsufficient.
func (e *Extension) OnBalanceInsufficient(ctx context.Context, subID string, key feature.Key, requested, remaining int64) error {
	return e.record(ctx, ActionBalanceInsufficient, SeverityWarning, OutcomeFailure,
		ResourceSubscription, subID, CategoryUsage, nil,
		"feature", string(key),
		"requested", requested,
		"remaining", remaining,
	)
}

// ──────────────────────────────────────────────────
// Promo hooks
// ──────────────────────────────────────────────────

// OnPromoCreated implements plugin.OnPromoCreated.
func (e *Extension) OnPromoCreated(ctx context.Context, p *promo.Promo) error {
	return e.record(ctx, ActionPromoCreated, SeverityInfo, OutcomeSuccess,
		ResourcePromo, p.ID.String(), CategoryPromotion, nil,
		"code", p.Code,
		"country", p.Country,
		"created_by", p.CreatedBy,
	)
}

// OnPromoUpdated implements plugin.OnPromoUpdated.
func (e *Extension) OnPromoUpdated(ctx context.Context, oldPromo, newPromo *promo.Promo) error {
	return e.record(ctx, ActionPromoUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePromo, newPromo.ID.String(), CategoryPromotion, nil,
		"old_code", oldPromo.Code,
		"code", newPromo.Code,
		"country", newPromo.Country,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
