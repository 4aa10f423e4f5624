package quota

import (
	"context"
	"fmt"

	"github.com/xraph/quota/audit"
)

// DefaultPageSize and MaxPageSize bound list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ──────────────────────────────────────────────────
// Audit Trail
// ──────────────────────────────────────────────────

// ListAudit returns audit entries newest first. Empty typ or targetID match
// everything.
func (e *Engine) ListAudit(ctx context.Context, typ audit.Type, targetID string, limit, offset int) ([]*audit.Entry, error) {
	limit, offset = page(limit, offset)
	return e.store.ListAudit(ctx, audit.ListOpts{
		Type:     typ,
		TargetID: targetID,
		Limit:    limit,
		Offset:   offset,
	})
}

// recordAudit snapshots v before a mutation. The mutation must not proceed
// when it fails.
func (e *Engine) recordAudit(ctx context.Context, typ audit.Type, targetID, updatedBy string, v any) error {
	entry, err := audit.NewEntry(typ, targetID, updatedBy, v, e.clock())
	if err != nil {
		return e.storeFault(ctx, "snapshot "+string(typ), err)
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		return e.storeFault(ctx, "append audit", err)
	}
	return nil
}

// storeFault passes classified errors through and logs anything else as a
// persistence fault.
func (e *Engine) storeFault(ctx context.Context, op string, err error) error {
	if IsNotFound(err) || IsConflict(err) || IsInvalidInput(err) {
		return err
	}
	e.logger.ErrorContext(ctx, "store operation failed", "op", op, "error", err)
	return fmt.Errorf("quota: %s: %w", op, err)
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
