package quota

import (
	"context"
	"fmt"

	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/notify"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
)

// ──────────────────────────────────────────────────
// Subscription Management
// ──────────────────────────────────────────────────

// ActivateSubscription starts a subscription for userID on a package. The
// new subscription is written before the user's current one is
// deactivated, so a failed write leaves the user on their old plan.
func (e *Engine) ActivateSubscription(ctx context.Context, userID string, pkgID id.PackageID, period types.Period) (*subscription.Subscription, error) {
	if userID == "" {
		return nil, ValidationError{Field: "userId", Message: "is required"}
	}
	if !period.Valid() {
		return nil, ValidationError{Field: "period", Message: "must be monthly or yearly"}
	}

	pkg, err := e.store.GetPackage(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, ErrPackageInactive
	}

	current, err := e.store.GetActiveSubscription(ctx, userID)
	switch {
	case IsNotFound(err):
		current = nil
	case err != nil:
		return nil, e.storeFault(ctx, "get active subscription", err)
	}

	sub := subscription.FromPackage(userID, pkg, period, e.clock())
	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		return nil, e.storeFault(ctx, "create subscription", err)
	}

	if current != nil {
		if err := e.store.DeactivateSubscription(ctx, current.ID); err != nil {
			if rbErr := e.store.DeactivateSubscription(ctx, sub.ID); rbErr != nil {
				e.logger.ErrorContext(ctx, "user left with two active subscriptions",
					"user_id", userID,
					"previous_id", current.ID.String(),
					"subscription_id", sub.ID.String(),
					"error", rbErr,
				)
			}
			return nil, e.storeFault(ctx, "deactivate subscription", err)
		}
	}

	e.plugins.EmitSubscriptionActivated(ctx, sub)
	return sub, nil
}

// GetSubscription retrieves a subscription by ID.
func (e *Engine) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// GetSubscriptionByUser retrieves the active subscription of userID.
func (e *Engine) GetSubscriptionByUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return e.store.GetActiveSubscription(ctx, userID)
}

// DeactivateSubscription ends a subscription. Its balances are kept.
func (e *Engine) DeactivateSubscription(ctx context.Context, subID id.SubscriptionID) error {
	if err := e.store.DeactivateSubscription(ctx, subID); err != nil {
		return e.storeFault(ctx, "deactivate subscription", err)
	}
	return nil
}

// Grant tops up a subscription. Every input is validated before anything
// changes; the counts and the history entry are then written together and
// the account holder is emailed.
func (e *Engine) Grant(ctx context.Context, subID id.SubscriptionID, deltas map[feature.Key]int64, meta subscription.GrantMeta) (*subscription.Subscription, error) {
	if err := e.check(&meta); err != nil {
		return nil, err
	}
	if err := subscription.ValidatePaymentID(meta.PaymentID); err != nil {
		return nil, err
	}
	if err := subscription.ValidateDeltas(deltas); err != nil {
		return nil, err
	}

	sub, err := e.activeSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	extra := subscription.NewExtra(deltas, meta, e.clock())
	if err := e.store.GrantExtras(ctx, subID, extra); err != nil {
		return nil, e.storeFault(ctx, "grant extras", err)
	}

	e.plugins.EmitExtrasGranted(ctx, subID.String(), extra)
	e.notifyGrant(ctx, sub.UserID, deltas)

	return e.store.GetSubscription(ctx, subID)
}

// Consume debits amount of key from a subscription. The debit happens only
// if the balance covers it; otherwise ErrInsufficientBalance is returned
// and nothing changes.
func (e *Engine) Consume(ctx context.Context, subID id.SubscriptionID, key feature.Key, amount int64) error {
	if amount <= 0 {
		return ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	if f, ok := feature.Lookup(key); !ok || !f.Metered {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, key)
	}

	if _, err := e.activeSubscription(ctx, subID); err != nil {
		return err
	}
	return e.consume(ctx, subID, key, amount)
}

func (e *Engine) consume(ctx context.Context, subID id.SubscriptionID, key feature.Key, amount int64) error {
	ok, err := e.store.ConsumeIfSufficient(ctx, subID, key, amount)
	if err != nil {
		return e.storeFault(ctx, "consume", err)
	}
	if ok {
		return nil
	}

	var remaining int64
	if sub, err := e.store.GetSubscription(ctx, subID); err == nil {
		remaining = sub.Remaining(key)
	}
	e.plugins.EmitBalanceInsufficient(ctx, subID.String(), key, amount, remaining)
	return ErrInsufficientBalance
}

// AdjustSubscription sets absolute counts on a subscription. The current
// state is snapshotted to the audit trail first.
func (e *Engine) AdjustSubscription(ctx context.Context, subID id.SubscriptionID, counts map[feature.Key]int64, adminID string) (*subscription.Subscription, error) {
	if adminID == "" {
		return nil, ValidationError{Field: "adminId", Message: "is required"}
	}
	if len(counts) == 0 {
		return nil, ValidationError{Field: "balances", Message: "is required"}
	}
	if err := subscription.ValidateCounts(counts); err != nil {
		return nil, err
	}

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if err := e.recordAudit(ctx, audit.TypeSubscription, subID.String(), adminID, sub); err != nil {
		return nil, err
	}
	if err := e.store.SetCounts(ctx, subID, counts); err != nil {
		return nil, e.storeFault(ctx, "set counts", err)
	}

	e.plugins.EmitSubscriptionAdjusted(ctx, subID.String(), counts)
	return e.store.GetSubscription(ctx, subID)
}

func (e *Engine) activeSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, ErrSubscriptionInactive
	}
	return sub, nil
}

// notifyGrant emails the account holder. Failures are logged, never
// returned.
func (e *Engine) notifyGrant(ctx context.Context, userID string, deltas map[feature.Key]int64) {
	acct, err := e.store.GetAccount(ctx, userID)
	if err != nil || acct.Email == "" {
		e.logger.WarnContext(ctx, "grant notification skipped", "user_id", userID, "error", err)
		return
	}

	named := make(map[string]int64, len(deltas))
	for k, v := range deltas {
		named[string(k)] = v
	}
	if err := e.notifier.Send(ctx, notify.ExtrasGranted(acct.ID, acct.Email, named)); err != nil {
		e.logger.WarnContext(ctx, "grant notification failed", "user_id", userID, "error", err)
	}
}
