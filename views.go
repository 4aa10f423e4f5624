package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/lock"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/viewcharge"
)

// systemActor signs balance changes the engine makes on its own.
const systemActor = "system"

// ChargeResult is the outcome of a view charge.
type ChargeResult struct {
	// Charged are the candidates debited by this call.
	Charged []string `json:"charged"`
	// AlreadyCharged were live for the group and cost nothing.
	AlreadyCharged []string `json:"alreadyCharged"`
	// Remaining is the view balance after the call.
	Remaining int64 `json:"remaining"`
}

// ──────────────────────────────────────────────────
// View Metering
// ──────────────────────────────────────────────────

// ChargeViews debits one view per candidate the employer's group has not
// already viewed within its charge window. Either every new candidate is
// charged or none is.
func (e *Engine) ChargeViews(ctx context.Context, employerID string, candidateIDs []string, subID id.SubscriptionID) (*ChargeResult, error) {
	candidates := viewcharge.Dedupe(candidateIDs)
	if employerID == "" {
		return nil, ValidationError{Field: "employerId", Message: "is required"}
	}
	if len(candidates) == 0 {
		return nil, ValidationError{Field: "candidateIds", Message: "is required"}
	}

	group, err := e.ResolveGroup(ctx, employerID)
	if err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	release, err := e.locker.Acquire(lockCtx, "views:"+group.MasterID)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, fmt.Errorf("%w: %s", ErrGroupBusy, group.MasterID)
		}
		return nil, e.storeFault(ctx, "acquire group lock", err)
	}
	defer release()

	sub, err := e.activeSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if !group.Contains(sub.UserID) {
		return nil, fmt.Errorf("%w: subscription does not belong to the group", ErrUnauthorized)
	}

	now := e.clock()
	existing, err := e.store.FindViewCharges(ctx, group.MemberIDs, candidates, now)
	if err != nil {
		return nil, e.storeFault(ctx, "find view charges", err)
	}

	fresh := viewcharge.Uncharged(candidates, existing, now)
	result := &ChargeResult{
		Charged:        fresh,
		AlreadyCharged: alreadyCharged(candidates, fresh),
		Remaining:      sub.Remaining(feature.Views),
	}
	if len(fresh) == 0 {
		return result, nil
	}

	need := int64(len(fresh))
	if result.Remaining < need {
		e.plugins.EmitBalanceInsufficient(ctx, subID.String(), feature.Views, need, result.Remaining)
		return nil, ErrInsufficientBalance
	}
	if err := e.consume(ctx, subID, feature.Views, need); err != nil {
		return nil, err
	}

	expiration := viewcharge.ExpirationFor(now, sub.Balances[feature.Views].ExpiryAfterPackageExpiry)
	charges := make([]*viewcharge.ViewCharge, 0, len(fresh))
	for _, c := range fresh {
		charges = append(charges, &viewcharge.ViewCharge{
			ID:          id.NewViewChargeID(),
			GroupID:     group.MasterID,
			EmployerID:  employerID,
			CandidateID: c,
			CreatedAt:   now,
			Expiration:  expiration,
		})
	}
	if err := e.store.InsertViewCharges(ctx, charges); err != nil {
		e.refundViews(ctx, subID, need, now)
		return nil, e.storeFault(ctx, "insert view charges", err)
	}

	result.Remaining -= need
	e.plugins.EmitViewsCharged(ctx, group.MasterID, subID.String(), fresh)
	return result, nil
}

// PurgeExpiredViewCharges deletes charges whose window has closed.
func (e *Engine) PurgeExpiredViewCharges(ctx context.Context) (int64, error) {
	return e.store.PurgeExpiredViewCharges(ctx, e.clock())
}

// refundViews returns a debit whose charge rows were never written. The
// credit is logged as a system extra so the balance history still adds up.
func (e *Engine) refundViews(ctx context.Context, subID id.SubscriptionID, count int64, now time.Time) {
	refund := subscription.NewExtra(
		map[feature.Key]int64{feature.Views: count},
		subscription.GrantMeta{CreatedBy: systemActor, Note: "refund: view charge log not written"},
		now,
	)
	if err := e.store.GrantExtras(ctx, subID, refund); err != nil {
		e.logger.ErrorContext(ctx, "views debited but charge log insert and refund failed",
			"subscription_id", subID.String(),
			"count", count,
			"error", err,
		)
	}
}

func alreadyCharged(candidates, fresh []string) []string {
	out := make([]string, 0, len(candidates)-len(fresh))
	isFresh := make(map[string]struct{}, len(fresh))
	for _, c := range fresh {
		isFresh[c] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := isFresh[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
