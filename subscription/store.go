package subscription

import (
	"context"

	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
)

// Store persists subscriptions. Balance changes go through the atomic
// methods; Update is only for whole-document admin edits.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	GetActiveByUser(ctx context.Context, userID string) (*Subscription, error)
	Deactivate(ctx context.Context, subID id.SubscriptionID) error

	// ConsumeIfSufficient decrements key by amount only when the current
	// count is at least amount, and reports whether it did.
	ConsumeIfSufficient(ctx context.Context, subID id.SubscriptionID, key feature.Key, amount int64) (bool, error)

	// GrantExtras increments every delta and appends extra in one write.
	GrantExtras(ctx context.Context, subID id.SubscriptionID, extra Extra) error

	// SetCounts overwrites the counts named in counts.
	SetCounts(ctx context.Context, subID id.SubscriptionID, counts map[feature.Key]int64) error
}
