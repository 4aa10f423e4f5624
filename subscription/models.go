// Package subscription holds per-employer balances and their top-up history.
package subscription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/types"
)

var (
	// ErrInvalidPaymentID means a payment id does not have exactly one
	// "pay_" marker followed by a reference.
	ErrInvalidPaymentID = errors.New("quota: invalid payment id")
	ErrInvalidDelta     = errors.New("quota: balance delta must be positive")
	ErrNegativeBalance  = errors.New("quota: balance count cannot be negative")
)

// PaymentMarker separates the gateway prefix from the payment reference.
const PaymentMarker = "pay_"

// Balance is the remaining count of one feature.
type Balance struct {
	IsIncluded               bool  `json:"isIncluded"`
	Count                    int64 `json:"count"`
	ExpiryAfterPackageExpiry int   `json:"expiryAfterPackageExpiry,omitempty"`
}

// Extra is one immutable top-up of a subscription.
type Extra struct {
	Deltas    map[feature.Key]int64 `json:"deltas"`
	CreatedBy string                `json:"createdBy"`
	PaymentID string                `json:"paymentId,omitempty"`
	Note      string                `json:"note,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Subscription is the balance record shared by an account group.
type Subscription struct {
	types.Entity
	ID        id.SubscriptionID       `json:"id"`
	UserID    string                  `json:"userId"`
	IsActive  bool                    `json:"isActive"`
	IsFree    bool                    `json:"isFree"`
	PackageID id.PackageID            `json:"packageId"`
	Period    types.Period            `json:"period"`
	Balances  map[feature.Key]Balance `json:"balances"`
	Extras    []Extra                 `json:"extras,omitempty"`
}

// Remaining returns the count left for key, or zero when the feature is
// absent.
func (s *Subscription) Remaining(key feature.Key) int64 {
	return s.Balances[key].Count
}

// FromPackage builds an active subscription for userID seeded with pkg's
// quantities for period.
func FromPackage(userID string, pkg *bundle.Package, period types.Period, now time.Time) *Subscription {
	sub := &Subscription{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewSubscriptionID(),
		UserID:    userID,
		IsActive:  true,
		IsFree:    pkg.IsFree,
		PackageID: pkg.ID,
		Period:    period,
		Balances:  make(map[feature.Key]Balance, len(pkg.Features)),
	}
	for i := range pkg.Features {
		l := &pkg.Features[i]
		b := Balance{IsIncluded: l.IsIncluded, ExpiryAfterPackageExpiry: l.ExpiryAfterPackageExpiry}
		if l.IsIncluded {
			b.Count = l.Quantity(period)
		}
		sub.Balances[l.Feature] = b
	}
	return sub
}

// GrantMeta describes who granted a top-up and why.
type GrantMeta struct {
	CreatedBy string `json:"createdBy" validate:"required"`
	PaymentID string `json:"paymentId"`
	Note      string `json:"note" validate:"max=500"`
}

// ValidatePaymentID checks a gateway payment id. An empty id is allowed.
func ValidatePaymentID(paymentID string) error {
	if paymentID == "" {
		return nil
	}
	if strings.Count(paymentID, PaymentMarker) != 1 {
		return ErrInvalidPaymentID
	}
	_, ref, _ := strings.Cut(paymentID, PaymentMarker)
	if strings.TrimSpace(ref) == "" {
		return ErrInvalidPaymentID
	}
	return nil
}

// ValidateDeltas checks that deltas name known metered features and are
// all positive.
func ValidateDeltas(deltas map[feature.Key]int64) error {
	if len(deltas) == 0 {
		return fmt.Errorf("%w: no deltas", ErrInvalidDelta)
	}
	for key, n := range deltas {
		f, ok := feature.Lookup(key)
		if !ok || !f.Metered {
			return fmt.Errorf("%w: %s", bundle.ErrUnknownFeature, key)
		}
		if n <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidDelta, key)
		}
	}
	return nil
}

// ValidateCounts checks absolute counts set by an admin adjustment.
func ValidateCounts(counts map[feature.Key]int64) error {
	for key, n := range counts {
		if !feature.Valid(key) {
			return fmt.Errorf("%w: %s", bundle.ErrUnknownFeature, key)
		}
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeBalance, key)
		}
	}
	return nil
}

// NewExtra builds the history entry for a grant.
func NewExtra(deltas map[feature.Key]int64, meta GrantMeta, now time.Time) Extra {
	copied := make(map[feature.Key]int64, len(deltas))
	for k, v := range deltas {
		copied[k] = v
	}
	return Extra{
		Deltas:    copied,
		CreatedBy: meta.CreatedBy,
		PaymentID: meta.PaymentID,
		Note:      meta.Note,
		CreatedAt: now.UTC(),
	}
}
