package quota

import (
	"errors"
	"fmt"

	"github.com/xraph/quota/account"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("quota: not found")
	ErrConflict     = errors.New("quota: conflict")
	ErrInvalidInput = errors.New("quota: invalid input")
	ErrUnauthorized = errors.New("quota: unauthorized")

	// Entity errors
	ErrPackageNotFound      = errors.New("quota: package not found")
	ErrPackageInactive      = errors.New("quota: package is inactive")
	ErrSubscriptionNotFound = errors.New("quota: subscription not found")
	ErrSubscriptionInactive = errors.New("quota: subscription is inactive")
	ErrPromoNotFound        = errors.New("quota: promo not found")
	ErrIdentityNotFound     = errors.New("quota: account not found")
	ErrAuditNotFound        = errors.New("quota: audit entry not found")

	// Conflict errors
	ErrPromoExists   = errors.New("quota: promo code already exists in country")
	ErrSlaveAttached = errors.New("quota: account already attached to a master")
	ErrAccountExists = errors.New("quota: account already exists")

	// Balance errors
	ErrInsufficientBalance = errors.New("quota: insufficient balance")

	// Upstream errors
	ErrUpstreamFailure = errors.New("quota: upstream failure")
	ErrGroupBusy       = errors.New("quota: account group is busy")

	// Store errors
	ErrStoreNotReady = errors.New("quota: store not ready")
	ErrStoreClosed   = errors.New("quota: store is closed")
)

// Errors declared by the domain packages.
var (
	ErrAccountNotFound    = account.ErrAccountNotFound
	ErrNotMaster          = account.ErrNotMaster
	ErrMasterAsSlave      = account.ErrMasterAsSlave
	ErrMissingTier        = bundle.ErrMissingTier
	ErrUnknownFeature     = bundle.ErrUnknownFeature
	ErrInvalidDiscount    = bundle.ErrInvalidDiscount
	ErrZeroTierCount      = pricing.ErrZeroTierCount
	ErrTierNotFound       = pricing.ErrTierNotFound
	ErrInvalidPaymentID   = subscription.ErrInvalidPaymentID
	ErrInvalidDelta       = subscription.ErrInvalidDelta
	ErrNegativeBalance    = subscription.ErrNegativeBalance
	ErrInvalidPromoAmount = promo.ErrInvalidAmount
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("quota: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "quota: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("quota: %d errors occurred", len(e.Errors))
}

// Unwrap returns the collected errors.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error. An account
// that exists but belongs to no group is not a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPackageNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPromoNotFound) ||
		errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrAuditNotFound)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrPromoExists) ||
		errors.Is(err, ErrSlaveAttached) ||
		errors.Is(err, ErrMasterAsSlave) ||
		errors.Is(err, ErrAccountExists)
}

// IsInvalidInput returns true if the error was caused by the request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingTier) ||
		errors.Is(err, ErrUnknownFeature) ||
		errors.Is(err, ErrInvalidDiscount) ||
		errors.Is(err, ErrZeroTierCount) ||
		errors.Is(err, ErrTierNotFound) ||
		errors.Is(err, ErrInvalidPaymentID) ||
		errors.Is(err, ErrInvalidDelta) ||
		errors.Is(err, ErrNegativeBalance) ||
		errors.Is(err, ErrInvalidPromoAmount) ||
		errors.Is(err, ErrNotMaster) ||
		errors.Is(err, ErrPackageInactive) ||
		errors.Is(err, ErrSubscriptionInactive)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrUpstreamFailure) ||
		errors.Is(err, ErrGroupBusy)
}
