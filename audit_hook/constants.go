package audithook

// Action constants for audit events.
const (
	// Package actions
	ActionPackageComposed    = "package.composed"
	ActionPackageReplaced    = "package.replaced"
	ActionPackageDeactivated = "package.deactivated"

	// Subscription actions
	ActionSubscriptionActivated = "subscription.activated"
	ActionSubscriptionAdjusted  = "subscription.adjusted"
	ActionExtrasGranted         = "subscription.extras_granted"

	// Metering actions
	ActionViewsCharged        = "views.charged"
	ActionBalanceInsufficient = "balance.insufficient"

	// Promo actions
	ActionPromoCreated = "promo.created"
	ActionPromoUpdated = "promo.updated"
)

// Resource constants for audit events.
const (
	ResourcePackage      = "package"
	ResourceSubscription = "subscription"
	ResourcePromo        = "promo"
)

// Category constants for audit events.
const (
	CategoryCatalog      = "catalog"
	CategorySubscription = "subscription"
	CategoryUsage        = "usage"
	CategoryPromotion    = "promotion"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
