package quota

import (
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Period is re-exported from types package.
type Period = types.Period

// FeatureKey is re-exported from feature package.
type FeatureKey = feature.Key

// Billing periods.
const (
	Monthly = types.PeriodMonthly
	Yearly  = types.PeriodYearly
)

// Re-export Money constructors
var (
	FromMajor = types.FromMajor
	Zero      = types.Zero
)
