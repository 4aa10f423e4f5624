// Package bundle composes per-feature prices into a priced package.
//
// Compose is pure: given a country's tiers, its tax rate and an authoring
// request it returns the package with every total filled in. Plan creation,
// persistence and auditing happen in the engine.
package bundle

import (
	"errors"

	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/types"
)

var (
	// ErrMissingTier means a line that needs pricing has no reference rate
	// in the package's country.
	ErrMissingTier     = errors.New("quota: pricing tier missing for feature")
	ErrUnknownFeature  = errors.New("quota: unknown feature")
	ErrInvalidDiscount = errors.New("quota: discount must be between 0 and 100")
)

// LineRequest is what an admin supplies for one feature.
type LineRequest struct {
	IsIncluded      bool    `json:"isIncluded"`
	IsFree          bool    `json:"isFree"`
	IsUnlimited     bool    `json:"isUnlimited"`
	MonthlyCount    int64   `json:"monthlyCount" validate:"gte=0"`
	YearlyCount     int64   `json:"yearlyCount" validate:"gte=0"`
	IsForcedMonthly bool    `json:"isForcedMonthly"`
	ForcedMonthly   float64 `json:"forcedMonthly" validate:"gte=0"`
	IsForcedYearly  bool    `json:"isForcedYearly"`
	ForcedYearly    float64 `json:"forcedYearly" validate:"gte=0"`
	// ExpiryAfterPackageExpiry is the lifetime in days of what the feature
	// grants, e.g. how long a charged view stays free to revisit. Zero
	// means it never expires.
	ExpiryAfterPackageExpiry int `json:"expiryAfterPackageExpiry" validate:"gte=0"`
}

// ComposeRequest is an authoring request for a package. A non-nil
// PackageID replaces that package in place.
type ComposeRequest struct {
	PackageID       id.PackageID                `json:"packageId"`
	Name            string                      `json:"name" validate:"required,max=120"`
	Description     string                      `json:"description" validate:"max=2000"`
	Country         string                      `json:"country" validate:"required,len=2"`
	AdminID         string                      `json:"adminId" validate:"required"`
	IsFree          bool                        `json:"isFree"`
	IsCustom        bool                        `json:"isCustom"`
	PackageDiscount float64                     `json:"packageDiscount" validate:"gte=0,lte=100"`
	MonthlyDiscount float64                     `json:"monthlyDiscount" validate:"gte=0,lte=100"`
	YearlyDiscount  float64                     `json:"yearlyDiscount" validate:"gte=0,lte=100"`
	Features        map[feature.Key]LineRequest `json:"features" validate:"dive"`
}

// FeatureLine is one priced feature of a package.
type FeatureLine struct {
	LineRequest
	Feature              feature.Key `json:"feature"`
	TotalMonthly         float64     `json:"totalMonthly"`
	TotalYearly          float64     `json:"totalYearly"`
	TotalMonthlyOriginal float64     `json:"totalMonthlyOriginal"`
	TotalYearlyOriginal  float64     `json:"totalYearlyOriginal"`
}

// Package is a priced feature bundle sold in one country.
type Package struct {
	types.Entity
	ID          id.PackageID  `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Country     string        `json:"country"`
	Currency    string        `json:"currency"`
	Color       string        `json:"color,omitempty"`
	Features    []FeatureLine `json:"features"`

	PackageDiscount float64 `json:"packageDiscount"`
	MonthlyDiscount float64 `json:"monthlyDiscount"`
	YearlyDiscount  float64 `json:"yearlyDiscount"`
	TaxType         string  `json:"taxType,omitempty"`
	TaxAmount       float64 `json:"taxAmount"`

	TotalMonthlyBeforeTax float64 `json:"totalMonthlyBeforeTax"`
	TotalYearlyBeforeTax  float64 `json:"totalYearlyBeforeTax"`
	TotalMonthly          float64 `json:"totalMonthly"`
	TotalYearly           float64 `json:"totalYearly"`

	// Display only. These never feed back into what is charged.
	TotalMonthlyOriginal         float64 `json:"totalMonthlyOriginal"`
	TotalYearlyOriginal          float64 `json:"totalYearlyOriginal"`
	MonthlyDiscountAmount        float64 `json:"monthlyDiscountAmount"`
	YearlyDiscountAmount         float64 `json:"yearlyDiscountAmount"`
	PackageDiscountMonthlyAmount float64 `json:"packageDiscountMonthlyAmount"`
	PackageDiscountYearlyAmount  float64 `json:"packageDiscountYearlyAmount"`

	PlanIDMonthly  string `json:"planIdMonthly,omitempty"`
	PlanIDAnnually string `json:"planIdAnnually,omitempty"`
	IsActive       bool   `json:"isActive"`
	IsFree         bool   `json:"isFree"`
	IsCustom       bool   `json:"isCustom"`
	CreatedBy      string `json:"createdBy"`
}

// Line returns the line for key.
func (p *Package) Line(key feature.Key) (*FeatureLine, bool) {
	for i := range p.Features {
		if p.Features[i].Feature == key {
			return &p.Features[i], true
		}
	}
	return nil, false
}

// Amount returns the charged total for period in minor units.
func (p *Package) Amount(period types.Period) types.Money {
	if period == types.PeriodYearly {
		return types.FromMajor(p.TotalYearly, p.Currency)
	}
	return types.FromMajor(p.TotalMonthly, p.Currency)
}

// Quantity returns the count a subscription for period starts with.
func (l *FeatureLine) Quantity(period types.Period) int64 {
	if period == types.PeriodYearly {
		return l.YearlyCount
	}
	return l.MonthlyCount
}
