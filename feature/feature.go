// Package feature is the table of pricing dimensions a package is built from.
//
// Each feature has a kind that selects its price formula and, for tiered
// features, a yearly policy that says where the yearly quantity comes from.
// Pricing, composition and balance code loops over All() rather than naming
// features individually.
package feature

import "fmt"

// Key names a feature. Keys are stable and appear in stored documents.
type Key string

// Feature keys in composition order.
const (
	Jobs         Key = "numberOfJobs"
	Users        Key = "numberOfUsers"
	Views        Key = "numberOfViews"
	Translations Key = "numberOfTranslations"
	Calls        Key = "numberOfCalls"
	FeaturedJobs Key = "numberOfFeaturedJobs"
	CareerPage   Key = "careerPage"
	ATS          Key = "atsIntegration"
	Support      Key = "prioritySupport"
)

// Kind selects the price formula for a feature.
type Kind string

const (
	// KindTiered is priced per unit from the country tier (basePrice/count),
	// or with the flat formula when the line is unlimited.
	KindTiered Kind = "tiered"
	// KindFlat is always priced with the flat formula.
	KindFlat Kind = "flat"
	// KindToggle is included or not and never priced.
	KindToggle Kind = "toggle"
)

// YearlyPolicy says how a tiered feature's yearly quantity is derived.
type YearlyPolicy string

const (
	// YearlyIndependent takes the yearly quantity as supplied.
	YearlyIndependent YearlyPolicy = "independent"
	// YearlyTwelveTimesMonthly uses 12 × the monthly quantity.
	YearlyTwelveTimesMonthly YearlyPolicy = "twelve_times_monthly"
)

// Feature describes one dimension of a package.
type Feature struct {
	Key    Key
	Kind   Kind
	Yearly YearlyPolicy
	// Metered features carry a consumable balance on subscriptions.
	Metered bool
}

var table = []Feature{
	{Key: Jobs, Kind: KindTiered, Yearly: YearlyIndependent, Metered: true},
	{Key: Users, Kind: KindTiered, Yearly: YearlyIndependent, Metered: true},
	{Key: Views, Kind: KindTiered, Yearly: YearlyIndependent, Metered: true},
	{Key: Translations, Kind: KindTiered, Yearly: YearlyTwelveTimesMonthly, Metered: true},
	{Key: Calls, Kind: KindTiered, Yearly: YearlyTwelveTimesMonthly, Metered: true},
	{Key: FeaturedJobs, Kind: KindTiered, Yearly: YearlyIndependent, Metered: true},
	{Key: CareerPage, Kind: KindFlat},
	{Key: ATS, Kind: KindFlat},
	{Key: Support, Kind: KindToggle},
}

var index = func() map[Key]Feature {
	m := make(map[Key]Feature, len(table))
	for _, f := range table {
		m[f.Key] = f
	}
	return m
}()

// All returns the features in composition order. The slice is a copy.
func All() []Feature {
	out := make([]Feature, len(table))
	copy(out, table)
	return out
}

// Keys returns every feature key in composition order.
func Keys() []Key {
	out := make([]Key, len(table))
	for i, f := range table {
		out[i] = f.Key
	}
	return out
}

// Lookup returns the feature for key.
func Lookup(key Key) (Feature, bool) {
	f, ok := index[key]
	return f, ok
}

// MustLookup is like Lookup but panics on an unknown key.
func MustLookup(key Key) Feature {
	f, ok := index[key]
	if !ok {
		panic(fmt.Sprintf("feature: unknown key %q", key))
	}
	return f
}

// Valid reports whether key names a known feature.
func Valid(key Key) bool {
	_, ok := index[key]
	return ok
}

// YearlyQuantity returns the yearly quantity for a tiered feature given the
// supplied monthly and yearly counts.
func (f Feature) YearlyQuantity(monthly, yearly int64) int64 {
	if f.Yearly == YearlyTwelveTimesMonthly {
		return monthly * 12
	}
	return yearly
}

// NeedsTier reports whether pricing this feature requires a reference rate.
func (f Feature) NeedsTier() bool {
	return f.Kind != KindToggle
}
