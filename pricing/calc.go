package pricing

import "github.com/xraph/quota/types"

// CalculateFinalPrice prices requestedCount units of a tier that sells
// tierCount units for basePrice, then applies the discount and tax
// percentages. The result is rounded to two decimals.
func CalculateFinalPrice(basePrice float64, tierCount, requestedCount int64, discountPct, taxPct float64) (float64, error) {
	if tierCount == 0 {
		return 0, ErrZeroTierCount
	}
	unit := basePrice / float64(tierCount)
	raw := unit * float64(requestedCount)
	return types.Round2(raw * discountFactor(discountPct) * taxFactor(taxPct)), nil
}

// CalculateOriginalPrice is CalculateFinalPrice without discount or tax.
func CalculateOriginalPrice(basePrice float64, tierCount, requestedCount int64) (float64, error) {
	return CalculateFinalPrice(basePrice, tierCount, requestedCount, 0, 0)
}

// CalculatePricing prices a flat-fee or unlimited feature. The yearly price
// multiplies the monthly base by 12 before the discount is applied.
func CalculatePricing(basePrice, discountPct float64, period types.Period, taxPct float64) float64 {
	base := basePrice * float64(period.Months())
	return types.Round2(base * discountFactor(discountPct) * taxFactor(taxPct))
}

// CalculateFlatOriginal is the undiscounted baseline of CalculatePricing.
func CalculateFlatOriginal(basePrice float64, period types.Period) float64 {
	return CalculatePricing(basePrice, 0, period, 0)
}

func discountFactor(pct float64) float64 { return 1 - pct/100 }

func taxFactor(pct float64) float64 { return 1 + pct/100 }
