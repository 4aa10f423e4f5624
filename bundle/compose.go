package bundle

import (
	"fmt"

	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/types"
)

// Compose prices every feature of req against tiers and tax and returns
// the resulting package. It does not set ID, Color, timestamps or plan ids.
// A nil tax means the country is untaxed.
func Compose(tiers pricing.TierSet, tax *pricing.TaxRate, req *ComposeRequest) (*Package, error) {
	if err := checkDiscounts(req); err != nil {
		return nil, err
	}
	for key := range req.Features {
		if !feature.Valid(key) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, key)
		}
	}

	p := &Package{
		Name:            req.Name,
		Description:     req.Description,
		Country:         pricing.NormalizeCountry(req.Country),
		Currency:        tiers.Currency(),
		PackageDiscount: req.PackageDiscount,
		MonthlyDiscount: req.MonthlyDiscount,
		YearlyDiscount:  req.YearlyDiscount,
		IsActive:        true,
		IsFree:          req.IsFree,
		IsCustom:        req.IsCustom,
		CreatedBy:       req.AdminID,
		Features:        make([]FeatureLine, 0, len(feature.All())),
	}
	if tax != nil {
		p.TaxType = tax.TaxType
		p.TaxAmount = tax.Percentage
	}

	for _, f := range feature.All() {
		line, err := composeLine(f, tiers, req)
		if err != nil {
			return nil, err
		}
		p.Features = append(p.Features, line)
	}

	summarize(p)
	return p, nil
}

func composeLine(f feature.Feature, tiers pricing.TierSet, req *ComposeRequest) (FeatureLine, error) {
	lr := req.Features[f.Key]
	line := FeatureLine{LineRequest: lr, Feature: f.Key}

	if !lr.IsIncluded || req.IsFree || lr.IsFree || !f.NeedsTier() {
		return line, nil
	}

	tiered := f.Kind != feature.KindFlat && !lr.IsUnlimited
	if tiered {
		line.YearlyCount = f.YearlyQuantity(lr.MonthlyCount, lr.YearlyCount)
	}
	// Both prices fixed by hand: the tier would only be overwritten.
	if lr.IsForcedMonthly && lr.IsForcedYearly {
		applyForced(&line, lr)
		return line, nil
	}

	tier, ok := tiers.Get(f.Key)
	if !ok {
		return line, fmt.Errorf("%w: %s", ErrMissingTier, f.Key)
	}

	if tiered {
		if err := priceTiered(&line, tier, req); err != nil {
			return line, fmt.Errorf("%w: %s", err, f.Key)
		}
	} else {
		line.TotalMonthly = pricing.CalculatePricing(tier.BasePrice, req.MonthlyDiscount, types.PeriodMonthly, 0)
		line.TotalYearly = pricing.CalculatePricing(tier.BasePrice, req.YearlyDiscount, types.PeriodYearly, 0)
		line.TotalMonthlyOriginal = pricing.CalculateFlatOriginal(tier.BasePrice, types.PeriodMonthly)
		line.TotalYearlyOriginal = pricing.CalculateFlatOriginal(tier.BasePrice, types.PeriodYearly)
	}

	applyForced(&line, lr)
	return line, nil
}

func applyForced(line *FeatureLine, lr LineRequest) {
	if lr.IsForcedMonthly {
		line.TotalMonthly = lr.ForcedMonthly
		line.TotalMonthlyOriginal = lr.ForcedMonthly
	}
	if lr.IsForcedYearly {
		line.TotalYearly = lr.ForcedYearly
		line.TotalYearlyOriginal = lr.ForcedYearly
	}
}

func priceTiered(line *FeatureLine, tier *pricing.Tier, req *ComposeRequest) error {
	var err error
	if line.TotalMonthly, err = pricing.CalculateFinalPrice(tier.BasePrice, tier.Count, line.MonthlyCount, req.MonthlyDiscount, 0); err != nil {
		return err
	}
	if line.TotalYearly, err = pricing.CalculateFinalPrice(tier.BasePrice, tier.Count, line.YearlyCount, req.YearlyDiscount, 0); err != nil {
		return err
	}
	if line.TotalMonthlyOriginal, err = pricing.CalculateOriginalPrice(tier.BasePrice, tier.Count, line.MonthlyCount); err != nil {
		return err
	}
	line.TotalYearlyOriginal, err = pricing.CalculateOriginalPrice(tier.BasePrice, tier.Count, line.YearlyCount)
	return err
}

// summarize fills the package totals from its feature lines.
func summarize(p *Package) {
	var sumM, sumY, origM, origY float64
	for _, l := range p.Features {
		sumM += l.TotalMonthly
		sumY += l.TotalYearly
		origM += l.TotalMonthlyOriginal
		origY += l.TotalYearlyOriginal
	}

	keep := 1 - p.PackageDiscount/100
	taxed := keep * (1 + p.TaxAmount/100)

	p.TotalMonthlyBeforeTax = types.Round2(sumM * keep)
	p.TotalYearlyBeforeTax = types.Round2(sumY * keep)
	p.TotalMonthly = types.Round2(sumM * taxed)
	p.TotalYearly = types.Round2(sumY * taxed)

	p.TotalMonthlyOriginal = types.Round2(origM)
	p.TotalYearlyOriginal = types.Round2(origY)
	p.MonthlyDiscountAmount = types.Round2(origM - sumM)
	p.YearlyDiscountAmount = types.Round2(origY - sumY)
	p.PackageDiscountMonthlyAmount = types.Round2(sumM * p.PackageDiscount / 100)
	p.PackageDiscountYearlyAmount = types.Round2(sumY * p.PackageDiscount / 100)
}

// Verify reports whether p's totals are reproducible from its lines,
// package discount and tax.
func Verify(p *Package) bool {
	want := *p
	summarize(&want)
	return want.TotalMonthly == p.TotalMonthly &&
		want.TotalYearly == p.TotalYearly &&
		want.TotalMonthlyBeforeTax == p.TotalMonthlyBeforeTax &&
		want.TotalYearlyBeforeTax == p.TotalYearlyBeforeTax
}

func checkDiscounts(req *ComposeRequest) error {
	for _, d := range []float64{req.PackageDiscount, req.MonthlyDiscount, req.YearlyDiscount} {
		if d < 0 || d > 100 {
			return ErrInvalidDiscount
		}
	}
	return nil
}
