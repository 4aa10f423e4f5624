package types

// Period is a billing period.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// Months returns the number of months p covers.
func (p Period) Months() int {
	if p == PeriodYearly {
		return 12
	}
	return 1
}
