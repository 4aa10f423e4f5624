// Package types provides common value types used across quota.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in the smallest unit of its currency. Package prices
// are authored in major units with two decimals; Money is what leaves the
// system, e.g. the amount sent to the payment gateway.
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (paise, cents, fils)
	Currency string `json:"currency"` // ISO 4217 lowercase: "inr", "usd"
}

// New returns Money for an amount already in minor units.
func New(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(currency)}
}

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return New(0, currency) }

// FromMajor converts a major-unit price (e.g. 378.00) to Money, rounding
// half away from zero to the currency's precision.
func FromMajor(major float64, currency string) Money {
	scale := math.Pow10(currencyDecimals(currency))
	return New(int64(math.Round(major*scale)), currency)
}

// Major returns the amount in major units.
func (m Money) Major() float64 {
	return float64(m.Amount) / math.Pow10(currencyDecimals(m.Currency))
}

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// FormatMajor returns the major unit string without a currency symbol,
// "378.00" for New(37800, "inr").
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	abs := m.Amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%0*d", sign, abs/divisor, decimals, abs%divisor)
}

// String returns a human-readable amount with currency symbol.
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Round2 rounds x half away from zero to two decimals. Every price the
// calculator returns passes through it. The shift by 100 is done on the
// shortest decimal form of x, so 1.005 rounds up to 1.01 as written.
func Round2(x float64) float64 {
	mant, exp, ok := strings.Cut(strconv.FormatFloat(x, 'e', -1, 64), "e")
	if !ok {
		return x
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return math.Round(x*100) / 100
	}
	scaled, err := strconv.ParseFloat(mant+"e"+strconv.Itoa(e+2), 64)
	if err != nil {
		return math.Round(x*100) / 100
	}
	return math.Round(scaled) / 100
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"inr": "₹",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"aed": "AED ",
		"sgd": "S$",
		"aud": "A$",
		"jpy": "¥",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	zeroDecimal := map[string]bool{
		"jpy": true,
		"krw": true,
		"vnd": true,
		"clp": true,
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}
