package types

import (
	"encoding/json"
	"testing"
)

func TestFromMajor(t *testing.T) {
	tests := []struct {
		name     string
		major    float64
		currency string
		amount   int64
		display  string
	}{
		{"INR whole", 378, "INR", 37800, "₹378.00"},
		{"INR fraction", 199.99, "inr", 19999, "₹199.99"},
		{"USD rounding", 10.2549, "usd", 1025, "$10.25"},
		{"JPY zero decimals", 1200, "jpy", 1200, "¥1200"},
		{"Zero", 0, "eur", 0, "€0.00"},
		{"Unknown currency", 5.5, "xyz", 550, "XYZ 5.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FromMajor(tt.major, tt.currency)
			if m.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", m.Amount, tt.amount)
			}
			if m.String() != tt.display {
				t.Errorf("Display: got %s, want %s", m.String(), tt.display)
			}
		})
	}
}

func TestMajorRoundTrip(t *testing.T) {
	m := New(37800, "inr")
	if got := m.Major(); got != 378 {
		t.Errorf("Major: got %v, want 378", got)
	}
	if got := FromMajor(m.Major(), m.Currency); got != m {
		t.Errorf("round trip: got %+v, want %+v", got, m)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{360, 360},
		{377.9999999, 378},
		{1.2351, 1.24},
		{-1.2351, -1.24},
		{2.344, 2.34},
		{1.005, 1.01},
		{-1.005, -1.01},
		{2.675, 2.68},
		{0.125, 0.13},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNegativeFormat(t *testing.T) {
	if got := New(-150, "usd").FormatMajor(); got != "-1.50" {
		t.Errorf("got %s, want -1.50", got)
	}
}

func TestAddCurrencyMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = New(100, "usd").Add(New(100, "inr"))
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(New(4900, "usd"))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["display"] != "$49.00" {
		t.Errorf("display: got %v", out["display"])
	}
	if out["amount"].(float64) != 4900 {
		t.Errorf("amount: got %v", out["amount"])
	}
}
