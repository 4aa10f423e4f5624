package promo

import (
	"errors"
	"testing"
	"time"
)

func TestRequestCheck(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"percentage", Request{Type: TypePercentage, Amount: 15}, true},
		{"full percentage", Request{Type: TypePercentage, Amount: 100}, true},
		{"over 100 percent", Request{Type: TypePercentage, Amount: 120}, false},
		{"amount over 100", Request{Type: TypeAmount, Amount: 500}, true},
		{"zero", Request{Type: TypeAmount}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Check()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	inactive := false
	r := Request{Code: " summer10 ", Country: "in", Type: TypePercentage, Amount: 10, IsActive: &inactive}
	p := &Promo{IsActive: true}
	r.Apply(p)
	if p.Code != "SUMMER10" || p.Country != "IN" || p.IsActive {
		t.Errorf("unexpected promo %+v", p)
	}

	r.IsActive = nil
	p.IsActive = true
	r.Apply(p)
	if !p.IsActive {
		t.Error("nil IsActive should leave the flag unchanged")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	p := &Promo{}
	if p.Expired(now) {
		t.Error("promo without expiration expired")
	}
	p.Expiration = &past
	if !p.Expired(now) {
		t.Error("past expiration not expired")
	}
}
