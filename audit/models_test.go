package audit

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("IST", 19800))
	e, err := NewEntry(TypePromo, "promo_1", "adm_1", map[string]any{"promoCode": "X"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID.IsNil() || e.Type != TypePromo || e.TargetID != "promo_1" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.CreatedAt.Location() != time.UTC {
		t.Error("created at is not UTC")
	}

	var data map[string]string
	if err := json.Unmarshal(e.Data, &data); err != nil || data["promoCode"] != "X" {
		t.Errorf("data: %s (%v)", e.Data, err)
	}
}

func TestNewEntryMarshalError(t *testing.T) {
	if _, err := NewEntry(TypePackage, "x", "y", make(chan int), time.Now()); err == nil {
		t.Fatal("expected marshal error")
	}
}
