package viewcharge

import (
	"slices"
	"testing"
	"time"
)

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"a", "b", "", "a", "c", "b"})
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("got %v", got)
	}
}

func TestUncharged(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	existing := []*ViewCharge{
		{CandidateID: "a", Expiration: NeverExpires},
		{CandidateID: "b", Expiration: now.Add(-time.Hour)},
		{CandidateID: "a", Expiration: now.Add(time.Hour)},
	}

	got := Uncharged([]string{"a", "b", "c"}, existing, now)
	if !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("got %v, want [b c]", got)
	}
}

func TestExpirationFor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		days int
		want time.Time
	}{
		{"unset", 0, NeverExpires},
		{"negative", -3, NeverExpires},
		{"thirty days", 30, time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpirationFor(now, tt.days); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	c := &ViewCharge{Expiration: ExpirationFor(now, 1)}
	if !c.Live(now) || c.Live(now.AddDate(0, 0, 1)) {
		t.Error("live window is wrong")
	}
}
