package feature

import "testing"

func TestTableOrderAndSize(t *testing.T) {
	keys := Keys()
	if len(keys) != 9 {
		t.Fatalf("expected 9 features, got %d", len(keys))
	}
	if keys[0] != Jobs || keys[8] != Support {
		t.Errorf("unexpected order: %v", keys)
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		key     Key
		kind    Kind
		metered bool
	}{
		{Jobs, KindTiered, true},
		{Views, KindTiered, true},
		{CareerPage, KindFlat, false},
		{ATS, KindFlat, false},
		{Support, KindToggle, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			f, ok := Lookup(tt.key)
			if !ok {
				t.Fatal("not found")
			}
			if f.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", f.Kind, tt.kind)
			}
			if f.Metered != tt.metered {
				t.Errorf("metered: got %v, want %v", f.Metered, tt.metered)
			}
		})
	}

	if _, ok := Lookup("numberOfUnicorns"); ok {
		t.Error("expected unknown key to miss")
	}
}

func TestYearlyQuantity(t *testing.T) {
	tests := []struct {
		key     Key
		monthly int64
		yearly  int64
		want    int64
	}{
		{Jobs, 10, 100, 100},
		{Translations, 10, 100, 120},
		{Calls, 5, 0, 60},
		{FeaturedJobs, 5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			if got := MustLookup(tt.key).YearlyQuantity(tt.monthly, tt.yearly); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Kind = KindToggle
	if MustLookup(Jobs).Kind != KindTiered {
		t.Error("All must not expose the backing table")
	}
}
