package models

import "testing"

func ptr[T any](v T) *T { return &v }

func TestCriterionMatches(t *testing.T) {
	crit := Criterion{
		MaxPrice:       20000,
		MaxMileage:     ptr(150000),
		MaxProximityKm: 100,
		TitleContains:  "civic",
	}

	tests := []struct {
		name    string
		listing Listing
		want    bool
	}{
		{
			name:    "all fields within limits",
			listing: Listing{ID: "a", Title: ptr("2015 Honda CIVIC EX"), Price: ptr(15000.0), Mileage: ptr(90000), ProximityKm: ptr(20)},
			want:    true,
		},
		{
			name:    "unknown mileage passes",
			listing: Listing{ID: "b", Title: ptr("Honda Civic"), Price: ptr(15000.0), ProximityKm: ptr(20)},
			want:    true,
		},
		{
			name:    "unknown price fails",
			listing: Listing{ID: "c", Title: ptr("Honda Civic"), Mileage: ptr(1000), ProximityKm: ptr(20)},
			want:    false,
		},
		{
			name:    "price above cap",
			listing: Listing{ID: "d", Title: ptr("Honda Civic"), Price: ptr(20000.01), ProximityKm: ptr(20)},
			want:    false,
		},
		{
			name:    "mileage above cap",
			listing: Listing{ID: "e", Title: ptr("Honda Civic"), Price: ptr(100.0), Mileage: ptr(150001), ProximityKm: ptr(20)},
			want:    false,
		},
		{
			name:    "unknown proximity fails",
			listing: Listing{ID: "f", Title: ptr("Honda Civic"), Price: ptr(100.0)},
			want:    false,
		},
		{
			name:    "title mismatch",
			listing: Listing{ID: "g", Title: ptr("Toyota Corolla"), Price: ptr(100.0), ProximityKm: ptr(1)},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crit.Matches(tt.listing); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriterionMatchesWithoutMileageCap(t *testing.T) {
	crit := Criterion{MaxPrice: 20000, MaxProximityKm: 100, TitleContains: "civic"}
	l := Listing{ID: "a", Title: ptr("Civic"), Price: ptr(1.0), Mileage: ptr(999999), ProximityKm: ptr(1)}
	if !crit.Matches(l) {
		t.Fatalf("nil max mileage should not cap mileage")
	}
}

func TestCriterionAcceptsYear(t *testing.T) {
	crit := Criterion{MinYear: ptr(2010)}
	if crit.AcceptsYear(ptr(2009)) {
		t.Fatalf("2009 should be rejected")
	}
	if !crit.AcceptsYear(ptr(2010)) {
		t.Fatalf("2010 should be accepted")
	}
	if !crit.AcceptsYear(nil) {
		t.Fatalf("unknown year should never be rejected")
	}
	if !(Criterion{}).AcceptsYear(ptr(1950)) {
		t.Fatalf("criterion without min year accepts everything")
	}
}

func TestTerminationCompleted(t *testing.T) {
	for term, want := range map[Termination]bool{
		TerminationExhausted:      true,
		TerminationLimitReached:   true,
		TerminationBlocked:        false,
		TerminationEmptyFirstPage: false,
		TerminationFetchFailed:    false,
	} {
		if got := term.Completed(); got != want {
			t.Errorf("%s.Completed() = %v, want %v", term, got, want)
		}
	}
}
