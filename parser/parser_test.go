package parser

import (
	"testing"

	"github.com/aluiziolira/autotrader-watch/models"
)

func TestValidateListing(t *testing.T) {
	title := "2015 Honda Civic"
	tests := []struct {
		name    string
		listing *models.Listing
		wantErr bool
	}{
		{name: "valid listing", listing: &models.Listing{ID: "listing-1", Title: &title}},
		{name: "missing id", listing: &models.Listing{Title: &title}, wantErr: true},
		{name: "blank id", listing: &models.Listing{ID: "   "}, wantErr: true},
		{name: "nil listing", listing: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListing(tt.listing)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateListing() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{name: "currency and separators", input: "$12,345.00", expected: floatPtr(12345)},
		{name: "plain number", input: "9999", expected: floatPtr(9999)},
		{name: "cents", input: " $7,500.50 ", expected: floatPtr(7500.5)},
		{name: "empty string", input: "", expected: nil},
		{name: "no digits", input: "Call for price", expected: nil},
		{name: "malformed", input: "1.2.3", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizePrice(tt.input)
			if !equalFloat(result, tt.expected) {
				t.Errorf("SanitizePrice(%q) = %v, want %v", tt.input, deref(result), deref(tt.expected))
			}
		})
	}
}

func TestSanitizeMileage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *int
	}{
		{name: "km suffix", input: "45,000 km", expected: intPtr(45000)},
		{name: "digits only", input: "12", expected: intPtr(12)},
		{name: "empty", input: "", expected: nil},
		{name: "text only", input: "km", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := SanitizeMileage(tt.input); !equalInt(result, tt.expected) {
				t.Errorf("SanitizeMileage(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeProximity(t *testing.T) {
	if got := SanitizeProximity(""); got != nil {
		t.Errorf("SanitizeProximity(\"\") = %d, want nil", *got)
	}
	if got := SanitizeProximity("25 km"); got == nil || *got != 25 {
		t.Errorf("SanitizeProximity(\"25 km\") = %v, want 25", got)
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		input    string
		expected *int
	}{
		{input: "2015 Honda Civic", expected: intPtr(2015)},
		{input: "Civic Si", expected: nil},
		{input: "Honda Civic 1998 hatchback", expected: intPtr(1998)},
		{input: "Model 2150 turbo", expected: nil},
		{input: "Part 12015", expected: nil},
		{input: "1899 replica 2003", expected: intPtr(2003)},
		{input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ExtractYear(tt.input); !equalInt(result, tt.expected) {
				t.Errorf("ExtractYear(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

const resultsPage = `<html><body>
<div id="listing-101">
  <div id="result-item-inner-div">
    <a class="inner-link" href="/a/honda/civic/101">
      <span class="title-with-trim"> 2015 Honda Civic EX </span>
    </a>
    <span class="price-amount">$12,345</span>
    <span class="odometer-proximity">45,000 km</span>
    <div class="proximity"><span class="proximity-text">25 km</span></div>
  </div>
</div>
<div id="listing-102">
  <div id="result-item-inner-div">
    <span class="title-with-trim">Civic Si</span>
    <span class="price-amount">Call for price</span>
  </div>
</div>
</body></html>`

func TestParseListings(t *testing.T) {
	listings, err := ParseListings([]byte(resultsPage), "https://cars.example.test/cars/on?rcs=0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings = %d, want 2", len(listings))
	}

	first := listings[0]
	if first.ID != "listing-101" {
		t.Errorf("id = %q, want listing-101", first.ID)
	}
	if first.TitleText() != "2015 Honda Civic EX" {
		t.Errorf("title = %q", first.TitleText())
	}
	if !equalFloat(first.Price, floatPtr(12345)) {
		t.Errorf("price = %v, want 12345", deref(first.Price))
	}
	if !equalInt(first.Mileage, intPtr(45000)) {
		t.Errorf("mileage = %v, want 45000", first.Mileage)
	}
	if !equalInt(first.ProximityKm, intPtr(25)) {
		t.Errorf("proximity = %v, want 25", first.ProximityKm)
	}
	if first.URL() != "https://cars.example.test/a/honda/civic/101" {
		t.Errorf("url = %q", first.URL())
	}

	second := listings[1]
	if second.Price != nil || second.Mileage != nil || second.ProximityKm != nil || second.ProductURL != nil {
		t.Errorf("missing fields should be nil, got %+v", second)
	}
}

func TestParseListingsEmptyPage(t *testing.T) {
	listings, err := ParseListings([]byte("<html><body><p>No results</p></body></html>"), "https://cars.example.test/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("listings = %d, want 0", len(listings))
	}
}

func TestContainsMarker(t *testing.T) {
	body := []byte("<html><title>We're sorry, an error occurred</title></html>")
	if !ContainsMarker(body, []string{"an error occurred"}) {
		t.Errorf("expected marker to be found")
	}
	if ContainsMarker(body, []string{"", "captcha"}) {
		t.Errorf("unexpected marker match")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "meta description",
			body:     `<html><head><meta name="description" content="  One owner, no accidents.  "></head></html>`,
			expected: "One owner, no accidents.",
		},
		{
			name:     "too short",
			body:     `<html><head><meta name="description" content="ok"></head></html>`,
			expected: "",
		},
		{
			name:     "missing",
			body:     `<html><head><title>Car</title></head></html>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractDescription([]byte(tt.body))
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if result != tt.expected {
				t.Errorf("ExtractDescription() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
