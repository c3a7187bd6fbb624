package models

import (
	"fmt"
	"strings"
)

// Criterion is one named search configuration.
type Criterion struct {
	Name                string  `json:"name"`
	MaxPrice            float64 `json:"max_price"`
	MaxMileage          *int    `json:"max_mileage"`
	MaxProximityKm      int     `json:"max_proximity"`
	TitleContains       string  `json:"title_contains"`
	MinYear             *int    `json:"min_year"`
	UseDescriptionCheck bool    `json:"use_description_check"`
}

// Label returns the name used in logs and messages.
func (c Criterion) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.TitleContains
}

// Validate checks the criterion can be evaluated.
func (c Criterion) Validate() error {
	if strings.TrimSpace(c.TitleContains) == "" {
		return fmt.Errorf("criterion %q: title_contains cannot be empty", c.Label())
	}
	if c.MaxPrice <= 0 {
		return fmt.Errorf("criterion %q: max_price must be positive", c.Label())
	}
	if c.MaxMileage != nil && *c.MaxMileage < 0 {
		return fmt.Errorf("criterion %q: max_mileage cannot be negative", c.Label())
	}
	if c.MaxProximityKm < 0 {
		return fmt.Errorf("criterion %q: max_proximity cannot be negative", c.Label())
	}
	return nil
}

// Verdict is the classifier's judgement on a listing description.
type Verdict string

const (
	VerdictGood  Verdict = "GOOD"
	VerdictBad   Verdict = "BAD"
	VerdictMaybe Verdict = "MAYBE"
	VerdictError Verdict = "ERROR"
)

// Matches applies the structural filter: price, mileage, proximity and title.
// A listing with an unknown price, proximity or title never matches; an unknown
// mileage always passes the mileage cap.
func (c Criterion) Matches(l Listing) bool {
	if l.Price == nil || *l.Price > c.MaxPrice {
		return false
	}
	if c.MaxMileage != nil && l.Mileage != nil && *l.Mileage > *c.MaxMileage {
		return false
	}
	if l.ProximityKm == nil || *l.ProximityKm > c.MaxProximityKm {
		return false
	}
	if l.Title == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*l.Title), strings.ToLower(c.TitleContains))
}

// AcceptsYear applies the minimum year. An unknown year is never rejected.
func (c Criterion) AcceptsYear(year *int) bool {
	if c.MinYear == nil || year == nil {
		return true
	}
	return *year >= *c.MinYear
}
