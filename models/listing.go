// Package models defines data structures for the watch pipeline.
package models

import "time"

// Listing represents one vehicle block scraped from a results page.
type Listing struct {
	ID          string   `bson:"_id" csv:"id" json:"id"`
	Title       *string  `bson:"title" csv:"title" json:"title"`
	Price       *float64 `bson:"price" csv:"price" json:"price"`
	Mileage     *int     `bson:"mileage" csv:"mileage" json:"mileage"`
	ProximityKm *int     `bson:"proximity_km" csv:"proximity_km" json:"proximity_km"`
	ProductURL  *string  `bson:"product_url" csv:"product_url" json:"product_url"`
	Description string   `bson:"description,omitempty" csv:"description" json:"description,omitempty"`
}

// TitleText returns the title or an empty string when unknown.
func (l Listing) TitleText() string {
	if l.Title == nil {
		return ""
	}
	return *l.Title
}

// URL returns the product URL or an empty string when unknown.
func (l Listing) URL() string {
	if l.ProductURL == nil {
		return ""
	}
	return *l.ProductURL
}

// ListingPatch is a partial update applied to a stored listing by id.
// Nil fields are left untouched.
type ListingPatch struct {
	Description *string
}

// SentRecord marks a listing id a notification was dispatched for.
type SentRecord struct {
	ID string `bson:"_id" json:"id"`
}

// Termination explains why a harvest stopped.
type Termination string

const (
	TerminationExhausted      Termination = "EXHAUSTED"
	TerminationLimitReached   Termination = "LIMIT_REACHED"
	TerminationBlocked        Termination = "BLOCKED"
	TerminationEmptyFirstPage Termination = "EMPTY_FIRST_PAGE"
	TerminationFetchFailed    Termination = "FETCH_FAILED"
)

// Completed reports whether the crawl reached a natural end and its snapshot
// can replace the stored one.
func (t Termination) Completed() bool {
	return t == TerminationExhausted || t == TerminationLimitReached
}

// HarvestResult holds the outcome of one paginated crawl.
type HarvestResult struct {
	Listings    []Listing
	Termination Termination
	Pages       int
	Dropped     map[string]int
	Committed   bool
	StartTime   time.Time
	EndTime     time.Time
	Err         error
}

// EnrichResult summarises one description pass over the candidates.
type EnrichResult struct {
	Candidates int
	Updated    int
	Extracted  int
	Skipped    int
	Failed     int
}
