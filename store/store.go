// Package store defines the persistence ports of the pipeline and their
// adapters.
package store

import (
	"context"
	"errors"

	"github.com/aluiziolira/autotrader-watch/models"
)

// ErrNotFound is returned by Update when no listing has the given id.
var ErrNotFound = errors.New("store: listing not found")

// ListingStore is a document collection of listings keyed by id. Single
// operations are atomic; sequences of them are not.
type ListingStore interface {
	InsertMany(ctx context.Context, listings []models.Listing) error
	InsertOne(ctx context.Context, listing models.Listing) error
	DeleteAll(ctx context.Context) (int64, error)
	// Find returns the listings passing the criterion's structural filter.
	Find(ctx context.Context, crit models.Criterion) ([]models.Listing, error)
	All(ctx context.Context) ([]models.Listing, error)
	// FindOne returns nil without error when id is absent.
	FindOne(ctx context.Context, id string) (*models.Listing, error)
	Update(ctx context.Context, id string, patch models.ListingPatch) error
}

// SentLedger is the append-only set of listing ids already notified.
type SentLedger interface {
	Contains(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, id string) error
}

// Backend bundles the three collections used by the pipeline.
type Backend interface {
	Listings() ListingStore
	Candidates() ListingStore
	Sent() SentLedger
	Close(ctx context.Context) error
}
