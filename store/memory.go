package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/aluiziolira/autotrader-watch/models"
)

// MemoryCollection is an in-process ListingStore preserving insertion order.
type MemoryCollection struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]models.Listing
}

// NewMemoryCollection returns an empty collection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{docs: make(map[string]models.Listing)}
}

func (m *MemoryCollection) InsertMany(ctx context.Context, listings []models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		if _, ok := m.docs[l.ID]; ok {
			return fmt.Errorf("insert many: duplicate id %q", l.ID)
		}
		if _, ok := batch[l.ID]; ok {
			return fmt.Errorf("insert many: id %q repeated in batch", l.ID)
		}
		batch[l.ID] = struct{}{}
	}
	for _, l := range listings {
		m.insertLocked(l)
	}
	return nil
}

func (m *MemoryCollection) InsertOne(ctx context.Context, listing models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[listing.ID]; ok {
		return fmt.Errorf("insert one: duplicate id %q", listing.ID)
	}
	m.insertLocked(listing)
	return nil
}

func (m *MemoryCollection) insertLocked(l models.Listing) {
	m.order = append(m.order, l.ID)
	m.docs[l.ID] = l
}

func (m *MemoryCollection) DeleteAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.docs))
	m.order = nil
	m.docs = make(map[string]models.Listing)
	return n, nil
}

func (m *MemoryCollection) Find(ctx context.Context, crit models.Criterion) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Listing
	for _, id := range m.order {
		if l := m.docs[id]; crit.Matches(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemoryCollection) All(ctx context.Context) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Listing, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id])
	}
	return out, nil
}

func (m *MemoryCollection) FindOne(ctx context.Context, id string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *MemoryCollection) Update(ctx context.Context, id string, patch models.ListingPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	if patch.Description != nil {
		l.Description = *patch.Description
	}
	m.docs[id] = l
	return nil
}

// Len returns the number of stored listings.
func (m *MemoryCollection) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// MemoryLedger is an in-process SentLedger.
type MemoryLedger struct {
	mu    sync.RWMutex
	order []string
	ids   map[string]struct{}
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{ids: make(map[string]struct{})}
}

func (l *MemoryLedger) Contains(ctx context.Context, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok, nil
}

func (l *MemoryLedger) Record(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return nil
	}
	l.ids[id] = struct{}{}
	l.order = append(l.order, id)
	return nil
}

// IDs returns the recorded ids in insertion order.
func (l *MemoryLedger) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Memory is a Backend kept entirely in process, used for dry runs and tests.
type Memory struct {
	listings   *MemoryCollection
	candidates *MemoryCollection
	sent       *MemoryLedger
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		listings:   NewMemoryCollection(),
		candidates: NewMemoryCollection(),
		sent:       NewMemoryLedger(),
	}
}

func (m *Memory) Listings() ListingStore      { return m.listings }
func (m *Memory) Candidates() ListingStore    { return m.candidates }
func (m *Memory) Sent() SentLedger            { return m.sent }
func (m *Memory) Close(context.Context) error { return nil }
