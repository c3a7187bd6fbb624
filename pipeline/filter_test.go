package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
	"github.com/aluiziolira/autotrader-watch/store"
)

func car(id, title string, price float64, mileage *int, prox int) models.Listing {
	return models.Listing{
		ID:          id,
		Title:       ptr(title),
		Price:       ptr(price),
		Mileage:     mileage,
		ProximityKm: ptr(prox),
		ProductURL:  ptr("http://example.test/a/" + id),
	}
}

func seedListings(t *testing.T, listings ...models.Listing) *store.MemoryCollection {
	t.Helper()
	c := store.NewMemoryCollection()
	if err := c.InsertMany(context.Background(), listings); err != nil {
		t.Fatalf("seed listings: %v", err)
	}
	return c
}

func TestFilterEngineRun(t *testing.T) {
	ctx := context.Background()
	listings := seedListings(t,
		car("1", "2016 Honda Civic LX", 9000, ptr(90000), 50),
		car("2", "2008 Honda Civic DX", 4000, nil, 20),
		car("3", "Honda Civic Hybrid", 8000, ptr(120000), 30),
		car("4", "2017 Mazda 3 GS", 9900, ptr(70000), 10),
		car("5", "2018 Honda Civic Si", 25000, ptr(20000), 10),
	)
	candidates := store.NewMemoryCollection()
	recorder := &messenger.Recorder{}

	criteria := []models.Criterion{
		{Name: "civic", MaxPrice: 10000, MaxMileage: ptr(150000), MaxProximityKm: 100, TitleContains: "civic", MinYear: ptr(2010)},
		{Name: "mazda", MaxPrice: 10000, MaxProximityKm: 100, TitleContains: "MAZDA"},
	}

	f := NewFilterEngine(listings, candidates, recorder)
	res, err := f.Run(ctx, criteria)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 2 is dropped by the year filter, 3 has no year and passes, 5 is too expensive.
	if got := strings.Join(res.StoredIDs, ","); got != "1,3,4" {
		t.Errorf("stored = %s, want 1,3,4", got)
	}
	if res.PerCriterion[0].Matched != 2 || res.PerCriterion[1].Matched != 1 {
		t.Errorf("per criterion = %+v", res.PerCriterion)
	}

	_, results := recorder.Snapshot()
	if len(results) != 3 {
		t.Fatalf("result messages = %d, want 3", len(results))
	}
	if !strings.HasPrefix(results[2], "Total cars extracted and stored based on search parameters: 3") {
		t.Errorf("summary = %q", results[2])
	}
}

func TestFilterEngineRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	listings := seedListings(t,
		car("1", "2016 Honda Civic", 9000, nil, 50),
		car("2", "2017 Honda Civic", 9500, nil, 50),
	)
	candidates := store.NewMemoryCollection()
	criteria := []models.Criterion{
		{Name: "a", MaxPrice: 10000, MaxProximityKm: 100, TitleContains: "civic"},
		{Name: "b", MaxPrice: 20000, MaxProximityKm: 100, TitleContains: "honda"},
	}

	f := NewFilterEngine(listings, candidates, nil)
	f.ResetCandidates = false

	first, err := f.Run(ctx, criteria)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if len(first.StoredIDs) != 2 {
		t.Errorf("first run stored %d, want 2 (overlapping criteria store once)", len(first.StoredIDs))
	}

	second, err := f.Run(ctx, criteria)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(second.StoredIDs) != 0 {
		t.Errorf("second run stored %v, want none", second.StoredIDs)
	}
	if candidates.Len() != 2 {
		t.Errorf("candidates = %d, want 2", candidates.Len())
	}
}

func TestFilterEngineRunResetsCandidates(t *testing.T) {
	ctx := context.Background()
	listings := seedListings(t, car("1", "2016 Honda Civic", 9000, nil, 50))
	candidates := store.NewMemoryCollection()
	_ = candidates.InsertOne(ctx, car("old", "2001 Honda Civic", 1000, nil, 1))

	f := NewFilterEngine(listings, candidates, nil)
	res, err := f.Run(ctx, []models.Criterion{{MaxPrice: 10000, MaxProximityKm: 100, TitleContains: "civic"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Cleared != 1 {
		t.Errorf("cleared = %d, want 1", res.Cleared)
	}
	if got, _ := candidates.FindOne(ctx, "old"); got != nil {
		t.Error("stale candidate should be cleared")
	}
}
