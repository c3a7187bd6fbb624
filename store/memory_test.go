package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aluiziolira/autotrader-watch/models"
)

func ptr[T any](v T) *T { return &v }

func listing(id, title string, price float64, mileage *int, prox int) models.Listing {
	return models.Listing{
		ID:          id,
		Title:       ptr(title),
		Price:       ptr(price),
		Mileage:     mileage,
		ProximityKm: ptr(prox),
		ProductURL:  ptr("https://example.test/" + id),
	}
}

func TestMemoryCollection_InsertAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection()

	if err := c.InsertMany(ctx, []models.Listing{
		listing("a", "Honda Civic", 5000, nil, 10),
		listing("b", "Honda Fit", 6000, nil, 20),
	}); err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}
	if err := c.InsertOne(ctx, listing("a", "dup", 1, nil, 1)); err == nil {
		t.Error("InsertOne() with duplicate id should fail")
	}
	if err := c.InsertMany(ctx, []models.Listing{listing("c", "x", 1, nil, 1), listing("b", "x", 1, nil, 1)}); err == nil {
		t.Error("InsertMany() with duplicate id should fail")
	}
	if err := c.InsertMany(ctx, []models.Listing{listing("d", "x", 1, nil, 1), listing("e", "x", 1, nil, 1), listing("d", "x", 1, nil, 1)}); err == nil {
		t.Error("InsertMany() with an id repeated in the batch should fail")
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (failed batch must not partially apply)", c.Len())
	}
	if all, _ := c.All(ctx); len(all) != 2 {
		t.Fatalf("All() = %d items, want 2", len(all))
	}

	n, err := c.DeleteAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll() = %d, %v; want 2, nil", n, err)
	}
	all, _ := c.All(ctx)
	if len(all) != 0 {
		t.Errorf("All() after DeleteAll = %d items", len(all))
	}
}

func TestMemoryCollection_Find(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection()
	_ = c.InsertMany(ctx, []models.Listing{
		listing("1", "2015 Honda Civic", 9000, ptr(80000), 50),
		listing("2", "2016 HONDA CIVIC LX", 9500, nil, 40),
		listing("3", "2014 Honda Civic", 12000, ptr(50000), 30),
		listing("4", "2015 Honda Civic", 8000, ptr(200000), 10),
		listing("5", "Toyota Corolla", 5000, nil, 5),
	})

	crit := models.Criterion{Name: "civic", MaxPrice: 10000, MaxMileage: ptr(150000), MaxProximityKm: 100, TitleContains: "honda civic"}
	got, err := c.Find(ctx, crit)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	want := []string{"1", "2"}
	if len(got) != len(want) {
		t.Fatalf("Find() returned %d listings, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Find()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestMemoryCollection_FindOneAndUpdate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection()
	_ = c.InsertOne(ctx, listing("a", "Civic", 1, nil, 1))

	got, err := c.FindOne(ctx, "missing")
	if err != nil || got != nil {
		t.Errorf("FindOne(missing) = %v, %v; want nil, nil", got, err)
	}

	if err := c.Update(ctx, "a", models.ListingPatch{Description: ptr("clean title")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = c.FindOne(ctx, "a")
	if got == nil || got.Description != "clean title" {
		t.Errorf("FindOne(a) = %+v, want description set", got)
	}

	err = c.Update(ctx, "missing", models.ListingPatch{Description: ptr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	ok, _ := l.Contains(ctx, "x")
	if ok {
		t.Fatal("empty ledger contains x")
	}
	_ = l.Record(ctx, "x")
	_ = l.Record(ctx, "x")
	_ = l.Record(ctx, "y")

	ok, _ = l.Contains(ctx, "x")
	if !ok {
		t.Error("ledger should contain x after Record")
	}
	if ids := l.IDs(); len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
		t.Errorf("IDs() = %v, want [x y]", ids)
	}
}
