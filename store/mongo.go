package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aluiziolira/autotrader-watch/models"
)

// Collection names. Documents key listings and sent records on _id with
// snake_case fields, so collections written by the older pipeline (fields
// "ID", "Title", "Product URL" and sent records shaped {ID} under a
// generated _id) are not readable here. Point the store at a fresh database
// or migrate sent_listings first, otherwise every past notification is
// sent again.
const (
	ListingsCollection   = "listings"
	CandidatesCollection = "extracted_cars"
	SentCollection       = "sent_listings"
)

// MongoCollection is a ListingStore backed by a MongoDB collection.
type MongoCollection struct {
	coll *mongo.Collection
}

// NewMongoCollection wraps coll.
func NewMongoCollection(coll *mongo.Collection) *MongoCollection {
	return &MongoCollection{coll: coll}
}

func (m *MongoCollection) InsertMany(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	docs := make([]interface{}, len(listings))
	for i, l := range listings {
		docs[i] = l
	}
	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert many into %s: %w", m.coll.Name(), err)
	}
	return nil
}

func (m *MongoCollection) InsertOne(ctx context.Context, listing models.Listing) error {
	if _, err := m.coll.InsertOne(ctx, listing); err != nil {
		return fmt.Errorf("insert %q into %s: %w", listing.ID, m.coll.Name(), err)
	}
	return nil
}

func (m *MongoCollection) DeleteAll(ctx context.Context) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete all from %s: %w", m.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (m *MongoCollection) Find(ctx context.Context, crit models.Criterion) ([]models.Listing, error) {
	return m.find(ctx, criterionFilter(crit))
}

func (m *MongoCollection) All(ctx context.Context) ([]models.Listing, error) {
	return m.find(ctx, bson.D{})
}

func (m *MongoCollection) find(ctx context.Context, filter bson.D) ([]models.Listing, error) {
	cur, err := m.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", m.coll.Name(), err)
	}
	var out []models.Listing
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.coll.Name(), err)
	}
	return out, nil
}

func (m *MongoCollection) FindOne(ctx context.Context, id string) (*models.Listing, error) {
	var l models.Listing
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %q in %s: %w", id, m.coll.Name(), err)
	}
	return &l, nil
}

func (m *MongoCollection) Update(ctx context.Context, id string, patch models.ListingPatch) error {
	set := bson.D{}
	if patch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *patch.Description})
	}
	if len(set) == 0 {
		return nil
	}
	res, err := m.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update %q in %s: %w", id, m.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	return nil
}

// criterionFilter mirrors models.Criterion.Matches as a query document.
func criterionFilter(c models.Criterion) bson.D {
	f := bson.D{
		{Key: "price", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lte", Value: c.MaxPrice}}},
		{Key: "proximity_km", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lte", Value: c.MaxProximityKm}}},
		{Key: "title", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(c.TitleContains)},
			{Key: "$options", Value: "i"},
		}},
	}
	if c.MaxMileage != nil {
		// Unknown mileage passes.
		f = append(f, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "mileage", Value: nil}},
			bson.D{{Key: "mileage", Value: bson.D{{Key: "$lte", Value: *c.MaxMileage}}}},
		}})
	}
	return f
}

// MongoLedger is a SentLedger stored as {_id} documents.
type MongoLedger struct {
	coll *mongo.Collection
}

// NewMongoLedger wraps coll.
func NewMongoLedger(coll *mongo.Collection) *MongoLedger {
	return &MongoLedger{coll: coll}
}

func (l *MongoLedger) Contains(ctx context.Context, id string) (bool, error) {
	n, err := l.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("lookup sent %q: %w", id, err)
	}
	return n > 0, nil
}

func (l *MongoLedger) Record(ctx context.Context, id string) error {
	_, err := l.coll.InsertOne(ctx, models.SentRecord{ID: id})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("record sent %q: %w", id, err)
	}
	return nil
}

// Mongo is a Backend on one MongoDB database.
type Mongo struct {
	client     *mongo.Client
	listings   *MongoCollection
	candidates *MongoCollection
	sent       *MongoLedger
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	slog.Info("connected to mongo", slog.String("database", database))

	db := client.Database(database)
	return &Mongo{
		client:     client,
		listings:   NewMongoCollection(db.Collection(ListingsCollection)),
		candidates: NewMongoCollection(db.Collection(CandidatesCollection)),
		sent:       NewMongoLedger(db.Collection(SentCollection)),
	}, nil
}

func (m *Mongo) Listings() ListingStore   { return m.listings }
func (m *Mongo) Candidates() ListingStore { return m.candidates }
func (m *Mongo) Sent() SentLedger         { return m.sent }

func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
