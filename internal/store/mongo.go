package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/config"
)

// Mongo wraps a process-wide client. Open once at startup, inject everywhere,
// Close on shutdown.
type Mongo struct {
	client    *mongo.Client
	dbName    string
	opTimeout time.Duration
}

func Open(cfg config.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = 30 * time.Second
	}
	return &Mongo{client: client, dbName: cfg.Database, opTimeout: opTimeout}, nil
}

func (m *Mongo) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

func (m *Mongo) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opTimeout)
}

func (m *Mongo) SampleRandom(ctx context.Context, collection string, n int) ([]bson.D, error) {
	pipeline := []map[string]any{
		{"$sample": map[string]any{"size": n}},
		{"$limit": n},
	}
	return m.Aggregate(ctx, collection, pipeline)
}

func (m *Mongo) Aggregate(ctx context.Context, collection string, pipeline []map[string]any) ([]bson.D, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	stages := make([]any, 0, len(pipeline))
	for _, stage := range pipeline {
		stages = append(stages, stage)
	}
	cursor, err := m.collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read aggregate cursor: %w", err)
	}
	return docs, nil
}

func (m *Mongo) InsertMany(ctx context.Context, collection string, docs []any) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	result, err := m.collection(collection).InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", collection, err)
	}
	return len(result.InsertedIDs), nil
}

func (m *Mongo) DeleteMany(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if filter == nil {
		filter = map[string]any{}
	}
	result, err := m.collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}

func (m *Mongo) Drop(ctx context.Context, collection string) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if err := m.collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

func (m *Mongo) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	names, err := m.client.Database(m.dbName).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (m *Mongo) CountDocuments(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if filter == nil {
		filter = map[string]any{}
	}
	count, err := m.collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

func (m *Mongo) EnsureIndexes(ctx context.Context, collection string, specs []IndexSpec) ([]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	names, err := m.collection(collection).Indexes().CreateMany(ctx, indexModels(specs))
	if err != nil {
		return nil, fmt.Errorf("create indexes on %s: %w", collection, err)
	}
	return names, nil
}

func (m *Mongo) FindOne(ctx context.Context, collection string) (bson.D, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var doc bson.D
	err := m.collection(collection).FindOne(ctx, bson.M{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", collection, err)
	}
	return doc, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
