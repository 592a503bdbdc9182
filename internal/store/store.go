package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// IndexSpec describes a single index to ensure on a collection. Keys are
// applied in order; Order is 1 for ascending, -1 for descending.
type IndexSpec struct {
	Keys []IndexKey
	Name string
}

type IndexKey struct {
	Field string
	Order int
}

// Store is the storage engine collaborator. Documents are returned as bson.D
// so that field order survives into schema descriptions and column lists;
// values still carry engine-native types (bson.ObjectID, bson.DateTime) until
// normalized.
type Store interface {
	SampleRandom(ctx context.Context, collection string, n int) ([]bson.D, error)
	Aggregate(ctx context.Context, collection string, pipeline []map[string]any) ([]bson.D, error)
	InsertMany(ctx context.Context, collection string, docs []any) (int, error)
	DeleteMany(ctx context.Context, collection string, filter map[string]any) (int64, error)
	Drop(ctx context.Context, collection string) error
	ListCollections(ctx context.Context) ([]string, error)
	CountDocuments(ctx context.Context, collection string, filter map[string]any) (int64, error)
	EnsureIndexes(ctx context.Context, collection string, specs []IndexSpec) ([]string, error)
	FindOne(ctx context.Context, collection string) (bson.D, error)
	Ping(ctx context.Context) error
}

var _ Store = (*Mongo)(nil)

func indexModels(specs []IndexSpec) []mongo.IndexModel {
	models := make([]mongo.IndexModel, 0, len(specs))
	for _, spec := range specs {
		keys := make(bson.D, 0, len(spec.Keys))
		for _, key := range spec.Keys {
			keys = append(keys, bson.E{Key: key.Field, Value: key.Order})
		}
		models = append(models, mongo.IndexModel{Keys: keys})
	}
	return models
}
