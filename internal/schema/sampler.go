// Package schema derives per-request collection descriptors from a bounded
// random sample of stored records.
package schema

import (
	"context"
	"log/slog"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/store"
)

const DefaultSampleSize = 100

// Store is the slice of the storage engine the sampler needs.
type Store interface {
	SampleRandom(ctx context.Context, collection string, n int) ([]bson.D, error)
}

// Field pairs a field name with the set of type tags observed for it across
// the sample. A field missing from some sampled records simply accumulates
// nothing from them.
type Field struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// Descriptor is ephemeral: computed fresh per request, never persisted.
type Descriptor struct {
	Fields         []Field        `json:"fields"`
	SampleCount    int            `json:"sample_count"`
	SampleDocument map[string]any `json:"sample_document,omitempty"`
	Error          string         `json:"error,omitempty"`
}

type Sampler struct {
	store      Store
	sampleSize int
	logger     *slog.Logger
}

func NewSampler(st Store, sampleSize int, logger *slog.Logger) *Sampler {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sampler{store: st, sampleSize: sampleSize, logger: logger}
}

// Sample draws up to the configured number of records and derives the field
// descriptor. Engine errors are folded into the descriptor's Error field
// instead of being returned, so downstream stages can short-circuit on it.
func (s *Sampler) Sample(ctx context.Context, collection string) Descriptor {
	docs, err := s.store.SampleRandom(ctx, collection, s.sampleSize)
	if err != nil {
		s.logger.WarnContext(ctx, "schema sampling failed",
			slog.String("collection", collection),
			slog.Any("error", err),
		)
		return Descriptor{Fields: []Field{}, Error: err.Error()}
	}
	if len(docs) == 0 {
		return Descriptor{Fields: []Field{}}
	}

	normalized := store.NormalizeAll(docs)

	typesByField := make(map[string]map[string]bool)
	order := store.FieldOrder(docs)
	for i, doc := range docs {
		for _, elem := range doc {
			tags := typesByField[elem.Key]
			if tags == nil {
				tags = make(map[string]bool)
				typesByField[elem.Key] = tags
			}
			tags[store.TypeTag(normalized[i][elem.Key])] = true
		}
	}

	fields := make([]Field, 0, len(order))
	for _, name := range order {
		tags := typesByField[name]
		types := make([]string, 0, len(tags))
		for tag := range tags {
			types = append(types, tag)
		}
		sort.Strings(types)
		fields = append(fields, Field{Name: name, Types: types})
	}

	return Descriptor{
		Fields:         fields,
		SampleCount:    len(docs),
		SampleDocument: normalized[0],
	}
}
