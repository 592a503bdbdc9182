// Package ingest loads external JSON payloads into the store: flat record
// batches with enrichment and indexing, and full reconciliation flow exports
// spanning multiple collections.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/store"
)

var (
	ErrInvalidJSON          = errors.New("invalid JSON payload")
	ErrNoRecords            = errors.New("no records found in payload")
	ErrUnsupportedStructure = errors.New("unsupported JSON structure")
)

// wrapperKeys are tried in order when the payload is an object rather than a
// bare array; the first key holding an array wins.
var wrapperKeys = []string{"records", "data", "reconciliations", "transactions", "items"}

var dateFields = []string{
	"date", "transaction_date", "reconciliation_date",
	"created_at", "updated_at", "timestamp",
}

var numericFields = []string{
	"amount", "value", "total", "balance", "difference",
	"debit", "credit", "net_amount", "quantity", "price",
}

var categoricalFields = []string{
	"status", "type", "category", "source", "destination",
	"account", "currency", "region", "department", "product",
}

// RecordStore is the slice of the storage engine record ingestion needs.
type RecordStore interface {
	Drop(ctx context.Context, collection string) error
	InsertMany(ctx context.Context, collection string, docs []any) (int, error)
	EnsureIndexes(ctx context.Context, collection string, specs []store.IndexSpec) ([]string, error)
	FindOne(ctx context.Context, collection string) (bson.D, error)
	CountDocuments(ctx context.Context, collection string, filter map[string]any) (int64, error)
}

// RecordResult summarizes one batch ingestion.
type RecordResult struct {
	RecordsInserted int            `json:"records_inserted"`
	IndexesCreated  []string       `json:"indexes_created"`
	Statistics      map[string]any `json:"statistics"`
}

type Ingester struct {
	store    RecordStore
	database string
	logger   *slog.Logger
	now      func() time.Time
}

func NewIngester(st RecordStore, database string, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingester{store: st, database: database, logger: logger, now: time.Now}
}

// IngestJSON parses, enriches, and inserts a JSON payload into the named
// collection, then ensures indexes derived from a representative document.
func (ing *Ingester) IngestJSON(ctx context.Context, raw []byte, collection string, dropExisting bool) (RecordResult, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return RecordResult{}, fmt.Errorf("%w: %s", ErrInvalidJSON, err)
	}

	records, err := extractRecords(payload)
	if err != nil {
		return RecordResult{}, err
	}
	if len(records) == 0 {
		return RecordResult{}, ErrNoRecords
	}

	if dropExisting {
		if err := ing.store.Drop(ctx, collection); err != nil {
			return RecordResult{}, fmt.Errorf("drop collection %s: %w", collection, err)
		}
	}

	batchID := uuid.NewString()
	ingestedAt := ing.now().UTC()
	docs := make([]any, 0, len(records))
	for i, record := range records {
		docs = append(docs, enrichRecord(record, i, batchID, ingestedAt))
	}

	inserted, err := ing.store.InsertMany(ctx, collection, docs)
	if err != nil {
		return RecordResult{}, fmt.Errorf("insert records: %w", err)
	}
	observability.ObserveIngest(inserted)

	indexes, err := ing.ensureIndexes(ctx, collection)
	if err != nil {
		// Records are in; index failure degrades query speed, not data.
		ing.logger.WarnContext(ctx, "index creation failed",
			slog.String("collection", collection),
			slog.Any("error", err),
		)
	}

	result := RecordResult{
		RecordsInserted: inserted,
		IndexesCreated:  indexes,
		Statistics:      ing.collectionStats(ctx, collection),
	}
	ing.logger.InfoContext(ctx, "records ingested",
		slog.String("collection", collection),
		slog.Int("records", inserted),
		slog.Int("indexes", len(indexes)),
	)
	return result, nil
}

// extractRecords accepts a bare array, an object holding the array under one
// of the wrapper keys, or a single object treated as a one-record batch.
func extractRecords(payload any) ([]map[string]any, error) {
	switch value := payload.(type) {
	case []any:
		return recordList(value)
	case map[string]any:
		for _, key := range wrapperKeys {
			if wrapped, ok := value[key].([]any); ok {
				return recordList(wrapped)
			}
		}
		return []map[string]any{value}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStructure, payload)
	}
}

func recordList(elements []any) ([]map[string]any, error) {
	records := make([]map[string]any, 0, len(elements))
	for i, element := range elements {
		record, ok := element.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrUnsupportedStructure, i)
		}
		records = append(records, record)
	}
	return records, nil
}

func enrichRecord(record map[string]any, index int, batchID string, ingestedAt time.Time) map[string]any {
	enriched := make(map[string]any, len(record)+10)
	for key, value := range record {
		enriched[key] = value
	}

	if _, hasID := enriched["id"]; !hasID {
		if _, hasMongoID := enriched["_id"]; !hasMongoID {
			enriched["record_id"] = fmt.Sprintf("REC-%06d", index+1)
		}
	}

	for _, field := range dateFields {
		if text, ok := enriched[field].(string); ok {
			if parsed, ok := parseDate(text); ok {
				enriched[field] = parsed
			}
		}
	}

	enriched["_ingested_at"] = ingestedAt
	enriched["_ingestion_source"] = "json_upload"
	enriched["_ingestion_id"] = batchID

	if stamp, ok := firstDate(enriched); ok {
		enriched["_year"] = stamp.Year()
		enriched["_month"] = int(stamp.Month())
		enriched["_quarter"] = fmt.Sprintf("Q%d %d", (int(stamp.Month())-1)/3+1, stamp.Year())
		enriched["_day_of_week"] = stamp.Weekday().String()
		enriched["_month_name"] = stamp.Month().String()
	}

	for _, field := range numericFields {
		if value, ok := enriched[field]; ok {
			if coerced, ok := toFloat(value); ok {
				enriched[field] = coerced
			}
		}
	}

	if status, ok := enriched["status"].(string); ok {
		enriched["status"] = strings.ToLower(strings.TrimSpace(status))
	}

	return enriched
}

func parseDate(text string) (time.Time, bool) {
	if parsed, err := time.Parse(time.RFC3339, text); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", text); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

// firstDate returns the value of the first known date field that parsed,
// skipping the ingestion timestamp so calendar features reflect the data.
func firstDate(record map[string]any) (time.Time, bool) {
	for _, field := range dateFields {
		if stamp, ok := record[field].(time.Time); ok {
			return stamp, true
		}
	}
	return time.Time{}, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// ensureIndexes derives the index set from a representative document so that
// only fields actually present in the data get indexed.
func (ing *Ingester) ensureIndexes(ctx context.Context, collection string) ([]string, error) {
	sample, err := ing.store.FindOne(ctx, collection)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(sample))
	for _, elem := range sample {
		present[elem.Key] = true
	}

	var specs []store.IndexSpec
	var labels []string

	for _, field := range []string{"date", "transaction_date", "reconciliation_date", "_ingested_at"} {
		if present[field] {
			specs = append(specs, store.IndexSpec{Keys: []store.IndexKey{{Field: field, Order: -1}}})
			labels = append(labels, field)
		}
	}
	for _, field := range categoricalFields {
		if present[field] {
			specs = append(specs, store.IndexSpec{Keys: []store.IndexKey{{Field: field, Order: 1}}})
			labels = append(labels, field)
		}
	}
	for _, field := range []string{"_year", "_quarter", "_month"} {
		if present[field] {
			specs = append(specs, store.IndexSpec{Keys: []store.IndexKey{{Field: field, Order: 1}}})
			labels = append(labels, field)
		}
	}
	if present["status"] && present["amount"] {
		specs = append(specs, store.IndexSpec{Keys: []store.IndexKey{
			{Field: "status", Order: 1}, {Field: "amount", Order: -1},
		}})
		labels = append(labels, "status+amount")
	}
	if present["_year"] && present["_month"] {
		specs = append(specs, store.IndexSpec{Keys: []store.IndexKey{
			{Field: "_year", Order: 1}, {Field: "_month", Order: 1},
		}})
		labels = append(labels, "_year+_month")
	}

	if len(specs) == 0 {
		return []string{}, nil
	}
	if _, err := ing.store.EnsureIndexes(ctx, collection, specs); err != nil {
		return nil, err
	}
	return labels, nil
}

func (ing *Ingester) collectionStats(ctx context.Context, collection string) map[string]any {
	stats := map[string]any{
		"database":   ing.database,
		"collection": collection,
	}
	if total, err := ing.store.CountDocuments(ctx, collection, nil); err == nil {
		stats["total_records"] = total
	}
	if sample, err := ing.store.FindOne(ctx, collection); err == nil && sample != nil {
		fields := make([]string, 0, len(sample))
		for _, elem := range sample {
			fields = append(fields, elem.Key)
		}
		stats["fields"] = fields
	}
	return stats
}
