package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
)

// flowCollections is the fixed set of collections a reconciliation flow
// export carries, in processing order.
var flowCollections = []string{
	"matchmethod",
	"matchingrules",
	"datasources",
	"matchingResult",
	"discrepancies",
	"discrepancyResolution",
	"ticket",
}

// objectIDKeys are the identifier fields whose {"$oid": hex} wrapper values
// are rewritten to native object IDs.
var objectIDKeys = map[string]bool{
	"_id":                true,
	"profileId":          true,
	"matchingMethodId":   true,
	"extractionMethodId": true,
	"workspaceId":        true,
	"organizationId":     true,
	"matchResultsId":     true,
	"discrepancyId":      true,
	"ticketId":           true,
	"resolvedBy":         true,
}

// FlowStore is the slice of the storage engine flow ingestion needs.
type FlowStore interface {
	Drop(ctx context.Context, collection string) error
	InsertMany(ctx context.Context, collection string, docs []any) (int, error)
}

// FlowResult maps collection names to inserted document counts, for the
// fixed flow collections and for the data tables extracted from match rows.
type FlowResult struct {
	CollectionsProcessed map[string]int `json:"collections_processed"`
	DataTablesCreated    map[string]int `json:"data_tables_created"`
}

type FlowIngester struct {
	store  FlowStore
	logger *slog.Logger
}

func NewFlowIngester(st FlowStore, logger *slog.Logger) *FlowIngester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FlowIngester{store: st, logger: logger}
}

// IngestFlow loads a complete reconciliation flow export: the fixed
// collections keyed at the top level, plus dynamic data-table collections
// extracted from the matching result's source rows.
func (ing *FlowIngester) IngestFlow(ctx context.Context, raw []byte, dropExisting bool) (FlowResult, error) {
	var flow map[string]any
	if err := json.Unmarshal(raw, &flow); err != nil {
		return FlowResult{}, fmt.Errorf("%w: %s", ErrInvalidJSON, err)
	}

	if dropExisting {
		for _, name := range flowCollections {
			if err := ing.store.Drop(ctx, name); err != nil {
				return FlowResult{}, fmt.Errorf("drop collection %s: %w", name, err)
			}
		}
	}

	result := FlowResult{
		CollectionsProcessed: make(map[string]int),
		DataTablesCreated:    make(map[string]int),
	}

	total := 0
	for _, name := range flowCollections {
		value, ok := flow[name]
		if !ok {
			continue
		}
		var docs []any
		switch v := value.(type) {
		case map[string]any:
			docs = []any{rewriteWrappers(v)}
		case []any:
			docs = make([]any, 0, len(v))
			for _, doc := range v {
				docs = append(docs, rewriteWrappers(doc))
			}
		default:
			continue
		}
		if len(docs) == 0 {
			continue
		}
		inserted, err := ing.store.InsertMany(ctx, name, docs)
		if err != nil {
			return FlowResult{}, fmt.Errorf("insert into %s: %w", name, err)
		}
		result.CollectionsProcessed[name] = inserted
		total += inserted
	}

	if err := ing.createDataTables(ctx, flow, &result); err != nil {
		return FlowResult{}, err
	}
	for _, count := range result.DataTablesCreated {
		total += count
	}
	observability.ObserveIngest(total)

	ing.logger.InfoContext(ctx, "flow ingested",
		slog.Int("collections", len(result.CollectionsProcessed)),
		slog.Int("data_tables", len(result.DataTablesCreated)),
		slog.Int("records", total),
	)
	return result, nil
}

// createDataTables walks matchingResult.rows[].cells[].sources[] and groups
// each source's fullRow into a collection named by its tableId. Rows are
// de-duplicated per table by their canonical JSON encoding.
func (ing *FlowIngester) createDataTables(ctx context.Context, flow map[string]any, result *FlowResult) error {
	matchingResult, ok := flow["matchingResult"].(map[string]any)
	if !ok {
		return nil
	}
	rows, ok := matchingResult["rows"].([]any)
	if !ok {
		return nil
	}

	var tableOrder []string
	tableRows := make(map[string][]any)
	seen := make(map[string]map[string]bool)

	for _, rowValue := range rows {
		row, ok := rowValue.(map[string]any)
		if !ok {
			continue
		}
		cells, _ := row["cells"].([]any)
		for _, cellValue := range cells {
			cell, ok := cellValue.(map[string]any)
			if !ok {
				continue
			}
			sources, _ := cell["sources"].([]any)
			for _, sourceValue := range sources {
				source, ok := sourceValue.(map[string]any)
				if !ok {
					continue
				}
				tableID, _ := source["tableId"].(string)
				fullRow, ok := source["fullRow"].(map[string]any)
				if tableID == "" || !ok {
					continue
				}

				key, err := json.Marshal(fullRow)
				if err != nil {
					continue
				}
				if seen[tableID] == nil {
					seen[tableID] = make(map[string]bool)
					tableOrder = append(tableOrder, tableID)
				}
				if seen[tableID][string(key)] {
					continue
				}
				seen[tableID][string(key)] = true
				tableRows[tableID] = append(tableRows[tableID], rewriteWrappers(fullRow))
			}
		}
	}

	for _, tableID := range tableOrder {
		if err := ValidateCollectionName(tableID); err != nil {
			ing.logger.WarnContext(ctx, "skipping data table with unusable name",
				slog.String("table_id", tableID),
				slog.Any("error", err),
			)
			continue
		}
		inserted, err := ing.store.InsertMany(ctx, tableID, tableRows[tableID])
		if err != nil {
			return fmt.Errorf("insert into data table %s: %w", tableID, err)
		}
		result.DataTablesCreated[tableID] = inserted
	}
	return nil
}

// rewriteWrappers recursively converts extended-JSON wrapper objects into
// engine-native values: {"$oid": hex} under identifier keys (and elements of
// datasourceIds) become object IDs, {"$date": iso} anywhere becomes a
// timestamp. Unparseable wrappers are kept as-is.
func rewriteWrappers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		converted := make(map[string]any, len(v))
		for key, inner := range v {
			switch {
			case objectIDKeys[key]:
				converted[key] = rewriteObjectID(inner)
			case key == "datasourceIds":
				if elements, ok := inner.([]any); ok {
					ids := make([]any, 0, len(elements))
					for _, element := range elements {
						ids = append(ids, rewriteObjectID(element))
					}
					converted[key] = ids
				} else {
					converted[key] = rewriteWrappers(inner)
				}
			default:
				if stamp, ok := dateWrapper(inner); ok {
					converted[key] = stamp
				} else {
					converted[key] = rewriteWrappers(inner)
				}
			}
		}
		return converted
	case []any:
		converted := make([]any, 0, len(v))
		for _, element := range v {
			converted = append(converted, rewriteWrappers(element))
		}
		return converted
	default:
		return value
	}
}

func rewriteObjectID(value any) any {
	wrapper, ok := value.(map[string]any)
	if !ok {
		return rewriteWrappers(value)
	}
	hex, ok := wrapper["$oid"].(string)
	if !ok {
		return rewriteWrappers(value)
	}
	oid, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return value
	}
	return oid
}

func dateWrapper(value any) (time.Time, bool) {
	wrapper, ok := value.(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	iso, ok := wrapper["$date"].(string)
	if !ok {
		return time.Time{}, false
	}
	stamp, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, false
	}
	return stamp, true
}
