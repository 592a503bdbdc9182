package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/auth"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/ingest"
)

type ingestRequest struct {
	Data         json.RawMessage `json:"data"`
	DropExisting bool            `json:"drop_existing"`
}

func handleIngest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ingester == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INGEST_NOT_CONFIGURED", "ingest dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleDataWriter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	collection := r.PathValue("collection")
	if err := ingest.ValidateCollectionName(collection); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_COLLECTION", err.Error(), false, nil)
		return
	}

	request, ok := decodeIngestRequest(w, r)
	if !ok {
		return
	}

	result, err := deps.Ingester.IngestJSON(r.Context(), request.Data, collection, request.DropExisting)
	if err != nil {
		writeIngestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"records_inserted": result.RecordsInserted,
		"indexes_created":  result.IndexesCreated,
		"statistics":       result.Statistics,
	})
}

func handleIngestFlow(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.FlowIngester == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INGEST_NOT_CONFIGURED", "ingest dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleDataWriter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeIngestRequest(w, r)
	if !ok {
		return
	}

	result, err := deps.FlowIngester.IngestFlow(r.Context(), request.Data, request.DropExisting)
	if err != nil {
		writeIngestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"collections_processed": result.CollectionsProcessed,
		"data_tables_created":   result.DataTablesCreated,
	})
}

func decodeIngestRequest(w http.ResponseWriter, r *http.Request) (ingestRequest, bool) {
	var request ingestRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ingest request body", false, map[string]any{"details": err.Error()})
		return ingestRequest{}, false
	}
	if len(request.Data) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "DATA_REQUIRED", "data is required", false, nil)
		return ingestRequest{}, false
	}
	return request, true
}

func writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidJSON),
		errors.Is(err, ingest.ErrNoRecords),
		errors.Is(err, ingest.ErrUnsupportedStructure):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "INGEST_FAILED", "ingestion failed", true, map[string]any{"details": err.Error()})
	}
}
