package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/auth"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/ingest"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/pipeline"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/store"
)

type collectionSummary struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// handleListCollections lists every collection with its document count.
// Counts run concurrently; one slow collection should not serialize the rest.
func handleListCollections(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "storage dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	names, err := deps.Store.ListCollections(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "LIST_COLLECTIONS_FAILED", "failed to list collections", true, map[string]any{"details": err.Error()})
		return
	}

	summaries := make([]collectionSummary, len(names))
	group, ctx := errgroup.WithContext(r.Context())
	group.SetLimit(8)
	for i, name := range names {
		group.Go(func() error {
			count, err := deps.Store.CountDocuments(ctx, name, nil)
			if err != nil {
				return err
			}
			summaries[i] = collectionSummary{Name: name, Count: count}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "COUNT_FAILED", "failed to count collection documents", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"collections": summaries})
}

func handleCollectionSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sampler == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SAMPLER_NOT_CONFIGURED", "schema dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	collection := r.PathValue("collection")
	if err := ingest.ValidateCollectionName(collection); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_COLLECTION", err.Error(), false, nil)
		return
	}

	desc := deps.Sampler.Sample(r.Context(), collection)
	if desc.Error != "" {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_SAMPLING_FAILED", desc.Error, true, map[string]any{"collection": collection})
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

type runPipelineRequest struct {
	Pipeline   pipeline.Pipeline `json:"pipeline"`
	Collection string            `json:"collection"`
}

// handleRunPipeline executes a caller-supplied aggregation pipeline without
// involving the model. The pipeline is validated against the allowed operator
// set first.
func handleRunPipeline(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "storage dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request runPipelineRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid pipeline request body", false, map[string]any{"details": err.Error()})
		return
	}
	if request.Collection == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "COLLECTION_REQUIRED", "collection is required", false, nil)
		return
	}
	if err := ingest.ValidateCollectionName(request.Collection); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_COLLECTION", err.Error(), false, nil)
		return
	}
	report := pipeline.Validate(request.Pipeline)
	if !report.Valid {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PIPELINE", "pipeline failed validation", false, map[string]any{"warnings": report.Warnings})
		return
	}

	docs, err := deps.Store.Aggregate(r.Context(), request.Collection, request.Pipeline)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "PIPELINE_EXECUTION_FAILED", "pipeline execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	data := store.NormalizeAll(docs)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"count": len(data),
	})
}
