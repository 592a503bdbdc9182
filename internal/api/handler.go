package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/auth"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/config"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/ingest"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/orchestrator"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// QueryRunner drives a natural-language question through the full analysis
// flow.
type QueryRunner interface {
	Run(ctx context.Context, queryText, collection string) orchestrator.Outcome
}

type SchemaSampler interface {
	Sample(ctx context.Context, collection string) schema.Descriptor
}

// CollectionStore is the slice of the storage engine the browse and raw
// pipeline routes need.
type CollectionStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	CountDocuments(ctx context.Context, collection string, filter map[string]any) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline []map[string]any) ([]bson.D, error)
}

type RecordIngester interface {
	IngestJSON(ctx context.Context, raw []byte, collection string, dropExisting bool) (ingest.RecordResult, error)
}

type FlowIngester interface {
	IngestFlow(ctx context.Context, raw []byte, dropExisting bool) (ingest.FlowResult, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Runner            QueryRunner
	Sampler           SchemaSampler
	Store             CollectionStore
	Ingester          RecordIngester
	FlowIngester      FlowIngester
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	protected.HandleFunc("GET /v1/collections", func(w http.ResponseWriter, r *http.Request) {
		handleListCollections(deps, w, r)
	})
	protected.HandleFunc("GET /v1/collections/{collection}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleCollectionSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/pipeline/run", func(w http.ResponseWriter, r *http.Request) {
		handleRunPipeline(deps, w, r)
	})
	protected.HandleFunc("POST /v1/ingest/flow", func(w http.ResponseWriter, r *http.Request) {
		handleIngestFlow(deps, w, r)
	})
	protected.HandleFunc("POST /v1/ingest/{collection}", func(w http.ResponseWriter, r *http.Request) {
		handleIngest(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/query", protectedHandler)
	mux.Handle("GET /v1/collections", protectedHandler)
	mux.Handle("GET /v1/collections/{collection}/schema", protectedHandler)
	mux.Handle("POST /v1/pipeline/run", protectedHandler)
	mux.Handle("POST /v1/ingest/flow", protectedHandler)
	mux.Handle("POST /v1/ingest/{collection}", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
