package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Header().Get(traceHeader) == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestRouteLabel(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/v1/health", "/v1/health"},
		{"/v1/query", "/v1/query"},
		{"/v1/collections", "/v1/collections"},
		{"/v1/collections/sales_2025/schema", "/v1/collections/{collection}/schema"},
		{"/v1/ingest/flow", "/v1/ingest/flow"},
		{"/v1/ingest/transactions", "/v1/ingest/{collection}"},
		{"/v1/ingest/a/b", "unmatched"},
		{"/v1/collections//schema", "unmatched"},
		{"/favicon.ico", "unmatched"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if got := RouteLabel(r); got != tc.want {
			t.Errorf("RouteLabel(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoggingMiddlewareEmitsRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/collections/orders/schema", nil))

	var entry struct {
		Msg        string  `json:"msg"`
		Route      string  `json:"route"`
		Path       string  `json:"path"`
		Status     int     `json:"status"`
		DurationMS float64 `json:"duration_ms"`
		Bytes      int     `json:"bytes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v\n%s", err, buf.String())
	}
	if entry.Msg != "http_request" || entry.Status != http.StatusNotFound {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Route != "/v1/collections/{collection}/schema" {
		t.Fatalf("route = %q", entry.Route)
	}
	if entry.Path != "/v1/collections/orders/schema" {
		t.Fatalf("path = %q", entry.Path)
	}
	if entry.DurationMS < 0 || entry.Bytes != 2 {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestMetricsMiddlewareCountsByRouteTemplate(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues(http.MethodPost, "/v1/ingest/{collection}", "201")
	before := testutil.ToFloat64(counter)

	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/ingest/pos_data", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/ingest/card_data", nil))

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("counter delta = %v", got)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Fatalf("in-flight gauge = %v after requests finished", got)
	}
}
