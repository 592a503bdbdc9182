package auth

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestStaticAPIKeyValidatorParsesSpec(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:query_reader|data_writer,k2:t2:query_reader")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	identity, ok := validator.Validate(t.Context(), "k1")
	if !ok {
		t.Fatal("expected k1 to validate")
	}
	if identity.TenantID != "t1" {
		t.Fatalf("tenant = %q", identity.TenantID)
	}
	if !identity.HasRole(RoleDataWriter) || !identity.HasRole(RoleQueryReader) {
		t.Fatalf("roles = %v", identity.Roles)
	}

	if _, ok := validator.Validate(t.Context(), "unknown"); ok {
		t.Fatal("unknown key validated")
	}
}

func TestStaticAPIKeyValidatorRejectsMalformedSpec(t *testing.T) {
	for _, spec := range []string{"k1", "k1:t1", "k1::query_reader", "k1:t1:"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Errorf("spec %q: expected error", spec)
		}
	}
}

func TestStaticAPIKeyValidatorRejectsUnknownRole(t *testing.T) {
	_, err := NewStaticAPIKeyValidator("k1:t1:query_reader|admin")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !strings.Contains(err.Error(), `"admin"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestStaticAPIKeyValidatorDeduplicatesRoles(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:query_reader|query_reader|data_writer")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	identity, _ := validator.Validate(t.Context(), "k1")
	if !reflect.DeepEqual(identity.Roles, []string{RoleDataWriter, RoleQueryReader}) {
		t.Fatalf("roles = %v", identity.Roles)
	}
}

func TestIdentityCapabilities(t *testing.T) {
	reader := Identity{TenantID: "t1", Roles: []string{RoleQueryReader}}
	if !reader.CanQuery() || reader.CanIngest() {
		t.Fatalf("reader capabilities: query=%v ingest=%v", reader.CanQuery(), reader.CanIngest())
	}
	writer := Identity{TenantID: "t1", Roles: []string{RoleDataWriter}}
	if writer.CanQuery() || !writer.CanIngest() {
		t.Fatalf("writer capabilities: query=%v ingest=%v", writer.CanQuery(), writer.CanIngest())
	}
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:query_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || identity.TenantID != "t1" {
			t.Fatalf("identity = %+v ok=%v", identity, ok)
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/collections", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/collections", nil)
	authReq.Header.Set("Authorization", "Bearer k1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, authReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareLogsDecision(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:acme:data_writer")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := Middleware(logger, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	denied := httptest.NewRequest(http.MethodPost, "/v1/ingest/pos_data", nil)
	denied.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(httptest.NewRecorder(), denied)
	if !strings.Contains(buf.String(), `"credential_source":"bearer"`) {
		t.Fatalf("denial log missing credential source:\n%s", buf.String())
	}

	buf.Reset()
	granted := httptest.NewRequest(http.MethodPost, "/v1/ingest/pos_data", nil)
	granted.Header.Set("X-API-Key", "k1")
	handler.ServeHTTP(httptest.NewRecorder(), granted)
	for _, want := range []string{
		`"tenant":"acme"`,
		`"route":"/v1/ingest/{collection}"`,
		`"can_query":false`,
		`"can_ingest":true`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("grant log missing %s:\n%s", want, buf.String())
		}
	}
}
