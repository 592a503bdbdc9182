package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/auth"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/orchestrator"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/pipeline"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/viz"
)

type queryRequest struct {
	Prompt     string `json:"prompt"`
	Collection string `json:"collection"`
}

type queryMetadata struct {
	Step        string `json:"step"`
	RecordCount int    `json:"record_count"`
	ChartType   string `json:"chart_type,omitempty"`
}

type queryResponse struct {
	Success     bool              `json:"success"`
	Query       string            `json:"query"`
	Pipeline    pipeline.Pipeline `json:"pipeline"`
	Data        []map[string]any  `json:"data"`
	ChartConfig viz.ChartConfig   `json:"chart_config"`
	Figure      viz.Figure        `json:"figure"`
	Metadata    queryMetadata     `json:"metadata"`
	Error       string            `json:"error,omitempty"`
}

// handleQuery runs a natural-language question end to end. Stage failures in
// the flow produce a success=false body with HTTP 200; only malformed input
// is rejected with an error status.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Runner == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}

	outcome := deps.Runner.Run(r.Context(), strings.TrimSpace(request.Prompt), strings.TrimSpace(request.Collection))
	writeJSON(w, http.StatusOK, outcomeResponse(outcome))
}

func outcomeResponse(outcome orchestrator.Outcome) queryResponse {
	response := queryResponse{
		Success:     outcome.Success,
		Query:       outcome.Query,
		Pipeline:    outcome.Pipeline,
		Data:        outcome.Data,
		ChartConfig: outcome.Chart,
		Figure:      outcome.Figure,
		Metadata: queryMetadata{
			Step:        outcome.Step,
			RecordCount: outcome.RecordCount,
			ChartType:   outcome.Chart.ChartType,
		},
		Error: outcome.Error,
	}
	if response.Pipeline == nil {
		response.Pipeline = pipeline.Pipeline{}
	}
	if response.Data == nil {
		response.Data = []map[string]any{}
	}
	return response
}
