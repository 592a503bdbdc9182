// Package viz picks a chart archetype for a result set and renders it into a
// self-contained figure structure the frontend can plot directly.
package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/llm"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/pipeline"
)

// ChartTypes is the supported archetype enum. Anything else the model
// suggests is coerced to bar.
var ChartTypes = []string{"bar", "line", "pie", "scatter", "area", "table"}

const DefaultPreviewRows = 5

const promptTemplate = `You are a data visualization expert. Analyze the data and recommend the best chart type.

USER QUERY: %s

DATA PREVIEW (first %d rows):
%s

DATA SUMMARY:
- Total rows: %d
- Columns: %s

AVAILABLE CHART TYPES:
- bar: Compare categories or show rankings
- line: Show trends over time or continuous data
- pie: Show proportions of a whole (max 10 categories)
- scatter: Show correlation between two variables
- area: Show cumulative totals or trends
- table: Display raw data when no clear visualization pattern

INSTRUCTIONS:
1. Choose the MOST appropriate chart type
2. Identify which columns to use for X and Y axes (or labels/values for pie)
3. Provide a clear title for the chart
4. Return ONLY a JSON object in this exact format:

{
  "chart_type": "bar",
  "x_axis": "column_name",
  "y_axis": "column_name",
  "title": "Descriptive Chart Title",
  "reasoning": "Brief explanation"
}

For pie charts, use "labels" and "values" instead of x_axis and y_axis.

GENERATE THE JSON RESPONSE:`

// ChartConfig describes the selected archetype plus the data it applies to.
// Success=false marks a config that carries no renderable data.
type ChartConfig struct {
	Success   bool             `json:"success"`
	ChartType string           `json:"chart_type"`
	XAxis     string           `json:"x_axis,omitempty"`
	YAxis     string           `json:"y_axis,omitempty"`
	Labels    string           `json:"labels,omitempty"`
	Values    string           `json:"values,omitempty"`
	Title     string           `json:"title"`
	Reasoning string           `json:"reasoning,omitempty"`
	Data      []map[string]any `json:"data"`
	Columns   []string         `json:"columns,omitempty"`
	Error     string           `json:"error,omitempty"`
	FellBack  bool             `json:"-"`
}

type Selector struct {
	completer   llm.Completer
	previewRows int
	logger      *slog.Logger
}

func NewSelector(completer llm.Completer, previewRows int, logger *slog.Logger) *Selector {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Selector{completer: completer, previewRows: previewRows, logger: logger}
}

// Select asks the model for an archetype recommendation and grounds it in the
// actual rows. Empty input yields a table config without consulting the model.
func (s *Selector) Select(ctx context.Context, rows []map[string]any, columns []string, queryText string) ChartConfig {
	if len(rows) == 0 {
		return emptyChartConfig("No data available")
	}

	rows, columns = renameGroupKey(rows, columns)

	prompt := fmt.Sprintf(promptTemplate,
		queryText,
		s.previewRows,
		formatPreview(rows, columns, s.previewRows),
		len(rows),
		strings.Join(columns, ", "),
	)

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.WarnContext(ctx, "chart selection failed", slog.Any("error", err))
		return emptyChartConfig("Error: " + err.Error())
	}

	cfg := parseChartConfig(raw)
	if cfg.FellBack {
		s.logger.WarnContext(ctx, "chart config parse failed, using bar fallback",
			slog.String("raw", truncate(raw, 200)))
		observability.ObserveLLMFallback("viz")
	}
	cfg.Data = rows
	cfg.Columns = columns
	return cfg
}

// renameGroupKey replaces a bare _id column with category when the result has
// exactly two columns, the common shape of a single-key $group.
func renameGroupKey(rows []map[string]any, columns []string) ([]map[string]any, []string) {
	if len(columns) != 2 {
		return rows, columns
	}
	idx := -1
	for i, col := range columns {
		if col == "_id" {
			idx = i
		}
	}
	if idx == -1 {
		return rows, columns
	}

	renamedCols := make([]string, len(columns))
	copy(renamedCols, columns)
	renamedCols[idx] = "category"

	renamed := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out := make(map[string]any, len(row))
		for key, value := range row {
			if key == "_id" {
				key = "category"
			}
			out[key] = value
		}
		renamed = append(renamed, out)
	}
	return renamed, renamedCols
}

func formatPreview(rows []map[string]any, columns []string, previewRows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	for i, row := range rows {
		if i >= previewRows {
			break
		}
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, fmt.Sprintf("%v", row[col]))
		}
		b.WriteByte('\n')
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}

func parseChartConfig(raw string) ChartConfig {
	payload := pipeline.ExtractPayload(raw)

	var parsed struct {
		ChartType string `json:"chart_type"`
		XAxis     string `json:"x_axis"`
		YAxis     string `json:"y_axis"`
		Labels    string `json:"labels"`
		Values    string `json:"values"`
		Title     string `json:"title"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return ChartConfig{
			Success:   true,
			ChartType: "bar",
			Title:     "Data Visualization",
			Reasoning: "Using default bar chart",
			FellBack:  true,
		}
	}

	chartType := parsed.ChartType
	if !isKnownChartType(chartType) {
		chartType = "bar"
	}
	title := parsed.Title
	if title == "" {
		title = "Data Visualization"
	}
	return ChartConfig{
		Success:   true,
		ChartType: chartType,
		XAxis:     parsed.XAxis,
		YAxis:     parsed.YAxis,
		Labels:    parsed.Labels,
		Values:    parsed.Values,
		Title:     title,
		Reasoning: parsed.Reasoning,
	}
}

func isKnownChartType(name string) bool {
	for _, known := range ChartTypes {
		if name == known {
			return true
		}
	}
	return false
}

func emptyChartConfig(message string) ChartConfig {
	return ChartConfig{
		Success:   false,
		ChartType: "table",
		Title:     "No Visualization",
		Data:      []map[string]any{},
		Error:     message,
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
