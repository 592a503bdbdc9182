// Package nlq turns natural-language questions into aggregation pipelines by
// prompting a text-generation service and parsing the structured payload out
// of its reply.
package nlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/llm"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/pipeline"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/schema"
)

const promptTemplate = `You are an expert MongoDB query generator. Convert natural language questions into MongoDB aggregation pipelines.

COLLECTION SCHEMA:
%s

SAMPLE DOCUMENT:
%s

USER QUESTION: %s

INSTRUCTIONS:
1. Analyze the question and determine what data is needed
2. Generate a MongoDB aggregation pipeline as a JSON array
3. Use only these stages: %s
4. Return ONLY the JSON array, no explanations
5. Ensure field names match the schema exactly
6. For aggregations, use operators like $sum, $avg, $max, $min
7. For date operations, use $dateToString or date operators

EXAMPLE QUERIES:
- "show total sales by category" -> [
    {"$group": {"_id": "$category", "total": {"$sum": "$amount"}}},
    {"$sort": {"total": -1}}
  ]
- "average price per region" -> [
    {"$group": {"_id": "$region", "avg_price": {"$avg": "$price"}}},
    {"$sort": {"avg_price": -1}}
  ]

GENERATE THE PIPELINE (JSON array only):`

// Result distinguishes a usable generation from a degraded default: when the
// model output could not be parsed, Pipeline is empty, FellBack is set and
// FallbackReason says why. Transport failures are returned as errors instead.
type Result struct {
	Pipeline       pipeline.Pipeline
	RawText        string
	FellBack       bool
	FallbackReason string
}

type Synthesizer struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewSynthesizer(completer llm.Completer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{completer: completer, logger: logger}
}

func (s *Synthesizer) Synthesize(ctx context.Context, queryText string, desc schema.Descriptor) (Result, error) {
	prompt := buildPrompt(queryText, desc)

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate pipeline: %w", err)
	}
	raw = strings.TrimSpace(raw)

	stages, parseErr := pipeline.Parse(raw)
	if parseErr != nil {
		s.logger.WarnContext(ctx, "pipeline parse failed, falling back to empty pipeline",
			slog.Any("error", parseErr),
			slog.String("raw", truncate(raw, 200)),
		)
		observability.ObserveLLMFallback("synthesizer")
		return Result{
			Pipeline:       pipeline.Pipeline{},
			RawText:        raw,
			FellBack:       true,
			FallbackReason: parseErr.Error(),
		}, nil
	}

	return Result{Pipeline: stages, RawText: raw}, nil
}

func buildPrompt(queryText string, desc schema.Descriptor) string {
	return fmt.Sprintf(promptTemplate,
		formatSchema(desc),
		formatSampleDocument(desc),
		strings.TrimSpace(queryText),
		strings.Join(pipeline.AllowedOperators(), ", "),
	)
}

func formatSchema(desc schema.Descriptor) string {
	if len(desc.Fields) == 0 {
		return "No schema information available"
	}
	lines := make([]string, 0, len(desc.Fields))
	for _, field := range desc.Fields {
		lines = append(lines, fmt.Sprintf("  - %s: %s", field.Name, strings.Join(field.Types, ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatSampleDocument(desc schema.Descriptor) string {
	if desc.SampleDocument == nil {
		return "{}"
	}
	encoded, err := json.MarshalIndent(desc.SampleDocument, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
