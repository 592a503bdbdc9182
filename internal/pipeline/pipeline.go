// Package pipeline defines the aggregation query intermediate representation
// produced by the synthesizer and consumed by the executor: an ordered list of
// single-operator stages.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage is a single aggregation step, a mapping from an operator tag to its
// argument structure.
type Stage = map[string]any

type Pipeline = []Stage

// allowedOperators is the operator vocabulary the synthesizer advertises to
// the model and the validator checks against.
var allowedOperators = map[string]bool{
	"$match":     true,
	"$group":     true,
	"$project":   true,
	"$sort":      true,
	"$limit":     true,
	"$skip":      true,
	"$unwind":    true,
	"$lookup":    true,
	"$addFields": true,
	"$count":     true,
	"$sample":    true,
}

// AllowedOperators returns the operator vocabulary in no particular order.
func AllowedOperators() []string {
	ops := make([]string, 0, len(allowedOperators))
	for op := range allowedOperators {
		ops = append(ops, op)
	}
	return ops
}

// Parse extracts a pipeline from raw model output. The payload may be wrapped
// in a fenced code block, with or without a language tag; prose around the
// fence is ignored. A single object is wrapped into a one-stage pipeline.
// A hard parse failure returns an empty pipeline and the error so the caller
// can fail soft.
func Parse(text string) (Pipeline, error) {
	payload := ExtractPayload(text)
	if payload == "" {
		return Pipeline{}, fmt.Errorf("empty payload")
	}

	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return Pipeline{}, fmt.Errorf("parse pipeline payload: %w", err)
	}

	elements, ok := value.([]any)
	if !ok {
		elements = []any{value}
	}
	stages := make(Pipeline, 0, len(elements))
	for _, element := range elements {
		// Non-mapping elements become nil stages; the validator flags them.
		stage, _ := element.(map[string]any)
		stages = append(stages, stage)
	}
	return stages, nil
}

// ExtractPayload strips surrounding prose and fence delimiters. When fences
// are nested, the innermost block wins.
func ExtractPayload(text string) string {
	text = strings.TrimSpace(text)
	for {
		inner, found := innerFencedBlock(text)
		if !found {
			return text
		}
		text = strings.TrimSpace(inner)
	}
}

func innerFencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open == -1 {
		return "", false
	}
	rest := text[open+3:]

	// Drop a language tag on the opening fence line.
	if newline := strings.IndexByte(rest, '\n'); newline != -1 {
		tag := strings.TrimSpace(rest[:newline])
		if tag != "" && !strings.ContainsAny(tag, "[{") {
			rest = rest[newline+1:]
		}
	}

	closing := strings.LastIndex(rest, "```")
	if closing == -1 {
		return rest, true
	}
	return rest[:closing], true
}

// Report is the result of a syntactic validation pass. Validity requires zero
// warnings; warnings alone do not stop execution.
type Report struct {
	Valid      bool     `json:"valid"`
	Warnings   []string `json:"warnings"`
	StageCount int      `json:"stage_count"`
}

// Validate flags empty pipelines, and stages whose top-level keys fall
// outside the allowed operator set.
func Validate(p Pipeline) Report {
	var warnings []string

	if len(p) == 0 {
		warnings = append(warnings, "empty pipeline generated")
	}
	for i, stage := range p {
		if stage == nil {
			warnings = append(warnings, fmt.Sprintf("stage %d is not a mapping", i))
			continue
		}
		for op := range stage {
			if !allowedOperators[op] {
				warnings = append(warnings, fmt.Sprintf("stage %d contains unknown operator %q", i, op))
			}
		}
	}

	return Report{
		Valid:      len(warnings) == 0,
		Warnings:   warnings,
		StageCount: len(p),
	}
}
