// Package orchestrator drives a question through the four-stage analysis
// flow: sample the collection schema, synthesize an aggregation pipeline,
// execute it, and pick a visualization for the result.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/nlq"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/pipeline"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/schema"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/store"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/viz"
)

// Step names the stages of the flow. A run's terminal step is the last stage
// that completed; a failure in stage N leaves the step at stage N-1.
const (
	StepInitialized          = "initialized"
	StepSchemaFetched        = "schema_fetched"
	StepQueryGenerated       = "query_generated"
	StepQueryExecuted        = "query_executed"
	StepVisualizationCreated = "visualization_created"
)

type SchemaSampler interface {
	Sample(ctx context.Context, collection string) schema.Descriptor
}

type QuerySynthesizer interface {
	Synthesize(ctx context.Context, queryText string, desc schema.Descriptor) (nlq.Result, error)
}

type Executor interface {
	Aggregate(ctx context.Context, collection string, pipeline []map[string]any) ([]bson.D, error)
}

type ChartSelector interface {
	Select(ctx context.Context, rows []map[string]any, columns []string, queryText string) viz.ChartConfig
}

// Outcome is the complete result of one run. Success=false outcomes still
// carry everything produced before the failing stage.
type Outcome struct {
	Success     bool
	Query       string
	Pipeline    pipeline.Pipeline
	Data        []map[string]any
	Chart       viz.ChartConfig
	Figure      viz.Figure
	Step        string
	RecordCount int
	Error       string
}

type Orchestrator struct {
	sampler           SchemaSampler
	synthesizer       QuerySynthesizer
	executor          Executor
	selector          ChartSelector
	defaultCollection string
	logger            *slog.Logger
}

func New(sampler SchemaSampler, synthesizer QuerySynthesizer, executor Executor, selector ChartSelector, defaultCollection string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		sampler:           sampler,
		synthesizer:       synthesizer,
		executor:          executor,
		selector:          selector,
		defaultCollection: defaultCollection,
		logger:            logger,
	}
}

// Run processes a natural-language question against the given collection
// (the configured default when empty). Stage failures never return an error;
// they produce an Outcome with Success=false and the failure message.
func (o *Orchestrator) Run(ctx context.Context, queryText, collection string) Outcome {
	if collection == "" {
		collection = o.defaultCollection
	}

	outcome := Outcome{
		Query:    queryText,
		Pipeline: pipeline.Pipeline{},
		Data:     []map[string]any{},
		Step:     StepInitialized,
	}

	desc := o.fetchSchema(ctx, collection, &outcome)
	result := o.generateQuery(ctx, desc, &outcome)
	columns := o.executeQuery(ctx, collection, result, &outcome)
	o.createVisualization(ctx, columns, &outcome)

	outcome.Success = outcome.Error == ""
	if outcome.Success {
		observability.ObserveQuery("success")
	} else {
		observability.ObserveQuery("failure")
		o.logger.WarnContext(ctx, "query run failed",
			slog.String("step", outcome.Step),
			slog.String("error", outcome.Error),
		)
	}
	return outcome
}

func (o *Orchestrator) fetchSchema(ctx context.Context, collection string, outcome *Outcome) schema.Descriptor {
	start := time.Now()
	defer func() { observability.ObserveStage("fetch_schema", time.Since(start)) }()

	desc := o.sampler.Sample(ctx, collection)
	if desc.Error != "" {
		outcome.Error = fmt.Sprintf("Schema fetch failed: %s", desc.Error)
		return desc
	}
	outcome.Step = StepSchemaFetched
	o.logger.DebugContext(ctx, "schema fetched",
		slog.String("collection", collection),
		slog.Int("fields", len(desc.Fields)),
	)
	return desc
}

func (o *Orchestrator) generateQuery(ctx context.Context, desc schema.Descriptor, outcome *Outcome) nlq.Result {
	if outcome.Error != "" {
		return nlq.Result{}
	}
	start := time.Now()
	defer func() { observability.ObserveStage("generate_query", time.Since(start)) }()

	result, err := o.synthesizer.Synthesize(ctx, outcome.Query, desc)
	if err != nil {
		outcome.Error = fmt.Sprintf("Query generation failed: %s", err)
		return nlq.Result{}
	}
	// A fallback result carries an empty pipeline; execution of an empty
	// pipeline returns the raw collection, which is still presentable.
	outcome.Pipeline = result.Pipeline
	outcome.Step = StepQueryGenerated
	return result
}

func (o *Orchestrator) executeQuery(ctx context.Context, collection string, result nlq.Result, outcome *Outcome) []string {
	if outcome.Error != "" {
		return nil
	}
	start := time.Now()
	defer func() { observability.ObserveStage("execute_query", time.Since(start)) }()

	docs, err := o.executor.Aggregate(ctx, collection, result.Pipeline)
	if err != nil {
		outcome.Error = fmt.Sprintf("Query execution failed: %s", err)
		return nil
	}
	outcome.Data = store.NormalizeAll(docs)
	outcome.RecordCount = len(outcome.Data)
	outcome.Step = StepQueryExecuted
	return store.FieldOrder(docs)
}

func (o *Orchestrator) createVisualization(ctx context.Context, columns []string, outcome *Outcome) {
	if outcome.Error != "" {
		return
	}
	start := time.Now()
	defer func() { observability.ObserveStage("create_visualization", time.Since(start)) }()

	cfg := o.selector.Select(ctx, outcome.Data, columns, outcome.Query)
	outcome.Chart = cfg
	if !cfg.Success {
		if cfg.Error != "" {
			outcome.Error = cfg.Error
		} else {
			outcome.Error = "Visualization failed"
		}
		return
	}
	outcome.Figure = viz.Render(cfg)
	outcome.Step = StepVisualizationCreated
}
