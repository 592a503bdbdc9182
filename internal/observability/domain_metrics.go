package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidash_queries_total",
			Help: "Total number of natural-language queries by outcome.",
		},
		[]string{"outcome"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidash_stage_duration_seconds",
			Help:    "Duration of each query pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	llmFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidash_llm_fallbacks_total",
			Help: "Total number of soft fallbacks taken on unusable model output.",
		},
		[]string{"component"},
	)
	ingestRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidash_ingest_requests_total",
			Help: "Total number of ingest requests.",
		},
	)
	ingestRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidash_ingest_records_total",
			Help: "Total number of records inserted through the ingest API.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		stageDurationSeconds,
		llmFallbacksTotal,
		ingestRequestsTotal,
		ingestRecordsTotal,
	)
}

func ObserveQuery(outcome string) {
	queriesTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveLLMFallback(component string) {
	llmFallbacksTotal.WithLabelValues(component).Inc()
}

func ObserveIngest(records int) {
	ingestRequestsTotal.Inc()
	if records > 0 {
		ingestRecordsTotal.Add(float64(records))
	}
}
