package observability

import "github.com/prometheus/client_golang/prometheus"

// The query route sits behind two model round-trips plus an aggregation, so
// latency runs to tens of seconds while the browse routes stay in the
// milliseconds. The bucket layout covers both regimes.
var httpDurationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidash_http_requests_total",
			Help: "Total number of HTTP requests by route template.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidash_http_request_duration_seconds",
			Help:    "HTTP request latency by route template.",
			Buckets: httpDurationBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidash_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, httpRequestsInFlight)
}
