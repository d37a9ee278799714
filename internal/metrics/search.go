package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and assistant Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxcommerce",
			Name:      "search_requests_total",
			Help:      "Total number of product searches",
		},
		[]string{"outcome"}, // "ok" / "degraded" / "corpus_error"
	)

	SearchResultCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fluxcommerce",
			Name:      "search_result_count",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	AssistantIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxcommerce",
			Name:      "assistant_intents_total",
			Help:      "Assistant intents dispatched, by action",
		},
		[]string{"action"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchResultCount)
	prometheus.MustRegister(AssistantIntentsTotal)
	searchMetricsRegistered = true
}
