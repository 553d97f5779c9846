package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	EmbeddingBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "embedding_batches_total",
			Help:      "Total similarity-scoring batches by status",
		},
		[]string{"status"},
	)

	EmbeddingFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "embedding_fallbacks_total",
			Help:      "Total fallback vectors produced in degraded mode",
		},
	)

	RowsUpsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "rows_upserted_total",
			Help:      "Total rows successfully upserted into the vector index",
		},
	)

	ChatAnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "chat_answers_total",
			Help:      "Total chat answers by mode",
		},
		[]string{"mode"}, // "model" / "fallback"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once
// from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingBatchesTotal)
	prometheus.MustRegister(EmbeddingFallbacksTotal)
	prometheus.MustRegister(RowsUpsertedTotal)
	prometheus.MustRegister(ChatAnswersTotal)
	pipelineMetricsRegistered = true
}
