package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rerank outcome label values.
const (
	outcomeOK      = "ok"
	outcomeFailure = "failure"
)

// Skip reasons used as the "kind" label of StrategiesSkipped.
const (
	SkipUnknownRetriever = "retriever"
	SkipUnknownReranker  = "reranker"
	SkipRerankFailure    = "rerank_failure"
	SkipRetrieverFailure = "retriever_failure"
)

// Metrics holds the Prometheus collectors for a benchmark run. Registering
// through promauto.With(reg) keeps each run and each test on its own registry.
type Metrics struct {
	// RunInfo is set to 1 for the current run, labelled by run_id.
	RunInfo *prometheus.GaugeVec

	// RetrievalQueries counts Retrieve calls per retriever.
	RetrievalQueries *prometheus.CounterVec

	// RerankRequests counts Rerank calls per reranker, partitioned by
	// outcome: "ok" or "failure".
	RerankRequests *prometheus.CounterVec

	// StrategiesSkipped counts strategies left out of the run, by kind:
	// "retriever", "reranker", "rerank_failure" or "retriever_failure".
	StrategiesSkipped *prometheus.CounterVec

	// StageDuration records the wall-clock time of each run stage:
	// "index", "query", "evaluate", "write".
	StageDuration *prometheus.HistogramVec

	// ReportsWritten counts strategy report pairs persisted.
	ReportsWritten prometheus.Counter
}

// NewMetrics registers the run metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ragbench",
			Name:      "run_info",
			Help:      "Identifies the benchmark run; always 1.",
		}, []string{"run_id"}),

		RetrievalQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragbench",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total number of queries retrieved, partitioned by retriever.",
		}, []string{"retriever"}),

		RerankRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragbench",
			Subsystem: "rerank",
			Name:      "requests_total",
			Help:      "Total number of rerank calls, partitioned by reranker and outcome.",
		}, []string{"reranker", "outcome"}),

		StrategiesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragbench",
			Subsystem: "strategies",
			Name:      "skipped_total",
			Help:      "Total number of strategies skipped or dropped, partitioned by kind.",
		}, []string{"kind"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragbench",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of each benchmark stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"stage"}),

		ReportsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragbench",
			Subsystem: "reports",
			Name:      "written_total",
			Help:      "Total number of strategy report pairs written.",
		}),
	}
}
