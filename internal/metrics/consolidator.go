package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics: extraction, triple store, convergence, refinement, events.
var (
	TriplesExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triples_extracted_total",
			Help:      "Triples produced by the extractor",
		},
		[]string{"source"},
	)

	ExtractionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_cache_total",
			Help:      "Extractor cache hits and misses",
		},
		[]string{"result"},
	)

	ExtractionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Documents whose extraction failed",
		},
	)

	TriplesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "triples_stored",
			Help:      "Triples currently held by the triple store",
		},
	)

	TripleAddsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triple_adds_total",
			Help:      "Triple store add outcomes",
		},
		[]string{"result"}, // inserted / updated / rejected
	)

	ConvergenceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "convergence_runs_total",
			Help:      "Convergence analysis runs",
		},
		[]string{"status"},
	)

	ConvergenceRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "convergence_run_duration_seconds",
			Help:      "Convergence analysis duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	ConvergenceChainsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "convergence_chains_total",
			Help:      "Convergence chains detected",
		},
	)

	RefinementsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refinements_active",
			Help:      "Refinement processes currently active",
		},
	)

	RefinementOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_outcomes_total",
			Help:      "Finished refinement processes by terminal status",
		},
		[]string{"status"},
	)

	RefinementIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refinement_iterations",
			Help:      "Iterations per finished refinement process",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	RefinementGain = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refinement_confidence_gain",
			Help:      "Confidence gain per finished refinement process",
			Buckets:   []float64{-0.2, -0.05, 0, 0.05, 0.1, 0.2, 0.3, 0.5},
		},
	)

	RefinementQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refinement_queue_depth",
			Help:      "Refinement requests waiting in the queue",
		},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events published to subscribers",
		},
		[]string{"event"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Lifecycle events dropped because a subscriber was full",
		},
		[]string{"event"},
	)
)

var pipelineGroup = newGroup(
	TriplesExtractedTotal,
	ExtractionCacheTotal,
	ExtractionErrorsTotal,
	TriplesStored,
	TripleAddsTotal,
	ConvergenceRunsTotal,
	ConvergenceRunDuration,
	ConvergenceChainsTotal,
	RefinementsActive,
	RefinementOutcomesTotal,
	RefinementIterations,
	RefinementGain,
	RefinementQueueDepth,
	EventsPublishedTotal,
	EventsDroppedTotal,
)

// RegisterPipelineMetrics registers extraction, convergence, refinement and event
// metrics with the default registry. Repeated calls are no-ops.
func RegisterPipelineMetrics() { pipelineGroup.register() }
