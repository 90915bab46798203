package refinement

import "time"

// Defaults.
const (
	DefaultMaxIterations          = 5
	DefaultConvergenceThreshold   = 0.90
	DefaultMinConfidenceGain      = 0.05
	DefaultIterationDelay         = 500 * time.Millisecond
	DefaultGraceWindow            = 10 * time.Second
	DefaultGraceIterations        = 3
	DefaultNeighborLimit          = 10
	DefaultNeighborScoreThreshold = 0.7
	DefaultRetriggerDelay         = 2 * time.Second
	DefaultBatchSize              = 3
	DefaultBatchPause             = time.Second
	DefaultHistoryLimit           = 50
	DefaultRecentLimit            = 50
)

// Trigger thresholds for automatic refinement.
const (
	TriggerConfidence   = 0.7
	PotentialPreviewLen = 100
	PotentialRelevance  = 0.3
	PotentialMinSize    = 500
	PotentialMaxSize    = 5 << 20
)

// Options tunes refinement. Zero fields take the defaults; MinConfidenceGain is a
// pointer so an explicit 0 can be told apart from unset.
type Options struct {
	MaxIterations          int           `json:"maxIterations,omitempty" yaml:"max_iterations"`
	ConvergenceThreshold   float64       `json:"convergenceThreshold,omitempty" yaml:"convergence_threshold"`
	MinConfidenceGain      *float64      `json:"minConfidenceGain,omitempty" yaml:"min_confidence_gain"`
	IterationDelay         time.Duration `json:"iterationDelay,omitempty" yaml:"iteration_delay"`
	GraceWindow            time.Duration `json:"graceWindow,omitempty" yaml:"grace_window"`
	GraceIterations        int           `json:"graceIterations,omitempty" yaml:"grace_iterations"`
	NeighborLimit          int           `json:"neighborLimit,omitempty" yaml:"neighbor_limit"`
	NeighborScoreThreshold float64       `json:"neighborScoreThreshold,omitempty" yaml:"neighbor_score_threshold"`
}

// DefaultOptions returns the built-in parameters.
func DefaultOptions() Options {
	gain := DefaultMinConfidenceGain
	return Options{
		MaxIterations:          DefaultMaxIterations,
		ConvergenceThreshold:   DefaultConvergenceThreshold,
		MinConfidenceGain:      &gain,
		IterationDelay:         DefaultIterationDelay,
		GraceWindow:            DefaultGraceWindow,
		GraceIterations:        DefaultGraceIterations,
		NeighborLimit:          DefaultNeighborLimit,
		NeighborScoreThreshold: DefaultNeighborScoreThreshold,
	}
}

func (o Options) merge(base Options) Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = base.MaxIterations
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = base.ConvergenceThreshold
	}
	if o.MinConfidenceGain == nil || *o.MinConfidenceGain < 0 {
		o.MinConfidenceGain = base.MinConfidenceGain
	}
	if o.IterationDelay <= 0 {
		o.IterationDelay = base.IterationDelay
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = base.GraceWindow
	}
	if o.GraceIterations <= 0 {
		o.GraceIterations = base.GraceIterations
	}
	if o.NeighborLimit <= 0 {
		o.NeighborLimit = base.NeighborLimit
	}
	if o.NeighborScoreThreshold <= 0 {
		o.NeighborScoreThreshold = base.NeighborScoreThreshold
	}
	return o
}

// minConfidenceGain returns the effective gain floor.
func (o Options) minConfidenceGain() float64 {
	if o.MinConfidenceGain == nil {
		return DefaultMinConfidenceGain
	}
	return *o.MinConfidenceGain
}

// QueueOptions tunes the request queue and category re-triggers.
type QueueOptions struct {
	BatchSize      int           `yaml:"batch_size"`
	BatchPause     time.Duration `yaml:"batch_pause"`
	RetriggerDelay time.Duration `yaml:"retrigger_delay"`
}

func (q QueueOptions) withDefaults() QueueOptions {
	if q.BatchSize <= 0 {
		q.BatchSize = DefaultBatchSize
	}
	if q.BatchPause <= 0 {
		q.BatchPause = DefaultBatchPause
	}
	if q.RetriggerDelay <= 0 {
		q.RetriggerDelay = DefaultRetriggerDelay
	}
	return q
}
