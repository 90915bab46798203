package consolidator

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory" or "redis"
	addrs    []string
	password string

	embedder Embedder

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	keyPrefix        string

	convergence ConvergenceOptions
	refinement  RefinementOptions
	queue       QueueOptions
	autoRefine  bool

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithRedis stores documents, triples and vectors in a Redis 8+ instance.
// Without it everything lives in memory.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the vector dimension of the Redis index.
// Defaults to 768 (nomic-embed-text).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction) of the Redis index.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithKeyPrefix namespaces every key written to Redis. Default: "kc:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithConvergenceDefaults sets the default analysis parameters.
func WithConvergenceDefaults(opts ConvergenceOptions) Option {
	return optionFunc(func(c *clientConfig) {
		c.convergence = opts
	})
}

// WithRefinementDefaults sets the default refinement parameters and queue pacing.
func WithRefinementDefaults(opts RefinementOptions, queue QueueOptions) Option {
	return optionFunc(func(c *clientConfig) {
		c.refinement = opts
		c.queue = queue
	})
}

// WithAutoRefinement toggles refinement of freshly put low-confidence documents
// and of documents whose categories change. Enabled by default.
func WithAutoRefinement(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.autoRefine = enabled
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
