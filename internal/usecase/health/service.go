// Package health aggregates availability checks of the backends.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names.
const (
	ComponentDatabase    = "database"
	ComponentEmbedding   = "embedding"
	ComponentVectorStore = "vector_store"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db          DBPinger
	embedding   Checker
	vectorStore Checker
	timeout     time.Duration
	logger      *zap.Logger
}

// New creates a Service. embedding and vectorStore can be nil.
func New(db DBPinger, embedding, vectorStore Checker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:          db,
		embedding:   embedding,
		vectorStore: vectorStore,
		timeout:     DefaultCheckTimeout,
		logger:      logger,
	}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]func(context.Context) error{
		ComponentDatabase: s.db.Ping,
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = s.embedding.HealthCheck
	}
	if s.vectorStore != nil {
		checks[ComponentVectorStore] = s.vectorStore.HealthCheck
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, check := range checks {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := check(cctx); err != nil {
				res = CheckError
				s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	status := Healthy
	for _, v := range results {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: results}
}
