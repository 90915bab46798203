// Package ollama implements domain.Embedder on top of a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

const (
	backendName = "ollama"

	// DefaultBaseURL is the address of a stock local Ollama install.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultMaxConcurrency bounds parallel embed calls when Config leaves it unset.
	DefaultMaxConcurrency = 4
)

// Config holds the Ollama embedding settings.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Dimensions     int
	MaxConcurrency int64
	Timeout        time.Duration
	Logger         *zap.Logger
}

// Embedder is an embedding provider backed by the Ollama /api/embed endpoint.
type Embedder struct {
	client     *api.Client
	model      string
	dimensions int
	timeout    time.Duration
	reqLock    *semaphore.Weighted
	logger     *zap.Logger
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r) //nolint:wrapcheck // transparent transport
}

// NewEmbedder creates an Ollama embedder.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}

	httpClient := &http.Client{Transport: http.DefaultTransport}
	if cfg.APIKey != "" {
		httpClient.Transport = &headerTransport{
			headers: map[string]string{"Authorization": "Bearer " + cfg.APIKey},
			rt:      http.DefaultTransport,
		}
	}

	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Embedder{
		client:     api.NewClient(u, httpClient),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		reqLock:    semaphore.NewWeighted(limit),
		logger:     log,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.reqLock.Acquire(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, classifyError(err)
	}
	defer e.reqLock.Release(1)

	start := time.Now()
	res, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "error").Inc()
		mapped := classifyError(err)
		metrics.EmbeddingErrorsTotal.WithLabelValues(backendName, e.model, errorType(mapped)).Inc()
		return domain.EmbeddingResult{}, mapped
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(backendName, e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	vec := res.Embeddings[0]
	if e.dimensions > 0 && len(vec) != e.dimensions {
		metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(backendName, e.model, "dimension_mismatch").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("model %s returned %d dims, expected %d: %w",
			e.model, len(vec), e.dimensions, domain.ErrVectorDimMismatch)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(backendName, e.model).Observe(duration.Seconds())
	if res.PromptEvalCount > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(backendName, e.model, "prompt").Add(float64(res.PromptEvalCount))
		metrics.EmbeddingTokensTotal.WithLabelValues(backendName, e.model, "total").Add(float64(res.PromptEvalCount))
	}

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: res.PromptEvalCount,
		TotalTokens:  res.PromptEvalCount,
	}, nil
}

// HealthCheck pings the Ollama server.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("heartbeat: %w", classifyError(err))
	}
	return nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBackendError(backendName, domain.BackendTimeout, 0, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("ollama request: %w", err)
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= http.StatusInternalServerError {
			return domain.NewBackendError(backendName, domain.BackendServer, statusErr.StatusCode, err)
		}
		return fmt.Errorf("ollama error %d: %s: %w",
			statusErr.StatusCode, statusErr.ErrorMessage, domain.ErrEmbeddingProviderError)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.NewBackendError(backendName, domain.BackendTimeout, 0, err)
		}
		return domain.NewBackendError(backendName, domain.BackendConnection, 0, err)
	}

	return fmt.Errorf("ollama request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrBackendTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "unavailable"
	default:
		return "api_error"
	}
}
