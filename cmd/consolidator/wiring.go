package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/config"
	"github.com/kailas-cloud/consolidator/internal/db"
	dbMemory "github.com/kailas-cloud/consolidator/internal/db/memory"
	dbRedis "github.com/kailas-cloud/consolidator/internal/db/redis"
	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/metrics"
	"github.com/kailas-cloud/consolidator/internal/repository/embcache"
	"github.com/kailas-cloud/consolidator/internal/repository/points"
	ollamaEmb "github.com/kailas-cloud/consolidator/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/consolidator/internal/transport/openai"
	"github.com/kailas-cloud/consolidator/internal/transport/qdrant"
	embeddinguc "github.com/kailas-cloud/consolidator/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/consolidator/internal/usecase/health"
)

// vectorStore is what the services need from a vector backend.
type vectorStore interface {
	domain.VectorStore
	domain.PointDeleter
}

func buildStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "memory":
		return dbMemory.NewStore(cfg.KVCapacity)
	case "redis":
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// providerEmbedder pairs the decorated embedder with the provider it wraps, which answers health checks.
type providerEmbedder struct {
	domain.Embedder
	provider domain.HealthChecker
}

func (e *providerEmbedder) HealthCheck(ctx context.Context) error {
	if err := e.provider.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) (*providerEmbedder, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	var base interface {
		domain.Embedder
		domain.HealthChecker
	}
	switch cfg.Provider {
	case "ollama":
		e, err := ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			Dimensions:     cfg.Dimensions,
			MaxConcurrency: int64(cfg.MaxConcurrency),
			Timeout:        timeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		base = e
	case "openai":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	var chain domain.Embedder = embcache.New(
		base, store, cfg.Model,
		time.Duration(cfg.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)
	chain = embeddinguc.NewInstrumentedEmbedder(chain, cfg.Provider, cfg.Model, timeout, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if cfg.DocumentInstruction != "" {
		chain = domain.NewInstructionEmbedder(chain, cfg.DocumentInstruction)
	}
	return &providerEmbedder{Embedder: chain, provider: base}, nil
}

func buildVectorStore(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) (vectorStore, error) {
	dim := cfg.Embedding.Dimensions
	switch cfg.VectorStore.Driver {
	case "memory":
		return points.NewMemoryStore(dim), nil
	case "redis":
		rs := points.NewRedisStore(store, cfg.Storage.KeyPrefix, dim, points.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err := rs.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure redis vector index: %w", err)
		}
		return rs, nil
	case "qdrant":
		qc, err := qdrant.NewClient(qdrant.Config{
			URL:        cfg.VectorStore.URL,
			APIKey:     cfg.VectorStore.APIKey,
			Collection: cfg.VectorStore.Collection,
			Timeout:    time.Duration(cfg.VectorStore.TimeoutSec) * time.Second,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant client: %w", err)
		}
		if err := qc.EnsureCollection(ctx, dim); err != nil {
			return nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		return qc, nil
	default:
		return nil, fmt.Errorf("unknown vector store driver %q", cfg.VectorStore.Driver)
	}
}

// vectorHealthChecker returns nil for in-process stores.
// A typed nil wrapped in healthuc.Checker would not compare equal to nil.
func vectorHealthChecker(vs vectorStore) healthuc.Checker {
	if hc, ok := vs.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
