// Package convergence detects thematic convergence across a document set:
// similarity chains, emergent micro-themes, cross-chain bridges and insights.
package convergence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// Config wires the analyzer collaborators.
type Config struct {
	Embedder domain.Embedder
	// Writer is optional; without it PersistEnriched is ignored.
	Writer           PointWriter
	Defaults         Options
	CacheSize        int
	EmbedConcurrency int
	Logger           *zap.Logger
}

type cacheKey struct {
	id          string
	fingerprint string
}

// Analyzer runs convergence analyses. It is safe for concurrent use.
type Analyzer struct {
	embedder    domain.Embedder
	writer      PointWriter
	defaults    Options
	cache       *lru.Cache[cacheKey, []float32]
	concurrency int
	logger      *zap.Logger
}

// New creates an analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("convergence: embedder is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cache, err := lru.New[cacheKey, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Analyzer{
		embedder:    cfg.Embedder,
		writer:      cfg.Writer,
		defaults:    cfg.Defaults.merge(DefaultOptions()),
		cache:       cache,
		concurrency: cfg.EmbedConcurrency,
		logger:      cfg.Logger,
	}, nil
}

// Defaults returns the effective default options.
func (a *Analyzer) Defaults() Options { return a.defaults }

// Analyze runs a full convergence analysis over docs.
// A document whose embedding fails is dropped and keeps its base score.
// Backend unavailability and context errors abort the whole call.
func (a *Analyzer) Analyze(ctx context.Context, docs []domdoc.Document, opts Options) (*domconv.Result, error) {
	start := time.Now()
	opts = opts.merge(a.defaults)

	result, err := a.analyze(ctx, docs, opts)
	metrics.ConvergenceRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ConvergenceRunsTotal.WithLabelValues("error").Inc()
		a.logger.Error("Convergence analysis failed",
			zap.Int("documents", len(docs)),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.ConvergenceRunsTotal.WithLabelValues("ok").Inc()
	metrics.ConvergenceChainsTotal.Add(float64(len(result.Chains)))

	result.Stats.DurationMs = time.Since(start).Milliseconds()
	a.logger.Info("Convergence analysis completed",
		zap.Int("documents", result.Stats.TotalDocuments),
		zap.Int("dropped", result.Stats.DroppedDocuments),
		zap.Int("chains", result.Stats.Chains),
		zap.Int("themes", result.Stats.EmergentThemes),
		zap.Int("insights", result.Stats.Insights),
		zap.Int64("duration_ms", result.Stats.DurationMs),
	)
	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, docs []domdoc.Document, opts Options) (*domconv.Result, error) {
	if len(docs) > opts.MaxDocuments {
		return nil, fmt.Errorf("too many documents (%d > %d): %w", len(docs), opts.MaxDocuments, domain.ErrInvalidSchema)
	}
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		id := docs[i].ID
		if id == "" {
			return nil, fmt.Errorf("document %d has no id: %w", i, domain.ErrInvalidSchema)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate document id %q: %w", id, domain.ErrInvalidSchema)
		}
		seen[id] = struct{}{}
	}

	vectors, hits, misses, err := a.embedAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	// only embedded documents take part in the similarity matrix
	var analyzed []int
	for i, v := range vectors {
		if v != nil {
			analyzed = append(analyzed, i)
		}
	}
	set := newDocSet(docs, vectors, analyzed)

	chains := set.detectChains(opts)
	themes := set.emergentThemes(chains, opts)
	cross := set.crossChainThemes(chains, opts)
	insights := set.insights(chains, themes, cross, opts)
	enriched := enrich(docs, set, chains)

	result := &domconv.Result{
		Documents:        enriched,
		Chains:           make([]domconv.Chain, 0, len(chains)),
		Themes:           themes,
		CrossChainThemes: cross,
		Insights:         insights,
	}
	var strengthSum float64
	for _, c := range chains {
		result.Chains = append(result.Chains, c.Chain)
		strengthSum += c.Strength
	}
	var scoreSum float64
	for _, d := range enriched {
		scoreSum += d.ConvergenceScore
	}

	result.Stats = domconv.Stats{
		TotalDocuments:    len(docs),
		AnalyzedDocuments: len(analyzed),
		DroppedDocuments:  len(docs) - len(analyzed),
		Chains:            len(chains),
		EmergentThemes:    len(themes),
		CrossChainThemes:  len(cross),
		Insights:          len(insights),
		CacheHits:         hits,
		CacheMisses:       misses,
	}
	if len(enriched) > 0 {
		result.Stats.AverageConvergenceScore = round2(scoreSum / float64(len(enriched)))
	}
	if len(chains) > 0 {
		result.Stats.AverageChainStrength = round2(strengthSum / float64(len(chains)))
	}

	if opts.persistEnriched() && a.writer != nil {
		if err := a.persist(ctx, result, vectors, themes); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// embedAll embeds every document concurrently. Dropped documents get a nil vector.
func (a *Analyzer) embedAll(ctx context.Context, docs []domdoc.Document) ([][]float32, int, int, error) {
	vectors := make([][]float32, len(docs))
	var hits, misses atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range docs {
		g.Go(func() error {
			doc := &docs[i]
			key := cacheKey{id: doc.ID, fingerprint: doc.Fingerprint()}
			if vec, ok := a.cache.Get(key); ok {
				hits.Add(1)
				vectors[i] = vec
				return nil
			}
			misses.Add(1)

			res, err := a.embedder.Embed(gctx, doc.EmbeddingText())
			if err == nil && len(res.Embedding) == 0 {
				err = fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
			}
			if err != nil {
				if fatal(err) {
					return fmt.Errorf("embed document %s: %w", doc.ID, err)
				}
				a.logger.Warn("Document dropped from convergence analysis",
					zap.String("document_id", doc.ID),
					zap.Error(err),
				)
				return nil
			}
			a.cache.Add(key, res.Embedding)
			vectors[i] = res.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}
	return vectors, int(hits.Load()), int(misses.Load()), nil
}

func fatal(err error) bool {
	return errors.Is(err, domain.ErrBackendUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
