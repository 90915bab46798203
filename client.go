package consolidator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/consolidator/internal/db"
	dbMemory "github.com/kailas-cloud/consolidator/internal/db/memory"
	dbRedis "github.com/kailas-cloud/consolidator/internal/db/redis"
	"github.com/kailas-cloud/consolidator/internal/domain"
	documentrepo "github.com/kailas-cloud/consolidator/internal/repository/document"
	"github.com/kailas-cloud/consolidator/internal/repository/points"
	triplerepo "github.com/kailas-cloud/consolidator/internal/repository/triples"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
	documentuc "github.com/kailas-cloud/consolidator/internal/usecase/document"
	"github.com/kailas-cloud/consolidator/internal/usecase/extraction"
	"github.com/kailas-cloud/consolidator/internal/usecase/pipeline"
	"github.com/kailas-cloud/consolidator/internal/usecase/refinement"
	"github.com/kailas-cloud/consolidator/internal/usecase/triples"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultVectorDimensions = 768
)

// vectorStore is what the client needs from a vector backend.
type vectorStore interface {
	domain.VectorStore
	domain.PointDeleter
}

// Client is the consolidator entry point. It is safe for concurrent use.
type Client struct {
	store        db.Store
	docs         *documentuc.Service
	extractor    *extraction.Extractor
	triples      *triples.Store
	orchestrator *refinement.Orchestrator
	broker       *pipeline.Broker
	coordinator  *pipeline.Coordinator
	obs          *observer

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// New creates a Client and starts its background pipeline. Call Close when done.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:           "memory",
		vectorDimensions: defaultVectorDimensions,
		keyPrefix:        domain.KeyPrefix,
		autoRefine:       true,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("consolidator: embedder required (use WithEmbedder)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("consolidator: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		s, err := dbMemory.NewStore(0)
		if err != nil {
			return nil, fmt.Errorf("consolidator: create memory store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("consolidator: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("consolidator: unknown driver %q", cfg.driver)
	}
}

func createVectorStore(ctx context.Context, store db.Store, cfg *clientConfig) (vectorStore, error) {
	if cfg.driver != "redis" {
		return points.NewMemoryStore(cfg.vectorDimensions), nil
	}
	rs := points.NewRedisStore(store, cfg.keyPrefix, cfg.vectorDimensions, points.HNSWConfig{
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	})
	if err := rs.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("consolidator: ensure vector index: %w", err)
	}
	return rs, nil
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := obs.logger
	emb := &embedderAdapter{inner: cfg.embedder}

	vectors, err := createVectorStore(ctx, store, cfg)
	if err != nil {
		return nil, err
	}

	tripleStore := triples.New(triplerepo.New(store, cfg.keyPrefix), logger)
	if _, err := tripleStore.Load(ctx); err != nil {
		logger.Debug("no triple snapshot restored", zap.Error(err))
	}

	extractor, err := extraction.New(extraction.Options{}, logger)
	if err != nil {
		return nil, fmt.Errorf("consolidator: %w", err)
	}
	analyzer, err := convergence.New(convergence.Config{
		Embedder: emb,
		Writer:   vectors,
		Defaults: cfg.convergence,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("consolidator: %w", err)
	}

	broker := pipeline.NewBroker()
	docs := documentuc.New(documentrepo.New(store, cfg.keyPrefix), vectors, emb, nil, logger)

	orchestrator, err := refinement.New(refinement.Config{
		Documents: docs,
		Embedder:  emb,
		Searcher:  vectors,
		Triples:   tripleStore,
		Notifier:  broker,
		Defaults:  cfg.refinement,
		Queue:     cfg.queue,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("consolidator: %w", err)
	}

	coordCfg := pipeline.Config{
		Extractor: extractor,
		Triples:   tripleStore,
		Analyzer:  analyzer,
		Broker:    broker,
		Logger:    logger,
	}
	if cfg.autoRefine {
		coordCfg.Refiner = orchestrator
	}
	coordinator, err := pipeline.New(coordCfg)
	if err != nil {
		orchestrator.Close()
		return nil, fmt.Errorf("consolidator: %w", err)
	}
	docs.WithNotifier(coordinator)

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return coordinator.Run(gctx) })
	g.Go(func() error { return orchestrator.Run(gctx) })

	return &Client{
		store:        store,
		docs:         docs,
		extractor:    extractor,
		triples:      tripleStore,
		orchestrator: orchestrator,
		broker:       broker,
		coordinator:  coordinator,
		obs:          obs,
		cancel:       cancel,
		group:        g,
	}, nil
}

// Close stops refinements and the background pipeline, snapshots the triple
// store and releases the database.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.orchestrator.Close()
		c.cancel()
		_ = c.group.Wait()
		c.broker.Close()

		ctx, cancel := context.WithTimeout(context.Background(), defaultReadinessTimeout)
		defer cancel()
		if err := c.triples.Save(ctx); err != nil {
			c.obs.logger.Warn("triple snapshot failed", zap.Error(err))
		}
		c.store.Close()
	})
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// PutDocument stores and indexes a document. A missing ID is generated.
// Returns true if the document was created. Extraction follows in the background.
func (c *Client) PutDocument(ctx context.Context, doc *Document) (created bool, err error) {
	defer func(start time.Time) { c.obs.observe("put_document", start, err) }(time.Now())
	return c.docs.Put(ctx, doc)
}

// GetDocument returns a stored document.
func (c *Client) GetDocument(ctx context.Context, id string) (doc Document, err error) {
	defer func(start time.Time) { c.obs.observe("get_document", start, err) }(time.Now())
	return c.docs.Get(ctx, id)
}

// DeleteDocument removes a document and its vector point.
func (c *Client) DeleteDocument(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { c.obs.observe("delete_document", start, err) }(time.Now())
	return c.docs.Delete(ctx, id)
}

// SetCategories replaces the categories of a document.
func (c *Client) SetCategories(ctx context.Context, id string, categories []string) (doc Document, err error) {
	defer func(start time.Time) { c.obs.observe("set_categories", start, err) }(time.Now())
	return c.docs.SetCategories(ctx, id, categories)
}

// ExtractFromDocument extracts triples from one document and adds them to the store.
func (c *Client) ExtractFromDocument(ctx context.Context, doc *Document) (ts []Triple, err error) {
	defer func(start time.Time) { c.obs.observe("extract", start, err) }(time.Now())
	ts, err = c.extractor.ExtractFromDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	c.triples.AddTriples(ts)
	return ts, nil
}

// ExtractFromDocuments extracts a batch, including cross-document triples,
// and adds the result to the store. A failing document never fails the batch.
func (c *Client) ExtractFromDocuments(ctx context.Context, docs []Document) ExtractionOutput {
	start := time.Now()
	out := c.extractor.ExtractFromDocuments(ctx, docs)
	c.obs.observe("extract_batch", start, nil)
	return ExtractionOutput{
		Triples: out.Triples,
		Results: out.Results,
		Stored:  c.triples.AddTriples(out.Triples),
	}
}

// QueryTriples returns the stored triples matching f.
func (c *Client) QueryTriples(f TripleFilter) []Triple { return c.triples.Query(f) }

// Relationships returns every triple mentioning the document.
func (c *Client) Relationships(docID string) []Triple { return c.triples.Relationships(docID) }

// TripleStats summarizes the triple store.
func (c *Client) TripleStats() TripleStats { return c.triples.Stats() }

// AnalyzeConvergence analyzes docs, or every stored document when docs is nil.
// Insights are published as an insights.generated event.
func (c *Client) AnalyzeConvergence(ctx context.Context, docs []Document, opts ConvergenceOptions) (res *ConvergenceResult, err error) {
	defer func(start time.Time) { c.obs.observe("analyze_convergence", start, err) }(time.Now())
	if docs == nil {
		if docs, err = c.docs.All(ctx); err != nil {
			return nil, err
		}
	}
	return c.coordinator.Analyze(ctx, docs, opts)
}

// StartRefinement starts refining a document. When a process is already
// active it is returned with started=false.
func (c *Client) StartRefinement(docID string, opts RefinementOptions) (Process, bool, error) {
	return c.orchestrator.Start(docID, opts)
}

// RequestRefinement queues a document for batched refinement.
// Returns false when it is already queued or active.
func (c *Client) RequestRefinement(docID string, opts RefinementOptions) (bool, error) {
	return c.orchestrator.Request(docID, opts)
}

// StopRefinement stops an active process.
func (c *Client) StopRefinement(docID string) (Process, error) {
	return c.orchestrator.Stop(docID)
}

// Refinement returns the current or last known process of a document.
func (c *Client) Refinement(docID string) (Process, bool) { return c.orchestrator.Get(docID) }

// ActiveRefinements returns the running processes.
func (c *Client) ActiveRefinements() []Process { return c.orchestrator.ActiveRefinements() }

// Status returns active, recent and queued refinements with global metrics.
func (c *Client) Status() StatusReport { return c.orchestrator.Status() }

// Subscribe streams lifecycle events. Events are dropped when the buffer is full.
// Call the returned function to unsubscribe.
func (c *Client) Subscribe(buffer int) (<-chan Event, func()) {
	return c.coordinator.Subscribe(buffer)
}
