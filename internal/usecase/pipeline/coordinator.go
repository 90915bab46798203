// Package pipeline routes document lifecycle changes between the extractor,
// the triple store, the refinement orchestrator and event subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
)

// DefaultChannelBuffer sizes the input channels.
const DefaultChannelBuffer = 128

// ErrStopped is returned by the inputs once Run has exited.
var ErrStopped = errors.New("pipeline coordinator stopped")

// Config wires the coordinator collaborators. Refiner and Analyzer are optional.
type Config struct {
	Extractor     Extractor
	Triples       TripleSink
	Refiner       Refiner
	Analyzer      Analyzer
	Broker        *Broker
	ChannelBuffer int
	Logger        *zap.Logger
}

// Coordinator owns the typed input channels and the routing loop.
type Coordinator struct {
	extractor Extractor
	triples   TripleSink
	refiner   Refiner
	analyzer  Analyzer
	broker    *Broker
	logger    *zap.Logger

	documentAnalyzed  chan domdoc.Document
	categoriesChanged chan string
	extractRequests   chan domdoc.Document
	done              chan struct{}
}

// New creates a coordinator. Run must be started for inputs to be processed.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Extractor == nil || cfg.Triples == nil {
		return nil, errors.New("pipeline: extractor and triple sink are required")
	}
	if cfg.Broker == nil {
		cfg.Broker = NewBroker()
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = DefaultChannelBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		extractor:         cfg.Extractor,
		triples:           cfg.Triples,
		refiner:           cfg.Refiner,
		analyzer:          cfg.Analyzer,
		broker:            cfg.Broker,
		logger:            cfg.Logger,
		documentAnalyzed:  make(chan domdoc.Document, cfg.ChannelBuffer),
		categoriesChanged: make(chan string, cfg.ChannelBuffer),
		extractRequests:   make(chan domdoc.Document, cfg.ChannelBuffer),
		done:              make(chan struct{}),
	}, nil
}

// DocumentAnalyzed reports a stored or re-analyzed document.
// It is extracted and offered to refinement.
func (c *Coordinator) DocumentAnalyzed(ctx context.Context, doc domdoc.Document) error {
	return send(ctx, c.done, c.documentAnalyzed, doc)
}

// CategoriesChanged reports curated category edits of a document.
func (c *Coordinator) CategoriesChanged(ctx context.Context, docID string) error {
	return send(ctx, c.done, c.categoriesChanged, docID)
}

// RequestExtraction queues a document for extraction only.
func (c *Coordinator) RequestExtraction(ctx context.Context, doc domdoc.Document) error {
	return send(ctx, c.done, c.extractRequests, doc)
}

func send[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) error {
	select {
	case <-done:
		return ErrStopped
	default:
	}
	select {
	case ch <- v:
		return nil
	case <-done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run routes inputs until ctx is canceled. It must be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info("Pipeline coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Pipeline coordinator stopped")
			return nil
		case doc := <-c.documentAnalyzed:
			c.extract(ctx, &doc)
			if c.refiner != nil {
				c.refiner.OnDocumentAnalyzed(doc)
			}
		case doc := <-c.extractRequests:
			c.extract(ctx, &doc)
		case id := <-c.categoriesChanged:
			c.extractor.Invalidate(id)
			if c.refiner != nil {
				c.refiner.OnCategoriesChanged(id)
			}
		}
	}
}

func (c *Coordinator) extract(ctx context.Context, doc *domdoc.Document) {
	triples, err := c.extractor.ExtractFromDocument(ctx, doc)
	if err != nil {
		c.logger.Warn("Extraction failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return
	}
	added := c.triples.AddTriples(triples)
	c.broker.Notify(event.New(event.TriplesExtracted, doc.ID, map[string]int{
		"extracted": len(triples),
		"added":     added,
	}))
}

// Notify forwards lifecycle events to subscribers.
func (c *Coordinator) Notify(e event.Event) { c.broker.Notify(e) }

// Subscribe registers a lifecycle event subscriber.
func (c *Coordinator) Subscribe(buffer int) (<-chan event.Event, func()) {
	return c.broker.Subscribe(buffer)
}

// Analyze runs a convergence analysis and publishes its insights.
func (c *Coordinator) Analyze(ctx context.Context, docs []domdoc.Document, opts convergence.Options) (*domconv.Result, error) {
	if c.analyzer == nil {
		return nil, errors.New("pipeline: no convergence analyzer configured")
	}
	res, err := c.analyzer.Analyze(ctx, docs, opts)
	if err != nil {
		return nil, fmt.Errorf("analyze convergence: %w", err)
	}
	if len(res.Insights) > 0 {
		c.broker.Notify(event.New(event.InsightsGenerated, "", res.Insights))
	}
	return res, nil
}
