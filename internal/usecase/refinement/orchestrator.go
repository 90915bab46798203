// Package refinement runs bounded, convergence-seeking loops that refine a document's
// analysis type and confidence from its embedding neighborhood and curated context.
package refinement

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("refinement orchestrator closed")

// Config wires the orchestrator collaborators.
type Config struct {
	Documents DocumentStore
	Embedder  domain.Embedder
	Searcher  NeighborSearcher
	// Optional collaborators.
	Triples    TripleSource
	Detectors  []SignalDetector
	Calculator ConvergenceCalculator
	Notifier   event.Notifier

	Defaults Options
	Queue    QueueOptions
	Logger   *zap.Logger
}

type proc struct {
	domref.Process
	opts Options
	stop chan struct{}
	done chan struct{}
}

func (p *proc) snapshot() domref.Process {
	s := p.Process
	s.ConfidenceHistory = slices.Clone(p.ConfidenceHistory)
	return s
}

type queued struct {
	docID string
	opts  Options
}

type totals struct {
	runs, successful, failed, iterations int
	gain                                 float64
}

// Orchestrator owns every refinement process. At most one process is active per document.
type Orchestrator struct {
	docs       DocumentStore
	embedder   domain.Embedder
	searcher   NeighborSearcher
	triples    TripleSource
	detectors  []SignalDetector
	calculator ConvergenceCalculator
	notifier   event.Notifier
	defaults   Options
	queueOpts  QueueOptions
	logger     *zap.Logger
	now        func() time.Time

	mu             sync.Mutex
	active         map[string]*proc
	recent         []domref.Process
	history        map[string][]domref.HistoryEntry
	contextChanged map[string]time.Time
	retrigger      map[string]*time.Timer
	retriggerSeq   map[string]uint64
	queue          []queued
	totals         totals
	closed         bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator. Processes run until completion or Close.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Documents == nil || cfg.Embedder == nil || cfg.Searcher == nil {
		return nil, errors.New("refinement: documents, embedder and searcher are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = event.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		docs:           cfg.Documents,
		embedder:       cfg.Embedder,
		searcher:       cfg.Searcher,
		triples:        cfg.Triples,
		detectors:      cfg.Detectors,
		calculator:     cfg.Calculator,
		notifier:       cfg.Notifier,
		defaults:       cfg.Defaults.merge(DefaultOptions()),
		queueOpts:      cfg.Queue.withDefaults(),
		logger:         cfg.Logger,
		now:            time.Now,
		active:         make(map[string]*proc),
		history:        make(map[string][]domref.HistoryEntry),
		contextChanged: make(map[string]time.Time),
		retrigger:      make(map[string]*time.Timer),
		retriggerSeq:   make(map[string]uint64),
		wake:           make(chan struct{}, 1),
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Start begins refinement of a document. When a process is already active for docID
// it returns that process with started=false and changes nothing.
func (o *Orchestrator) Start(docID string, opts Options) (domref.Process, bool, error) {
	_, snap, started, err := o.start(docID, opts)
	return snap, started, err
}

func (o *Orchestrator) start(docID string, opts Options) (*proc, domref.Process, bool, error) {
	if docID == "" {
		return nil, domref.Process{}, false, fmt.Errorf("document id is required: %w", domain.ErrInvalidSchema)
	}

	// проверка и регистрация под одной блокировкой, до любого I/O
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, domref.Process{}, false, ErrClosed
	}
	if existing, ok := o.active[docID]; ok {
		snap := existing.snapshot()
		o.mu.Unlock()
		o.logger.Warn("Refinement already active", zap.String("document_id", docID))
		return existing, snap, false, nil
	}

	opts = opts.merge(o.defaults)
	initial := 0.0
	if h := o.history[docID]; len(h) > 0 {
		initial = h[len(h)-1].Confidence
	}
	p := &proc{
		Process: domref.Process{
			DocumentID:        docID,
			Status:            domref.StatusActive,
			MaxIterations:     opts.MaxIterations,
			InitialConfidence: initial,
			CurrentConfidence: initial,
			ConfidenceHistory: []float64{initial},
			StartedAt:         o.now(),
		},
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	o.active[docID] = p
	o.dequeueLocked(docID)
	snap := p.snapshot()
	o.wg.Add(1)
	o.mu.Unlock()

	metrics.RefinementsActive.Inc()
	o.notify(event.RefinementStarted, docID, snap)
	o.logger.Info("Refinement started",
		zap.String("document_id", docID),
		zap.Float64("initial_confidence", initial),
		zap.Int("max_iterations", opts.MaxIterations),
	)

	go o.run(p)
	return p, snap, true, nil
}

func (o *Orchestrator) run(p *proc) {
	defer o.wg.Done()
	defer close(p.done)

	for {
		res, alive, err := o.iterate(p)
		if err != nil {
			status := domref.StatusError
			if o.ctx.Err() != nil {
				status = domref.StatusStopped
			}
			o.finish(p, status, err)
			return
		}
		if !alive {
			return
		}

		converged := res.builtinConverged
		if o.calculator != nil && o.calculator.Converged(res.snap) {
			converged = true
		}
		if converged || res.snap.Iteration >= res.snap.MaxIterations {
			o.mu.Lock()
			p.Converged = converged
			o.mu.Unlock()
			o.finish(p, domref.StatusCompleted, nil)
			return
		}

		timer := time.NewTimer(p.opts.IterationDelay)
		select {
		case <-timer.C:
		case <-p.stop:
			timer.Stop()
			return
		case <-o.ctx.Done():
			timer.Stop()
			o.finish(p, domref.StatusStopped, o.ctx.Err())
			return
		}
	}
}

// finish moves an active process to a terminal status. Only the first call has an effect.
func (o *Orchestrator) finish(p *proc, status domref.Status, cause error) {
	o.mu.Lock()
	if o.active[p.DocumentID] != p {
		o.mu.Unlock()
		return
	}
	snap := o.finishLocked(p, status, cause)
	o.mu.Unlock()
	o.reportFinished(snap)
}

func (o *Orchestrator) finishLocked(p *proc, status domref.Status, cause error) domref.Process {
	delete(o.active, p.DocumentID)
	p.Status = status
	p.CompletedAt = o.now()
	p.Duration = p.CompletedAt.Sub(p.StartedAt)
	if cause != nil {
		p.Error = cause.Error()
	}
	snap := p.snapshot()

	o.totals.runs++
	o.totals.iterations += snap.Iteration
	o.totals.gain += snap.Gain()
	if snap.Gain() > 0 {
		o.totals.successful++
	}
	if status == domref.StatusError {
		o.totals.failed++
	}

	o.recent = append(o.recent, snap)
	if len(o.recent) > DefaultRecentLimit {
		o.recent = slices.Delete(o.recent, 0, len(o.recent)-DefaultRecentLimit)
	}
	return snap
}

func (o *Orchestrator) reportFinished(snap domref.Process) {
	metrics.RefinementsActive.Dec()
	metrics.RefinementOutcomesTotal.WithLabelValues(string(snap.Status)).Inc()
	metrics.RefinementIterations.Observe(float64(snap.Iteration))
	metrics.RefinementGain.Observe(snap.Gain())

	fields := []zap.Field{
		zap.String("document_id", snap.DocumentID),
		zap.String("status", string(snap.Status)),
		zap.Int("iterations", snap.Iteration),
		zap.Float64("confidence", snap.CurrentConfidence),
		zap.Float64("gain", snap.Gain()),
		zap.Bool("converged", snap.Converged),
		zap.Duration("duration", snap.Duration),
	}

	switch snap.Status {
	case domref.StatusError:
		o.logger.Error("Refinement failed", append(fields, zap.String("error", snap.Error))...)
		o.notify(event.RefinementError, snap.DocumentID, snap)
	case domref.StatusStopped:
		o.logger.Info("Refinement stopped", fields...)
		o.notify(event.RefinementStopped, snap.DocumentID, snap)
	default:
		o.logger.Info("Refinement completed", fields...)
		o.notify(event.RefinementCompleted, snap.DocumentID, snap)
	}
}

// Stop flips an active process to stopped. In-flight I/O is not aborted; an iteration
// whose write-back already started may still land.
func (o *Orchestrator) Stop(docID string) (domref.Process, error) {
	o.mu.Lock()
	p, ok := o.active[docID]
	if !ok {
		o.mu.Unlock()
		return domref.Process{}, fmt.Errorf("stop %s: %w", docID, domain.ErrRefinementNotActive)
	}
	snap := o.finishLocked(p, domref.StatusStopped, nil)
	close(p.stop)
	o.mu.Unlock()

	o.reportFinished(snap)
	return snap, nil
}

// Get returns the active process of a document, or its most recent finished one.
func (o *Orchestrator) Get(docID string) (domref.Process, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.active[docID]; ok {
		return p.snapshot(), true
	}
	for i := len(o.recent) - 1; i >= 0; i-- {
		if o.recent[i].DocumentID == docID {
			return o.recent[i], true
		}
	}
	return domref.Process{}, false
}

// ActiveRefinements returns snapshots of the active processes ordered by start time.
func (o *Orchestrator) ActiveRefinements() []domref.Process {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeLocked()
}

func (o *Orchestrator) activeLocked() []domref.Process {
	out := make([]domref.Process, 0, len(o.active))
	for _, p := range o.active {
		out = append(out, p.snapshot())
	}
	slices.SortFunc(out, func(a, b domref.Process) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return out
}

// History returns the confidence observations of a document, oldest first.
func (o *Orchestrator) History(docID string) []domref.HistoryEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.history[docID])
}

// Metrics returns aggregates over finished runs.
func (o *Orchestrator) Metrics() domref.GlobalMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metricsLocked()
}

func (o *Orchestrator) metricsLocked() domref.GlobalMetrics {
	t := o.totals
	m := domref.GlobalMetrics{
		TotalRuns:      t.runs,
		SuccessfulRuns: t.successful,
		FailedRuns:     t.failed,
	}
	if t.runs > 0 {
		m.SuccessRate = float64(t.successful) / float64(t.runs)
		m.AverageIterations = float64(t.iterations) / float64(t.runs)
		m.AverageGain = t.gain / float64(t.runs)
	}
	return m
}

// Status returns the orchestrator view: active, recently finished and queued processes.
func (o *Orchestrator) Status() domref.StatusReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	queued := make([]string, len(o.queue))
	for i, q := range o.queue {
		queued[i] = q.docID
	}
	return domref.StatusReport{
		Active:  o.activeLocked(),
		Recent:  slices.Clone(o.recent),
		Queued:  queued,
		Metrics: o.metricsLocked(),
	}
}

// Close stops pending re-triggers, stops running processes and waits for them.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	for id, t := range o.retrigger {
		t.Stop()
		delete(o.retrigger, id)
	}
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) notify(name event.Name, docID string, payload any) {
	o.notifier.Notify(event.New(name, docID, payload))
}
