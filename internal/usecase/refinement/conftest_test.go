package refinement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// mockDocs stores documents in memory. beforeUpdate, when set, runs ahead of
// every write-back and may edit the stored record.
type mockDocs struct {
	mu           sync.Mutex
	docs         map[string]domdoc.Document
	updates      int
	getErr       error
	beforeUpdate func(id string)
}

func newMockDocs(docs ...domdoc.Document) *mockDocs {
	m := &mockDocs{docs: make(map[string]domdoc.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockDocs) Get(_ context.Context, id string) (domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domdoc.Document{}, m.getErr
	}
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, fmt.Errorf("get %s: %w", id, domain.ErrDocumentNotFound)
	}
	return d.Clone(), nil
}

func (m *mockDocs) UpdateAnalysis(_ context.Context, id string, a domdoc.Analysis) (domdoc.Document, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, fmt.Errorf("update %s: %w", id, domain.ErrDocumentNotFound)
	}
	d.ApplyAnalysis(a)
	m.updates++
	m.docs[id] = d
	return d.Clone(), nil
}

func (m *mockDocs) setCategories(id string, categories ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.Categories = categories
	m.docs[id] = d
}

func (m *mockDocs) get(id string) domdoc.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func (m *mockDocs) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

// mockSearcher returns fixed hits. When gate is set every call waits for it.
type mockSearcher struct {
	mu       sync.Mutex
	hits     []domain.ScoredPoint
	err      error
	gate     chan struct{}
	entered  chan struct{}
	lastOpts domain.SearchOptions
	calls    int
	inFlight int
	peak     int
	delay    time.Duration
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, opts domain.SearchOptions) ([]domain.ScoredPoint, error) {
	m.mu.Lock()
	m.calls++
	m.lastOpts = opts
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
	gate, entered, delay := m.gate, m.entered, m.delay
	m.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	return m.hits, m.err
}

type mockTriples struct {
	triples []triple.Triple
}

func (m mockTriples) Relationships(string) []triple.Triple { return m.triples }

type signalFunc func(ctx context.Context, doc *domdoc.Document) []Signal

func (f signalFunc) Detect(ctx context.Context, doc *domdoc.Document) []Signal { return f(ctx, doc) }

type calcFunc func(p domref.Process) bool

func (f calcFunc) Converged(p domref.Process) bool { return f(p) }

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Notify(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(name event.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

var fastOptions = Options{IterationDelay: time.Millisecond}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Embedder == nil {
		cfg.Embedder = mockEmbedder{}
	}
	if cfg.Searcher == nil {
		cfg.Searcher = &mockSearcher{}
	}
	if cfg.Defaults == (Options{}) {
		cfg.Defaults = fastOptions
	}
	cfg.Logger = zap.NewNop()
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitTerminal(t *testing.T, o *Orchestrator, docID string) domref.Process {
	t.Helper()
	var p domref.Process
	waitFor(t, docID+" to finish", func() bool {
		var ok bool
		p, ok = o.Get(docID)
		return ok && p.Status.Terminal()
	})
	return p
}

func hit(id, analysisType string, confidence, score float64) domain.ScoredPoint {
	return domain.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			domdoc.PayloadDocumentID:         id,
			domdoc.PayloadAnalysisType:       analysisType,
			domdoc.PayloadAnalysisConfidence: confidence,
		},
	}
}
