package chi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/consolidator/internal/domain"
	dombatch "github.com/kailas-cloud/consolidator/internal/domain/batch"
	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
	"github.com/kailas-cloud/consolidator/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/consolidator/internal/usecase/health"
	"github.com/kailas-cloud/consolidator/internal/usecase/refinement"
	"github.com/kailas-cloud/consolidator/internal/usecase/report"
	"github.com/kailas-cloud/consolidator/internal/usecase/triples"
)

// --- mockDocuments ---

type mockDocuments struct {
	docs   map[string]domdoc.Document
	putErr error
}

func newMockDocuments(docs ...domdoc.Document) *mockDocuments {
	m := &mockDocuments{docs: make(map[string]domdoc.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockDocuments) Put(_ context.Context, doc *domdoc.Document) (bool, error) {
	if m.putErr != nil {
		return false, m.putErr
	}
	if doc.Name == "" {
		return false, fmt.Errorf("name is required: %w", domain.ErrInvalidSchema)
	}
	if doc.ID == "" {
		doc.ID = "generated"
	}
	_, exists := m.docs[doc.ID]
	m.docs[doc.ID] = *doc
	return !exists, nil
}

func (m *mockDocuments) Get(_ context.Context, id string) (domdoc.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return d, nil
}

func (m *mockDocuments) GetMany(ctx context.Context, ids []string) ([]domdoc.Document, error) {
	out := make([]domdoc.Document, 0, len(ids))
	for _, id := range ids {
		d, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDocuments) All(_ context.Context) ([]domdoc.Document, error) {
	out := make([]domdoc.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDocuments) List(ctx context.Context, cursor string, limit int) ([]domdoc.Document, string, error) {
	all, _ := m.All(ctx)
	if cursor == "" && limit > 0 && len(all) > limit {
		return all[:limit], "next", nil
	}
	return all, "", nil
}

func (m *mockDocuments) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("delete document %s: %w", id, domain.ErrDocumentNotFound)
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocuments) SetCategories(ctx context.Context, id string, categories []string) (domdoc.Document, error) {
	d, err := m.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, err
	}
	d.Categories = categories
	m.docs[id] = d
	return d, nil
}

// --- mockExtractor ---

type mockExtractor struct {
	failIDs map[string]bool
}

func (m *mockExtractor) ExtractFromDocument(_ context.Context, doc *domdoc.Document) ([]triple.Triple, error) {
	if m.failIDs[doc.ID] {
		return nil, &domain.ExtractionError{DocumentID: doc.ID, Err: domain.ErrExtraction}
	}
	return []triple.Triple{
		triple.New(doc.ID, triple.HasName, doc.Name, triple.Metadata{Source: triple.SourceMetadata, Confidence: 1}),
	}, nil
}

func (m *mockExtractor) ExtractFromDocuments(ctx context.Context, docs []domdoc.Document) extraction.BatchOutput {
	var out extraction.BatchOutput
	for i := range docs {
		ts, err := m.ExtractFromDocument(ctx, &docs[i])
		if err != nil {
			out.Results = append(out.Results, dombatch.NewError(docs[i].ID, err))
			continue
		}
		out.Triples = append(out.Triples, ts...)
		out.Results = append(out.Results, dombatch.NewOK(docs[i].ID, len(ts)))
	}
	return out
}

// --- mockTriples ---

type mockTriples struct {
	mu      sync.Mutex
	triples []triple.Triple
	filter  triples.Filter
}

func (m *mockTriples) AddTriples(ts []triple.Triple) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triples = append(m.triples, ts...)
	return len(ts)
}

func (m *mockTriples) Query(f triples.Filter) []triple.Triple {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	var out []triple.Triple
	for _, t := range m.triples {
		if f.Subject == "" || t.SubjectValue() == f.Subject {
			out = append(out, t)
		}
	}
	return out
}

func (m *mockTriples) ExportAll() []triple.Triple { return m.triples }

func (m *mockTriples) ImportAll(ts []triple.Triple) int { return m.AddTriples(ts) }

func (m *mockTriples) Infer() int { return 2 }

func (m *mockTriples) Relationships(docID string) []triple.Triple {
	return m.Query(triples.Filter{Subject: docID})
}

func (m *mockTriples) Stats() triples.Stats { return triples.Stats{Total: len(m.triples)} }

// --- mockAnalyzer ---

type mockAnalyzer struct {
	got  []string
	opts convergence.Options
	err  error
}

func (m *mockAnalyzer) Analyze(_ context.Context, docs []domdoc.Document, opts convergence.Options) (*domconv.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.opts = opts
	for _, d := range docs {
		m.got = append(m.got, d.ID)
	}
	return &domconv.Result{Stats: domconv.Stats{TotalDocuments: len(docs)}}, nil
}

// --- mockRefinements ---

type mockRefinements struct {
	active map[string]domref.Process
	queued []string
}

func newMockRefinements() *mockRefinements {
	return &mockRefinements{active: make(map[string]domref.Process)}
}

func (m *mockRefinements) Start(docID string, opts refinement.Options) (domref.Process, bool, error) {
	if docID == "missing" {
		return domref.Process{}, false, domain.ErrDocumentNotFound
	}
	if p, ok := m.active[docID]; ok {
		return p, false, nil
	}
	p := domref.Process{DocumentID: docID, Status: domref.StatusActive, MaxIterations: opts.MaxIterations}
	m.active[docID] = p
	return p, true, nil
}

func (m *mockRefinements) Request(docID string, _ refinement.Options) (bool, error) {
	m.queued = append(m.queued, docID)
	return true, nil
}

func (m *mockRefinements) Stop(docID string) (domref.Process, error) {
	p, ok := m.active[docID]
	if !ok {
		return domref.Process{}, fmt.Errorf("stop %s: %w", docID, domain.ErrRefinementNotActive)
	}
	delete(m.active, docID)
	p.Status = domref.StatusStopped
	return p, nil
}

func (m *mockRefinements) Status() domref.StatusReport {
	var r domref.StatusReport
	for _, p := range m.active {
		r.Active = append(r.Active, p)
	}
	r.Queued = m.queued
	return r
}

// --- mockEvents ---

type mockEvents struct {
	ch chan event.Event
}

func (m *mockEvents) Subscribe(int) (<-chan event.Event, func()) {
	return m.ch, func() {}
}

// --- mockReports / mockHealth ---

type mockReports struct {
	err error
}

func (m *mockReports) Build(context.Context) (report.Report, error) {
	if m.err != nil {
		return report.Report{}, m.err
	}
	return report.Report{TotalPoints: 3, UniqueFiles: 2}, nil
}

type mockHealth struct {
	status healthuc.Status
}

func (m *mockHealth) Check(context.Context) healthuc.Report {
	return healthuc.Report{Status: m.status, Checks: map[string]healthuc.CheckResult{}}
}

// --- fixture ---

type fixture struct {
	docs     *mockDocuments
	triples  *mockTriples
	analyzer *mockAnalyzer
	refs     *mockRefinements
	handler  http.Handler
}

func newFixture(t *testing.T, docs ...domdoc.Document) *fixture {
	t.Helper()
	f := &fixture{
		docs:     newMockDocuments(docs...),
		triples:  &mockTriples{},
		analyzer: &mockAnalyzer{},
		refs:     newMockRefinements(),
	}
	srv := NewServer(Services{
		Documents:   f.docs,
		Extractor:   &mockExtractor{failIDs: map[string]bool{"bad": true}},
		Triples:     f.triples,
		Analyzer:    f.analyzer,
		Refinements: f.refs,
		Reports:     &mockReports{},
		Health:      &mockHealth{status: healthuc.Healthy},
		Categories:  domain.StaticCategories{{ID: "work", Name: "Work"}},
	}, nil)
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}
