package document

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// --- Mocks ---

type mockRepo struct {
	mu      sync.Mutex
	docs    map[string]domdoc.Document
	err     error
	upserts int
}

func newMockRepo(docs ...domdoc.Document) *mockRepo {
	m := &mockRepo{docs: make(map[string]domdoc.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockRepo) Upsert(_ context.Context, doc *domdoc.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, exists := m.docs[doc.ID]
	m.docs[doc.ID] = doc.Clone()
	m.upserts++
	return !exists, nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return d.Clone(), nil
}

func (m *mockRepo) List(_ context.Context, cursor string, limit int) ([]domdoc.Document, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	offset, _ := strconv.Atoi(cursor)
	if offset >= len(ids) {
		return nil, "", nil
	}
	end := min(offset+limit, len(ids))
	out := make([]domdoc.Document, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, m.docs[id])
	}
	next := ""
	if end < len(ids) {
		next = strconv.Itoa(end)
	}
	return out, next, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

type mockPoints struct {
	points  map[string]domain.Point
	deleted []string
	err     error
}

func newMockPoints() *mockPoints { return &mockPoints{points: make(map[string]domain.Point)} }

func (m *mockPoints) Insert(_ context.Context, points []domain.Point) error {
	if m.err != nil {
		return m.err
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *mockPoints) Delete(_ context.Context, ids []string) error {
	m.deleted = append(m.deleted, ids...)
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

// mockEmbedder returns a fixed vector. When gate is set the next call signals
// entered and waits for gate before returning; the gate is used once.
type mockEmbedder struct {
	mu      sync.Mutex
	err     error
	texts   []string
	gate    chan struct{}
	entered chan struct{}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	gate, entered := m.gate, m.entered
	m.gate, m.entered = nil, nil
	m.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	m.texts = append(m.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 3}, nil
}

type mockNotifier struct {
	analyzed []domdoc.Document
	changed  []string
	err      error
}

func (m *mockNotifier) DocumentAnalyzed(_ context.Context, doc domdoc.Document) error {
	m.analyzed = append(m.analyzed, doc)
	return m.err
}

func (m *mockNotifier) CategoriesChanged(_ context.Context, id string) error {
	m.changed = append(m.changed, id)
	return m.err
}
