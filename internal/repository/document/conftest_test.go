package document

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/kailas-cloud/consolidator/internal/db"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// mockStore is an in-memory hash store with per-method overrides.
type mockStore struct {
	hashes map[string]map[string]string

	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	existsFn  func(ctx context.Context, key string) (bool, error)
	scanFn    func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	m.hashes[key] = fields
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	h, ok := m.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return h, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{hashes: make(map[string]map[string]string)}
	return New(ms, "kc:"), ms
}

func testDocument(t *testing.T) domdoc.Document {
	t.Helper()
	return domdoc.Document{
		ID:                 "doc-1",
		Name:               "plan_v3.md",
		Content:            "Decisão: migrar para Go.",
		Categories:         []string{"Estratégia", "IA"},
		RelevanceScore:     85,
		AnalysisType:       "Momento Decisivo",
		AnalysisConfidence: 0.72,
		Analyzed:           true,
		Size:               2048,
		Extension:          ".md",
		ModifiedAt:         time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Annotations:        []string{"revisar"},
	}
}
