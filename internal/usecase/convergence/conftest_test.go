package convergence

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// mockEmbedder resolves vectors by document name, the first line of the embedding text.
type mockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	errs    map[string]error
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	name, _, _ := strings.Cut(text, "\n")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.errs[name]; ok {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: m.vectors[name]}, nil
}

type mockWriter struct {
	mu     sync.Mutex
	points []domain.Point
	err    error
}

func (m *mockWriter) Insert(_ context.Context, points []domain.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.points = append(m.points, points...)
	return nil
}

func flag(v bool) *bool { return &v }

func newTestAnalyzer(t *testing.T, emb domain.Embedder, w PointWriter) *Analyzer {
	t.Helper()
	a, err := New(Config{Embedder: emb, Writer: w, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// vec builds a float32 vector of the given dimension from sparse entries.
func vec(dim int, entries map[int]float64) []float32 {
	v := make([]float32, dim)
	for i, x := range entries {
		v[i] = float32(x)
	}
	return v
}

// clusterVectors returns n vectors whose pairwise cosine similarity equals shared
// (dimension 0 is common, each member owns one extra dimension starting at offset).
func clusterVectors(n, dim, offset int, shared float64) [][]float32 {
	a, b := math.Sqrt(shared), math.Sqrt(1-shared)
	out := make([][]float32, n)
	for i := range n {
		out[i] = vec(dim, map[int]float64{0: a, offset + i: b})
	}
	return out
}

func doc(id, name string, categories ...string) domdoc.Document {
	return domdoc.Document{ID: id, Name: name, Categories: categories}
}

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
