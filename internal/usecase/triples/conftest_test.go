package triples

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// mockSnapshotter keeps the last saved snapshot in memory.
type mockSnapshotter struct {
	saved   []triple.Triple
	saveErr error
	loadErr error
}

func (m *mockSnapshotter) Save(_ context.Context, ts []triple.Triple) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append([]triple.Triple(nil), ts...)
	return nil
}

func (m *mockSnapshotter) Load(_ context.Context) ([]triple.Triple, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved, nil
}

func newTestStore(t *testing.T, snap Snapshotter) *Store {
	t.Helper()
	s := New(snap, zap.NewNop())
	s.now = func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func md(source string, confidence float64) triple.Metadata {
	return triple.Metadata{Source: source, Confidence: confidence}
}
