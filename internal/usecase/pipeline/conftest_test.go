package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
)

type mockExtractor struct {
	mu          sync.Mutex
	err         error
	extracted   []string
	invalidated []string
}

func (m *mockExtractor) ExtractFromDocument(_ context.Context, doc *domdoc.Document) ([]triple.Triple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.extracted = append(m.extracted, doc.ID)
	return []triple.Triple{
		triple.New(doc.ID, triple.HasName, doc.Name, triple.Metadata{Source: triple.SourceMetadata, Confidence: 1}),
	}, nil
}

func (m *mockExtractor) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, id)
}

func (m *mockExtractor) snapshot() ([]string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.extracted...), append([]string(nil), m.invalidated...)
}

type mockSink struct {
	mu    sync.Mutex
	added []triple.Triple
}

func (m *mockSink) AddTriples(ts []triple.Triple) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, ts...)
	return len(ts)
}

func (m *mockSink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added)
}

type mockRefiner struct {
	mu       sync.Mutex
	analyzed []string
	changed  []string
}

func (m *mockRefiner) OnDocumentAnalyzed(doc domdoc.Document) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzed = append(m.analyzed, doc.ID)
	return true
}

func (m *mockRefiner) OnCategoriesChanged(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, id)
}

func (m *mockRefiner) snapshot() ([]string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.analyzed...), append([]string(nil), m.changed...)
}

type mockAnalyzer struct {
	result *domconv.Result
	err    error
}

func (m *mockAnalyzer) Analyze(context.Context, []domdoc.Document, convergence.Options) (*domconv.Result, error) {
	return m.result, m.err
}

// startCoordinator runs c until the test ends.
func startCoordinator(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
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

func receive(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
		return event.Event{}
	}
}
