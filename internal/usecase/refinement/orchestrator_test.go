package refinement

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

func categorized(id string, categories ...string) domdoc.Document {
	return domdoc.Document{ID: id, Name: id + ".md", Categories: categories, AnalysisType: "Aprendizado Geral", AnalysisConfidence: 0.5}
}

func TestStart_SecondCallIsNoOp(t *testing.T) {
	searcher := &mockSearcher{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{Documents: docs, Searcher: searcher, Defaults: Options{MaxIterations: 1, IterationDelay: time.Millisecond}})

	first, started, err := o.Start("d1", Options{})
	if err != nil || !started {
		t.Fatalf("first start: started=%v err=%v", started, err)
	}
	second, started, err := o.Start("d1", Options{})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if started {
		t.Fatal("second start must not create a process")
	}
	if second.DocumentID != first.DocumentID || !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("second start should return the existing process: %+v", second)
	}
	if active := o.ActiveRefinements(); len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}

	<-searcher.entered
	close(searcher.gate)
	p := waitTerminal(t, o, "d1")
	if p.Status != domref.StatusCompleted {
		t.Errorf("status = %s", p.Status)
	}
}

func TestRefine_NoNeighborsKeepsBase(t *testing.T) {
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{Documents: docs, Defaults: Options{MaxIterations: 2, IterationDelay: time.Millisecond}})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := waitTerminal(t, o, "d1")
	if p.CurrentConfidence != BaseConfidence {
		t.Errorf("confidence = %v, want %v", p.CurrentConfidence, BaseConfidence)
	}
	if p.Iteration != 2 || p.Converged {
		t.Errorf("iteration = %d converged = %v", p.Iteration, p.Converged)
	}
	got := docs.get("d1")
	if got.AnalysisType != "Aprendizado Geral" || got.AnalysisConfidence != BaseConfidence {
		t.Errorf("write-back = %q %v", got.AnalysisType, got.AnalysisConfidence)
	}
	if got.RefinedAt.IsZero() {
		t.Error("refinedAt not set")
	}
}

func TestRefine_WriteBackKeepsCategoryEdit(t *testing.T) {
	docs := newMockDocs(categorized("d1", "IA"))
	// the curator edits categories after the iteration loaded the document
	docs.beforeUpdate = func(id string) { docs.setCategories(id, "IA", "Tech") }
	o := newTestOrchestrator(t, Config{Documents: docs, Defaults: Options{MaxIterations: 1, IterationDelay: time.Millisecond}})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, o, "d1")

	got := docs.get("d1")
	if !slices.Equal(got.Categories, []string{"IA", "Tech"}) {
		t.Errorf("categories after write-back = %v, want [IA Tech]", got.Categories)
	}
	if got.AnalysisConfidence != BaseConfidence || got.RefinedAt.IsZero() {
		t.Errorf("analysis not written back: %+v", got)
	}
}

func TestRefine_NeighborVoting(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.ScoredPoint{
		hit("self", "Ignored", 1, 1),
		hit("n1", "Breakthrough Técnico", 0.9, 0.8),
		hit("n2", "Breakthrough Técnico", 0.8, 0.75),
		hit("n3", "Insight Estratégico", 0.5, 0.9),
	}}
	doc := categorized("self", "IA", "Go")
	docs := newMockDocs(doc)
	o := newTestOrchestrator(t, Config{Documents: docs, Searcher: searcher, Defaults: Options{MaxIterations: 1, IterationDelay: time.Millisecond}})

	if _, _, err := o.Start("self", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := waitTerminal(t, o, "self")

	want := RefinedConfidence(1.7/2.2, 2)
	if p.CurrentConfidence != want || p.AnalysisType != "Breakthrough Técnico" {
		t.Errorf("process = %v %q, want %v Breakthrough Técnico", p.CurrentConfidence, p.AnalysisType, want)
	}
	if got := docs.get("self"); got.AnalysisType != "Breakthrough Técnico" {
		t.Errorf("write-back type = %q", got.AnalysisType)
	}

	opts := searcher.lastOpts
	if opts.Limit != DefaultNeighborLimit || opts.ScoreThreshold != DefaultNeighborScoreThreshold {
		t.Errorf("search opts = %+v", opts)
	}
	if len(opts.Filter.Should()) != 2 || len(opts.Filter.MustNot()) != 1 {
		t.Fatalf("filter = should %v must_not %v", opts.Filter.Should(), opts.Filter.MustNot())
	}
	if c := opts.Filter.MustNot()[0]; c.Key() != domdoc.PayloadDocumentID || c.Match() != "self" {
		t.Errorf("self exclusion = %s=%s", c.Key(), c.Match())
	}
}

func TestRefine_ConvergesWhenGainFlattens(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.ScoredPoint{
		hit("n1", "Breakthrough Técnico", 0.9, 0.9),
		hit("n2", "Breakthrough Técnico", 0.9, 0.9),
	}}
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{Documents: docs, Searcher: searcher})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := waitTerminal(t, o, "d1")
	if !p.Converged || p.Iteration != 2 {
		t.Errorf("converged=%v iteration=%d, want converged at 2", p.Converged, p.Iteration)
	}
	if p.CurrentConfidence != MaxConfidence {
		t.Errorf("confidence = %v", p.CurrentConfidence)
	}
	if len(p.ConfidenceHistory) != 3 {
		t.Errorf("history = %v", p.ConfidenceHistory)
	}
	if h := o.History("d1"); len(h) != 2 || h[1].Iteration != 2 {
		t.Errorf("history entries = %+v", h)
	}
}

func TestRefine_GraceWindowDelaysConvergence(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.ScoredPoint{hit("n1", "Breakthrough Técnico", 0.9, 0.9)}}
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{
		Documents: docs,
		Searcher:  searcher,
		Queue:     QueueOptions{RetriggerDelay: time.Hour},
	})

	o.OnCategoriesChanged("d1")
	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := waitTerminal(t, o, "d1")
	if !p.Converged || p.Iteration != DefaultGraceIterations {
		t.Errorf("converged=%v iteration=%d, want converged at %d", p.Converged, p.Iteration, DefaultGraceIterations)
	}
}

func TestRefine_IterationCeiling(t *testing.T) {
	// confidence never reaches the threshold, so only the ceiling ends the loop
	searcher := &mockSearcher{hits: []domain.ScoredPoint{hit("n1", "A", 0.9, 0.9)}}
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{
		Documents:  docs,
		Searcher:   searcher,
		Calculator: calcFunc(func(domref.Process) bool { return false }),
		Defaults:   Options{MaxIterations: 3, ConvergenceThreshold: 0.99, IterationDelay: time.Millisecond},
	})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := waitTerminal(t, o, "d1")
	if p.Iteration != 3 || p.Converged || p.Status != domref.StatusCompleted {
		t.Errorf("process = %+v", p)
	}
	if p.Iteration > p.MaxIterations {
		t.Errorf("iteration %d exceeds max %d", p.Iteration, p.MaxIterations)
	}
}

func TestRefine_CalculatorConverges(t *testing.T) {
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{
		Documents:  docs,
		Calculator: calcFunc(func(p domref.Process) bool { return p.Iteration >= 1 }),
	})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := waitTerminal(t, o, "d1")
	if !p.Converged || p.Iteration != 1 {
		t.Errorf("process = %+v", p)
	}
}

func TestRefine_MissingDocumentIsIsolated(t *testing.T) {
	rec := &recorder{}
	docs := newMockDocs(categorized("ok", "IA"))
	o := newTestOrchestrator(t, Config{Documents: docs, Notifier: rec, Defaults: Options{MaxIterations: 1, IterationDelay: time.Millisecond}})

	if _, _, err := o.Start("missing", Options{}); err != nil {
		t.Fatalf("Start missing: %v", err)
	}
	if _, _, err := o.Start("ok", Options{}); err != nil {
		t.Fatalf("Start ok: %v", err)
	}

	failed := waitTerminal(t, o, "missing")
	if failed.Status != domref.StatusError || !strings.Contains(failed.Error, domain.ErrDocumentNotFound.Error()) {
		t.Errorf("missing = %+v", failed)
	}
	if ok := waitTerminal(t, o, "ok"); ok.Status != domref.StatusCompleted {
		t.Errorf("ok = %+v", ok)
	}
	waitFor(t, "terminal events", func() bool {
		return rec.count(event.RefinementError) == 1 && rec.count(event.RefinementCompleted) == 1
	})
	if m := o.Metrics(); m.TotalRuns != 2 || m.FailedRuns != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestStop_DiscardsInFlightIteration(t *testing.T) {
	searcher := &mockSearcher{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	docs := newMockDocs(categorized("d1", "IA"))
	rec := &recorder{}
	o := newTestOrchestrator(t, Config{Documents: docs, Searcher: searcher, Notifier: rec})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-searcher.entered

	p, err := o.Stop("d1")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Status != domref.StatusStopped {
		t.Errorf("status = %s", p.Status)
	}
	if len(o.ActiveRefinements()) != 0 {
		t.Error("stopped process still active")
	}

	close(searcher.gate)
	o.Close()
	if docs.updateCount() != 0 {
		t.Errorf("stopped iteration wrote back %d times", docs.updateCount())
	}
	if rec.count(event.RefinementStopped) != 1 {
		t.Errorf("events = %+v", rec.events)
	}
	if _, err := o.Stop("d1"); !errors.Is(err, domain.ErrRefinementNotActive) {
		t.Errorf("second stop = %v", err)
	}
}

func TestStart_RestartUsesLastConfidence(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.ScoredPoint{hit("n1", "A", 0.9, 0.9)}}
	docs := newMockDocs(categorized("d1", "IA"))
	o := newTestOrchestrator(t, Config{Documents: docs, Searcher: searcher, Defaults: Options{MaxIterations: 1, IterationDelay: time.Millisecond}})

	if _, _, err := o.Start("d1", Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := waitTerminal(t, o, "d1")

	second, started, err := o.Start("d1", Options{})
	if err != nil || !started {
		t.Fatalf("restart: started=%v err=%v", started, err)
	}
	if second.InitialConfidence != first.CurrentConfidence {
		t.Errorf("initial = %v, want %v", second.InitialConfidence, first.CurrentConfidence)
	}
	waitFor(t, "second run", func() bool { return o.Metrics().TotalRuns == 2 })
	m := o.Metrics()
	if m.SuccessfulRuns != 1 || m.SuccessRate != 0.5 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestStart_RequiresID(t *testing.T) {
	o := newTestOrchestrator(t, Config{Documents: newMockDocs()})
	if _, _, err := o.Start("", Options{}); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("err = %v", err)
	}
	o.Close()
	if _, _, err := o.Start("d1", Options{}); !errors.Is(err, ErrClosed) {
		t.Errorf("after close = %v", err)
	}
}

func TestContextConfidence(t *testing.T) {
	o := newTestOrchestrator(t, Config{
		Documents: newMockDocs(),
		Triples: mockTriples{triples: []triple.Triple{
			triple.New("d1", triple.HasInsight, "conclusion", triple.Metadata{Confidence: 0.9}),
		}},
	})
	ctx := context.Background()

	bare := domdoc.Document{ID: "d0"}
	if got := o.contextConfidence(ctx, &bare); got != 0 {
		t.Errorf("bare = %v", got)
	}

	withTriples := domdoc.Document{ID: "d1", Categories: []string{"IA"}}
	if got := o.contextConfidence(ctx, &withTriples); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("categories + insight triple = %v, want 0.5", got)
	}

	o.detectors = []SignalDetector{signalFunc(func(context.Context, *domdoc.Document) []Signal {
		return []Signal{{Name: "keywords", Confidence: 0.4}}
	})}
	full := domdoc.Document{ID: "d1", Categories: []string{"IA"}, Annotations: []string{"nota"}}
	if got := o.contextConfidence(ctx, &full); got != 1 {
		t.Errorf("capped = %v, want 1", got)
	}
}

func TestVote(t *testing.T) {
	hits := []domain.ScoredPoint{
		hit("a", "X", 0, 0.8), // falls back to score
		hit("b", "Y", 0.5, 0.9),
		hit("c", "Y", 0.4, 0.9),
		{ID: "d", Score: 0.9, Payload: map[string]any{}}, // no type
	}
	typ, share, n := Vote(hits, "self")
	if typ != "Y" || n != 3 || math.Abs(share-0.9/1.7) > 1e-9 {
		t.Errorf("Vote = %q %v %d", typ, share, n)
	}

	tie := []domain.ScoredPoint{hit("a", "X", 0.5, 0.5), hit("b", "Y", 0.5, 0.5)}
	if typ, _, _ := Vote(tie, "self"); typ != "X" {
		t.Errorf("tie winner = %q, want first seen", typ)
	}

	if typ, _, n := Vote([]domain.ScoredPoint{hit("self", "X", 1, 1)}, "self"); typ != "" || n != 0 {
		t.Errorf("self only = %q %d", typ, n)
	}
}

func TestRefinedConfidence(t *testing.T) {
	tests := []struct {
		share      float64
		categories int
		want       float64
	}{
		{0, 0, 0.65},
		{1, 0, 0.92},
		{1, 1, 0.95},
		{0.5, 2, 0.845},
		{1, 5, 0.95},
	}
	for _, tt := range tests {
		if got := RefinedConfidence(tt.share, tt.categories); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RefinedConfidence(%v, %d) = %v, want %v", tt.share, tt.categories, got, tt.want)
		}
	}
}
