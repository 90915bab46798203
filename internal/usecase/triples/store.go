// Package triples holds the in-memory triple store with identity dedup and pattern queries.
package triples

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// Filter is a partial-match query. Zero fields match everything.
// Predicates are alternatives (OR).
type Filter struct {
	Subject       string
	Predicates    []string
	Object        string
	Source        string
	MinConfidence float64
	Metadata      map[string]any
}

func (f Filter) matches(t *triple.Triple) bool {
	if f.Subject != "" && t.SubjectValue() != f.Subject {
		return false
	}
	if len(f.Predicates) > 0 && !slices.Contains(f.Predicates, t.PredicateValue()) {
		return false
	}
	if f.Object != "" && t.ObjectValue() != f.Object {
		return false
	}
	if f.Source != "" && t.Metadata.Source != f.Source {
		return false
	}
	if t.Metadata.Confidence < f.MinConfidence {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := t.Metadata.Field(k)
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

// sameValue compares metadata values loosely: JSON round trips turn ints into floats.
func sameValue(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Store is the canonical triple set. Append-only within a session:
// a triple is only ever replaced by a higher-confidence version of itself.
type Store struct {
	mu    sync.RWMutex
	items []triple.Triple
	index map[string]int

	rules  []Rule
	snap   Snapshotter
	now    func() time.Time
	logger *zap.Logger
}

// New creates an empty store. snap may be nil when persistence is disabled.
func New(snap Snapshotter, logger *zap.Logger) *Store {
	return &Store{
		index:  make(map[string]int),
		rules:  DefaultRules(),
		snap:   snap,
		now:    time.Now,
		logger: logger,
	}
}

// WithRules appends inference rules to the built-in set.
func (s *Store) WithRules(rules ...Rule) *Store {
	s.rules = append(s.rules, rules...)
	return s
}

// Add inserts a fact stamped with the current time.
// It returns false when an equal-or-higher-confidence duplicate already exists.
func (s *Store) Add(subject, predicate string, object any, md triple.Metadata) (triple.Triple, bool) {
	md.Timestamp = s.now().UTC()
	return s.add(triple.New(subject, predicate, object, md))
}

// AddTriple inserts a prebuilt triple, keeping its timestamp when set.
func (s *Store) AddTriple(t triple.Triple) (triple.Triple, bool) {
	if t.Metadata.Timestamp.IsZero() {
		t.Metadata.Timestamp = s.now().UTC()
	}
	t.Metadata = t.Metadata.Clone()
	t.ID = triple.IDFor(t.Key())
	return s.add(t)
}

// AddTriples bulk-inserts and returns how many were inserted or upgraded.
func (s *Store) AddTriples(ts []triple.Triple) int {
	n := 0
	for _, t := range ts {
		if _, ok := s.AddTriple(t); ok {
			n++
		}
	}
	return n
}

func (s *Store) add(t triple.Triple) (triple.Triple, bool) {
	key := t.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		if s.items[i].Metadata.Confidence >= t.Metadata.Confidence {
			metrics.TripleAddsTotal.WithLabelValues("rejected").Inc()
			return s.items[i], false
		}
		s.items[i].Metadata = t.Metadata
		metrics.TripleAddsTotal.WithLabelValues("updated").Inc()
		return s.items[i], true
	}

	s.index[key] = len(s.items)
	s.items = append(s.items, t)
	metrics.TripleAddsTotal.WithLabelValues("inserted").Inc()
	metrics.TriplesStored.Set(float64(len(s.items)))
	return t, true
}

// Query returns matching triples in insertion order.
func (s *Store) Query(f Filter) []triple.Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []triple.Triple
	for i := range s.items {
		if f.matches(&s.items[i]) {
			out = append(out, cloneTriple(s.items[i]))
		}
	}
	return out
}

// Get returns the triple with the given identity.
func (s *Store) Get(subject, predicate, object string) (triple.Triple, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[triple.KeyOf(subject, predicate, object)]
	if !ok {
		return triple.Triple{}, false
	}
	return cloneTriple(s.items[i]), true
}

// Len returns the number of stored triples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ExportAll returns a copy of every triple.
func (s *Store) ExportAll() []triple.Triple { return s.Query(Filter{}) }

// ImportAll merges triples under the dedup rules. Re-importing the same set changes nothing.
func (s *Store) ImportAll(ts []triple.Triple) int { return s.AddTriples(ts) }

// Relationships returns triples where the document is subject or object.
func (s *Store) Relationships(docID string) []triple.Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []triple.Triple
	for i := range s.items {
		t := &s.items[i]
		if t.SubjectValue() == docID || t.ObjectValue() == docID {
			out = append(out, cloneTriple(*t))
		}
	}
	return out
}

// Insights returns the hasInsight triples of a document.
func (s *Store) Insights(docID string) []triple.Triple {
	return s.Query(Filter{Subject: docID, Predicates: []string{triple.HasInsight}})
}

// Stats summarizes the store.
type Stats struct {
	Total         int            `json:"total"`
	Subjects      int            `json:"subjects"`
	ByPredicate   map[string]int `json:"byPredicate"`
	BySource      map[string]int `json:"bySource"`
	AvgConfidence float64        `json:"avgConfidence"`
}

// Stats returns counts per predicate and source.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Total:       len(s.items),
		ByPredicate: make(map[string]int),
		BySource:    make(map[string]int),
	}
	subjects := make(map[string]struct{})
	var sum float64
	for i := range s.items {
		t := &s.items[i]
		st.ByPredicate[t.PredicateValue()]++
		st.BySource[t.Metadata.Source]++
		subjects[t.SubjectValue()] = struct{}{}
		sum += t.Metadata.Confidence
	}
	st.Subjects = len(subjects)
	if st.Total > 0 {
		st.AvgConfidence = sum / float64(st.Total)
	}
	return st
}

// Save writes a snapshot. A store without a snapshotter is a no-op.
func (s *Store) Save(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}
	all := s.ExportAll()
	if err := s.snap.Save(ctx, all); err != nil {
		return fmt.Errorf("save triples: %w", err)
	}
	s.logger.Info("Triple snapshot saved", zap.Int("count", len(all)))
	return nil
}

// Load merges the saved snapshot into the store.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.snap == nil {
		return 0, nil
	}
	saved, err := s.snap.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load triples: %w", err)
	}
	n := s.ImportAll(saved)
	s.logger.Info("Triple snapshot loaded",
		zap.Int("saved", len(saved)),
		zap.Int("imported", n),
	)
	return n, nil
}

func cloneTriple(t triple.Triple) triple.Triple {
	t.Metadata = t.Metadata.Clone()
	return t
}
