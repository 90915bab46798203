package points

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/kailas-cloud/consolidator/internal/domain"
)

// MemoryStore is an in-memory vector store using brute-force cosine similarity.
// Points keep insertion order; re-inserting an ID replaces it in place.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	points    map[string]domain.Point
}

// NewMemoryStore creates an empty store. dimension <= 0 disables the dimension check.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension, points: make(map[string]domain.Point)}
}

// Insert upserts points.
func (s *MemoryStore) Insert(_ context.Context, points []domain.Point) error {
	for _, p := range points {
		if s.dimension > 0 && len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s: %w: got %d, want %d",
				p.ID, domain.ErrVectorDimMismatch, len(p.Vector), s.dimension)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if _, ok := s.points[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.points[p.ID] = domain.Point{
			ID:      p.ID,
			Vector:  slices.Clone(p.Vector),
			Payload: maps.Clone(p.Payload),
		}
	}
	return nil
}

// Search scores every point matching the filter and returns the best Limit hits.
func (s *MemoryStore) Search(_ context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredPoint, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	hits := make([]domain.ScoredPoint, 0, len(s.order))
	for _, id := range s.order {
		p := s.points[id]
		if !opts.Filter.Matches(p.Payload) {
			continue
		}
		score := domain.CosineSimilarity(vector, p.Vector)
		if score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, domain.ScoredPoint{ID: id, Score: score, Payload: maps.Clone(p.Payload)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Scroll pages through matching points in insertion order.
// The offset cursor is the position in insertion order to resume from.
func (s *MemoryStore) Scroll(_ context.Context, req domain.ScrollRequest) (domain.ScrollPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if req.Offset != "" {
		n, err := strconv.Atoi(req.Offset)
		if err != nil || n < 0 {
			return domain.ScrollPage{}, fmt.Errorf("invalid scroll offset %q: %w", req.Offset, domain.ErrInvalidSchema)
		}
		start = n
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var page domain.ScrollPage
	for i := start; i < len(s.order); i++ {
		p := s.points[s.order[i]]
		if !req.Filter.Matches(p.Payload) {
			continue
		}
		if len(page.Points) == limit {
			page.NextOffset = strconv.Itoa(i)
			break
		}
		page.Points = append(page.Points, domain.Point{
			ID:      p.ID,
			Vector:  slices.Clone(p.Vector),
			Payload: maps.Clone(p.Payload),
		})
	}
	return page, nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.points[id]; !ok {
			continue
		}
		delete(s.points, id)
		s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	}
	return nil
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
