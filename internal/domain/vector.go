package domain

import (
	"context"

	"github.com/kailas-cloud/consolidator/internal/domain/search/filter"
)

// Point is a vector with its identifier and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit. Score is a similarity in [0, 1] for cosine stores.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// SearchOptions parameterizes a nearest-neighbor search.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float64
	Filter         filter.Expression
}

// ScrollRequest pages through stored points. Offset is an opaque cursor; empty starts from the beginning.
type ScrollRequest struct {
	Limit  int
	Offset string
	Filter filter.Expression
}

// ScrollPage is one page of a scroll. NextOffset is empty on the last page.
type ScrollPage struct {
	Points     []Point
	NextOffset string
}

// VectorStore persists points and answers similarity queries.
// Network failures surface as *BackendError.
type VectorStore interface {
	Insert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredPoint, error)
	Scroll(ctx context.Context, req ScrollRequest) (ScrollPage, error)
}

// PointDeleter is implemented by vector stores that can remove points.
type PointDeleter interface {
	Delete(ctx context.Context, ids []string) error
}

// PayloadString reads a string payload field.
func PayloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// PayloadFloat reads a numeric payload field. JSON numbers decode as float64.
func PayloadFloat(p map[string]any, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// PayloadStrings reads a string list payload field.
func PayloadStrings(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
