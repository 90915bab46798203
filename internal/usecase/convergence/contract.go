package convergence

import (
	"context"

	"github.com/kailas-cloud/consolidator/internal/domain"
)

// PointWriter persists enriched documents as vector points.
type PointWriter interface {
	Insert(ctx context.Context, points []domain.Point) error
}
