package triples

import (
	"context"

	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// Snapshotter persists the full triple set.
type Snapshotter interface {
	Save(ctx context.Context, triples []triple.Triple) error
	Load(ctx context.Context) ([]triple.Triple, error)
}
