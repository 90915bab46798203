package report

import (
	"context"

	"github.com/kailas-cloud/consolidator/internal/domain"
)

// Scroller pages through every stored point.
type Scroller interface {
	Scroll(ctx context.Context, req domain.ScrollRequest) (domain.ScrollPage, error)
}
