package document

import (
	"context"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// Repository defines the storage contract for documents.
type Repository interface {
	Upsert(ctx context.Context, doc *domdoc.Document) (created bool, err error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	List(ctx context.Context, cursor string, limit int) (docs []domdoc.Document, nextCursor string, err error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// PointStore keeps one vector point per document.
type PointStore interface {
	Insert(ctx context.Context, points []domain.Point) error
	Delete(ctx context.Context, ids []string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Notifier receives document lifecycle changes.
type Notifier interface {
	DocumentAnalyzed(ctx context.Context, doc domdoc.Document) error
	CategoriesChanged(ctx context.Context, docID string) error
}
