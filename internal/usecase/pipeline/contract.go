package pipeline

import (
	"context"

	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
)

// Extractor turns a document into triples.
type Extractor interface {
	ExtractFromDocument(ctx context.Context, doc *domdoc.Document) ([]triple.Triple, error)
	Invalidate(id string)
}

// TripleSink stores extracted triples. It returns the number of inserted triples.
type TripleSink interface {
	AddTriples(ts []triple.Triple) int
}

// Refiner reacts to document lifecycle changes.
type Refiner interface {
	OnDocumentAnalyzed(doc domdoc.Document) bool
	OnCategoriesChanged(docID string)
}

// Analyzer runs convergence analyses.
type Analyzer interface {
	Analyze(ctx context.Context, docs []domdoc.Document, opts convergence.Options) (*domconv.Result, error)
}
