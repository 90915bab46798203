package refinement

import (
	"context"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// DocumentStore reads documents and applies refinement write-back.
// Get returns domain.ErrDocumentNotFound for unknown ids. UpdateAnalysis changes
// only the analysis fields of the current stored record.
type DocumentStore interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
	UpdateAnalysis(ctx context.Context, id string, a domdoc.Analysis) (domdoc.Document, error)
}

// NeighborSearcher finds similar documents in the vector store.
type NeighborSearcher interface {
	Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredPoint, error)
}

// TripleSource exposes the triples known for a document.
type TripleSource interface {
	Relationships(docID string) []triple.Triple
}

// Signal is a detector-supplied context contribution.
type Signal struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// SignalDetector contributes extra context signals for a document.
type SignalDetector interface {
	Detect(ctx context.Context, doc *domdoc.Document) []Signal
}

// ConvergenceCalculator can declare a process converged before the built-in check.
type ConvergenceCalculator interface {
	Converged(p domref.Process) bool
}
