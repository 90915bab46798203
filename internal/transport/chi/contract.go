package chi

import (
	"context"

	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
	"github.com/kailas-cloud/consolidator/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/consolidator/internal/usecase/health"
	"github.com/kailas-cloud/consolidator/internal/usecase/refinement"
	"github.com/kailas-cloud/consolidator/internal/usecase/report"
	"github.com/kailas-cloud/consolidator/internal/usecase/triples"
)

// Documents is the document registry.
type Documents interface {
	Put(ctx context.Context, doc *domdoc.Document) (bool, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	GetMany(ctx context.Context, ids []string) ([]domdoc.Document, error)
	All(ctx context.Context) ([]domdoc.Document, error)
	List(ctx context.Context, cursor string, limit int) ([]domdoc.Document, string, error)
	Delete(ctx context.Context, id string) error
	SetCategories(ctx context.Context, id string, categories []string) (domdoc.Document, error)
}

// Extractor produces triples from documents.
type Extractor interface {
	ExtractFromDocument(ctx context.Context, doc *domdoc.Document) ([]triple.Triple, error)
	ExtractFromDocuments(ctx context.Context, docs []domdoc.Document) extraction.BatchOutput
}

// TripleStore answers triple queries.
type TripleStore interface {
	AddTriples(ts []triple.Triple) int
	Query(f triples.Filter) []triple.Triple
	ExportAll() []triple.Triple
	ImportAll(ts []triple.Triple) int
	Infer() int
	Relationships(docID string) []triple.Triple
	Stats() triples.Stats
}

// Analyzer runs convergence analyses.
type Analyzer interface {
	Analyze(ctx context.Context, docs []domdoc.Document, opts convergence.Options) (*domconv.Result, error)
}

// Refinements controls refinement processes.
type Refinements interface {
	Start(docID string, opts refinement.Options) (domref.Process, bool, error)
	Request(docID string, opts refinement.Options) (bool, error)
	Stop(docID string) (domref.Process, error)
	Status() domref.StatusReport
}

// Subscriber streams lifecycle events.
type Subscriber interface {
	Subscribe(buffer int) (<-chan event.Event, func())
}

// Reporter builds corpus reports.
type Reporter interface {
	Build(ctx context.Context) (report.Report, error)
}

// HealthChecker aggregates backend health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
