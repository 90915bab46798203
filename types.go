package consolidator

import (
	dombatch "github.com/kailas-cloud/consolidator/internal/domain/batch"
	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
	"github.com/kailas-cloud/consolidator/internal/usecase/refinement"
	"github.com/kailas-cloud/consolidator/internal/usecase/triples"
)

// Documents and triples.
type (
	Document       = domdoc.Document
	Triple         = triple.Triple
	TripleMetadata = triple.Metadata
	TripleFilter   = triples.Filter
	TripleStats    = triples.Stats
	BatchResult    = dombatch.Result
)

// Convergence analysis.
type (
	ConvergenceOptions = convergence.Options
	ConvergenceResult  = domconv.Result
)

// Refinement.
type (
	RefinementOptions = refinement.Options
	QueueOptions      = refinement.QueueOptions
	Process           = domref.Process
	StatusReport      = domref.StatusReport
)

// Lifecycle events.
type (
	Event     = event.Event
	EventName = event.Name
)

// Event names.
const (
	EventRefinementQueued    = event.RefinementQueued
	EventRefinementStarted   = event.RefinementStarted
	EventRefinementCompleted = event.RefinementCompleted
	EventRefinementError     = event.RefinementError
	EventRefinementStopped   = event.RefinementStopped
	EventTriplesExtracted    = event.TriplesExtracted
	EventInsightsGenerated   = event.InsightsGenerated
)

// ExtractionOutput is the outcome of a batch extraction.
// Results holds one entry per input document, in input order.
type ExtractionOutput struct {
	Triples []Triple
	Results []BatchResult
	Stored  int
}
