package consolidator

import "github.com/kailas-cloud/consolidator/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrInvalidSchema          = domain.ErrInvalidSchema
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrExtraction             = domain.ErrExtraction
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrBackendTimeout         = domain.ErrBackendTimeout
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrRefinementActive       = domain.ErrRefinementActive
	ErrRefinementProcess      = domain.ErrRefinementProcess
	ErrRefinementNotActive    = domain.ErrRefinementNotActive
)

// Typed errors carrying the failing document or backend.
type (
	BackendError    = domain.BackendError
	ExtractionError = domain.ExtractionError
	RefinementError = domain.RefinementError
)
