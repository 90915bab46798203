package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidSchema signals a malformed request or document.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrExtraction signals that triple extraction failed for one document.
	ErrExtraction = errors.New("extraction failed")
	// ErrBackendUnavailable signals an embedding or vector store failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendTimeout signals a backend call that exceeded its deadline.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")

	// ErrRefinementActive signals that a refinement is already running for the document.
	ErrRefinementActive = errors.New("refinement already active")
	// ErrRefinementProcess signals that a refinement iteration failed.
	ErrRefinementProcess = errors.New("refinement process error")
	// ErrRefinementNotActive signals a stop for a document without an active refinement.
	ErrRefinementNotActive = errors.New("refinement not active")
)

// BackendKind classifies a backend failure.
type BackendKind string

// Backend failure kinds.
const (
	BackendConnection BackendKind = "connection"
	BackendTimeout    BackendKind = "timeout"
	BackendServer     BackendKind = "server"
)

// BackendError is a typed failure of an external collaborator (embedding provider, vector store).
// It matches ErrBackendUnavailable and, for timeouts, ErrBackendTimeout.
type BackendError struct {
	Backend    string
	Kind       BackendKind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() []error {
	errs := []error{ErrBackendUnavailable}
	if e.Kind == BackendTimeout {
		errs = append(errs, ErrBackendTimeout)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewBackendError creates a typed backend error.
func NewBackendError(backend string, kind BackendKind, status int, err error) error {
	return &BackendError{Backend: backend, Kind: kind, StatusCode: status, Err: err}
}

// ExtractionError wraps a per-document extraction failure.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: document %s: %v", ErrExtraction.Error(), e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// RefinementError wraps a failed refinement iteration for one document.
type RefinementError struct {
	DocumentID string
	Iteration  int
	Err        error
}

func (e *RefinementError) Error() string {
	return fmt.Sprintf("%s: document %s iteration %d: %v",
		ErrRefinementProcess.Error(), e.DocumentID, e.Iteration, e.Err)
}

func (e *RefinementError) Unwrap() []error { return []error{ErrRefinementProcess, e.Err} }
