package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/consolidator/internal/domain"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeDocumentNotFound       ErrorCode = "document_not_found"
	CodeNotFound               ErrorCode = "not_found"
	CodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	CodeRefinementActive       ErrorCode = "refinement_active"
	CodeRefinementNotActive    ErrorCode = "refinement_not_active"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeBackendTimeout         ErrorCode = "backend_timeout"
	CodeBackendUnavailable     ErrorCode = "backend_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers is ordered: a timeout also matches ErrBackendUnavailable.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrRefinementNotActive, http.StatusNotFound, CodeRefinementNotActive),
		sentinelHandler(domain.ErrRefinementActive, http.StatusConflict, CodeRefinementActive),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrBackendTimeout, http.StatusGatewayTimeout, CodeBackendTimeout),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrRefinementNotActive,
		domain.ErrRefinementActive,
		domain.ErrVectorDimMismatch,
		domain.ErrInvalidSchema,
		domain.ErrEmbeddingProviderError,
		domain.ErrBackendTimeout,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// errorCode classifies an error for per-item batch results.
func errorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return CodeDocumentNotFound
	case errors.Is(err, domain.ErrInvalidSchema):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return CodeEmbeddingProviderError
	case errors.Is(err, domain.ErrBackendTimeout):
		return CodeBackendTimeout
	case errors.Is(err, domain.ErrBackendUnavailable):
		return CodeBackendUnavailable
	default:
		return CodeInternalError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
