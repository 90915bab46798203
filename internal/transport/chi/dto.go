package chi

import (
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
	"github.com/kailas-cloud/consolidator/internal/usecase/refinement"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type documentListResponse struct {
	Items      []domdoc.Document `json:"items"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type putDocumentResponse struct {
	Document domdoc.Document `json:"document"`
	Created  bool            `json:"created"`
}

type categoriesRequest struct {
	Categories []string `json:"categories"`
}

// documentsRequest selects documents by id or carries them inline.
type documentsRequest struct {
	DocumentIDs []string          `json:"document_ids,omitempty"`
	Documents   []domdoc.Document `json:"documents,omitempty"`
}

type extractRequest struct {
	DocumentID string           `json:"document_id,omitempty"`
	Document   *domdoc.Document `json:"document,omitempty"`
}

type extractResponse struct {
	DocumentID string          `json:"document_id"`
	Triples    []triple.Triple `json:"triples"`
	Stored     int             `json:"stored"`
}

type batchItem struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Triples int            `json:"triples"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

type extractBatchResponse struct {
	Items     []batchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Triples   int         `json:"triples"`
	Stored    int         `json:"stored"`
}

type importRequest struct {
	Triples []triple.Triple `json:"triples"`
}

type countResponse struct {
	Count int `json:"count"`
}

type convergenceRequest struct {
	documentsRequest
	Options convergence.Options `json:"options"`
}

type refinementRequest struct {
	Options refinement.Options `json:"options"`
}

type startRefinementResponse struct {
	Process domref.Process `json:"process"`
	Started bool           `json:"started"`
}

type queueRefinementResponse struct {
	DocumentID string `json:"document_id"`
	Queued     bool   `json:"queued"`
}
