package chi

import (
	"net/http"

	dombatch "github.com/kailas-cloud/consolidator/internal/domain/batch"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// Extract handles POST /extract. Extracted triples are added to the store.
func (s *Server) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	var doc domdoc.Document
	switch {
	case req.Document != nil:
		doc = *req.Document
	case req.DocumentID != "":
		var err error
		if doc, err = s.svc.Documents.Get(r.Context(), req.DocumentID); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	default:
		validationError(w, "document or document_id is required")
		return
	}

	ts, err := s.svc.Extractor.ExtractFromDocument(r.Context(), &doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	stored := s.svc.Triples.AddTriples(ts)
	writeJSON(w, http.StatusOK, extractResponse{DocumentID: doc.ID, Triples: ts, Stored: stored})
}

// ExtractBatch handles POST /extract/batch. A failing document never fails the request.
func (s *Server) ExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if len(req.Documents) == 0 && len(req.DocumentIDs) == 0 {
		validationError(w, "documents or document_ids is required")
		return
	}
	if len(req.Documents) > maxBatchSize || len(req.DocumentIDs) > maxBatchSize {
		validationError(w, "batch size must not exceed %d", maxBatchSize)
		return
	}

	docs, err := s.resolveDocuments(r, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := s.svc.Extractor.ExtractFromDocuments(r.Context(), docs)
	stored := s.svc.Triples.AddTriples(out.Triples)

	resp := extractBatchResponse{
		Items:   make([]batchItem, len(out.Results)),
		Triples: len(out.Triples),
		Stored:  stored,
	}
	resp.Succeeded, resp.Failed = dombatch.Summary(out.Results)
	for i, res := range out.Results {
		item := batchItem{ID: res.ID(), Status: string(res.Status()), Triples: res.Triples()}
		if res.Err() != nil {
			item.Error = &ErrorResponse{Code: errorCode(res.Err()), Message: safeDomainMessage(res.Err())}
		}
		resp.Items[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

// AnalyzeConvergence handles POST /convergence.
func (s *Server) AnalyzeConvergence(w http.ResponseWriter, r *http.Request) {
	var req convergenceRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	docs, err := s.resolveDocuments(r, req.documentsRequest)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.svc.Analyzer.Analyze(r.Context(), docs, req.Options)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
