package chi

import (
	"fmt"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"

	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// PutDocument handles POST /documents.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	var doc domdoc.Document
	if !decodeBody(w, r, &doc, false) {
		return
	}

	created, err := s.svc.Documents.Put(r.Context(), &doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/documents/%s", doc.ID))
	}
	writeJSON(w, status, putDocumentResponse{Document: doc, Created: created})
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			validationError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	docs, next, err := s.svc.Documents.List(r.Context(), q.Get("cursor"), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domdoc.Document{}
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: docs, HasMore: next != "", NextCursor: next})
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Documents.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Documents.Delete(r.Context(), gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCategories handles PUT /documents/{id}/categories.
func (s *Server) SetCategories(w http.ResponseWriter, r *http.Request) {
	var req categoriesRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	doc, err := s.svc.Documents.SetCategories(r.Context(), gochi.URLParam(r, "id"), req.Categories)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// resolveDocuments returns inline documents or loads them by id. Neither means every document.
func (s *Server) resolveDocuments(r *http.Request, req documentsRequest) ([]domdoc.Document, error) {
	switch {
	case len(req.Documents) > 0:
		return req.Documents, nil
	case len(req.DocumentIDs) > 0:
		return s.svc.Documents.GetMany(r.Context(), req.DocumentIDs)
	default:
		return s.svc.Documents.All(r.Context())
	}
}
