package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
)

// StartRefinement handles POST /refinements/{id}.
// An already active process is returned with 409.
func (s *Server) StartRefinement(w http.ResponseWriter, r *http.Request) {
	var req refinementRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	p, started, err := s.svc.Refinements.Start(gochi.URLParam(r, "id"), req.Options)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	writeJSON(w, status, startRefinementResponse{Process: p, Started: started})
}

// QueueRefinement handles POST /refinements/{id}/queue.
func (s *Server) QueueRefinement(w http.ResponseWriter, r *http.Request) {
	var req refinementRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	id := gochi.URLParam(r, "id")
	queued, err := s.svc.Refinements.Request(id, req.Options)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queueRefinementResponse{DocumentID: id, Queued: queued})
}

// StopRefinement handles DELETE /refinements/{id}.
func (s *Server) StopRefinement(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Refinements.Stop(gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RefinementStatus handles GET /refinements.
func (s *Server) RefinementStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Refinements.Status())
}
