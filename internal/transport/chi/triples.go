package chi

import (
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/usecase/triples"
)

// QueryTriples handles GET /triples.
func (s *Server) QueryTriples(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := triples.Filter{
		Subject:    q.Get("subject"),
		Predicates: q["predicate"],
		Object:     q.Get("object"),
		Source:     q.Get("source"),
	}
	if v := q.Get("min_confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil || c < 0 || c > 1 {
			validationError(w, "min_confidence must be a number within [0, 1]")
			return
		}
		f.MinConfidence = c
	}
	writeTriples(w, s.svc.Triples.Query(f))
}

// Relationships handles GET /documents/{id}/relationships.
func (s *Server) Relationships(w http.ResponseWriter, r *http.Request) {
	writeTriples(w, s.svc.Triples.Relationships(gochi.URLParam(r, "id")))
}

// ExportTriples handles GET /triples/export.
func (s *Server) ExportTriples(w http.ResponseWriter, _ *http.Request) {
	writeTriples(w, s.svc.Triples.ExportAll())
}

// TripleStats handles GET /triples/stats.
func (s *Server) TripleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Triples.Stats())
}

// ImportTriples handles POST /triples/import.
func (s *Server) ImportTriples(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	for i, t := range req.Triples {
		if t.SubjectValue() == "" || t.PredicateValue() == "" {
			validationError(w, "triple %d: subject and predicate are required", i)
			return
		}
	}
	writeJSON(w, http.StatusOK, countResponse{Count: s.svc.Triples.ImportAll(req.Triples)})
}

// InferTriples handles POST /triples/infer.
func (s *Server) InferTriples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countResponse{Count: s.svc.Triples.Infer()})
}

func writeTriples(w http.ResponseWriter, ts []triple.Triple) {
	if ts == nil {
		ts = []triple.Triple{}
	}
	writeJSON(w, http.StatusOK, listResponse[triple.Triple]{Items: ts, Total: len(ts)})
}
