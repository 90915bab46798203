// Package chi exposes the consolidator over HTTP with a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	logpkg "github.com/kailas-cloud/consolidator/internal/logger"
	healthuc "github.com/kailas-cloud/consolidator/internal/usecase/health"
)

// maxBatchSize bounds batch extraction and convergence requests by id.
const maxBatchSize = 500

// Services are the use cases served over HTTP. Events may be nil.
type Services struct {
	Documents   Documents
	Extractor   Extractor
	Triples     TripleStore
	Analyzer    Analyzer
	Refinements Refinements
	Events      Subscriber
	Reports     Reporter
	Health      HealthChecker
	Categories  domain.CategoryProvider
}

// Server holds HTTP handlers.
type Server struct {
	svc           Services
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, logger: logger, errorHandlers: defaultErrorHandlers()}
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r gochi.Router) {
	r.Route("/documents", func(r gochi.Router) {
		r.Post("/", s.PutDocument)
		r.Get("/", s.ListDocuments)
		r.Get("/{id}", s.GetDocument)
		r.Delete("/{id}", s.DeleteDocument)
		r.Put("/{id}/categories", s.SetCategories)
		r.Get("/{id}/relationships", s.Relationships)
	})

	r.Post("/extract", s.Extract)
	r.Post("/extract/batch", s.ExtractBatch)

	r.Route("/triples", func(r gochi.Router) {
		r.Get("/", s.QueryTriples)
		r.Get("/stats", s.TripleStats)
		r.Get("/export", s.ExportTriples)
		r.Post("/import", s.ImportTriples)
		r.Post("/infer", s.InferTriples)
	})

	r.Post("/convergence", s.AnalyzeConvergence)

	r.Route("/refinements", func(r gochi.Router) {
		r.Get("/", s.RefinementStatus)
		r.Post("/{id}", s.StartRefinement)
		r.Post("/{id}/queue", s.QueueRefinement)
		r.Delete("/{id}", s.StopRefinement)
	})

	r.Get("/events", s.Events)
	r.Get("/report", s.Report)
	r.Get("/categories", s.ListCategories)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
}

// Handler returns a router with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	s.Routes(r)
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// ListCategories handles GET /categories.
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	if s.svc.Categories == nil {
		writeJSON(w, http.StatusOK, listResponse[domain.Category]{Items: []domain.Category{}})
		return
	}
	cats, err := s.svc.Categories.Categories(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Category]{Items: cats, Total: len(cats)})
}

// Report handles GET /report.
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Reports.Build(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// decodeBody decodes a JSON body. An empty body leaves v untouched when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
	return false
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// requestLogger prefers the request-scoped logger installed by the access log middleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func validationError(w http.ResponseWriter, format string, args ...any) {
	writeError(w, http.StatusBadRequest, CodeValidationFailed, fmt.Sprintf(format, args...))
}
