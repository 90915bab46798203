// Package document is the document registry: storage, vector indexing and
// lifecycle notifications.
package document

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// Service handles document CRUD with automatic vectorization.
type Service struct {
	repo            Repository
	points          PointStore
	embedder        Embedder
	notifier        Notifier
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
	logger          *zap.Logger
	locks           docLocks
}

// New creates a document service. notifier may be nil.
func New(repo Repository, points PointStore, embedder Embedder, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:            repo,
		points:          points,
		embedder:        embedder,
		notifier:        notifier,
		defaultPageSize: 20,
		maxPageSize:     100,
		now:             time.Now,
		logger:          logger,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithNotifier sets the lifecycle notifier. Call before the service is shared.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Put stores a document and indexes its vector point.
// A missing ID is generated. Returns true if the document was created.
func (s *Service) Put(ctx context.Context, doc *domdoc.Document) (bool, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Categories = normalizeCategories(doc.Categories)
	if err := doc.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return false, fmt.Errorf("document name is required: %w", domain.ErrInvalidSchema)
	}

	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.ModifiedAt.IsZero() {
		doc.ModifiedAt = now
	}
	if doc.Size == 0 {
		doc.Size = int64(len(doc.Content))
	}
	doc.Analyzed = true

	created, err := s.store(ctx, doc)
	if err != nil {
		return false, err
	}

	if s.notifier != nil {
		if err := s.notifier.DocumentAnalyzed(ctx, doc.Clone()); err != nil {
			s.logger.Warn("Document analyzed notification dropped",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
		}
	}
	return created, nil
}

// Get retrieves a document by ID.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns a paginated list of documents.
func (s *Service) List(ctx context.Context, cursor string, limit int) ([]domdoc.Document, string, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	docs, nextCursor, err := s.repo.List(ctx, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	return docs, nextCursor, nil
}

// All returns every stored document, walking the pages.
func (s *Service) All(ctx context.Context) ([]domdoc.Document, error) {
	var out []domdoc.Document
	cursor := ""
	for {
		docs, next, err := s.repo.List(ctx, cursor, s.maxPageSize)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out = append(out, docs...)
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

// GetMany loads documents by ID, preserving order.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]domdoc.Document, error) {
	out := make([]domdoc.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// Delete removes a document and its vector point.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.points.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete point: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// SetCategories replaces the curated categories of a document.
func (s *Service) SetCategories(ctx context.Context, id string, categories []string) (domdoc.Document, error) {
	unlock := s.locks.lock(id)
	doc, err := s.Get(ctx, id)
	if err == nil {
		doc.Categories = normalizeCategories(categories)
		doc.ModifiedAt = s.now().UTC()
		_, err = s.indexAndUpsert(ctx, &doc)
	}
	unlock()
	if err != nil {
		return domdoc.Document{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.CategoriesChanged(ctx, id); err != nil {
			s.logger.Warn("Categories changed notification dropped",
				zap.String("document_id", id),
				zap.Error(err),
			)
		}
	}
	return doc, nil
}

// UpdateAnalysis writes a refinement outcome back to the current stored record.
// Only the analysis fields change, so concurrent curated edits survive.
// It emits no notification, so refinement write-back does not re-trigger itself.
func (s *Service) UpdateAnalysis(ctx context.Context, id string, a domdoc.Analysis) (domdoc.Document, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, err
	}
	doc.ApplyAnalysis(a)
	if _, err := s.indexAndUpsert(ctx, &doc); err != nil {
		return domdoc.Document{}, err
	}
	return doc, nil
}

func (s *Service) store(ctx context.Context, doc *domdoc.Document) (bool, error) {
	unlock := s.locks.lock(doc.ID)
	defer unlock()
	return s.indexAndUpsert(ctx, doc)
}

func (s *Service) indexAndUpsert(ctx context.Context, doc *domdoc.Document) (bool, error) {
	if err := s.index(ctx, doc); err != nil {
		return false, err
	}
	created, err := s.repo.Upsert(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}
	return created, nil
}

func (s *Service) index(ctx context.Context, doc *domdoc.Document) error {
	res, err := s.embedder.Embed(ctx, doc.EmbeddingText())
	if err != nil {
		return fmt.Errorf("vectorize document: %w", err)
	}
	if len(res.Embedding) == 0 {
		return fmt.Errorf("vectorize document: empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	point := domain.Point{ID: doc.ID, Vector: res.Embedding, Payload: doc.Payload()}
	if err := s.points.Insert(ctx, []domain.Point{point}); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}

// normalizeCategories trims, drops empties and removes duplicates keeping first occurrence.
func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
