// Package document persists documents as hashes in the KV database.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/consolidator/internal/db"
	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// backendName labels storage failures surfaced as domain.BackendError.
const backendName = "database"

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/document.Repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a document repository. Keys are "<prefix>doc:<id>".
func New(s store, keyPrefix string) *Repo {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: keyPrefix + "doc:"}
}

// Upsert creates or replaces a document. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, doc *domdoc.Document) (bool, error) {
	key := r.docKey(doc.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, db.Classify(backendName, err))
	}

	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, db.Classify(backendName, err))
	}

	return !exists, nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	key := r.docKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("hgetall %s: %w", key, db.Classify(backendName, err))
	}
	return parseHashFields(id, m), nil
}

// List returns documents ordered by ID with offset-cursor pagination.
// Documents deleted between SCAN and HGETALL are skipped.
func (r *Repo) List(ctx context.Context, cursor string, limit int) ([]domdoc.Document, string, error) {
	if limit <= 0 {
		limit = 20
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, domain.ErrInvalidSchema)
		}
		offset = parsed
	}

	ids, err := r.ids(ctx)
	if err != nil {
		return nil, "", err
	}
	if offset >= len(ids) {
		return nil, "", nil
	}

	end := min(offset+limit, len(ids))
	docs := make([]domdoc.Document, 0, end-offset)
	for _, id := range ids[offset:end] {
		doc, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		docs = append(docs, doc)
	}

	var nextCursor string
	if end < len(ids) {
		nextCursor = strconv.Itoa(end)
	}
	return docs, nextCursor, nil
}

// Count returns the number of stored documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.docKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, db.Classify(backendName, err))
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, db.Classify(backendName, err))
	}
	return nil
}

func (r *Repo) ids(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", db.Classify(backendName, err))
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, r.prefix))
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repo) docKey(id string) string {
	return r.prefix + id
}
