// Package points implements domain.VectorStore over the Redis FT index and in memory.
package points

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/consolidator/internal/db"
	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/domain/search/filter"
)

// Hash fields of a stored point. Indexed fields mirror payload keys so
// payload filters translate to FT pre-filters without renaming.
const (
	fieldVector     = "vector"
	fieldPayload    = "payload"
	fieldDocumentID = "documentId"
	fieldCategories = "categories"
	fieldType       = "analysisType"
	fieldConfidence = "analysisConfidence"
)

var indexedFields = map[string]bool{
	fieldDocumentID: true,
	fieldCategories: true,
	fieldType:       true,
	fieldConfidence: true,
}

// store is the consumer interface for the redis vector store (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW index tuning parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// RedisStore keeps points as hashes under "<prefix>point:" with an HNSW cosine FT index.
type RedisStore struct {
	store     store
	prefix    string
	index     string
	dimension int
	hnsw      HNSWConfig
}

// NewRedisStore creates a vector store over the KV database.
func NewRedisStore(s store, keyPrefix string, dimension int, hnsw HNSWConfig) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &RedisStore{
		store:     s,
		prefix:    keyPrefix + "point:",
		index:     keyPrefix + "points:idx",
		dimension: dimension,
		hnsw:      hnsw,
	}
}

// EnsureIndex creates the FT index unless it already exists.
func (r *RedisStore) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return backendError(err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, r.indexDefinition()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return backendError(err)
	}
	return nil
}

func (r *RedisStore) indexDefinition() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:   r.index,
		Prefix: r.prefix,
		Fields: []db.IndexField{
			db.TagField(fieldDocumentID, ""),
			db.TagField(fieldCategories, ","),
			db.TagField(fieldType, "|"),
			db.NumericField(fieldConfidence),
			db.VectorField(fieldVector, r.dimension, r.hnsw.M, r.hnsw.EFConstruct),
		},
	}
}

// Insert upserts points in one pipelined round trip.
func (r *RedisStore) Insert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(points))
	for _, p := range points {
		if r.dimension > 0 && len(p.Vector) != r.dimension {
			return fmt.Errorf("point %s: %w: got %d, want %d",
				p.ID, domain.ErrVectorDimMismatch, len(p.Vector), r.dimension)
		}
		fields, err := buildPointFields(p)
		if err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		items = append(items, db.HashSetItem{Key: r.prefix + p.ID, Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return backendError(err)
	}
	return nil
}

// Delete removes point hashes; the FT index drops them on its own.
func (r *RedisStore) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := r.store.Del(ctx, r.prefix+id); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
			return backendError(err)
		}
	}
	return nil
}

// Search runs a KNN query with the filter applied as an FT pre-filter.
// Hits below ScoreThreshold are discarded.
func (r *RedisStore) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredPoint, error) {
	if err := checkFilterKeys(opts); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Index:  r.index,
		Filter: opts.Filter,
		Vector: vector,
		K:      limit,
		Fields: []string{fieldPayload},
	})
	if err != nil {
		return nil, backendError(err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]domain.ScoredPoint, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, domain.ScoredPoint{
			ID:      strings.TrimPrefix(e.Key, r.prefix),
			Score:   e.Score,
			Payload: decodePayload(e.Fields[fieldPayload]),
		})
	}
	return hits, nil
}

// Scroll pages through points with a numeric offset cursor. The filter is
// evaluated on payloads after fetching, so a page may hold fewer than Limit points.
func (r *RedisStore) Scroll(ctx context.Context, req domain.ScrollRequest) (domain.ScrollPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := 0
	if req.Offset != "" {
		n, err := strconv.Atoi(req.Offset)
		if err != nil || n < 0 {
			return domain.ScrollPage{}, fmt.Errorf("invalid scroll offset %q: %w", req.Offset, domain.ErrInvalidSchema)
		}
		offset = n
	}

	sr, err := r.store.SearchList(ctx, r.index, "*", offset, limit, []string{fieldPayload, fieldVector})
	if err != nil {
		return domain.ScrollPage{}, backendError(err)
	}
	if sr == nil {
		return domain.ScrollPage{}, nil
	}

	page := domain.ScrollPage{Points: make([]domain.Point, 0, len(sr.Entries))}
	for _, e := range sr.Entries {
		payload := decodePayload(e.Fields[fieldPayload])
		if !req.Filter.Matches(payload) {
			continue
		}
		page.Points = append(page.Points, domain.Point{
			ID:      strings.TrimPrefix(e.Key, r.prefix),
			Vector:  bytesToVector(e.Fields[fieldVector]),
			Payload: payload,
		})
	}
	if next := offset + len(sr.Entries); len(sr.Entries) == limit && next < sr.Total {
		page.NextOffset = strconv.Itoa(next)
	}
	return page, nil
}

func checkFilterKeys(opts domain.SearchOptions) error {
	f := opts.Filter
	for _, group := range [][]string{keysOf(f.Must()), keysOf(f.Should()), keysOf(f.MustNot())} {
		for _, k := range group {
			if !indexedFields[k] {
				return fmt.Errorf("filter on non-indexed field %q: %w", k, domain.ErrInvalidSchema)
			}
		}
	}
	return nil
}

func keysOf(conds []filter.Condition) []string {
	keys := make([]string, 0, len(conds))
	for _, c := range conds {
		keys = append(keys, c.Key())
	}
	return keys
}

// buildPointFields flattens a point into hash fields. The full payload is kept
// as JSON; indexed keys are duplicated as top-level fields.
func buildPointFields(p domain.Point) (map[string]string, error) {
	data, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	fields := map[string]string{
		fieldVector:  vectorToBytes(p.Vector),
		fieldPayload: string(data),
	}
	if v := domain.PayloadString(p.Payload, fieldDocumentID); v != "" {
		fields[fieldDocumentID] = v
	}
	if cats := domain.PayloadStrings(p.Payload, fieldCategories); len(cats) > 0 {
		fields[fieldCategories] = strings.Join(cats, ",")
	}
	if v := domain.PayloadString(p.Payload, fieldType); v != "" {
		fields[fieldType] = v
	}
	if v, ok := domain.PayloadFloat(p.Payload, fieldConfidence); ok {
		fields[fieldConfidence] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fields, nil
}

func decodePayload(s string) map[string]any {
	if s == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func backendError(err error) error { return db.Classify("redis", err) }

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
