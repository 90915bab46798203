// Package memory is an in-process db.Store driver for local runs and tests.
// FT index and search commands are not available and return db.ErrUnsupported.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/consolidator/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultKVCapacity bounds the number of plain KV entries kept in memory.
const DefaultKVCapacity = 10_000

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e kvEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store keeps hashes in a map and KV entries in a bounded LRU.
type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	kv     *lru.Cache[string, kvEntry]
	now    func() time.Time
}

// NewStore creates an in-memory store. kvCapacity <= 0 uses DefaultKVCapacity.
func NewStore(kvCapacity int) (*Store, error) {
	if kvCapacity <= 0 {
		kvCapacity = DefaultKVCapacity
	}
	kv, err := lru.New[string, kvEntry](kvCapacity)
	if err != nil {
		return nil, fmt.Errorf("create kv cache: %w", err)
	}
	return &Store{
		hashes: make(map[string]map[string]string),
		kv:     kv,
		now:    time.Now,
	}, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all data.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes = make(map[string]map[string]string)
	s.kv.Purge()
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hsetLocked(key, fields)
	return nil
}

// HSetMulti applies several HSet calls under one lock.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.hsetLocked(item.Key, item.Fields)
	}
	return nil
}

func (s *Store) hsetLocked(key string, fields map[string]string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

// HGetAll returns a copy of the hash. A missing key yields db.ErrKeyNotFound.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

// Del removes a hash or KV entry.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	s.kv.Remove(key)
	return nil
}

// Exists reports whether a hash or live KV entry exists at key.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.hashes[key]
	s.mu.RUnlock()
	if ok {
		return true, nil
	}
	e, ok := s.kv.Get(key)
	return ok && !e.expired(s.now()), nil
}

// Scan returns hash keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.hashes {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Key: pattern, Err: err}
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns a KV value; expired entries are evicted lazily.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.kv.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if e.expired(s.now()) {
		s.kv.Remove(key)
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a KV value without expiration.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a KV value; ttl <= 0 means no expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.kv.Add(key, e)
	return nil
}

// CreateIndex is not supported in memory.
func (s *Store) CreateIndex(context.Context, *db.IndexDefinition) error {
	return &db.Error{Op: db.OpCreateIndex, Err: db.ErrUnsupported}
}

// IndexExists is not supported in memory.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	return false, &db.Error{Op: db.OpIndexInfo, Key: name, Err: db.ErrUnsupported}
}

// SearchKNN is not supported in memory.
func (s *Store) SearchKNN(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
	return nil, &db.Error{Op: db.OpSearch, Err: db.ErrUnsupported}
}

// SearchList is not supported in memory.
func (s *Store) SearchList(context.Context, string, string, int, int, []string) (*db.SearchResult, error) {
	return nil, &db.Error{Op: db.OpSearch, Err: db.ErrUnsupported}
}
