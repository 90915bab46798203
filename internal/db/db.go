// Package db declares the storage contracts shared by the redis and memory drivers.
// Documents live in hashes, the triple snapshot and embedding cache in plain keys,
// and vector points in an FT index that only the redis driver provides.
package db

import (
	"context"
	"time"
)

// Store is everything a driver offers. Repositories depend on the narrow
// sub-interfaces or on their own consumer interfaces.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one key and its fields in a pipelined write.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore holds documents and points as field maps.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scan lists keys matching a glob pattern in no particular order.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore holds opaque blobs. A missing key yields ErrKeyNotFound.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager creates the point index. Indexes are never dropped by the service.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher queries an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*SearchResult, error)
}
