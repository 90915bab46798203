package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/consolidator/internal/db"
)

func (s *Store) hset(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// HSet merges fields into the hash at key.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hset(key, fields)).Error(); err != nil {
		return fail(db.OpHSet, key, err)
	}
	return nil
}

// HSetMulti pipelines one HSET per item and reports the first failing key.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	cmds := make([]rueidis.Completed, 0, len(items))
	for _, it := range items {
		cmds = append(cmds, s.hset(it.Key, it.Fields))
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fail(db.OpHSet, items[i].Key, err)
		}
	}
	return nil
}

// HGetAll returns the hash at key, or db.ErrKeyNotFound when it is absent.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	switch {
	case err != nil:
		return nil, fail(db.OpHGetAll, key, err)
	case len(m) == 0:
		return nil, db.ErrKeyNotFound
	}
	return m, nil
}

// Del removes key. Deleting an absent key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return fail(db.OpDel, key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fail(db.OpExists, key, err)
	}
	return n > 0, nil
}

// Scan walks the keyspace with SCAN MATCH pattern. Keys reported twice by
// the cursor are returned once.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(s.scanCount).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fail(db.OpScan, pattern, err)
		}
		for _, k := range page.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
