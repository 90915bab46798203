package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/consolidator/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestHashRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.HSet(ctx, "kc:doc:a", map[string]string{"name": "a.md"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if err := s.HSet(ctx, "kc:doc:a", map[string]string{"size": "10"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	m, err := s.HGetAll(ctx, "kc:doc:a")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if m["name"] != "a.md" || m["size"] != "10" {
		t.Errorf("unexpected hash: %v", m)
	}

	m["name"] = "mutated"
	again, _ := s.HGetAll(ctx, "kc:doc:a")
	if again["name"] != "a.md" {
		t.Error("HGetAll must return a copy")
	}
}

func TestHGetAll_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.HGetAll(context.Background(), "nope")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestScanAndDel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.HSetMulti(ctx, []db.HashSetItem{
		{Key: "kc:doc:b", Fields: map[string]string{"x": "1"}},
		{Key: "kc:doc:a", Fields: map[string]string{"x": "1"}},
		{Key: "kc:other", Fields: map[string]string{"x": "1"}},
	})

	keys, err := s.Scan(ctx, "kc:doc:*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "kc:doc:a" || keys[1] != "kc:doc:b" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := s.Del(ctx, "kc:doc:a"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	ok, _ := s.Exists(ctx, "kc:doc:a")
	if ok {
		t.Error("expected key to be deleted")
	}
}

func TestKV_TTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func TestKV_EvictsOldest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_ = s.Set(ctx, k, []byte(k))
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected a to be evicted, got %v", err)
	}
	if _, err := s.Get(ctx, "e"); err != nil {
		t.Errorf("expected e to be present: %v", err)
	}
}

func TestSearchUnsupported(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{})
	if !errors.Is(err, db.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
