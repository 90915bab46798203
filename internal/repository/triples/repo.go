// Package triples persists triple store snapshots in the KV database.
package triples

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/consolidator/internal/db"
	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// snapshotVersion guards against decoding snapshots written by an incompatible layout.
const snapshotVersion = 1

// store is the consumer interface for snapshots (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type snapshot struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Triples []triple.Triple `json:"triples"`
}

// Repo implements usecase/triples.Snapshotter.
type Repo struct {
	store store
	key   string
	now   func() time.Time
}

// New creates a snapshot repository stored at "<prefix>triples:snapshot".
func New(s store, keyPrefix string) *Repo {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &Repo{store: s, key: keyPrefix + "triples:snapshot", now: time.Now}
}

// Save overwrites the snapshot with the given triples.
func (r *Repo) Save(ctx context.Context, triples []triple.Triple) error {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, SavedAt: r.now().UTC(), Triples: triples})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("set %s: %w", r.key, db.Classify("database", err))
	}
	return nil
}

// Load returns the saved triples. A missing snapshot yields an empty slice.
func (r *Repo) Load(ctx context.Context) ([]triple.Triple, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", r.key, db.Classify("database", err))
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d: %w", snap.Version, domain.ErrInvalidSchema)
	}
	return snap.Triples, nil
}
