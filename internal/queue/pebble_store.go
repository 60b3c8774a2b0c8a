package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

var pebbleSnapshotKey = []byte("queue/snapshot")

// PebbleStore keeps the encoded snapshot under a single key. Each save is a
// synced single-key write, which pebble applies atomically.
type PebbleStore struct {
	db   *pebble.DB
	path string
}

// OpenPebble opens or creates a pebble database in dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &PebbleStore{db: db, path: dir}, nil
}

// Location returns the database directory.
func (s *PebbleStore) Location() string { return s.path }

// Save writes the snapshot with a synced set.
func (s *PebbleStore) Save(ctx context.Context, snapshot Snapshot) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return persistenceError("save snapshot", err)
	}
	snapshot.SavedAt = time.Now().UTC()
	data, err := MarshalSnapshot(snapshot)
	if err != nil {
		return persistenceError("save snapshot", err)
	}
	if err := s.db.Set(pebbleSnapshotKey, data, pebble.Sync); err != nil {
		return persistenceError("save snapshot", err)
	}
	return nil
}

// Load reads the snapshot key. A missing key returns ErrNotFound.
func (s *PebbleStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	value, closer, err := s.db.Get(pebbleSnapshotKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	data := append([]byte(nil), value...)
	if err := closer.Close(); err != nil {
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	snapshot, err := UnmarshalSnapshot(data)
	if err != nil {
		return Snapshot{}, persistenceError("load snapshot", fmt.Errorf("%w: %w", ErrCorruptSnapshot, err))
	}
	return snapshot, nil
}

// Close closes the pebble database.
func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
