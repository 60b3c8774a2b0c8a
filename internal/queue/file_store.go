package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"vidqueue/internal/fileutil"
)

// FileStore keeps the snapshot in a single JSON document that is replaced
// atomically on every save.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a JSON-file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Location returns the snapshot file path.
func (s *FileStore) Location() string { return s.path }

// Save writes the snapshot to a temp file and renames it into place.
func (s *FileStore) Save(ctx context.Context, snapshot Snapshot) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return persistenceError("save snapshot", err)
	}
	snapshot.SavedAt = time.Now().UTC()
	data, err := MarshalSnapshot(snapshot)
	if err != nil {
		return persistenceError("save snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return persistenceError("save snapshot", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file returns ErrNotFound.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	snapshot, err := UnmarshalSnapshot(data)
	if err != nil {
		return Snapshot{}, persistenceError("load snapshot", fmt.Errorf("%w: %w", ErrCorruptSnapshot, err))
	}
	return snapshot, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
