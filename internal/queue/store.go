package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"vidqueue/internal/config"
	"vidqueue/internal/services"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

var (
	// ErrNotFound is returned by Load when nothing has been saved yet.
	ErrNotFound = fmt.Errorf("queue snapshot: %w", services.ErrNotFound)
	// ErrCorruptSnapshot is returned by Load when stored data cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt queue snapshot")
)

// Store persists queue snapshots. Save must replace the previous snapshot
// atomically so a crash mid-write leaves the prior durable state intact.
type Store interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Location() string
	Close() error
}

// Open selects and opens the backend named by cfg.State.Backend inside the
// state directory.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "queue", "open store", "config is required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	stateDir := cfg.Paths.StateDir
	switch strings.ToLower(strings.TrimSpace(cfg.State.Backend)) {
	case "", BackendJSON:
		return NewFileStore(filepath.Join(stateDir, "queue.json")), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(stateDir, "queue.db"))
	case BackendPebble:
		return OpenPebble(filepath.Join(stateDir, "queue.pebble"))
	default:
		return nil, services.Wrap(
			services.ErrConfiguration,
			"queue",
			"open store",
			fmt.Sprintf("unknown state backend %q", cfg.State.Backend),
			nil,
		)
	}
}

func persistenceError(operation string, err error) error {
	return services.Wrap(services.ErrPersistence, "queue", operation, "", err)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
