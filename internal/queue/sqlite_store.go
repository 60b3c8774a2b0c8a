package queue

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// SQLiteStore keeps the queue in a SQLite database: one row of queue state
// plus one row per project, rewritten inside a single transaction per save.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string { return s.path }

// Save replaces the stored queue inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snapshot Snapshot) error {
	ctx = ensureContext(ctx)
	if snapshot.Version == 0 {
		snapshot.Version = SnapshotVersion
	}
	savedAt := time.Now().UTC().Format(time.RFC3339Nano)

	payloads := make([][]byte, len(snapshot.Projects))
	for i := range snapshot.Projects {
		data, err := json.Marshal(snapshot.Projects[i])
		if err != nil {
			return persistenceError("save snapshot", fmt.Errorf("encode project %s: %w", snapshot.Projects[i].ID, err))
		}
		payloads[i] = data
	}

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `INSERT INTO queue_state (id, version, mode, cursor, saved_at)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET version = excluded.version, mode = excluded.mode,
				cursor = excluded.cursor, saved_at = excluded.saved_at`,
			snapshot.Version, string(snapshot.Mode), snapshot.Cursor, savedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM projects"); err != nil {
			return err
		}
		for i, project := range snapshot.Projects {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO projects (id, position, name, status, payload) VALUES (?, ?, ?, ?, ?)",
				project.ID, i, project.Name, string(project.Status), string(payloads[i]),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return persistenceError("save snapshot", err)
	}
	return nil
}

// Load reads the queue state and projects in position order.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	ctx = ensureContext(ctx)
	var (
		snapshot Snapshot
		mode     string
		savedAt  string
	)
	row := s.db.QueryRowContext(ctx, "SELECT version, mode, cursor, saved_at FROM queue_state WHERE id = 1")
	if err := row.Scan(&snapshot.Version, &mode, &snapshot.Cursor, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	snapshot.Mode = Mode(mode)
	if ts, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		snapshot.SavedAt = ts
	}

	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM projects ORDER BY position ASC")
	if err != nil {
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	defer rows.Close()

	raw := make([]json.RawMessage, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return Snapshot{}, persistenceError("load snapshot", err)
		}
		raw = append(raw, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, persistenceError("load snapshot", err)
	}

	// Reuse the JSON decoder so status normalization matches the other backends.
	doc, err := json.Marshal(struct {
		Version  int               `json:"version"`
		Mode     Mode              `json:"mode"`
		Cursor   string            `json:"cursor,omitempty"`
		Projects []json.RawMessage `json:"projects"`
		SavedAt  time.Time         `json:"saved_at"`
	}{snapshot.Version, snapshot.Mode, snapshot.Cursor, raw, snapshot.SavedAt})
	if err != nil {
		return Snapshot{}, persistenceError("load snapshot", err)
	}
	decoded, err := UnmarshalSnapshot(doc)
	if err != nil {
		return Snapshot{}, persistenceError("load snapshot", fmt.Errorf("%w: %w", ErrCorruptSnapshot, err))
	}
	return decoded, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
