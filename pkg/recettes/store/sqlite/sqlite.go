package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Store implements store.Store on a single SQLite table of path/value rows.
// Change notifications are delivered in-process only.
type Store struct {
	db  *sql.DB
	hub *store.Hub
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection serializes read-modify-write transactions and keeps
	// ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, hub: store.NewHub()}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS nodes (
	path TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Read decodes the value at path into dst.
func (s *Store) Read(ctx context.Context, path string, dst any) (bool, error) {
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, path).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return true, store.Decode([]byte(value), dst)
}

// Write replaces the value at path.
func (s *Store) Write(ctx context.Context, path string, v any) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	data, err := store.Encode(v)
	if err != nil {
		return err
	}

	if err := upsert(ctx, s.db, path, data); err != nil {
		return err
	}

	s.hub.Publish(store.Event{Path: path, Value: data})
	return nil
}

// Delete removes path and its descendants.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	const stmt = `DELETE FROM nodes WHERE path = ? OR substr(path, 1, length(?)) = ?`
	below := path + "/"
	if _, err := s.db.ExecContext(ctx, stmt, path, below, below); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	s.hub.Publish(store.Event{Path: path, Deleted: true})
	return nil
}

// List returns the direct children of prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := store.ValidatePath(prefix); err != nil {
		return nil, err
	}

	below := prefix + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM nodes WHERE substr(path, 1, length(?)) = ?`, below, below)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if name, ok := store.ChildName(prefix, key); ok {
			out[name] = []byte(value)
		}
	}
	return out, rows.Err()
}

// Subscribe registers fn for changes made through this Store.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Event)) (func(), error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, path, fn), nil
}

// IncrementFields adds deltas to the object at path inside one transaction.
func (s *Store) IncrementFields(ctx context.Context, path string, deltas map[string]int64) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, path).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	data, err := store.AddFields([]byte(current), deltas)
	if err != nil {
		return err
	}
	if err := upsert(ctx, tx, path, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.hub.Publish(store.Event{Path: path, Value: data})
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, path string, data []byte) error {
	const stmt = `
INSERT INTO nodes (path, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	value=excluded.value,
	updated_at=excluded.updated_at;
`
	if _, err := db.ExecContext(ctx, stmt, path, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
