package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores snapshots in a single-table SQLite database
// (WAL mode).
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens or creates the database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("kv: sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteBackend{db: db, path: dbPath}, nil
}

func (s *SQLiteBackend) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteBackend) Set(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
