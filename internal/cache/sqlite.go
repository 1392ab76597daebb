package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps cache entries in a single key/value table.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// NewSQLiteStore opens or creates an SQLite database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent fetch cycles.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	s := &SQLiteStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Name returns the backend name.
func (s *SQLiteStore) Name() string {
	return core.BackendSQLite
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get retrieves the value stored under key.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var val string
	err := s.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set saves value under key.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.conn.Exec(
		"INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().UTC())
	return err
}

// Remove deletes key.
func (s *SQLiteStore) Remove(key string) error {
	_, err := s.conn.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

// Keys lists stored keys ordered by name.
func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.conn.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
