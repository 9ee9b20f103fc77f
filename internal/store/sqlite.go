package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/mod/semver"
)

// SchemaVersion is the payload schema this build reads and writes.
// A store stamped with a newer major version is refused at open time
// so an older binary never silently mangles newer payloads.
const SchemaVersion = "v1.0.0"

// SQLite implements Store on a single-file SQLite database. All values
// live in one kv table; lists are stored as JSON array text.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLite opens (creating if needed) the database at path
func NewSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode so a reader (status CLI) never blocks the engine's writes
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.verifySchemaVersion(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// verifySchemaVersion stamps a fresh store and refuses one written by a
// newer-major schema. Same-major newer minors stay readable.
func (s *SQLite) verifySchemaVersion() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", KeySchemaVersion).Scan(&stored)
	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(upsertKV, KeySchemaVersion, SchemaVersion); err != nil {
			return fmt.Errorf("failed to stamp schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if !semver.IsValid(stored) {
		return fmt.Errorf("store has invalid schema version %q", stored)
	}
	if semver.Compare(semver.Major(stored), semver.Major(SchemaVersion)) > 0 {
		return fmt.Errorf("store schema %s is newer than supported %s; upgrade before opening", stored, SchemaVersion)
	}
	return nil
}

const upsertKV = `
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value
`

// GetString returns the value for key, or "" if the key is absent
func (s *SQLite) GetString(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

// SetString durably writes the value for key
func (s *SQLite) SetString(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertKV, key, value); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// GetStringList returns the list for key, or nil if the key is absent
func (s *SQLite) GetStringList(ctx context.Context, key string) ([]string, error) {
	raw, err := s.GetString(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list for key %q: %w", key, err)
	}
	return values, nil
}

// SetStringList durably writes the list for key
func (s *SQLite) SetStringList(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode list for key %q: %w", key, err)
	}
	return s.SetString(ctx, key, string(raw))
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
