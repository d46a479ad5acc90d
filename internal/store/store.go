// Package store owns the vault's persistent SQL schema: metadata,
// secrets, projects, and the audit trail. It knows nothing about
// cryptography or the state machine above it; callers hand it plaintext
// rows for the non-secret columns and opaque ciphertext blobs for the
// encrypted ones.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const (
	// DBFileName is the vault database's file name inside the vault root.
	DBFileName = "vault.db"

	// FileMode is the permission applied to the database file.
	FileMode = 0o600

	// DirMode is the permission applied to the vault root directory.
	DirMode = 0o700
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a single open database handle for one vault root directory.
type Store struct {
	path string
	db   *sql.DB
}

// VaultExists reports whether a database file is present at path. It only
// checks for file presence, not schema validity.
func VaultExists(root string) bool {
	_, err := os.Stat(filepath.Join(root, DBFileName))
	return err == nil
}

// Open creates the vault root directory if absent, opens (creating if
// necessary) the SQLite database beneath it, enables foreign keys, and
// ensures the schema exists. It does not interpret any row; callers are
// responsible for all encryption.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, DirMode); err != nil {
		return nil, fmt.Errorf("store: failed to create vault directory: %w", err)
	}
	if err := os.Chmod(root, DirMode); err != nil {
		// Not fatal: some platforms (and some filesystems) reject chmod.
		fmt.Fprintf(os.Stderr, "warning: failed to set vault directory permissions: %v\n", err)
	}

	dbPath := filepath.Join(root, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to enable foreign keys: %w", err)
	}

	s := &Store{path: dbPath, db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, FileMode); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to set database file permissions: %v\n", err)
	}

	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers (the vault engine) that need
// transactional control across multiple store operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file's path on disk.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vault_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			environment TEXT NOT NULL,
			description TEXT,
			tags TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_used_at INTEGER,
			expires_at INTEGER,
			UNIQUE(key, environment)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_key ON secrets(key)`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_environment ON secrets(environment)`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_updated_at ON secrets(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_expires_at ON secrets(expires_at)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			last_synced_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS project_secrets (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			secret_id TEXT NOT NULL REFERENCES secrets(id) ON DELETE CASCADE,
			added_at INTEGER NOT NULL,
			PRIMARY KEY (project_id, secret_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			action TEXT NOT NULL,
			secret_key TEXT,
			environment TEXT,
			user TEXT NOT NULL,
			ip_address TEXT,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_secret_key ON audit_logs(secret_key)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: failed to apply schema: %w", err)
		}
	}
	return nil
}

// GetMeta returns the value stored under key in vault_meta, or ErrNotFound.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM vault_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: failed to read meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts key=value in vault_meta.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO vault_meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("store: failed to write meta %q: %w", key, err)
	}
	return nil
}

// NewID generates a fresh row identifier.
func NewID() string {
	return uuid.NewString()
}
