package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SecretRow is the raw, possibly-still-encrypted representation of a
// secrets table row. Value is ciphertext; the store never decrypts it.
type SecretRow struct {
	ID          string
	Key         string
	Value       string
	Environment string
	Description sql.NullString
	Tags        sql.NullString
	CreatedAt   int64
	UpdatedAt   int64
	LastUsedAt  sql.NullInt64
	ExpiresAt   sql.NullInt64
}

const secretColumns = `id, key, value, environment, description, tags, created_at, updated_at, last_used_at, expires_at`

func scanSecretRow(scanner interface{ Scan(...any) error }) (*SecretRow, error) {
	var r SecretRow
	if err := scanner.Scan(&r.ID, &r.Key, &r.Value, &r.Environment, &r.Description, &r.Tags,
		&r.CreatedAt, &r.UpdatedAt, &r.LastUsedAt, &r.ExpiresAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetSecretExact returns the row matching (key, environment) exactly, with
// no environment fallback. ErrNotFound if absent.
func (s *Store) GetSecretExact(key, environment string) (*SecretRow, error) {
	row := s.db.QueryRow(
		`SELECT `+secretColumns+` FROM secrets WHERE key = ? AND environment = ?`,
		key, environment,
	)
	r, err := scanSecretRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read secret: %w", err)
	}
	return r, nil
}

// InsertSecret inserts a new secret row. Callers must have already
// checked for (key, environment) uniqueness at the engine layer if they
// want a typed "already exists" error; the UNIQUE constraint still
// protects the invariant at the storage layer.
func (s *Store) InsertSecret(r *SecretRow) error {
	_, err := s.db.Exec(
		`INSERT INTO secrets(`+secretColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Key, r.Value, r.Environment, r.Description, r.Tags,
		r.CreatedAt, r.UpdatedAt, r.LastUsedAt, r.ExpiresAt,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: failed to insert secret: %w", err)
	}
	return nil
}

// UpdateSecret overwrites value/description/tags/updated_at for the row
// identified by id.
func (s *Store) UpdateSecret(r *SecretRow) error {
	res, err := s.db.Exec(
		`UPDATE secrets SET value = ?, description = ?, tags = ?, updated_at = ? WHERE id = ?`,
		r.Value, r.Description, r.Tags, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("store: failed to update secret: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastUsed sets last_used_at on the row identified by id.
func (s *Store) TouchLastUsed(id string, ts int64) error {
	_, err := s.db.Exec(`UPDATE secrets SET last_used_at = ? WHERE id = ?`, ts, id)
	if err != nil {
		return fmt.Errorf("store: failed to update last_used_at: %w", err)
	}
	return nil
}

// DeleteSecret deletes the row matching (key, environment). Returns the
// number of rows removed (0 or 1).
func (s *Store) DeleteSecret(key, environment string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM secrets WHERE key = ? AND environment = ?`, key, environment)
	if err != nil {
		return 0, fmt.Errorf("store: failed to delete secret: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteSecretAllEnvs deletes every row matching key, returning the count.
func (s *Store) DeleteSecretAllEnvs(key string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("store: failed to delete secret: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListSecrets returns rows matching an optional environment filter
// (environment = filter OR environment = 'all'), or every row if filter
// is empty. Ordered by (key, environment).
func (s *Store) ListSecrets(environmentFilter string) ([]*SecretRow, error) {
	var rows *sql.Rows
	var err error
	if environmentFilter == "" {
		rows, err = s.db.Query(`SELECT ` + secretColumns + ` FROM secrets ORDER BY key, environment`)
	} else {
		rows, err = s.db.Query(
			`SELECT `+secretColumns+` FROM secrets WHERE environment = ? OR environment = 'all' ORDER BY key, environment`,
			environmentFilter,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to list secrets: %w", err)
	}
	defer rows.Close()
	return collectSecretRows(rows)
}

// ListSecretsByKey returns every row sharing the given key, across all
// environments — used by rotate_secret.
func (s *Store) ListSecretsByKey(key string) ([]*SecretRow, error) {
	rows, err := s.db.Query(`SELECT `+secretColumns+` FROM secrets WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list secrets by key: %w", err)
	}
	defer rows.Close()
	return collectSecretRows(rows)
}

// ListSecretsForSync returns every row whose environment is env or 'all'.
func (s *Store) ListSecretsForSync(env string) ([]*SecretRow, error) {
	rows, err := s.db.Query(
		`SELECT `+secretColumns+` FROM secrets WHERE environment = ? OR environment = 'all' ORDER BY key`,
		env,
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list secrets for sync: %w", err)
	}
	defer rows.Close()
	return collectSecretRows(rows)
}

// SearchSecrets returns rows whose key or description LIKE-matches
// pattern (caller is responsible for escaping wildcards in the raw
// substring before calling this).
func (s *Store) SearchSecrets(likePattern string) ([]*SecretRow, error) {
	rows, err := s.db.Query(
		`SELECT `+secretColumns+` FROM secrets WHERE key LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' ORDER BY key, environment`,
		likePattern, likePattern,
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to search secrets: %w", err)
	}
	defer rows.Close()
	return collectSecretRows(rows)
}

// AllSecrets returns every row in the table, used by change_master_password
// to re-encrypt every value under a new key.
func (s *Store) AllSecrets() ([]*SecretRow, error) {
	rows, err := s.db.Query(`SELECT ` + secretColumns + ` FROM secrets`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to read all secrets: %w", err)
	}
	defer rows.Close()
	return collectSecretRows(rows)
}

func collectSecretRows(rows *sql.Rows) ([]*SecretRow, error) {
	var out []*SecretRow
	for rows.Next() {
		r, err := scanSecretRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: failed to scan secret row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating secrets: %w", err)
	}
	return out, nil
}

// ErrAlreadyExists is returned by InsertSecret on a (key, environment)
// collision.
var ErrAlreadyExists = errors.New("store: row already exists")

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
