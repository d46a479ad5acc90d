package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ProjectRow is a row in the projects table.
type ProjectRow struct {
	ID           string
	Name         string
	Path         string
	CreatedAt    int64
	LastSyncedAt sql.NullInt64
}

// CreateProject inserts a new project row.
func (s *Store) CreateProject(p *ProjectRow) error {
	_, err := s.db.Exec(
		`INSERT INTO projects(id, name, path, created_at, last_synced_at) VALUES(?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Path, p.CreatedAt, p.LastSyncedAt,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: failed to insert project: %w", err)
	}
	return nil
}

// GetProjectByPath returns the project whose path matches exactly.
func (s *Store) GetProjectByPath(path string) (*ProjectRow, error) {
	var p ProjectRow
	err := s.db.QueryRow(
		`SELECT id, name, path, created_at, last_synced_at FROM projects WHERE path = ?`, path,
	).Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.LastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read project: %w", err)
	}
	return &p, nil
}

// LinkSecret records that secretID belongs to projectID.
func (s *Store) LinkSecret(projectID, secretID string, addedAt int64) error {
	_, err := s.db.Exec(
		`INSERT INTO project_secrets(project_id, secret_id, added_at) VALUES(?, ?, ?)
		 ON CONFLICT(project_id, secret_id) DO NOTHING`,
		projectID, secretID, addedAt,
	)
	if err != nil {
		return fmt.Errorf("store: failed to link secret to project: %w", err)
	}
	return nil
}

// SecretsForProject returns every secret row linked to projectID.
func (s *Store) SecretsForProject(projectID string) ([]*SecretRow, error) {
	rows, err := s.db.Query(
		`SELECT `+secretColumns+` FROM secrets s
		 JOIN project_secrets ps ON ps.secret_id = s.id
		 WHERE ps.project_id = ? ORDER BY s.key, s.environment`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list project secrets: %w", err)
	}
	defer rows.Close()
	return collectSecretRows(rows)
}
