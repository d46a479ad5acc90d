package store

import (
	"database/sql"
	"fmt"
)

// AuditRow is a row in the audit_logs table.
type AuditRow struct {
	ID          string
	Timestamp   int64
	Action      string
	SecretKey   sql.NullString
	Environment sql.NullString
	User        string
	IPAddress   sql.NullString
	Metadata    sql.NullString
}

// InsertAuditRow appends a single audit entry.
func (s *Store) InsertAuditRow(r *AuditRow) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_logs(id, timestamp, action, secret_key, environment, user, ip_address, metadata)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp, r.Action, r.SecretKey, r.Environment, r.User, r.IPAddress, r.Metadata,
	)
	if err != nil {
		return fmt.Errorf("store: failed to insert audit row: %w", err)
	}
	return nil
}

// AuditFilter narrows GetAuditLogs.
type AuditFilter struct {
	SecretKey string
	Action    string
	Limit     int
	Offset    int
}

// GetAuditLogs returns rows matching filter, newest first.
func (s *Store) GetAuditLogs(f AuditFilter) ([]*AuditRow, error) {
	query := `SELECT id, timestamp, action, secret_key, environment, user, ip_address, metadata FROM audit_logs WHERE 1=1`
	var args []any
	if f.SecretKey != "" {
		query += ` AND secret_key = ?`
		args = append(args, f.SecretKey)
	}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	query += ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var out []*AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Action, &r.SecretKey, &r.Environment, &r.User, &r.IPAddress, &r.Metadata); err != nil {
			return nil, fmt.Errorf("store: failed to scan audit row: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating audit logs: %w", err)
	}
	return out, nil
}

// GetAuditLogCount returns the total row count, optionally filtered by
// secretKey.
func (s *Store) GetAuditLogCount(secretKey string) (int, error) {
	var count int
	var err error
	if secretKey == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM audit_logs`).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE secret_key = ?`, secretKey).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("store: failed to count audit logs: %w", err)
	}
	return count, nil
}

// PruneAuditLogs deletes every row except the keepLastN most recent by
// timestamp, returning the number removed.
func (s *Store) PruneAuditLogs(keepLastN int) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM audit_logs WHERE id NOT IN (
			SELECT id FROM audit_logs ORDER BY timestamp DESC LIMIT ?
		)`,
		keepLastN,
	)
	if err != nil {
		return 0, fmt.Errorf("store: failed to prune audit logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
