// Package audit records every vault mutation and read as a row in the
// persistent store, with filtering, pagination, pruning, and export.
package audit

import (
	"encoding/json"
	"fmt"
	"os/user"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
)

// Action types recorded by the audit log.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionRotate = "rotate"
	ActionExport = "export"
	ActionImport = "import"
)

// DefaultExportLimit is the page size used by ExportLogs, per the
// "large limit" contract for exporting the full history.
const DefaultExportLimit = 100_000

// DefaultPageLimit is the page size used when callers do not specify one.
const DefaultPageLimit = 50

// Entry is a single audit record as returned to callers.
type Entry struct {
	ID          string
	Timestamp   int64
	Action      string
	SecretKey   string
	Environment string
	User        string
	IPAddress   string
	Metadata    map[string]string
}

// Logger appends audit rows to the vault's audit_logs table.
type Logger struct {
	store *store.Store
	mu    sync.Mutex
	user  string
}

// NewLogger binds a Logger to an already-open store.
func NewLogger(s *store.Store) *Logger {
	return &Logger{store: s, user: currentUser()}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Log appends a single audit entry. Failures are returned to the caller,
// who may choose to treat audit logging as best-effort.
func (l *Logger) Log(action, secretKey, environment string, metadata map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var metaJSON string
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("audit: failed to marshal metadata: %w", err)
		}
		metaJSON = string(b)
	}

	row := &store.AuditRow{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Action:    action,
		User:      l.user,
	}
	if secretKey != "" {
		row.SecretKey.Valid = true
		row.SecretKey.String = secretKey
	}
	if environment != "" {
		row.Environment.Valid = true
		row.Environment.String = environment
	}
	if metaJSON != "" {
		row.Metadata.Valid = true
		row.Metadata.String = metaJSON
	}

	if err := l.store.InsertAuditRow(row); err != nil {
		return fmt.Errorf("audit: failed to write entry: %w", err)
	}
	return nil
}

// LogRead records a secret read.
func (l *Logger) LogRead(secretKey, environment string) error {
	return l.Log(ActionRead, secretKey, environment, nil)
}

// LogWrite records a secret create or update.
func (l *Logger) LogWrite(secretKey, environment string) error {
	return l.Log(ActionWrite, secretKey, environment, nil)
}

// LogDelete records a secret deletion.
func (l *Logger) LogDelete(secretKey, environment string) error {
	return l.Log(ActionDelete, secretKey, environment, nil)
}

// LogRotate records a secret rotation.
func (l *Logger) LogRotate(secretKey, environment string) error {
	return l.Log(ActionRotate, secretKey, environment, nil)
}

// LogExport records a bulk export.
func (l *Logger) LogExport(count int) error {
	return l.Log(ActionExport, "", "", map[string]string{"count": fmt.Sprint(count)})
}

// LogImport records a bulk import.
func (l *Logger) LogImport(count int) error {
	return l.Log(ActionImport, "", "", map[string]string{"count": fmt.Sprint(count)})
}

// Filter narrows GetLogs.
type Filter struct {
	SecretKey string
	Action    string
	Limit     int
	Offset    int
}

// GetLogs returns entries matching filter, newest first. Limit defaults
// to DefaultPageLimit when zero or negative.
func (l *Logger) GetLogs(f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	rows, err := l.store.GetAuditLogs(store.AuditFilter{
		SecretKey: f.SecretKey,
		Action:    f.Action,
		Limit:     limit,
		Offset:    f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: failed to read entries: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, entryFromRow(r))
	}
	return out, nil
}

// GetLogCount returns the total matching row count for pagination,
// optionally filtered by secret key.
func (l *Logger) GetLogCount(secretKey string) (int, error) {
	n, err := l.store.GetAuditLogCount(secretKey)
	if err != nil {
		return 0, fmt.Errorf("audit: failed to count entries: %w", err)
	}
	return n, nil
}

// PruneLogs deletes every row except the keepLastN most recent, returning
// the number of rows removed.
func (l *Logger) PruneLogs(keepLastN int) (int64, error) {
	n, err := l.store.PruneAuditLogs(keepLastN)
	if err != nil {
		return 0, fmt.Errorf("audit: failed to prune entries: %w", err)
	}
	return n, nil
}

// ExportLogs is GetLogs with a limit large enough to return the entire
// history for a given secret key (or all entries if secretKey is empty).
func (l *Logger) ExportLogs(secretKey string) ([]Entry, error) {
	return l.GetLogs(Filter{SecretKey: secretKey, Limit: DefaultExportLimit})
}

func entryFromRow(r *store.AuditRow) Entry {
	e := Entry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Action:    r.Action,
		User:      r.User,
	}
	if r.SecretKey.Valid {
		e.SecretKey = r.SecretKey.String
	}
	if r.Environment.Valid {
		e.Environment = r.Environment.String
	}
	if r.IPAddress.Valid {
		e.IPAddress = r.IPAddress.String
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(r.Metadata.String), &m); err == nil {
			e.Metadata = m
		}
	}
	return e
}
