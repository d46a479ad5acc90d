package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// expectedTables lists every table createSchema guarantees exists.
var expectedTables = []string{"vault_meta", "secrets", "projects", "project_secrets", "audit_logs"}

// MinDiskSpaceBytes and diskWarningPercent mirror the teacher's
// MinDiskSpaceBytes/DiskWarningPercent thresholds for flagging a vault
// directory that is dangerously low on free space.
const (
	MinDiskSpaceBytes  = 10 * 1024 * 1024
	diskWarningPercent = 90
)

// HealthResult is the outcome of a read-only integrity check, grounded on
// the teacher's IntegrityCheckResult: salt presence, schema presence,
// file-permission audit, a SQLite-level integrity check, and disk space.
type HealthResult struct {
	Valid            bool           `json:"valid"`
	SaltPresent      bool           `json:"salt_present"`
	SchemaComplete   bool           `json:"schema_complete"`
	DBIntegrityOK    bool           `json:"db_integrity_ok"`
	PermissionsValid bool           `json:"permissions_valid"`
	DiskSpace        *DiskSpaceInfo `json:"disk_space,omitempty"`
	LowDiskSpace     bool           `json:"low_disk_space"`
	Errors           []string       `json:"errors,omitempty"`
}

// CheckHealth runs a comprehensive, read-only integrity check against
// root without requiring the vault to be unlocked: directory and database
// file permissions, presence of every expected table, a SQLite
// "PRAGMA integrity_check", and presence of the salt meta row.
func CheckHealth(root string) (*HealthResult, error) {
	result := &HealthResult{Valid: true, PermissionsValid: true}

	if dirInfo, err := os.Stat(root); err == nil {
		if dirInfo.Mode().Perm()&0o077 != 0 {
			result.Valid = false
			result.PermissionsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("vault directory has insecure permissions: %04o (expected %04o)", dirInfo.Mode().Perm(), DirMode))
		}
	} else {
		result.Valid = false
		result.Errors = append(result.Errors, "vault directory not found: "+root)
		return result, nil
	}

	dbPath := filepath.Join(root, DBFileName)
	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "database file not found: "+dbPath)
		return result, nil
	}
	if dbInfo.Mode().Perm()&0o077 != 0 {
		result.Valid = false
		result.PermissionsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("database file has insecure permissions: %04o (expected %04o)", dbInfo.Mode().Perm(), FileMode))
	}

	s, err := Open(root)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "failed to open database: "+err.Error())
		return result, nil
	}
	defer s.Close()

	result.SchemaComplete = true
	for _, table := range expectedTables {
		row := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		var name string
		if err := row.Scan(&name); err != nil {
			result.Valid = false
			result.SchemaComplete = false
			result.Errors = append(result.Errors, "missing table: "+table)
		}
	}

	var integrityReport string
	if err := s.db.QueryRow(`PRAGMA integrity_check`).Scan(&integrityReport); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "failed to run integrity check: "+err.Error())
	} else if integrityReport == "ok" {
		result.DBIntegrityOK = true
	} else {
		result.Valid = false
		result.Errors = append(result.Errors, "database integrity check failed: "+integrityReport)
	}

	if _, err := s.GetMeta("salt"); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "vault salt not found in metadata")
	} else {
		result.SaltPresent = true
	}

	if diskInfo, err := CheckDiskSpace(root); err != nil {
		result.Errors = append(result.Errors, "failed to check disk space: "+err.Error())
	} else {
		result.DiskSpace = diskInfo
		if diskInfo.UsedPct >= diskWarningPercent || diskInfo.Available < MinDiskSpaceBytes {
			result.Valid = false
			result.LowDiskSpace = true
			result.Errors = append(result.Errors, fmt.Sprintf(
				"disk space low: %d%% used, %d MB available",
				diskInfo.UsedPct, diskInfo.Available/(1024*1024)))
		}
	}

	return result, nil
}
