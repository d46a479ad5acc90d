package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckHealthOnFreshVault(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetMeta("salt", "deadbeef"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	s.Close()

	result, err := CheckHealth(root)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected fresh vault to be healthy, got errors: %v", result.Errors)
	}
	if !result.SchemaComplete || !result.DBIntegrityOK || !result.SaltPresent {
		t.Fatalf("expected all checks to pass, got %+v", result)
	}
}

func TestCheckHealthMissingDatabase(t *testing.T) {
	root := t.TempDir()
	result, err := CheckHealth(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected invalid result when no database exists")
	}
}

func TestCheckHealthDetectsInsecurePermissions(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetMeta("salt", "deadbeef"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	s.Close()

	dbPath := filepath.Join(root, DBFileName)
	if err := os.Chmod(dbPath, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	result, err := CheckHealth(root)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if result.Valid || result.PermissionsValid {
		t.Fatalf("expected insecure permissions to be flagged, got %+v", result)
	}
}
