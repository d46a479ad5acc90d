package exportimport

import (
	"testing"

	"github.com/imrajyavardhan12/secrets-manager/pkg/audit"
	"github.com/imrajyavardhan12/secrets-manager/pkg/vault"
)

func newUnlockedVault(t *testing.T) *vault.Vault {
	t.Helper()
	v := vault.New(t.TempDir())
	if err := v.Initialize("TestPassword123!", vault.InitOptions{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { v.Lock() })
	return v
}

func TestExportAllRoundTripsThroughImportAll(t *testing.T) {
	src := newUnlockedVault(t)
	if _, err := src.AddSecret("API_KEY", "value-1", "dev", vault.AddSecretOptions{Description: "test key"}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	if _, err := src.AddSecret("DB_URL", "value-2", "all", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	entries, err := ExportAll(src)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	dst := newUnlockedVault(t)
	added, updated, err := ImportAll(dst, entries)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if added != 2 || updated != 0 {
		t.Fatalf("expected 2 added, 0 updated, got added=%d updated=%d", added, updated)
	}

	got, found, err := dst.GetSecret("API_KEY", "dev")
	if err != nil || !found || got != "value-1" {
		t.Fatalf("expected imported secret present, got %q found=%v err=%v", got, found, err)
	}

	exportLogs, err := src.Audit().GetLogs(audit.Filter{Action: audit.ActionExport})
	if err != nil || len(exportLogs) != 1 {
		t.Fatalf("expected 1 export audit entry, got %d err=%v", len(exportLogs), err)
	}
	importLogs, err := dst.Audit().GetLogs(audit.Filter{Action: audit.ActionImport})
	if err != nil || len(importLogs) != 1 {
		t.Fatalf("expected 1 import audit entry, got %d err=%v", len(importLogs), err)
	}
}

func TestImportAllFallsBackToUpdateOnConflict(t *testing.T) {
	dst := newUnlockedVault(t)
	if _, err := dst.AddSecret("API_KEY", "old-value", "dev", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	entries := []Entry{{Key: "API_KEY", Value: "new-value", Environment: "dev"}}
	added, updated, err := ImportAll(dst, entries)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if added != 0 || updated != 1 {
		t.Fatalf("expected 0 added, 1 updated, got added=%d updated=%d", added, updated)
	}

	got, _, _ := dst.GetSecret("API_KEY", "dev")
	if got != "new-value" {
		t.Fatalf("expected conflicting key updated in place, got %q", got)
	}

	importLogs, err := dst.Audit().GetLogs(audit.Filter{Action: audit.ActionImport})
	if err != nil || len(importLogs) != 1 {
		t.Fatalf("expected 1 import audit entry, got %d err=%v", len(importLogs), err)
	}
}
