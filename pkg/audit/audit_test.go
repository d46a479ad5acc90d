package audit

import (
	"testing"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewLogger(s)
}

func TestLogAndGetLogs(t *testing.T) {
	l := newTestLogger(t)

	if err := l.LogWrite("API_KEY", "dev"); err != nil {
		t.Fatalf("LogWrite: %v", err)
	}
	if err := l.LogRead("API_KEY", "dev"); err != nil {
		t.Fatalf("LogRead: %v", err)
	}

	entries, err := l.GetLogs(Filter{})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// newest first
	if entries[0].Action != ActionRead {
		t.Errorf("expected newest entry to be a read, got %s", entries[0].Action)
	}
}

func TestGetLogsFilteredBySecretKey(t *testing.T) {
	l := newTestLogger(t)

	if err := l.LogWrite("API_KEY", "dev"); err != nil {
		t.Fatalf("LogWrite: %v", err)
	}
	if err := l.LogWrite("DATABASE_URL", "dev"); err != nil {
		t.Fatalf("LogWrite: %v", err)
	}

	entries, err := l.GetLogs(Filter{SecretKey: "API_KEY"})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(entries) != 1 || entries[0].SecretKey != "API_KEY" {
		t.Fatalf("expected 1 entry for API_KEY, got %v", entries)
	}
}

func TestPruneLogs(t *testing.T) {
	l := newTestLogger(t)

	for i := 0; i < 5; i++ {
		if err := l.LogWrite("API_KEY", "dev"); err != nil {
			t.Fatalf("LogWrite: %v", err)
		}
	}

	removed, err := l.PruneLogs(2)
	if err != nil {
		t.Fatalf("PruneLogs: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 rows removed, got %d", removed)
	}

	count, err := l.GetLogCount("")
	if err != nil {
		t.Fatalf("GetLogCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows remaining, got %d", count)
	}
}
