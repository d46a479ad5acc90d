package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadSessionRoundTrip(t *testing.T) {
	c := New(t.TempDir())
	masterKey := []byte("0123456789abcdef0123456789abcdef")

	if err := c.SaveSession(masterKey, 15); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := c.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if string(got) != string(masterKey) {
		t.Fatalf("got %q, want %q", got, masterKey)
	}
}

func TestLoadSessionMissingFileReturnsNil(t *testing.T) {
	c := New(t.TempDir())
	got, err := c.LoadSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil master key, got %v", got)
	}
}

func TestLoadSessionExpiredDeletesFile(t *testing.T) {
	c := New(t.TempDir())
	masterKey := []byte("0123456789abcdef0123456789abcdef")

	if err := c.SaveSession(masterKey, -1); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := c.LoadSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for expired session, got %v", got)
	}

	if _, statErr := os.Stat(c.path()); !os.IsNotExist(statErr) {
		t.Fatalf("expected session file removed after expiry, stat err: %v", statErr)
	}
}

func TestLoadSessionCorruptedFileTreatedAsAbsent(t *testing.T) {
	c := New(t.TempDir())
	if err := os.WriteFile(c.path(), []byte("not json"), FileMode); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	got, err := c.LoadSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for corrupted session, got %v", got)
	}
}

func TestExtendSessionPushesExpiryForward(t *testing.T) {
	c := New(t.TempDir())
	masterKey := []byte("0123456789abcdef0123456789abcdef")

	if err := c.SaveSession(masterKey, 1); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	extended, err := c.ExtendSession(60)
	if err != nil {
		t.Fatalf("ExtendSession: %v", err)
	}
	if !extended {
		t.Fatalf("expected ExtendSession to report true for an existing session")
	}

	if !c.HasValidSession() {
		t.Fatalf("expected session to remain valid after extension")
	}

	got, err := c.LoadSession()
	if err != nil || got == nil {
		t.Fatalf("expected master key still loadable after extension, err=%v", err)
	}
	if string(got) != string(masterKey) {
		t.Fatalf("expected master key unchanged by extension, got %q", got)
	}
}

func TestExtendSessionMissingFileReturnsFalse(t *testing.T) {
	c := New(t.TempDir())
	extended, err := c.ExtendSession(15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extended {
		t.Fatalf("expected false when no session file exists")
	}
}

func TestHasValidSession(t *testing.T) {
	c := New(t.TempDir())
	if c.HasValidSession() {
		t.Fatalf("expected no valid session before SaveSession")
	}

	if err := c.SaveSession([]byte("0123456789abcdef0123456789abcdef"), 15); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if !c.HasValidSession() {
		t.Fatalf("expected valid session after SaveSession")
	}
}

func TestDeleteSessionZeroFillsThenRemoves(t *testing.T) {
	c := New(t.TempDir())
	if err := c.SaveSession([]byte("0123456789abcdef0123456789abcdef"), 15); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	if err := c.DeleteSession(); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := os.Stat(c.path()); !os.IsNotExist(err) {
		t.Fatalf("expected session file removed, stat err: %v", err)
	}
}

func TestDeleteSessionMissingFileIsNotError(t *testing.T) {
	c := New(t.TempDir())
	if err := c.DeleteSession(); err != nil {
		t.Fatalf("unexpected error deleting absent session: %v", err)
	}
}

func TestSessionFilePermissions(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	if err := c.SaveSession([]byte("0123456789abcdef0123456789abcdef"), 15); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != FileMode {
		t.Fatalf("expected mode %o, got %o", FileMode, perm)
	}
}

func TestEachSaveUsesFreshSessionKey(t *testing.T) {
	c := New(t.TempDir())
	masterKey := []byte("0123456789abcdef0123456789abcdef")

	if err := c.SaveSession(masterKey, 15); err != nil {
		t.Fatalf("SaveSession first: %v", err)
	}
	first, err := os.ReadFile(c.path())
	if err != nil {
		t.Fatalf("read first: %v", err)
	}

	time.Sleep(time.Millisecond)
	if err := c.SaveSession(masterKey, 15); err != nil {
		t.Fatalf("SaveSession second: %v", err)
	}
	second, err := os.ReadFile(c.path())
	if err != nil {
		t.Fatalf("read second: %v", err)
	}

	if string(first) == string(second) {
		t.Fatalf("expected distinct session files across saves (fresh session key + nonce)")
	}
}
