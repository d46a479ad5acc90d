package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPlainRoundTrip(t *testing.T) {
	meta := Metadata{Version: MetadataFormatVersion, CreatedAt: 1000, SecretsCount: 3}
	vaultBytes := []byte("fake-sqlite-bytes")

	var buf bytes.Buffer
	if err := WritePlain(&buf, meta, vaultBytes); err != nil {
		t.Fatalf("WritePlain: %v", err)
	}

	gotMeta, gotBytes, err := ReadAny(&buf, "")
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	if gotMeta != meta {
		t.Fatalf("metadata mismatch: got %+v want %+v", gotMeta, meta)
	}
	if !bytes.Equal(gotBytes, vaultBytes) {
		t.Fatalf("vault bytes mismatch")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	meta := Metadata{Version: MetadataFormatVersion, CreatedAt: 2000, SecretsCount: 5}
	vaultBytes := []byte("fake-sqlite-bytes-for-encrypted-case")
	password := "backup-password-123"

	var buf bytes.Buffer
	if err := WriteEncrypted(&buf, meta, vaultBytes, password); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}

	gotMeta, gotBytes, err := ReadAny(bytes.NewReader(buf.Bytes()), password)
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	if gotMeta != meta {
		t.Fatalf("metadata mismatch: got %+v want %+v", gotMeta, meta)
	}
	if !bytes.Equal(gotBytes, vaultBytes) {
		t.Fatalf("vault bytes mismatch")
	}
}

func TestEncryptedWrongPasswordFails(t *testing.T) {
	meta := Metadata{Version: MetadataFormatVersion, CreatedAt: 3000, SecretsCount: 1}
	var buf bytes.Buffer
	if err := WriteEncrypted(&buf, meta, []byte("secret"), "correct-password"); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}

	if _, _, err := ReadAny(bytes.NewReader(buf.Bytes()), "wrong-password"); err == nil {
		t.Fatalf("expected decryption failure with wrong password")
	}
}

func TestMetadataIsReadableWithoutPasswordOnEncryptedBackup(t *testing.T) {
	meta := Metadata{Version: MetadataFormatVersion, CreatedAt: 4000, SecretsCount: 7}
	var buf bytes.Buffer
	if err := WriteEncrypted(&buf, meta, []byte("secret-payload"), "some-password"); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}

	got, err := ReadMetadataOnly(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadMetadataOnly: %v", err)
	}
	if got != meta {
		t.Fatalf("expected metadata readable without password, got %+v want %+v", got, meta)
	}
}

func TestReadAnyInvalidFlagRejected(t *testing.T) {
	buf := bytes.NewReader([]byte{0x42, 0x00, 0x00, 0x00, 0x00})
	if _, _, err := ReadAny(buf, ""); err != ErrInvalidFlag {
		t.Fatalf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestCreateListAndRestore(t *testing.T) {
	vaultRoot := t.TempDir()
	backupsDir := filepath.Join(vaultRoot, "backups")

	dbPath := filepath.Join(vaultRoot, "vault.db")
	original := []byte("original-vault-db-contents")
	if err := os.WriteFile(dbPath, original, 0o600); err != nil {
		t.Fatalf("seed vault.db: %v", err)
	}

	backupPath, err := Create(vaultRoot, backupsDir, "", 2, 5000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	infos, err := List(backupsDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(infos))
	}
	if infos[0].Path != backupPath {
		t.Fatalf("expected listed path %q, got %q", backupPath, infos[0].Path)
	}

	// Simulate the vault changing before restore, so the pre-restore
	// snapshot rule has something to capture.
	if err := os.WriteFile(dbPath, []byte("mutated-contents"), 0o600); err != nil {
		t.Fatalf("mutate vault.db: %v", err)
	}

	if _, err := Restore(backupPath, vaultRoot, backupsDir, "", 6000); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("read restored vault.db: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Fatalf("expected restored db to match original backup contents")
	}

	snapshotPath := filepath.Join(backupsDir, "vault-pre-restore-6000.db")
	snapshot, err := os.ReadFile(snapshotPath)
	if err != nil {
		t.Fatalf("expected pre-restore snapshot written: %v", err)
	}
	if string(snapshot) != "mutated-contents" {
		t.Fatalf("expected snapshot to capture the pre-restore contents, got %q", snapshot)
	}
}

func TestListSkipsUnreadableFiles(t *testing.T) {
	backupsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(backupsDir, "garbage.enc"), []byte("not a backup"), 0o600); err != nil {
		t.Fatalf("seed garbage file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(backupsDir, "ignored.txt"), []byte("irrelevant"), 0o600); err != nil {
		t.Fatalf("seed ignored file: %v", err)
	}

	infos, err := List(backupsDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected unreadable/non-.enc files skipped, got %d entries", len(infos))
	}
}
