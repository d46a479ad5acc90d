package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
)

// FileExtension is the suffix list_backups() looks for.
const FileExtension = ".enc"

// FileMode matches the vault database file's own permission.
const FileMode = store.FileMode

// Info describes one backup file as returned by ListBackups, without
// requiring a password to produce.
type Info struct {
	Path     string
	Metadata Metadata
}

// Create snapshots the vault database file at vaultRoot into a new backup
// file under backupsDir, named vault-backup-<created_at millis>.enc. If
// password is non-empty the backup is encrypted; otherwise it is written
// in the plain framing. secretsCount is advisory only (see DESIGN.md) and
// is not re-derived from the snapshot bytes.
func Create(vaultRoot, backupsDir, password string, secretsCount int, createdAtMillis int64) (string, error) {
	dbPath := filepath.Join(vaultRoot, store.DBFileName)
	vaultBytes, err := os.ReadFile(dbPath)
	if err != nil {
		return "", fmt.Errorf("backup: failed to read vault database: %w", err)
	}

	if err := os.MkdirAll(backupsDir, store.DirMode); err != nil {
		return "", fmt.Errorf("backup: failed to create backups directory: %w", err)
	}

	meta := Metadata{
		Version:      MetadataFormatVersion,
		CreatedAt:    createdAtMillis,
		SecretsCount: secretsCount,
	}

	name := fmt.Sprintf("vault-backup-%d%s", createdAtMillis, FileExtension)
	path := filepath.Join(backupsDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return "", fmt.Errorf("backup: failed to create backup file: %w", err)
	}
	defer f.Close()

	if password == "" {
		err = WritePlain(f, meta, vaultBytes)
	} else {
		err = WriteEncrypted(f, meta, vaultBytes, password)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// List enumerates backup files in backupsDir, skipping anything that
// doesn't carry the .enc suffix or can't be parsed, and returns the rest
// sorted newest-first by their metadata's created_at.
func List(backupsDir string) ([]Info, error) {
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: failed to read backups directory: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExtension {
			continue
		}
		path := filepath.Join(backupsDir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		meta, err := ReadMetadataOnly(f)
		f.Close()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Path: path, Metadata: meta})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Metadata.CreatedAt > infos[j].Metadata.CreatedAt
	})
	return infos, nil
}

// Restore parses backupPath, decrypting with password if needed, copies
// the vault's current database file aside as
// vault-pre-restore-<timestampMillis>.db inside backupsDir if one exists,
// then atomically replaces the vault database with the backup's
// contents.
func Restore(backupPath, vaultRoot, backupsDir, password string, timestampMillis int64) (Metadata, error) {
	f, err := os.Open(backupPath)
	if err != nil {
		return Metadata{}, fmt.Errorf("backup: failed to open backup file: %w", err)
	}
	defer f.Close()

	meta, vaultBytes, err := ReadAny(f, password)
	if err != nil {
		return Metadata{}, err
	}

	dbPath := filepath.Join(vaultRoot, store.DBFileName)
	if _, err := os.Stat(dbPath); err == nil {
		if err := os.MkdirAll(backupsDir, store.DirMode); err != nil {
			return Metadata{}, fmt.Errorf("backup: failed to create backups directory: %w", err)
		}
		snapshotPath := filepath.Join(backupsDir, fmt.Sprintf("vault-pre-restore-%d.db", timestampMillis))
		if err := copyFile(dbPath, snapshotPath); err != nil {
			return Metadata{}, fmt.Errorf("backup: failed to snapshot current vault: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Metadata{}, fmt.Errorf("backup: failed to stat current vault: %w", err)
	}

	if err := atomicWriteFile(dbPath, vaultBytes, FileMode); err != nil {
		return Metadata{}, fmt.Errorf("backup: failed to write restored vault: %w", err)
	}

	return meta, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, FileMode)
}

// atomicWriteFile writes data to a temp file in the same directory as
// path, then renames it into place, so a crash mid-write never leaves a
// half-written vault database.
func atomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vault-restore-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
