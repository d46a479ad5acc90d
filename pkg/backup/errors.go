// Package backup implements the whole-vault snapshot codec: binary
// framing for plain and password-encrypted backups, backup enumeration,
// and restore-with-snapshot.
package backup

import "errors"

var (
	// ErrInvalidFlag indicates the leading framing byte was neither 0x00
	// (plain) nor 0x01 (encrypted).
	ErrInvalidFlag = errors.New("backup: invalid framing byte")

	// ErrTruncated indicates the backup file ended before a declared
	// field could be fully read.
	ErrTruncated = errors.New("backup: truncated file")

	// ErrDecryptionFailed indicates the backup password was wrong or the
	// ciphertext was corrupted.
	ErrDecryptionFailed = errors.New("backup: decryption failed")

	// ErrNoVaultToRestore indicates restore_backup was asked to operate
	// on a root with no existing vault file to snapshot, which is fine,
	// but callers that require one should check this explicitly.
	ErrNoVaultToRestore = errors.New("backup: no existing vault file at destination")
)
