package vault

import (
	"errors"
	"fmt"

	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// Sentinel errors, one per failure kind in the error taxonomy. Callers
// match with errors.Is; WrongPasswordError and LockedOutError additionally
// carry the attempt/cooldown counters via errors.As.
var (
	ErrVaultNotInitialized    = errors.New("vault: not initialized")
	ErrVaultAlreadyInitialized = errors.New("vault: already initialized")
	ErrVaultLocked            = errors.New("vault: locked")
	ErrWrongPassword          = errors.New("vault: wrong password")
	ErrLockedOut              = errors.New("vault: locked out")
	ErrSecretNotFound         = errors.New("vault: secret not found")
	ErrSecretAlreadyExists    = errors.New("vault: secret already exists")
	ErrInvalidPassword        = errors.New("vault: invalid password")
	ErrSecretValueTooLarge    = errors.New("vault: secret value exceeds 64 KiB")
	ErrVaultCorrupted         = errors.New("vault: corrupted")

	// ErrDecryptionFailed is re-exported from pkg/crypto so callers never
	// need to import both packages to check for it.
	ErrDecryptionFailed = crypto.ErrDecryptionFailed
)

// WrongPasswordError is returned by Unlock on a sentinel mismatch that did
// not trip the lockout threshold.
type WrongPasswordError struct {
	AttemptsRemaining int
}

func (e *WrongPasswordError) Error() string {
	return fmt.Sprintf("vault: wrong password, %d attempt(s) remaining", e.AttemptsRemaining)
}

func (e *WrongPasswordError) Unwrap() error { return ErrWrongPassword }

// LockedOutError is returned by Unlock while the persisted lockout window
// is still active.
type LockedOutError struct {
	SecondsRemaining int
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("vault: locked out, retry in %ds", e.SecondsRemaining)
}

func (e *LockedOutError) Unwrap() error { return ErrLockedOut }
