// Package vault implements the encrypted secrets engine: the
// NOT_INITIALIZED/LOCKED/UNLOCKED/LOCKED_OUT state machine, environment-
// scoped secret CRUD, brute-force lockout, and master-password rotation.
package vault

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
	"github.com/imrajyavardhan12/secrets-manager/pkg/audit"
	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// Fixed lockout and lifecycle parameters.
const (
	MaxFailedAttempts      = 3
	LockoutDuration        = 5 * time.Minute
	DefaultAutoLockTimeout = 15 * time.Minute
	MaxSecretValueSize     = 64 * 1024

	sentinelPlaintext = "secrets-manager-v1"
	schemaVersion     = "1"

	metaKeySalt            = "salt"
	metaKeyVersion         = "version"
	metaKeyCreatedAt       = "created_at"
	metaKeyAutoLockTimeout = "auto_lock_timeout"
	metaKeySentinel        = "__vault_verification__"
	metaKeyFailedAttempts  = "failed_attempts"
	metaKeyLockoutUntil    = "lockout_until"
)

// Vault is a handle bound to a single vault root directory. All public
// methods take an internal exclusive lock, satisfying the "timer-driven
// lock() safe to call concurrently with any in-flight operation"
// requirement with a single discipline: one mutex around every method,
// including the auto-lock timer's own callback.
type Vault struct {
	root string

	mu    sync.Mutex
	state State

	store *store.Store
	audit *audit.Logger

	masterKey []byte

	autoLockTimeout time.Duration
	lockTimer       *time.Timer
	lastActivity    time.Time
}

// New returns a handle bound to root. It does not open the database; the
// initial state is derived from whether a vault file already exists.
func New(root string) *Vault {
	state := StateLocked
	if !store.VaultExists(root) {
		state = StateNotInitialized
	}
	return &Vault{root: root, state: state}
}

// IsInitialized reports whether a vault has ever been created at this
// root, regardless of current lock state.
func (v *Vault) IsInitialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state != StateNotInitialized
}

// IsLocked reports whether the vault requires a password before secret
// operations can proceed (true for LOCKED and LOCKED_OUT alike).
func (v *Vault) IsLocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == StateLocked || v.state == StateLockedOut
}

// GetState returns the current lifecycle state.
func (v *Vault) GetState() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// requireUnlocked returns the typed error for the current state if it is
// not UNLOCKED, and otherwise resets the inactivity timer. Callers must
// hold v.mu already.
func (v *Vault) requireUnlocked() error {
	switch v.state {
	case StateNotInitialized:
		return ErrVaultNotInitialized
	case StateUnlocked:
		v.touchActivityLocked()
		return nil
	default:
		return ErrVaultLocked
	}
}

// touchActivityLocked resets the auto-lock timer. Callers must hold v.mu.
func (v *Vault) touchActivityLocked() {
	v.lastActivity = time.Now()
	if v.lockTimer != nil {
		v.lockTimer.Reset(v.autoLockTimeout)
	}
}

// armTimerLocked starts (or restarts) the one-shot auto-lock timer.
// Callers must hold v.mu.
func (v *Vault) armTimerLocked() {
	v.disarmTimerLocked()
	v.lockTimer = time.AfterFunc(v.autoLockTimeout, v.onAutoLockFire)
}

// disarmTimerLocked stops the auto-lock timer without firing it. Callers
// must hold v.mu.
func (v *Vault) disarmTimerLocked() {
	if v.lockTimer != nil {
		v.lockTimer.Stop()
		v.lockTimer = nil
	}
}

// onAutoLockFire is the timer callback. It takes its own lock rather than
// assuming the caller holds one, since it runs on a separate goroutine
// from whatever last called an engine method.
func (v *Vault) onAutoLockFire() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateUnlocked {
		return
	}
	if err := v.lockLocked(); err != nil {
		warnStderr("auto-lock failed: %v", err)
	}
}

// logAudit records an audit entry and demotes any failure to a stderr
// warning: audit logging is best-effort and must never abort the
// operation it is describing.
func (v *Vault) logAudit(action, secretKey, environment string) {
	if v.audit == nil {
		return
	}
	var err error
	switch action {
	case audit.ActionRead:
		err = v.audit.LogRead(secretKey, environment)
	case audit.ActionWrite:
		err = v.audit.LogWrite(secretKey, environment)
	case audit.ActionDelete:
		err = v.audit.LogDelete(secretKey, environment)
	case audit.ActionRotate:
		err = v.audit.LogRotate(secretKey, environment)
	}
	if err != nil {
		warnStderr("audit log write failed: %v", err)
	}
}

// MasterKeyCopy returns a copy of the in-memory master key while
// UNLOCKED, for the session cache to encrypt and persist. Returns
// ErrVaultLocked otherwise; callers must zeroize the returned slice once
// they're done with it.
func (v *Vault) MasterKeyCopy() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateUnlocked {
		return nil, ErrVaultLocked
	}
	copyKey := make([]byte, len(v.masterKey))
	copy(copyKey, v.masterKey)
	return copyKey, nil
}

// Audit exposes the underlying logger for read-only queries (get_logs,
// export_logs) while the vault is unlocked. Returns nil while locked.
func (v *Vault) Audit() *audit.Logger {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.audit
}

func encryptValue(key []byte, plaintext string) (string, error) {
	blob, err := crypto.Encrypt(key, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("vault: failed to encrypt value: %w", err)
	}
	return blob, nil
}

func decryptValue(key []byte, blob string) (string, error) {
	plaintext, err := crypto.Decrypt(key, blob)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func warnStderr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
