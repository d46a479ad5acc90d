package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
	"github.com/imrajyavardhan12/secrets-manager/pkg/audit"
	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// Initialize creates a fresh vault at the handle's root. If a vault file
// already exists and opts.Force is false, it fails with
// ErrVaultAlreadyInitialized.
func (v *Vault) Initialize(password string, opts InitOptions) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if store.VaultExists(v.root) && !opts.Force {
		return ErrVaultAlreadyInitialized
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}

	s, err := store.Open(v.root)
	if err != nil {
		return err
	}

	masterKey := crypto.DeriveMasterKey(password, salt)

	sentinel, err := encryptValue(masterKey, sentinelPlaintext)
	if err != nil {
		s.Close()
		crypto.Zeroize(masterKey)
		return err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAutoLockTimeout
	}

	meta := map[string]string{
		metaKeySalt:            base64.StdEncoding.EncodeToString(salt),
		metaKeyVersion:         schemaVersion,
		metaKeyCreatedAt:       strconv.FormatInt(time.Now().UnixMilli(), 10),
		metaKeyAutoLockTimeout: strconv.FormatInt(int64(timeout/time.Minute), 10),
		metaKeySentinel:        sentinel,
		metaKeyFailedAttempts:  "0",
		metaKeyLockoutUntil:    "",
	}
	for k, val := range meta {
		if err := s.SetMeta(k, val); err != nil {
			s.Close()
			crypto.Zeroize(masterKey)
			return err
		}
	}

	v.store = s
	v.audit = audit.NewLogger(s)
	v.masterKey = masterKey
	v.autoLockTimeout = timeout
	v.lastActivity = time.Now()
	v.state = StateUnlocked
	v.armTimerLocked()

	return nil
}

// Unlock verifies password against the vault's sentinel and, on success,
// loads the master key into memory and transitions to UNLOCKED.
func (v *Vault) Unlock(password string, opts UnlockOptions) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !store.VaultExists(v.root) {
		return ErrVaultNotInitialized
	}

	s, err := store.Open(v.root)
	if err != nil {
		return err
	}

	failedAttempts, lockoutUntil, err := readLockoutState(s)
	if err != nil {
		s.Close()
		return err
	}

	now := time.Now()

	// I5: a lockout in the future must reject the attempt without
	// consulting key derivation at all.
	if !lockoutUntil.IsZero() && lockoutUntil.After(now) {
		s.Close()
		return &LockedOutError{SecondsRemaining: int(lockoutUntil.Sub(now).Seconds()) + 1}
	}
	if !lockoutUntil.IsZero() && !lockoutUntil.After(now) {
		failedAttempts = 0
		if err := writeLockoutState(s, 0, time.Time{}); err != nil {
			s.Close()
			return err
		}
	}

	saltB64, err := s.GetMeta(metaKeySalt)
	if err != nil {
		s.Close()
		return fmt.Errorf("%w: missing salt", ErrVaultCorrupted)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		s.Close()
		return fmt.Errorf("%w: malformed salt", ErrVaultCorrupted)
	}

	sentinel, err := s.GetMeta(metaKeySentinel)
	if err != nil {
		s.Close()
		return fmt.Errorf("%w: missing verification sentinel", ErrVaultCorrupted)
	}

	candidateKey := crypto.DeriveMasterKey(password, salt)

	if !crypto.VerifyPassword(candidateKey, sentinelPlaintext, sentinel) {
		crypto.Zeroize(candidateKey)

		failedAttempts++
		if failedAttempts >= MaxFailedAttempts {
			lockoutUntil = now.Add(LockoutDuration)
			if err := writeLockoutState(s, failedAttempts, lockoutUntil); err != nil {
				s.Close()
				return err
			}
			v.state = StateLockedOut
			s.Close()
			return &LockedOutError{SecondsRemaining: int(LockoutDuration.Seconds())}
		}

		if err := writeLockoutState(s, failedAttempts, time.Time{}); err != nil {
			s.Close()
			return err
		}
		s.Close()
		return &WrongPasswordError{AttemptsRemaining: MaxFailedAttempts - failedAttempts}
	}

	if err := writeLockoutState(s, 0, time.Time{}); err != nil {
		s.Close()
		crypto.Zeroize(candidateKey)
		return err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = readAutoLockTimeout(s)
	}

	v.store = s
	v.audit = audit.NewLogger(s)
	v.masterKey = candidateKey
	v.autoLockTimeout = timeout
	v.lastActivity = now
	v.state = StateUnlocked
	v.armTimerLocked()

	return nil
}

// UnlockWithKey installs an already-derived master key directly, skipping
// password verification and the failed-attempt bookkeeping entirely. It
// exists for the session cache: a key that was itself loaded from an
// AEAD-decrypted session file has already proven its provenance, so
// re-deriving it from a password the caller doesn't have is neither
// possible nor necessary. The key is still checked against the
// verification sentinel, since a corrupted or foreign session file must
// not silently unlock the vault.
func (v *Vault) UnlockWithKey(key []byte, timeout time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !store.VaultExists(v.root) {
		return ErrVaultNotInitialized
	}

	s, err := store.Open(v.root)
	if err != nil {
		return err
	}

	sentinel, err := s.GetMeta(metaKeySentinel)
	if err != nil {
		s.Close()
		return fmt.Errorf("%w: missing verification sentinel", ErrVaultCorrupted)
	}
	if !crypto.VerifyPassword(key, sentinelPlaintext, sentinel) {
		s.Close()
		return ErrWrongPassword
	}

	if timeout <= 0 {
		timeout = readAutoLockTimeout(s)
	}

	v.store = s
	v.audit = audit.NewLogger(s)
	v.masterKey = make([]byte, len(key))
	copy(v.masterKey, key)
	v.autoLockTimeout = timeout
	v.lastActivity = time.Now()
	v.state = StateUnlocked
	v.armTimerLocked()

	return nil
}

// Lock disarms the auto-lock timer, zeroizes and drops the master key,
// closes the database, and transitions to LOCKED. Safe to call more than
// once; the second call is a no-op.
func (v *Vault) Lock() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lockLocked()
}

// lockLocked is Lock's body, usable both from Lock and from the auto-lock
// timer callback, which already holds v.mu.
func (v *Vault) lockLocked() error {
	v.disarmTimerLocked()

	if v.masterKey != nil {
		crypto.Zeroize(v.masterKey)
		v.masterKey = nil
	}
	v.audit = nil

	if v.store != nil {
		if err := v.store.Close(); err != nil {
			return fmt.Errorf("vault: failed to close database: %w", err)
		}
		v.store = nil
	}

	if v.state != StateNotInitialized {
		v.state = StateLocked
	}
	return nil
}

func readLockoutState(s *store.Store) (failedAttempts int, lockoutUntil time.Time, err error) {
	attemptsStr, err := s.GetMeta(metaKeyFailedAttempts)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, time.Time{}, err
	}
	if attemptsStr != "" {
		failedAttempts, _ = strconv.Atoi(attemptsStr)
	}

	untilStr, err := s.GetMeta(metaKeyLockoutUntil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, time.Time{}, err
	}
	if untilStr != "" {
		millis, convErr := strconv.ParseInt(untilStr, 10, 64)
		if convErr == nil {
			lockoutUntil = time.UnixMilli(millis)
		}
	}
	return failedAttempts, lockoutUntil, nil
}

func writeLockoutState(s *store.Store, failedAttempts int, lockoutUntil time.Time) error {
	if err := s.SetMeta(metaKeyFailedAttempts, strconv.Itoa(failedAttempts)); err != nil {
		return err
	}
	untilStr := ""
	if !lockoutUntil.IsZero() {
		untilStr = strconv.FormatInt(lockoutUntil.UnixMilli(), 10)
	}
	return s.SetMeta(metaKeyLockoutUntil, untilStr)
}

// LockoutStatus reports whether the vault is currently within a lockout
// window and, if so, how many seconds remain. It opens its own short-lived
// store handle when the vault isn't already open, so a CLI unlock command
// can report "try again in Ns" without attempting (and failing) a real
// Unlock call.
func (v *Vault) LockoutStatus() (lockedOut bool, secondsRemaining int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateLockedOut {
		// Fall through to read the persisted deadline below.
	} else if v.state != StateNotInitialized && v.state != StateLocked {
		return false, 0, nil
	}

	if !store.VaultExists(v.root) {
		return false, 0, nil
	}

	s := v.store
	if s == nil {
		s, err = store.Open(v.root)
		if err != nil {
			return false, 0, err
		}
		defer s.Close()
	}

	_, lockoutUntil, err := readLockoutState(s)
	if err != nil {
		return false, 0, err
	}
	now := time.Now()
	if lockoutUntil.IsZero() || !lockoutUntil.After(now) {
		return false, 0, nil
	}
	return true, int(lockoutUntil.Sub(now).Seconds()) + 1, nil
}

func readAutoLockTimeout(s *store.Store) time.Duration {
	raw, err := s.GetMeta(metaKeyAutoLockTimeout)
	if err != nil || raw == "" {
		return DefaultAutoLockTimeout
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return DefaultAutoLockTimeout
	}
	return time.Duration(minutes) * time.Minute
}
