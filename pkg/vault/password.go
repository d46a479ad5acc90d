package vault

import (
	"encoding/base64"
	"fmt"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// ChangeMasterPassword re-encrypts every secret and the verification
// sentinel under a freshly derived key, without requiring the vault to
// already be unlocked. If it was unlocked at call time, the in-memory key
// is swapped so subsequent operations use the new password transparently.
//
// The whole re-encryption runs in a single transaction: if any row fails
// to decrypt under the old key, the operation aborts and the database is
// left exactly as it was.
func (v *Vault) ChangeMasterPassword(oldPassword, newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !store.VaultExists(v.root) {
		return ErrVaultNotInitialized
	}

	wasUnlocked := v.state == StateUnlocked

	s := v.store
	if s == nil {
		var err error
		s, err = store.Open(v.root)
		if err != nil {
			return err
		}
		defer s.Close()
	}

	saltB64, err := s.GetMeta(metaKeySalt)
	if err != nil {
		return fmt.Errorf("%w: missing salt", ErrVaultCorrupted)
	}
	oldSalt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return fmt.Errorf("%w: malformed salt", ErrVaultCorrupted)
	}

	sentinel, err := s.GetMeta(metaKeySentinel)
	if err != nil {
		return fmt.Errorf("%w: missing verification sentinel", ErrVaultCorrupted)
	}

	oldKey := crypto.DeriveMasterKey(oldPassword, oldSalt)
	if !crypto.VerifyPassword(oldKey, sentinelPlaintext, sentinel) {
		crypto.Zeroize(oldKey)
		return ErrWrongPassword
	}

	newSalt, err := crypto.GenerateSalt()
	if err != nil {
		crypto.Zeroize(oldKey)
		return err
	}
	newKey := crypto.DeriveMasterKey(newPassword, newSalt)

	if err := v.reencryptAllLocked(s, oldKey, newKey, newSalt); err != nil {
		crypto.Zeroize(oldKey)
		crypto.Zeroize(newKey)
		return err
	}
	crypto.Zeroize(oldKey)

	if wasUnlocked {
		crypto.Zeroize(v.masterKey)
		v.masterKey = newKey
	} else {
		crypto.Zeroize(newKey)
	}

	return nil
}

// reencryptAllLocked decrypts every secret row under oldKey and
// re-encrypts it under newKey, along with the verification sentinel and
// salt meta, inside a single database transaction.
func (v *Vault) reencryptAllLocked(s *store.Store, oldKey, newKey, newSalt []byte) error {
	rows, err := s.AllSecrets()
	if err != nil {
		return err
	}

	tx, err := s.DB().Begin()
	if err != nil {
		return fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		plaintext, err := crypto.Decrypt(oldKey, row.Value)
		if err != nil {
			return ErrDecryptionFailed
		}
		ciphertext, err := crypto.Encrypt(newKey, plaintext)
		if err != nil {
			return fmt.Errorf("vault: failed to re-encrypt secret %q: %w", row.Key, err)
		}
		if _, err := tx.Exec(`UPDATE secrets SET value = ? WHERE id = ?`, ciphertext, row.ID); err != nil {
			return fmt.Errorf("vault: failed to update secret %q: %w", row.Key, err)
		}
	}

	newSentinel, err := crypto.Encrypt(newKey, []byte(sentinelPlaintext))
	if err != nil {
		return fmt.Errorf("vault: failed to encrypt new sentinel: %w", err)
	}

	metaUpserts := map[string]string{
		metaKeySalt:     base64.StdEncoding.EncodeToString(newSalt),
		metaKeySentinel: newSentinel,
	}
	for k, val := range metaUpserts {
		if _, err := tx.Exec(
			`INSERT INTO vault_meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, val,
		); err != nil {
			return fmt.Errorf("vault: failed to update meta %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vault: failed to commit password change: %w", err)
	}
	return nil
}
