package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// Field widths for the encrypted framing, matching pkg/crypto's fixed
// parameters so a backup password is cryptographically equivalent to the
// vault master password without being the same key.
const (
	SaltLength  = crypto.SaltLength
	NonceLength = crypto.NonceLength
	TagLength   = crypto.TagLength
)

func generateSalt() ([]byte, error) {
	return crypto.GenerateSalt()
}

func zeroize(b []byte) {
	crypto.Zeroize(b)
}

// deriveKey derives the backup encryption key from the backup password.
// It is intentionally the same PBKDF2 parameters as the vault master key,
// per §4.1's fixed derivation parameters, keyed by an independent salt so
// the backup password and vault master password never collide.
func deriveKey(password string, salt []byte) []byte {
	return crypto.DeriveMasterKey(password, salt)
}

// sealRaw encrypts plaintext under key with AES-256-GCM, returning the
// nonce, ciphertext and tag as separate slices, matching the
// backup wire format's fixed-width nonce/tag fields rather than
// pkg/crypto's base64 nonce‖tag‖ciphertext framing.
func sealRaw(key, plaintext []byte) (nonce, ciphertext, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}
	nonce, err = crypto.GenerateNonce()
	if err != nil {
		return nil, nil, nil, err
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagLength]
	tag = sealed[len(sealed)-TagLength:]
	return nonce, ciphertext, tag, nil
}

// openRaw reverses sealRaw.
func openRaw(key, nonce, tag, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
