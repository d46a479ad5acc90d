// Package exportimport implements the portable secret-bundle codec:
// SECRETS_EXPORT_V1-framed, password-encrypted JSON arrays of secrets,
// independent of the whole-vault backup format in pkg/backup.
package exportimport

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// Magic is the 17-byte literal every export file begins with.
const Magic = "SECRETS_EXPORT_V1"

const (
	saltLength  = crypto.SaltLength
	ivLength    = crypto.NonceLength
	tagLength   = crypto.TagLength
	headerWidth = len(Magic) + saltLength + ivLength + tagLength
)

var (
	// ErrInvalidMagic indicates the file does not begin with the
	// expected 17-byte literal.
	ErrInvalidMagic = errors.New("exportimport: invalid magic header")

	// ErrTruncated indicates the file ended before a fixed-width header
	// field could be fully read.
	ErrTruncated = errors.New("exportimport: truncated file")

	// ErrDecryptionFailed indicates the export password was wrong or the
	// ciphertext was corrupted.
	ErrDecryptionFailed = errors.New("exportimport: decryption failed")
)

// Entry is one row of the exported plaintext JSON array.
type Entry struct {
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	Environment string   `json:"environment"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Encode encrypts entries as the export bundle's wire format under a key
// derived from password with a freshly generated salt.
func Encode(entries []Entry, password string) ([]byte, error) {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("exportimport: failed to marshal entries: %w", err)
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key := crypto.DeriveMasterKey(password, salt)
	defer crypto.Zeroize(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	out := make([]byte, 0, headerWidth+len(ciphertext))
	out = append(out, []byte(Magic)...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decode verifies the magic header, decrypts the payload under password,
// and parses the resulting JSON array.
func Decode(data []byte, password string) ([]Entry, error) {
	if len(data) < headerWidth {
		return nil, ErrTruncated
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, ErrInvalidMagic
	}

	offset := len(Magic)
	salt := data[offset : offset+saltLength]
	offset += saltLength
	nonce := data[offset : offset+ivLength]
	offset += ivLength
	tag := data[offset : offset+tagLength]
	offset += tagLength
	ciphertext := data[offset:]

	key := crypto.DeriveMasterKey(password, salt)
	defer crypto.Zeroize(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var entries []Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("exportimport: failed to unmarshal entries: %w", err)
	}
	return entries, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("exportimport: failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
