// Package crypto provides the cryptographic primitives the vault engine
// builds on: PBKDF2 key derivation, AES-256-GCM authenticated encryption,
// constant-time comparison, and key zeroization.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

// Fixed cryptographic parameters. These are not configurable: the on-disk
// format is self-describing only via the vault's schema version, so the
// derivation and AEAD parameters must never drift between releases.
const (
	// KeyLength is the derived master key length in bytes (256 bits).
	KeyLength = 32

	// SaltLength is the length of a freshly generated salt in bytes.
	SaltLength = 16

	// NonceLength is the GCM nonce length in bytes (96 bits).
	NonceLength = 12

	// TagLength is the GCM authentication tag length in bytes.
	TagLength = 16

	// PBKDF2Iterations is the iteration count for master key derivation.
	PBKDF2Iterations = 100_000
)

// Sentinel errors returned by this package.
var (
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

// DeriveMasterKey derives a 256-bit key from a password and salt using
// PBKDF2-HMAC-SHA256 with 100,000 iterations. Deterministic: identical
// password and salt always yield the identical key.
func DeriveMasterKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeyLength, sha256.New)
}

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateNonce returns 12 cryptographically random bytes.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Encrypt seals plaintext under key with AES-256-GCM and a fresh random
// nonce, returning base64(nonce ‖ tag ‖ ciphertext). Go's cipher.AEAD.Seal
// appends the tag to the end of the ciphertext; this function splits that
// combined output back out so the tag sits in its own fixed-size slot,
// matching the wire layout every other framing (backup, export) shares.
func Encrypt(key []byte, plaintext []byte) (string, error) {
	if len(key) != KeyLength {
		return "", ErrInvalidKeyLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-TagLength]
	tag := sealed[len(sealed)-TagLength:]

	blob := make([]byte, 0, NonceLength+TagLength+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryptionFailed if blob is
// not valid base64, too short to contain a nonce and tag, or fails AEAD
// verification under key.
func Decrypt(key []byte, blob string) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(raw) < NonceLength+TagLength {
		return nil, ErrDecryptionFailed
	}

	nonce := raw[:NonceLength]
	tag := raw[NonceLength : NonceLength+TagLength]
	ciphertext := raw[NonceLength+TagLength:]

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// ConstantTimeEqual compares two byte slices in time independent of their
// contents, including when their lengths differ.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		// Still run a comparison of equal length to avoid a length-only
		// timing signal distinguishing "different length" from "same
		// length, different content" at the caller.
		subtle.ConstantTimeCompare(a, a)
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// VerifyPassword decrypts encryptedSentinel under key and compares the
// result against testPlaintext in constant time. Any decryption error is
// treated as a verification failure, never propagated.
func VerifyPassword(key []byte, testPlaintext, encryptedSentinel string) bool {
	decrypted, err := Decrypt(key, encryptedSentinel)
	if err != nil {
		return false
	}
	return ConstantTimeEqual(decrypted, []byte(testPlaintext))
}

// Zeroize overwrites b with zeros in place. The runtime.KeepAlive call
// prevents the compiler from eliding the writes as dead stores.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}
