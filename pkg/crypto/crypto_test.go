package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveMasterKey("correct horse battery staple", salt)
	k2 := DeriveMasterKey("correct horse battery staple", salt)
	if !bytes.Equal(k1, k2) {
		t.Fatal("expected identical derivation for identical inputs")
	}
	if len(k1) != KeyLength {
		t.Fatalf("expected %d byte key, got %d", KeyLength, len(k1))
	}
}

func TestDeriveMasterKeyDistinctInputs(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveMasterKey("password-one", salt)
	k2 := DeriveMasterKey("password-two", salt)
	if bytes.Equal(k1, k2) {
		t.Fatal("distinct passwords must not derive the same key")
	}

	otherSalt := []byte("fedcba9876543210")
	k3 := DeriveMasterKey("password-one", otherSalt)
	if bytes.Equal(k1, k3) {
		t.Fatal("distinct salts must not derive the same key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeyLength)
	for i := range key {
		key[i] = byte(i)
	}

	plaintext := []byte("postgres://localhost/db")
	blob, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(key, blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestEncryptFreshNoncePerCall(t *testing.T) {
	key := make([]byte, KeyLength)
	plaintext := []byte("same-plaintext")

	b1, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b2, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if b1 == b2 {
		t.Fatal("two encryptions of the same plaintext must not be identical")
	}
}

func TestDecryptTamperedTagFails(t *testing.T) {
	key := make([]byte, KeyLength)
	blob, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Flip a byte inside the tag region: bytes [12:28).
	raw[15] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := Decrypt(key, tampered); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptShortBlobFails(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := Decrypt(key, base64.StdEncoding.EncodeToString([]byte("short"))); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptInvalidBase64Fails(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := Decrypt(key, "not base64!!"); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual([]byte("abc"), []byte("abc")) {
		t.Fatal("expected equal byte slices to compare equal")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("abd")) {
		t.Fatal("expected differing byte slices to compare unequal")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("ab")) {
		t.Fatal("expected differing-length slices to compare unequal")
	}
}

func TestVerifyPassword(t *testing.T) {
	key := DeriveMasterKey("master-password", []byte("0123456789abcdef"))
	sentinel, err := Encrypt(key, []byte("secrets-manager-v1"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if !VerifyPassword(key, "secrets-manager-v1", sentinel) {
		t.Fatal("expected correct key to verify")
	}

	wrongKey := DeriveMasterKey("wrong-password", []byte("0123456789abcdef"))
	if VerifyPassword(wrongKey, "secrets-manager-v1", sentinel) {
		t.Fatal("expected wrong key to fail verification")
	}
}

func TestZeroize(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	Zeroize(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}
