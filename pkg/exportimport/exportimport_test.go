package exportimport

import (
	"bytes"
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := []Entry{
		{Key: "API_KEY", Value: "secret-value", Environment: "dev"},
		{Key: "DB_URL", Value: "postgres://x", Environment: "prod", Description: "primary db", Tags: []string{"infra"}},
	}
	password := "export-password"

	encoded, err := Encode(entries, password)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !bytes.HasPrefix(encoded, []byte(Magic)) {
		t.Fatalf("expected encoded bundle to start with magic header")
	}

	decoded, err := Decode(encoded, password)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(decoded))
	}
	for i, e := range entries {
		if !reflect.DeepEqual(decoded[i], e) {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, decoded[i], e)
		}
	}
}

func TestDecodeWrongPasswordFails(t *testing.T) {
	encoded, err := Encode([]Entry{{Key: "K", Value: "v", Environment: "all"}}, "correct-password")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(encoded, "wrong-password"); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecodeInvalidMagicFails(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, headerWidth+10)
	if _, err := Decode(data, "anything"); err != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestDecodeTruncatedFails(t *testing.T) {
	if _, err := Decode([]byte(Magic), "anything"); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestEncodeFreshSaltPerCall(t *testing.T) {
	entries := []Entry{{Key: "K", Value: "v", Environment: "all"}}

	first, err := Encode(entries, "password")
	if err != nil {
		t.Fatalf("Encode first: %v", err)
	}
	second, err := Encode(entries, "password")
	if err != nil {
		t.Fatalf("Encode second: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct output across calls (fresh salt + nonce)")
	}
}
