package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Framing flag byte values.
const (
	FlagPlain     byte = 0x00
	FlagEncrypted byte = 0x01
)

// Metadata is the self-describing header every backup carries, kept in
// plaintext JSON even inside an encrypted backup, so list_backups can
// enumerate and sort backups without a password.
type Metadata struct {
	Version      int   `json:"version"`
	CreatedAt    int64 `json:"created_at"`
	SecretsCount int   `json:"secrets_count"`
}

// MetadataFormatVersion is written into every backup's metadata.version.
const MetadataFormatVersion = 1

// WritePlain writes the unencrypted framing:
// 0x00 | u32 BE metadata_len | metadata_json | vaultBytes.
func WritePlain(w io.Writer, meta Metadata, vaultBytes []byte) error {
	if _, err := w.Write([]byte{FlagPlain}); err != nil {
		return fmt.Errorf("backup: failed to write flag: %w", err)
	}
	if err := writeMetadata(w, meta); err != nil {
		return err
	}
	if _, err := w.Write(vaultBytes); err != nil {
		return fmt.Errorf("backup: failed to write vault bytes: %w", err)
	}
	return nil
}

// WriteEncrypted writes the encrypted framing:
// 0x01 | salt(16) | iv(12) | tag(16) | u32 BE metadata_len | metadata_json | ciphertext.
// vaultBytes is encrypted under a key derived from password; metadata is
// never encrypted.
func WriteEncrypted(w io.Writer, meta Metadata, vaultBytes []byte, password string) error {
	salt, err := generateSalt()
	if err != nil {
		return err
	}
	key := deriveKey(password, salt)
	defer zeroize(key)

	nonce, ciphertext, tag, err := sealRaw(key, vaultBytes)
	if err != nil {
		return fmt.Errorf("backup: failed to encrypt vault bytes: %w", err)
	}

	if _, err := w.Write([]byte{FlagEncrypted}); err != nil {
		return fmt.Errorf("backup: failed to write flag: %w", err)
	}
	if _, err := w.Write(salt); err != nil {
		return fmt.Errorf("backup: failed to write salt: %w", err)
	}
	if _, err := w.Write(nonce); err != nil {
		return fmt.Errorf("backup: failed to write iv: %w", err)
	}
	if _, err := w.Write(tag); err != nil {
		return fmt.Errorf("backup: failed to write tag: %w", err)
	}
	if err := writeMetadata(w, meta); err != nil {
		return err
	}
	if _, err := w.Write(ciphertext); err != nil {
		return fmt.Errorf("backup: failed to write ciphertext: %w", err)
	}
	return nil
}

// ReadAny reads either framing, decrypting with password if the file is
// the encrypted variant. password is ignored for plain backups.
func ReadAny(r io.Reader, password string) (meta Metadata, vaultBytes []byte, err error) {
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return Metadata{}, nil, fmt.Errorf("%w: flag byte", ErrTruncated)
	}

	switch flag[0] {
	case FlagPlain:
		meta, err := readMetadata(r)
		if err != nil {
			return Metadata{}, nil, err
		}
		vaultBytes, err := io.ReadAll(r)
		if err != nil {
			return Metadata{}, nil, fmt.Errorf("%w: vault bytes", ErrTruncated)
		}
		return meta, vaultBytes, nil

	case FlagEncrypted:
		salt := make([]byte, SaltLength)
		if _, err := io.ReadFull(r, salt); err != nil {
			return Metadata{}, nil, fmt.Errorf("%w: salt", ErrTruncated)
		}
		nonce := make([]byte, NonceLength)
		if _, err := io.ReadFull(r, nonce); err != nil {
			return Metadata{}, nil, fmt.Errorf("%w: iv", ErrTruncated)
		}
		tag := make([]byte, TagLength)
		if _, err := io.ReadFull(r, tag); err != nil {
			return Metadata{}, nil, fmt.Errorf("%w: tag", ErrTruncated)
		}
		meta, err := readMetadata(r)
		if err != nil {
			return Metadata{}, nil, err
		}
		ciphertext, err := io.ReadAll(r)
		if err != nil {
			return Metadata{}, nil, fmt.Errorf("%w: ciphertext", ErrTruncated)
		}

		key := deriveKey(password, salt)
		defer zeroize(key)
		plaintext, err := openRaw(key, nonce, tag, ciphertext)
		if err != nil {
			return Metadata{}, nil, err
		}
		return meta, plaintext, nil

	default:
		return Metadata{}, nil, ErrInvalidFlag
	}
}

// ReadMetadataOnly reads just the flag and metadata, skipping over (and
// discarding) the vault payload, for list_backups to use without a
// password.
func ReadMetadataOnly(r io.Reader) (Metadata, error) {
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return Metadata{}, fmt.Errorf("%w: flag byte", ErrTruncated)
	}
	switch flag[0] {
	case FlagPlain:
		return readMetadata(r)
	case FlagEncrypted:
		skip := make([]byte, SaltLength+NonceLength+TagLength)
		if _, err := io.ReadFull(r, skip); err != nil {
			return Metadata{}, fmt.Errorf("%w: encrypted header", ErrTruncated)
		}
		return readMetadata(r)
	default:
		return Metadata{}, ErrInvalidFlag
	}
}

func writeMetadata(w io.Writer, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("backup: failed to marshal metadata: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("backup: failed to write metadata length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("backup: failed to write metadata: %w", err)
	}
	return nil
}

func readMetadata(r io.Reader) (Metadata, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return Metadata{}, fmt.Errorf("%w: metadata length", ErrTruncated)
	}
	if length > 10*1024*1024 {
		return Metadata{}, fmt.Errorf("backup: metadata implausibly large: %d bytes", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Metadata{}, fmt.Errorf("%w: metadata body", ErrTruncated)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("backup: failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}
