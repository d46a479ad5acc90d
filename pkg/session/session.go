// Package session caches the unlocked vault's master key on disk for the
// duration of a single interactive terminal session, so a user does not
// have to re-enter their password for every command invocation.
//
// File layout (JSON, mode 0600):
//
//	{
//	  "encrypted_master_key": "base64(nonce|tag|ciphertext)",
//	  "session_key":           "base64(32 random bytes)",
//	  "expires_at":             millis,
//	  "created_at":             millis
//	}
//
// A local attacker with read access to this file obtains the master key,
// because the session key sits right next to it. That is accepted: the
// threat model here is convenience across one interactive terminal
// session, not defense against a root-privileged adversary.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
)

// FileName is the session cache file's name inside the vault root.
const FileName = ".session"

// FileMode matches the teacher's lock-state file permission.
const FileMode = 0o600

// sessionKeyLength is the length of the random session key stored in the
// file, matching the spec's "32 random bytes".
const sessionKeyLength = 32

const hkdfInfoEncryption = "secrets-manager-session-encryption"

// file is the on-disk JSON shape.
type file struct {
	EncryptedMasterKey string `json:"encrypted_master_key"`
	SessionKey         string `json:"session_key"`
	ExpiresAt          int64  `json:"expires_at"`
	CreatedAt          int64  `json:"created_at"`
}

// Cache is bound to a single vault root directory.
type Cache struct {
	root string
}

// New returns a session cache bound to root.
func New(root string) *Cache {
	return &Cache{root: root}
}

func (c *Cache) path() string {
	return filepath.Join(c.root, FileName)
}

// SaveSession encrypts masterKey under a freshly generated session key and
// writes it to disk with an expiry timeoutMinutes from now.
func (c *Cache) SaveSession(masterKey []byte, timeoutMinutes int) error {
	sessionKey := make([]byte, sessionKeyLength)
	if _, err := rand.Read(sessionKey); err != nil {
		return fmt.Errorf("session: failed to generate session key: %w", err)
	}

	encKey, err := deriveEncryptionKey(sessionKey)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(encKey)

	encrypted, err := crypto.Encrypt(encKey, masterKey)
	if err != nil {
		return fmt.Errorf("session: failed to encrypt master key: %w", err)
	}

	now := time.Now()
	f := file{
		EncryptedMasterKey: encrypted,
		SessionKey:         base64.StdEncoding.EncodeToString(sessionKey),
		ExpiresAt:          now.Add(time.Duration(timeoutMinutes) * time.Minute).UnixMilli(),
		CreatedAt:          now.UnixMilli(),
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := os.WriteFile(c.path(), data, FileMode); err != nil {
		return fmt.Errorf("session: failed to write session file: %w", err)
	}
	return nil
}

// LoadSession returns the cached master key, or nil if no valid session
// exists. An expired or unparseable session file is deleted and treated as
// absent, matching the spec's recovery rule for this cache.
func (c *Cache) LoadSession() ([]byte, error) {
	data, err := os.ReadFile(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: failed to read session file: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		c.DeleteSession()
		return nil, nil
	}

	if time.Now().UnixMilli() > f.ExpiresAt {
		c.DeleteSession()
		return nil, nil
	}

	sessionKey, err := base64.StdEncoding.DecodeString(f.SessionKey)
	if err != nil {
		c.DeleteSession()
		return nil, nil
	}

	encKey, err := deriveEncryptionKey(sessionKey)
	if err != nil {
		c.DeleteSession()
		return nil, nil
	}
	defer crypto.Zeroize(encKey)

	masterKey, err := crypto.Decrypt(encKey, f.EncryptedMasterKey)
	if err != nil {
		c.DeleteSession()
		return nil, nil
	}
	return masterKey, nil
}

// ExtendSession rewrites expires_at to timeoutMinutes from now, leaving
// the encrypted master key untouched. Returns false if no session file
// exists.
func (c *Cache) ExtendSession(timeoutMinutes int) (bool, error) {
	data, err := os.ReadFile(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("session: failed to read session file: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return false, nil
	}

	f.ExpiresAt = time.Now().Add(time.Duration(timeoutMinutes) * time.Minute).UnixMilli()

	out, err := json.Marshal(f)
	if err != nil {
		return false, fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := os.WriteFile(c.path(), out, FileMode); err != nil {
		return false, fmt.Errorf("session: failed to write session file: %w", err)
	}
	return true, nil
}

// HasValidSession reports whether a non-expired session file exists,
// without decrypting anything.
func (c *Cache) HasValidSession() bool {
	data, err := os.ReadFile(c.path())
	if err != nil {
		return false
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return false
	}
	return time.Now().UnixMilli() <= f.ExpiresAt
}

// DeleteSession zero-fills the session file before unlinking it, to
// frustrate casual inspection of freed disk blocks, then removes it. A
// missing file is not an error.
func (c *Cache) DeleteSession() error {
	path := c.path()
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("session: failed to stat session file: %w", err)
	}

	zeros := make([]byte, info.Size())
	if werr := os.WriteFile(path, zeros, FileMode); werr != nil {
		// Best effort; still attempt removal even if the overwrite failed.
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: failed to remove session file: %w", err)
	}
	return nil
}

// deriveEncryptionKey expands the random session key into the AEAD key
// actually used to seal the master key via HKDF, rather than using a raw
// secret directly as a cipher key.
func deriveEncryptionKey(sessionKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, sessionKey, nil, []byte(hkdfInfoEncryption))
	key := make([]byte, crypto.KeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("session: failed to derive encryption key: %w", err)
	}
	return key, nil
}
