// Package crypto keeps the API token at rest encrypted instead of as a
// plaintext row. Secrets live under the data directory with a per-device
// key, so a copied database file alone does not leak credentials.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"github.com/PastorRae/visitation-log/internal/errors"
)

const (
	secretsDir = "secrets"
	keyFile    = ".key"
	keySize    = 32 // AES-256
)

// TokenStore persists named secrets encrypted with AES-GCM under a
// device-local key.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a TokenStore rooted in the data directory. The
// secrets directory and device key are created on first use.
func NewTokenStore(dataDir string) *TokenStore {
	return &TokenStore{dir: filepath.Join(dataDir, secretsDir)}
}

// Save encrypts and writes one secret.
func (s *TokenStore) Save(name, secret string) error {
	key, err := s.deviceKey()
	if err != nil {
		return err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to generate nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	path := filepath.Join(s.dir, name+".enc")
	if err := os.WriteFile(path, sealed, 0600); err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to write secret", err)
	}
	return nil
}

// Load decrypts one secret. The second return reports whether the
// secret exists.
func (s *TokenStore) Load(name string) (string, bool, error) {
	path := filepath.Join(s.dir, name+".enc")
	sealed, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(errors.ErrInternal, "failed to read secret", err)
	}

	key, err := s.deviceKey()
	if err != nil {
		return "", false, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", false, err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", false, errors.New(errors.ErrInternal, "stored secret is truncated")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrInternal, "failed to decrypt secret", err)
	}
	return string(plain), true, nil
}

// Delete removes one secret. Deleting a missing secret is not an error.
func (s *TokenStore) Delete(name string) error {
	err := os.Remove(filepath.Join(s.dir, name+".enc"))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrInternal, "failed to delete secret", err)
	}
	return nil
}

// deviceKey loads the per-device key, generating it on first use.
func (s *TokenStore) deviceKey() ([]byte, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to create secrets directory", err)
	}

	path := filepath.Join(s.dir, keyFile)
	key, err := os.ReadFile(path)
	if err == nil && len(key) == keySize {
		return key, nil
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to generate device key", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to write device key", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to build cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to build AEAD", err)
	}
	return gcm, nil
}
