// Package secrets is a lightweight per-user credential store backed by a
// single file (0600) with AES-GCM obfuscation. Not a replacement for OS
// keychains but avoids plain-text tokens next to the source registry.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	credFileName = "credentials.json"
	keyFileName  = "master.key"
)

// ErrNotFound is returned when no credential exists for a source.
var ErrNotFound = errors.New("credential not found")

// Store manages credentials keyed by source id.
type Store struct {
	dir string

	mu sync.Mutex
}

type credFile struct {
	Credentials map[string]string `json:"credentials"` // sourceID -> base64(ciphertext)
}

// NewStore creates a credential store rooted at dir (created 0700 on
// first write).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Set stores a credential for a source, replacing any existing one.
func (s *Store) Set(sourceID, secret string) error {
	if sourceID == "" {
		return fmt.Errorf("source id required")
	}
	if secret == "" {
		return fmt.Errorf("secret required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.load()
	if err != nil {
		return err
	}
	key, err := s.masterKey()
	if err != nil {
		return err
	}

	ct, err := encrypt(key, []byte(secret))
	if err != nil {
		return err
	}
	cf.Credentials[sourceID] = base64.StdEncoding.EncodeToString(ct)
	return s.save(cf)
}

// Has reports whether a credential exists for a source.
func (s *Store) Has(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.load()
	if err != nil {
		return false
	}
	_, ok := cf.Credentials[sourceID]
	return ok
}

// Delete removes a source's credential. Deleting a missing credential is
// not an error.
func (s *Store) Delete(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := cf.Credentials[sourceID]; !ok {
		return nil
	}
	delete(cf.Credentials, sourceID)
	return s.save(cf)
}

// Token returns the raw credential for the transport layer. Callers
// outside source sync must use Has/RedactedRef instead.
func (s *Store) Token(sourceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.load()
	if err != nil {
		return "", err
	}
	enc, ok := cf.Credentials[sourceID]
	if !ok {
		return "", ErrNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	key, err := s.masterKey()
	if err != nil {
		return "", err
	}
	pt, err := decrypt(key, raw)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// RedactedRef returns a display reference for a stored credential, never
// the secret itself.
func (s *Store) RedactedRef(sourceID string) string {
	if !s.Has(sourceID) {
		return ""
	}
	return "secret:" + sourceID
}

func (s *Store) credPath() string {
	return filepath.Join(s.dir, credFileName)
}

func (s *Store) load() (*credFile, error) {
	cf := &credFile{Credentials: map[string]string{}}
	data, err := os.ReadFile(s.credPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cf, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("parse credential store: %w", err)
	}
	if cf.Credentials == nil {
		cf.Credentials = map[string]string{}
	}
	return cf, nil
}

func (s *Store) save(cf *credFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.credPath(), data, 0600)
}

// masterKey loads the machine-local key, generating it on first use.
func (s *Store) masterKey() ([]byte, error) {
	path := filepath.Join(s.dir, keyFileName)
	key, err := os.ReadFile(path)
	if err == nil && len(key) == 32 {
		return key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, err
	}
	return key, nil
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
