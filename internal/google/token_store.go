package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = errors.New("no Google OAuth token found")

// TokenStore persists a single OAuth token.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
	Remove() error
}

// DefaultTokenPath returns the token file location under the XDG cache directory.
func DefaultTokenPath() string {
	return filepath.Join(xdg.CacheHome, "attachfinder", "google-token.json")
}

// FileTokenStore keeps the token as JSON in a file readable only by the owner.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore returns a store at path, or DefaultTokenPath when path is empty.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = DefaultTokenPath()
	}
	return &FileTokenStore{path: path}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token. A missing file yields ErrNoToken.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	return decodeToken(data)
}

// Save writes the token, creating the parent directory if needed.
func (s *FileTokenStore) Save(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Remove deletes the token file. Removing a missing token is not an error.
func (s *FileTokenStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// keyringTokenKey is the item key under which the token is stored.
const keyringTokenKey = "google-token"

// KeyringTokenStore keeps the token in the operating system keyring.
type KeyringTokenStore struct {
	ring keyring.Keyring
}

// NewKeyringTokenStore wraps an already opened keyring.
func NewKeyringTokenStore(ring keyring.Keyring) *KeyringTokenStore {
	return &KeyringTokenStore{ring: ring}
}

// OpenKeyringTokenStore opens the system keyring for the attachfinder
// service. fileDir and password configure the encrypted file fallback used
// on hosts without a keychain or Secret Service.
func OpenKeyringTokenStore(fileDir, password string) (*KeyringTokenStore, error) {
	if fileDir == "" {
		fileDir = filepath.Join(xdg.DataHome, "attachfinder", "keyring")
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: "attachfinder",
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:          fileDir,
		FilePasswordFunc: keyring.FixedStringPrompt(password),
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringTokenStore(ring), nil
}

// Load reads the token from the keyring.
func (s *KeyringTokenStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(keyringTokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token from keyring: %w", err)
	}
	return decodeToken(item.Data)
}

// Save writes the token to the keyring.
func (s *KeyringTokenStore) Save(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:   keyringTokenKey,
		Data:  data,
		Label: "attachfinder Google token",
	})
	if err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	return nil
}

// Remove deletes the token from the keyring. A missing token is not an error.
func (s *KeyringTokenStore) Remove() error {
	if err := s.ring.Remove(keyringTokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing token from keyring: %w", err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &token, nil
}
