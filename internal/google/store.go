package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// ErrTokenNotFound indicates that no credential has been stored yet.
// This is an expected state (the operator has not authorized), not a
// corruption.
var ErrTokenNotFound = errors.New("no stored google token")

// TokenStore persists the delegated-authorization credential.
// The stored copy must always be a snapshot of a token the AuthManager held.
type TokenStore interface {
	// Load returns the stored token, or ErrTokenNotFound if none exists.
	Load() (*oauth2.Token, error)

	// Save persists the token, replacing any previous one.
	Save(tok *oauth2.Token) error

	// Delete removes the stored token. Deleting a token that does not
	// exist is not an error.
	Delete() error
}

// FileTokenStore stores a single JSON-serialized token at a fixed path on
// disk. The token grants read access to the operator's calendar, so the
// file is created user-only (0600) in a user-only directory (0700).
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a file-based token store at the given path.
// An empty path selects DefaultTokenPath.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = DefaultTokenPath()
	}
	return &FileTokenStore{path: path}
}

// DefaultTokenPath returns the default location for the stored token,
// under the user cache directory.
func DefaultTokenPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(dir, "availd", "google-token.json")
}

// Path returns the location this store reads and writes.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads and decodes the stored token.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", s.path, err)
	}

	return &tok, nil
}

// Save writes the token, creating the parent directory if needed.
func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// Delete removes the token file.
func (s *FileTokenStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
