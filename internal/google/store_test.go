package google

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(path)

	tok := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}

	if err := store.Save(tok); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.AccessToken != tok.AccessToken {
		t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, tok.AccessToken)
	}
	if loaded.RefreshToken != tok.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, tok.RefreshToken)
	}
	if !loaded.Expiry.Equal(tok.Expiry) {
		t.Errorf("Expiry = %v, want %v", loaded.Expiry, tok.Expiry)
	}
}

func TestFileTokenStoreMissingToken(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "absent.json"))

	_, err := store.Load()
	if !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Load() error = %v, want ErrTokenNotFound", err)
	}
}

func TestFileTokenStoreCorruptToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewFileTokenStore(path)
	_, err := store.Load()
	if err == nil {
		t.Fatal("Load() of corrupt file succeeded, want error")
	}
	if errors.Is(err, ErrTokenNotFound) {
		t.Error("corrupt file should not be reported as token-not-found")
	}
}

func TestFileTokenStoreSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")
	store := NewFileTokenStore(path)

	if err := store.Save(&oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 0600", perm)
	}
}

func TestFileTokenStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(path)

	if err := store.Save(&oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Load() after Delete() error = %v, want ErrTokenNotFound", err)
	}

	// Deleting again must not be an error.
	if err := store.Delete(); err != nil {
		t.Errorf("Delete() of absent token error = %v, want nil", err)
	}
}
