package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// memTokenStore is an in-memory TokenStore for tests.
type memTokenStore struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	saves int
}

func (s *memTokenStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, ErrTokenNotFound
	}
	return s.tok, nil
}

func (s *memTokenStore) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
	s.saves++
	return nil
}

func (s *memTokenStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}

func (s *memTokenStore) stored() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok
}

// newTokenEndpoint serves the OAuth2 token endpoint with a canned response.
func newTokenEndpoint(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/oauth2callback",
		Scopes:       []string{CalendarReadonlyScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://example.com/auth",
			TokenURL: tokenURL,
		},
	}
}

func TestInitializeWithoutStoredToken(t *testing.T) {
	mgr := NewAuthManager(testConfig(""), &memTokenStore{}, nil)
	mgr.Initialize()

	if mgr.Authorized() {
		t.Error("manager should be unauthorized without a stored token")
	}
	if _, err := mgr.Token(); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Token() error = %v, want ErrUnauthorized", err)
	}
}

func TestInitializeWithStoredToken(t *testing.T) {
	store := &memTokenStore{tok: &oauth2.Token{
		AccessToken:  "stored",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}}
	mgr := NewAuthManager(testConfig(""), store, nil)
	mgr.Initialize()

	if !mgr.Authorized() {
		t.Fatal("manager should be authorized after loading a stored token")
	}
	tok, err := mgr.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "stored" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "stored")
	}
}

func TestExchangePersistsBeforeActivation(t *testing.T) {
	srv := newTokenEndpoint(t, http.StatusOK,
		`{"access_token":"fresh","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`)
	defer srv.Close()

	store := &memTokenStore{}
	mgr := NewAuthManager(testConfig(srv.URL), store, nil)

	if err := mgr.Exchange(context.Background(), "auth-code"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if !mgr.Authorized() {
		t.Error("manager should be authorized after exchange")
	}
	stored := store.stored()
	if stored == nil {
		t.Fatal("exchange did not persist the token")
	}
	if stored.AccessToken != "fresh" || stored.RefreshToken != "refresh-1" {
		t.Errorf("stored token = %q/%q, want fresh/refresh-1", stored.AccessToken, stored.RefreshToken)
	}
}

func TestExchangeRejectedCode(t *testing.T) {
	srv := newTokenEndpoint(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	defer srv.Close()

	store := &memTokenStore{}
	mgr := NewAuthManager(testConfig(srv.URL), store, nil)

	err := mgr.Exchange(context.Background(), "bad-code")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Exchange() error = %v, want ErrExchangeFailed", err)
	}
	if mgr.Authorized() {
		t.Error("manager should stay unauthorized after a failed exchange")
	}
	if store.stored() != nil {
		t.Error("failed exchange must not persist anything")
	}
}

func TestInvalidateClearsTokenAndStore(t *testing.T) {
	store := &memTokenStore{tok: &oauth2.Token{AccessToken: "stored"}}
	mgr := NewAuthManager(testConfig(""), store, nil)
	mgr.Initialize()

	mgr.Invalidate()

	if mgr.Authorized() {
		t.Error("manager should be unauthorized after Invalidate")
	}
	if store.stored() != nil {
		t.Error("Invalidate should delete the stored token")
	}
	if _, err := mgr.TokenSource(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("TokenSource() error = %v, want ErrUnauthorized", err)
	}
}

func TestTokenSourcePersistsRefreshedToken(t *testing.T) {
	srv := newTokenEndpoint(t, http.StatusOK,
		`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	store := &memTokenStore{tok: &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "refresh-keep",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	mgr := NewAuthManager(testConfig(srv.URL), store, nil)
	mgr.Initialize()

	ts, err := mgr.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "refreshed" {
		t.Fatalf("AccessToken = %q, want %q", tok.AccessToken, "refreshed")
	}

	stored := store.stored()
	if stored == nil || stored.AccessToken != "refreshed" {
		t.Fatalf("refreshed token was not persisted, stored = %+v", stored)
	}
	// Google omits the refresh token on plain refreshes; the stored copy
	// must keep the one it already had.
	if stored.RefreshToken != "refresh-keep" {
		t.Errorf("stored RefreshToken = %q, want %q", stored.RefreshToken, "refresh-keep")
	}

	active, err := mgr.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if active.AccessToken != stored.AccessToken {
		t.Errorf("active token %q does not match stored token %q", active.AccessToken, stored.AccessToken)
	}
}

func TestConcurrentRefreshesLastWriteMatchesActive(t *testing.T) {
	var mu sync.Mutex
	issued := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		issued++
		access := fmt.Sprintf("tok-%d", issued)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, access)
	}))
	defer srv.Close()

	store := &memTokenStore{tok: &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "refresh-keep",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	mgr := NewAuthManager(testConfig(srv.URL), store, nil)
	mgr.Initialize()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts, err := mgr.TokenSource(context.Background())
			if err != nil {
				t.Errorf("TokenSource() error = %v", err)
				return
			}
			if _, err := ts.Token(); err != nil {
				t.Errorf("Token() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// However the refreshes interleave, the stored credential must match
	// the active one: last refresh wins, no stale write survives.
	stored := store.stored()
	if stored == nil {
		t.Fatal("no token was persisted")
	}
	active, err := mgr.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if stored.AccessToken != active.AccessToken {
		t.Errorf("stored token %q does not match active token %q", stored.AccessToken, active.AccessToken)
	}
	if stored.AccessToken == "expired" {
		t.Error("stored token was never refreshed")
	}
	if stored.RefreshToken != "refresh-keep" {
		t.Errorf("stored RefreshToken = %q, want %q", stored.RefreshToken, "refresh-keep")
	}
}

func TestTokenSourceDoesNotRepersistSameToken(t *testing.T) {
	store := &memTokenStore{tok: &oauth2.Token{
		AccessToken:  "valid",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}}
	mgr := NewAuthManager(testConfig(""), store, nil)
	mgr.Initialize()

	ts, err := mgr.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := ts.Token(); err != nil {
			t.Fatalf("Token() error = %v", err)
		}
	}

	if store.saves != 0 {
		t.Errorf("unchanged token was persisted %d times, want 0", store.saves)
	}
}

func TestAuthURLRequestsOfflineAccess(t *testing.T) {
	mgr := NewAuthManager(testConfig(""), &memTokenStore{}, nil)
	u := mgr.AuthURL()

	for _, part := range []string{"access_type=offline", "prompt=consent", "client_id=client-id"} {
		if !strings.Contains(u, part) {
			t.Errorf("AuthURL() = %q, missing %q", u, part)
		}
	}
}
