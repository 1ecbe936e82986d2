package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/teemow/availd/internal/availability"
	"github.com/teemow/availd/internal/google"
	"github.com/teemow/availd/internal/policy"
)

// newOAuthEnv builds a Server whose auth manager exchanges codes against
// the given token endpoint.
func newOAuthEnv(t *testing.T, tokenURL string) (*Server, *google.AuthManager) {
	t.Helper()

	conf := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/oauth2callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenURL,
		},
	}
	auth := google.NewAuthManager(conf, &memTokenStore{}, nil)
	auth.Initialize()

	orch := availability.NewOrchestrator(
		policy.NewAllowList(nil), &fakeChecker{}, &fakeSender{}, false, nil, nil)

	srv := New(Config{
		Addr:         ":0",
		Orchestrator: orch,
		Auth:         auth,
		Dispatch:     func(fn func()) { fn() },
	})
	return srv, auth
}

func TestAuthorizeRedirectsToConsent(t *testing.T) {
	srv, _ := newOAuthEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.example.com/auth") {
		t.Errorf("Location = %q, want consent URL", loc)
	}
	if !strings.Contains(loc, "access_type=offline") {
		t.Errorf("Location = %q, missing offline access", loc)
	}
}

func TestCallbackMissingCode(t *testing.T) {
	srv, _ := newOAuthEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Authorization code missing." {
		t.Errorf("body = %q, want %q", got, "Authorization code missing.")
	}
}

func TestCallbackExchangeSuccess(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer","refresh_token":"r","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	srv, auth := newOAuthEnv(t, tokenSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback?code=auth-code", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "Authorization successful! You can close this tab." {
		t.Errorf("body = %q, want success message", got)
	}
	if !auth.Authorized() {
		t.Error("manager should be authorized after a successful callback")
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer tokenSrv.Close()

	srv, auth := newOAuthEnv(t, tokenSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback?code=stale-code", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Failed to retrieve access token." {
		t.Errorf("body = %q, want %q", got, "Failed to retrieve access token.")
	}
	if auth.Authorized() {
		t.Error("manager should stay unauthorized after a failed exchange")
	}
}
