package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/availd/internal/google"
)

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker(nil)

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	h := NewHealthChecker(nil)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status when ready = %d, want %d", rec.Code, http.StatusOK)
	}

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status when not ready = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	h.SetReady(true)
	if !h.IsReady() {
		t.Error("IsReady() = false after SetReady(true)")
	}
}

func TestReadinessUnauthorizedIsInformational(t *testing.T) {
	auth := google.NewAuthManager(&oauth2.Config{ClientID: "id"}, &memTokenStore{}, nil)
	auth.Initialize()
	h := NewHealthChecker(auth)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	// An unauthorized credential degrades replies to "Busy" but must not
	// take the service out of rotation.
	if rec.Code != http.StatusOK {
		t.Errorf("status while unauthorized = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Checks["google_auth"] != "unauthorized" {
		t.Errorf("google_auth check = %q, want unauthorized", resp.Checks["google_auth"])
	}
}

func TestDetailedHealthHandler(t *testing.T) {
	store := &memTokenStore{tok: &oauth2.Token{
		AccessToken: "valid",
		Expiry:      time.Now().Add(time.Hour),
	}}
	auth := google.NewAuthManager(&oauth2.Config{ClientID: "id"}, store, nil)
	auth.Initialize()
	h := NewHealthChecker(auth)

	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp DetailedHealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if !resp.Authorized {
		t.Error("Authorized = false with a loaded credential")
	}
	if resp.Uptime == "" {
		t.Error("Uptime is empty")
	}
}
