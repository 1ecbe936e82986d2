package server

import (
	"fmt"
	"net/http"

	"github.com/teemow/availd/internal/logging"
)

// handleAuthorize redirects the operator's browser to the Google consent
// screen. The consent URL requests offline access and forces re-consent so a
// refresh token is issued even on re-authorization.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("redirecting for google authorization")
	http.Redirect(w, r, s.auth.AuthURL(), http.StatusFound)
}

// handleOAuthCallback is the authorization redirect target. It exchanges the
// one-time code for a credential and persists it.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Authorization code missing.", http.StatusBadRequest)
		return
	}

	if err := s.auth.Exchange(r.Context(), code); err != nil {
		s.logger.Error("authorization code exchange failed", logging.Err(err))
		s.metrics.RecordOAuthExchange(r.Context(), "failure")
		http.Error(w, "Failed to retrieve access token.", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordOAuthExchange(r.Context(), "success")
	fmt.Fprint(w, "Authorization successful! You can close this tab.")
}
