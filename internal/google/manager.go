package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/teemow/availd/internal/logging"
)

// ErrUnauthorized indicates that no valid credential is present. The
// operator needs to complete the authorization-code flow before calendar
// queries can succeed.
var ErrUnauthorized = errors.New("google: not authorized")

// ErrExchangeFailed indicates that the provider rejected an
// authorization code.
var ErrExchangeFailed = errors.New("google: auth code exchange failed")

// AuthManager owns the live OAuth credential for the calendar provider.
//
// The active token is replaced atomically on every change and never mutated
// field by field, so concurrent readers need no lock. All writes to durable
// storage are serialized through persistMu so concurrent refreshes cannot
// overwrite a newer stored token with a stale one.
type AuthManager struct {
	conf   *oauth2.Config
	store  TokenStore
	logger *slog.Logger

	// persistMu serializes store writes and the accompanying active-token
	// swap. Reads of active go through the atomic pointer only.
	persistMu sync.Mutex
	active    atomic.Pointer[oauth2.Token]
}

// NewAuthManager creates an AuthManager for the given OAuth configuration
// and token store. Call Initialize to pick up a previously stored credential.
func NewAuthManager(conf *oauth2.Config, store TokenStore, logger *slog.Logger) *AuthManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthManager{
		conf:   conf,
		store:  store,
		logger: logging.WithComponent(logger, "google"),
	}
}

// Initialize loads a previously stored credential into memory. A missing or
// unreadable token is not fatal; the manager simply starts unauthorized and
// waits for a fresh authorization-code exchange.
func (m *AuthManager) Initialize() {
	tok, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			m.logger.Info("no stored google token, authorization required")
		} else {
			m.logger.Warn("stored google token unreadable, starting unauthorized", logging.Err(err))
		}
		m.active.Store(nil)
		return
	}

	m.active.Store(tok)
	m.logger.Info("google credential loaded",
		slog.Bool("has_refresh_token", tok.RefreshToken != ""))
}

// AuthURL returns the provider consent URL. Offline access plus forced
// approval ensure Google issues a refresh token even when the operator
// re-authorizes an already-consented client.
func (m *AuthManager) AuthURL() string {
	return m.conf.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades a one-time authorization code for a credential and makes
// it the active one. The token is persisted before it becomes active so the
// refresh token is durable from the first moment it can be used.
func (m *AuthManager) Exchange(ctx context.Context, code string) error {
	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if err := m.store.Save(tok); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	m.active.Store(tok)

	m.logger.Info("google authorization completed",
		slog.Bool("has_refresh_token", tok.RefreshToken != ""))
	return nil
}

// Token returns the active credential, or ErrUnauthorized if none is present.
func (m *AuthManager) Token() (*oauth2.Token, error) {
	tok := m.active.Load()
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrUnauthorized
	}
	return tok, nil
}

// Authorized reports whether a credential is currently present.
func (m *AuthManager) Authorized() bool {
	_, err := m.Token()
	return err == nil
}

// Invalidate deletes the durable and in-memory credential, returning the
// manager to the unauthorized state. Used after an unrecoverable auth
// failure from the provider.
func (m *AuthManager) Invalidate() {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if err := m.store.Delete(); err != nil {
		m.logger.Warn("failed to delete stored token", logging.Err(err))
	}
	m.active.Store(nil)
	m.logger.Info("google credential invalidated, re-authorization required")
}

// TokenSource returns a token source for authenticated API calls. Tokens
// refreshed by the underlying oauth2 machinery are persisted before they are
// handed to the caller, so the stored credential is never older than the one
// most recently used successfully.
func (m *AuthManager) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := m.Token()
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		mgr: m,
		src: m.conf.TokenSource(ctx, tok),
	}, nil
}

// persistingTokenSource wraps the refreshing source from oauth2 and hooks
// every yielded token through persistIfNewer. This is the explicit
// post-operation persistence hook: there is no asynchronous notification
// channel, the token is durable before the triggering call returns.
type persistingTokenSource struct {
	mgr *AuthManager
	src oauth2.TokenSource
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mgr.persistIfNewer(tok)
	return tok, nil
}

// persistIfNewer saves the token and swaps it in as the active credential if
// it differs from the current one. Writes are serialized; last refresh wins.
func (m *AuthManager) persistIfNewer(tok *oauth2.Token) {
	cur := m.active.Load()
	if cur != nil && cur.AccessToken == tok.AccessToken {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	// Re-check under the lock; another request may have persisted the same
	// refresh already.
	cur = m.active.Load()
	if cur != nil && cur.AccessToken == tok.AccessToken {
		return
	}

	if tok.RefreshToken == "" && cur != nil && cur.RefreshToken != "" {
		// Google omits the refresh token on plain refreshes. Carry the
		// existing one over so the stored credential stays refresh-capable.
		clone := *tok
		clone.RefreshToken = cur.RefreshToken
		tok = &clone
	}

	if err := m.store.Save(tok); err != nil {
		m.logger.Error("failed to persist refreshed token", logging.Err(err))
	} else {
		m.logger.Debug("refreshed google token persisted",
			slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))
	}
	m.active.Store(tok)
}
