// Package google manages the delegated-authorization credential for the
// Google Calendar API.
//
// The AuthManager owns the live OAuth token: it loads a stored credential at
// startup, produces the consent URL for (re-)authorization, exchanges
// authorization codes, and transparently persists every refreshed token
// before it is used, so the on-disk copy is never older than the in-memory
// one. On an unrecoverable auth failure the credential is invalidated
// everywhere and the manager returns to the unauthorized state until the
// operator authorizes again.
//
// Storage is pluggable through the TokenStore interface; the default is a
// single JSON file under the user cache directory.
package google
