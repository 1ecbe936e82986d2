package google

import (
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// CalendarReadonlyScope is the only Google scope this service requests.
// Availability is derived from event busy/free state; nothing is written.
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// Config holds the Google OAuth client identity supplied at process start.
type Config struct {
	// ClientID is the OAuth client ID issued by the Google Cloud console.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// RedirectURL is the authorization callback target, e.g.
	// http://localhost:8080/oauth2callback.
	RedirectURL string
}

// OAuth2 returns the oauth2 configuration for the calendar scope.
func (c Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{CalendarReadonlyScope},
	}
}
