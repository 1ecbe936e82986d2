package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

// Client sends SMS messages through the Twilio Messages API.
// It is stateless aside from the channel credentials.
type Client struct {
	accountSID string
	authToken  string
	from       string // The sending phone number (e.g., "+15551234567")
	configured bool

	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Twilio SMS client. With any credential missing the
// client is created in a disabled state: every send fails with
// ErrNotConfigured instead of reaching the network. Delivery failure must
// never crash the caller, so this is reported per send, not at startup.
func NewClient(accountSID, authToken, from string) (*Client, error) {
	configured := accountSID != "" && authToken != "" && from != ""

	if configured && !strings.HasPrefix(from, "+") {
		return nil, &TwilioError{
			Op:  "initialize",
			Err: fmt.Errorf("from must be a phone number starting with + (e.g., +15551234567)"),
		}
	}

	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		configured: configured,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Configured reports whether the client has channel credentials.
func (c *Client) Configured() bool {
	return c.configured
}

// From returns the sending phone number associated with this client.
func (c *Client) From() string {
	return c.from
}

// SendMessage sends a single text message to one recipient. A non-2xx
// provider response is returned as a *TwilioError; callers treat any send
// failure as best-effort and never escalate it.
func (c *Client) SendMessage(ctx context.Context, recipient string, body string) error {
	if !c.configured {
		return &TwilioError{Op: "send", Err: ErrNotConfigured}
	}

	if recipient == "" {
		return &TwilioError{
			Op:  "send",
			Err: fmt.Errorf("recipient cannot be empty"),
		}
	}

	if body == "" {
		return &TwilioError{
			Op:  "send",
			Err: fmt.Errorf("message cannot be empty"),
		}
	}

	if !strings.HasPrefix(recipient, "+") {
		return &TwilioError{
			Op:  "send",
			Err: fmt.Errorf("recipient must be a phone number starting with + (e.g., +15551234567)"),
		}
	}

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &TwilioError{Op: "send", Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TwilioError{Op: "send", Err: fmt.Errorf("failed to send message: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &TwilioError{
			Op:  "send",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp))),
		}
	}

	return nil
}
