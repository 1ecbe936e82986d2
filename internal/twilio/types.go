package twilio

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates that the outbound channel has no credentials.
// Sends fail with this error instead of reaching the network; the caller
// decides how loudly to report it.
var ErrNotConfigured = errors.New("twilio: channel not configured")

// TwilioError wraps a failure of a Twilio operation with context about what
// was being attempted.
type TwilioError struct {
	// Op is the operation that failed (e.g., "send")
	Op string
	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *TwilioError) Error() string {
	return fmt.Sprintf("twilio %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *TwilioError) Unwrap() error {
	return e.Err
}
