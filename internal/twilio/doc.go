// Package twilio provides a minimal client for the Twilio Messages API.
//
// The contract is deliberately narrow: send one text message to one phone
// number. An unconfigured channel is a valid state; sends then fail with
// ErrNotConfigured without touching the network, and callers log rather
// than escalate.
package twilio
