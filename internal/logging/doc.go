// Package logging provides structured logging helpers built on log/slog.
//
// It defines the attribute keys used consistently across the codebase,
// convenience constructors for common attributes, and PII-safe helpers:
// requester phone numbers are only ever logged as truncated SHA-256 hashes
// and tokens are logged as length indicators.
package logging
