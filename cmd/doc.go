// Package cmd implements the command-line interface for availd.
//
// This package provides the following commands:
//   - serve: Start the HTTP server that answers SMS availability queries
//   - auth: Run the Google OAuth flow and persist the calendar credential
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
