// Package server provides the HTTP surface for the availd application:
// the inbound SMS webhook, the OAuth browser flow, and health probes.
//
// # Key Components
//
// Server owns the main listener. It registers:
//   - /sms: the Twilio webhook. The sender gate runs synchronously so the
//     acknowledgement shape reflects the decision, while the availability
//     check and reply run asynchronously after the webhook is acknowledged.
//   - /authorize and /oauth2callback: the Google OAuth consent flow used to
//     obtain the calendar credential.
//   - /healthz, /readyz, /healthz/detailed: liveness and readiness probes.
//
// MetricsServer serves Prometheus metrics on a dedicated port, separate
// from the webhook listener.
//
// # Usage
//
//	srv := server.New(server.Config{
//	    Addr:         ":8080",
//	    Orchestrator: orch,
//	    Auth:         auth,
//	})
//	if err := srv.Start(); err != nil {
//	    // handle error
//	}
package server
