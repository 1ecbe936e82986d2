package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/teemow/availd/internal/availability"
	"github.com/teemow/availd/internal/logging"
)

// emptyTwiML acknowledges the webhook with no message content. The actual
// reply travels over the outbound channel, not the acknowledgment.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response/>`

// handleSMS is the inbound Twilio webhook.
//
// The contract with the transport is "acknowledge receipt immediately":
// only the access gate runs on the request path. For an allowed requester
// the decision and reply are dispatched as a decoupled continuation with a
// background context, so a dropped webhook connection cannot cancel the
// reply. A rejected requester gets a no-content acknowledgment and silence.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.logger.Warn("malformed webhook form body", logging.Err(err))
		s.metrics.RecordWebhookRequest(r.Context(), "malformed")
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	req := availability.AccessRequest{
		Requester: r.PostFormValue("From"),
		Body:      r.PostFormValue("Body"),
	}

	log := logging.WithOperation(s.logger, "sms_webhook").With(logging.RequesterHash(req.Requester))
	log.Info("inbound sms received")

	if !s.orch.Allowed(req.Requester) {
		s.metrics.RecordWebhookRequest(r.Context(), "rejected")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.metrics.RecordWebhookRequest(r.Context(), "accepted")
	s.dispatch(func() {
		s.orch.Handle(context.Background(), req)
	})

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}
