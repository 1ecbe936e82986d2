package availability

import (
	"context"
	"log/slog"

	"github.com/teemow/availd/internal/instrumentation"
	"github.com/teemow/availd/internal/logging"
	"github.com/teemow/availd/internal/policy"
)

// AccessRequest is one inbound availability query. It is ephemeral: one per
// webhook call, never persisted.
type AccessRequest struct {
	// Requester is the sender's phone number (e.g., "+15551234567")
	Requester string
	// Body is the inbound message text. Its content does not influence the
	// verdict; any message from an allowed requester is an availability query.
	Body string
}

// Verdict is the availability decision sent back to the requester.
type Verdict int

const (
	// VerdictBusy is the fail-safe verdict; every internal failure path
	// collapses to it.
	VerdictBusy Verdict = iota
	// VerdictAvailable means the calendar is free and the operator is at
	// the reference location.
	VerdictAvailable
)

// String returns the literal reply text for the verdict.
func (v Verdict) String() string {
	if v == VerdictAvailable {
		return "Available"
	}
	return "Busy"
}

// BusyChecker reports the operator's current calendar busy state. Errors are
// already reduced to a boolean by the implementation; busy is the fail-safe.
type BusyChecker interface {
	IsBusy(ctx context.Context) bool
}

// Sender delivers one text message to one destination address.
type Sender interface {
	SendMessage(ctx context.Context, recipient string, body string) error
}

// Outcome records how far a request progressed through the state machine.
type Outcome struct {
	// Allowed is false when the requester failed the access gate; nothing
	// was evaluated or sent.
	Allowed bool
	// Verdict is the computed availability decision (valid when Allowed).
	Verdict Verdict
	// Replied is true once the reply was dispatched. Delivery is best
	// effort, so a failed send still counts as replied.
	Replied bool
}

// Orchestrator drives a request through Gate, Evaluate, and Reply.
//
// Each request runs its own independent progression; the orchestrator holds
// no per-request state and is safe for concurrent use. There are no retries:
// a request either completes or fails at one step and is logged.
type Orchestrator struct {
	allowList *policy.AllowList
	checker   BusyChecker
	sender    Sender
	atHome    bool
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// NewOrchestrator wires the access gate, the busy checker, the outbound
// sender, and the location flag together. The location flag is constant for
// the process lifetime.
func NewOrchestrator(allowList *policy.AllowList, checker BusyChecker, sender Sender, atHome bool, logger *slog.Logger, metrics *instrumentation.Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		allowList: allowList,
		checker:   checker,
		sender:    sender,
		atHome:    atHome,
		logger:    logging.WithComponent(logger, "availability"),
		metrics:   metrics,
	}
}

// Allowed reports whether the requester passes the access gate. The
// transport uses this to shape its acknowledgment without waiting for the
// decision and reply to complete.
func (o *Orchestrator) Allowed(requester string) bool {
	return o.allowList.Allowed(requester)
}

// Handle runs one request through the state machine.
//
// A rejected requester gets silence: no reply is sent. An allowed requester
// always gets exactly one reply, "Available" or "Busy", even under internal
// error, because the checker reduces every failure to busy.
func (o *Orchestrator) Handle(ctx context.Context, req AccessRequest) Outcome {
	log := o.logger.With(logging.RequesterHash(req.Requester))

	if !o.allowList.Allowed(req.Requester) {
		log.Info("requester not on allow list, ignoring")
		return Outcome{}
	}

	busy := o.checker.IsBusy(ctx)
	verdict := VerdictBusy
	if !busy && o.atHome {
		verdict = VerdictAvailable
	}

	log.Info("availability evaluated",
		slog.Bool("calendar_busy", busy),
		slog.Bool("at_home", o.atHome),
		logging.Verdict(verdict.String()))
	o.metrics.RecordVerdict(ctx, verdict.String())

	if err := o.sender.SendMessage(ctx, req.Requester, verdict.String()); err != nil {
		// Best-effort delivery: a failed send terminates the request
		// without retry and without escalating.
		log.Error("failed to send reply", logging.Status(logging.StatusError), logging.Err(err))
		o.metrics.RecordSMSSend(ctx, logging.StatusError)
		return Outcome{Allowed: true, Verdict: verdict, Replied: true}
	}

	log.Info("reply sent", logging.Status(logging.StatusSuccess), logging.Verdict(verdict.String()))
	o.metrics.RecordSMSSend(ctx, logging.StatusSuccess)
	return Outcome{Allowed: true, Verdict: verdict, Replied: true}
}
