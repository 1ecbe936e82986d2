package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/availd/internal/google"
	"github.com/teemow/availd/internal/instrumentation"
	"github.com/teemow/availd/internal/logging"
)

const (
	// DefaultWindow is how far ahead the resolver looks for events. It
	// catches events whose start instant is imminent but not yet strictly
	// "now", so a meeting starting in the next tick is not missed.
	DefaultWindow = 60 * time.Second

	// maxEvents caps the events fetched per query.
	maxEvents = 10
)

// listFunc fetches the events whose start time falls within the window.
// It is a seam for tests; the default implementation queries the Google
// Calendar API.
type listFunc func(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)

// Resolver reduces near-term calendar events to a busy/free verdict.
//
// Busy is the fail-safe verdict on every failure path: an unauthorized
// credential, a query error, or an auth failure all report busy rather than
// risking a false "available".
type Resolver struct {
	auth       *google.AuthManager
	calendarID string
	window     time.Duration
	now        func() time.Time
	list       listFunc
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewResolver creates a Resolver for the given calendar, authenticated
// through the auth manager.
func NewResolver(auth *google.AuthManager, calendarID string, logger *slog.Logger, metrics *instrumentation.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		auth:       auth,
		calendarID: calendarID,
		window:     DefaultWindow,
		now:        time.Now,
		logger:     logging.WithComponent(logger, "calendar"),
		metrics:    metrics,
	}
	r.list = r.listEvents
	return r
}

// IsBusy reports whether the operator's calendar marks them busy right now.
//
// Without a valid credential the answer is busy, with no network call. On a
// 401-class provider failure the credential is invalidated and reloaded
// (returning the manager to the unauthorized state) and the answer is busy;
// any other query failure is busy without touching credential state.
func (r *Resolver) IsBusy(ctx context.Context) bool {
	if !r.auth.Authorized() {
		r.logger.Warn("google client not authorized, assuming busy")
		r.metrics.RecordCalendarQuery(ctx, "unauthorized", 0)
		return true
	}

	now := r.now()
	start := time.Now()
	events, err := r.list(ctx, r.calendarID, now, now.Add(r.window))
	elapsed := time.Since(start)

	if err != nil {
		if isAuthError(err) {
			r.logger.Error("google auth error during calendar query, invalidating credential",
				slog.Duration(logging.KeyDuration, elapsed), logging.Err(err))
			r.auth.Invalidate()
			r.auth.Initialize()
			r.metrics.RecordCalendarQuery(ctx, "auth_error", elapsed)
		} else {
			r.logger.Error("failed to list calendar events",
				slog.Duration(logging.KeyDuration, elapsed), logging.Err(err))
			r.metrics.RecordCalendarQuery(ctx, "error", elapsed)
		}
		return true
	}

	r.logger.Debug("calendar query completed",
		slog.Duration(logging.KeyDuration, elapsed),
		slog.Int("events", len(events)))
	r.metrics.RecordCalendarQuery(ctx, "success", elapsed)
	return r.busyVerdict(events)
}

// busyVerdict applies the reduction rule: cancelled events are skipped, the
// first remaining event that is not transparent means busy. A tentative but
// opaque event therefore counts as busy.
func (r *Resolver) busyVerdict(events []*calendar.Event) bool {
	if len(events) == 0 {
		r.logger.Debug("no upcoming events in window, assuming free")
		return false
	}

	for _, event := range events {
		if event.Status == "cancelled" {
			continue
		}
		if event.Transparency != "transparent" {
			r.logger.Debug("busy due to event", slog.String("summary", event.Summary))
			return true
		}
	}

	r.logger.Debug("events in window, but none indicate busy")
	return false
}

// isAuthError reports whether the query failed because the credential is
// invalid or expired beyond refresh. A 401 from the API and a token-endpoint
// rejection of the refresh token both qualify.
func isAuthError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized
	}
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr)
}

// listEvents queries the Google Calendar API for events starting in the
// window. A fresh service is built from the manager's token source on every
// call, so an invalidated credential is picked up immediately.
func (r *Resolver) listEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	ts, err := r.auth.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	res, err := svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return res.Items, nil
}
