package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency
const (
	attrStatus  = "status"
	attrVerdict = "verdict"
	attrResult  = "result"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder, used when instrumentation is disabled.
type Metrics struct {
	// Webhook metrics
	webhookRequestsTotal metric.Int64Counter

	// Availability decision metrics
	verdictsTotal metric.Int64Counter

	// Calendar query metrics
	calendarQueriesTotal  metric.Int64Counter
	calendarQueryDuration metric.Float64Histogram

	// Outbound SMS metrics
	smsSendsTotal metric.Int64Counter

	// OAuth metrics
	oauthExchangesTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.webhookRequestsTotal, err = meter.Int64Counter(
		"webhook_requests_total",
		metric.WithDescription("Total number of inbound SMS webhook requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_requests_total counter: %w", err)
	}

	m.verdictsTotal, err = meter.Int64Counter(
		"availability_verdicts_total",
		metric.WithDescription("Total number of availability verdicts computed"),
		metric.WithUnit("{verdict}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability_verdicts_total counter: %w", err)
	}

	m.calendarQueriesTotal, err = meter.Int64Counter(
		"calendar_queries_total",
		metric.WithDescription("Total number of calendar busy/free queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_queries_total counter: %w", err)
	}

	m.calendarQueryDuration, err = meter.Float64Histogram(
		"calendar_query_duration_seconds",
		metric.WithDescription("Calendar query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_query_duration_seconds histogram: %w", err)
	}

	m.smsSendsTotal, err = meter.Int64Counter(
		"sms_sends_total",
		metric.WithDescription("Total number of outbound SMS send attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sms_sends_total counter: %w", err)
	}

	m.oauthExchangesTotal, err = meter.Int64Counter(
		"oauth_exchanges_total",
		metric.WithDescription("Total number of OAuth authorization code exchanges"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_exchanges_total counter: %w", err)
	}

	return m, nil
}

// RecordWebhookRequest records an inbound webhook request.
// Status should be one of: "accepted", "rejected", "malformed"
func (m *Metrics) RecordWebhookRequest(ctx context.Context, status string) {
	if m == nil || m.webhookRequestsTotal == nil {
		return // Instrumentation not initialized
	}

	m.webhookRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatus, status),
	))
}

// RecordVerdict records a computed availability verdict ("Available" or "Busy").
func (m *Metrics) RecordVerdict(ctx context.Context, verdict string) {
	if m == nil || m.verdictsTotal == nil {
		return // Instrumentation not initialized
	}

	m.verdictsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrVerdict, verdict),
	))
}

// RecordCalendarQuery records a calendar busy/free query with its result and duration.
// Result should be one of: "success", "error", "auth_error", "unauthorized"
func (m *Metrics) RecordCalendarQuery(ctx context.Context, result string, duration time.Duration) {
	if m == nil || m.calendarQueriesTotal == nil || m.calendarQueryDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))
	m.calendarQueriesTotal.Add(ctx, 1, attrs)
	m.calendarQueryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSMSSend records an outbound SMS send attempt.
// Status should be one of: "success", "error"
func (m *Metrics) RecordSMSSend(ctx context.Context, status string) {
	if m == nil || m.smsSendsTotal == nil {
		return // Instrumentation not initialized
	}

	m.smsSendsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatus, status),
	))
}

// RecordOAuthExchange records an authorization code exchange attempt.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthExchange(ctx context.Context, result string) {
	if m == nil || m.oauthExchangesTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthExchangesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}
