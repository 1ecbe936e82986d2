// Package instrumentation provides OpenTelemetry metrics for the service.
//
// The Provider wires a meter provider to one of three exporters (prometheus,
// otlp, stdout) and exposes a Metrics recorder with counters and histograms
// for the availability domain: webhook requests, verdicts, calendar queries,
// SMS sends, and OAuth exchanges. When instrumentation is disabled the
// recorder is a no-op, so callers never need to branch.
package instrumentation
