package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	ProbeAttempts       metric.Int64Counter
	ProbeDuration       metric.Float64Histogram
	VersionCommits      metric.Int64Counter
	ParseDuration       metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("sop-assistant")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	probeAttempts, err := meter.Int64Counter(
		"chat.relay.probes",
		metric.WithDescription("Chat endpoint probe attempts"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		"chat.relay.probe.duration",
		metric.WithDescription("Chat endpoint probe duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	versionCommits, err := meter.Int64Counter(
		"sop.version.commits",
		metric.WithDescription("Knowledge-base commits by outcome"),
	)
	if err != nil {
		return nil, err
	}

	parseDuration, err := meter.Float64Histogram(
		"sop.parse.duration",
		metric.WithDescription("Document parse duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		ProbeAttempts:       probeAttempts,
		ProbeDuration:       probeDuration,
		VersionCommits:      versionCommits,
		ParseDuration:       parseDuration,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordProbe records one chat endpoint probe.
func (m *Metrics) RecordProbe(endpoint string, success bool, duration float64) {
	attrs := metric.WithAttributes(
		attribute.String("relay.endpoint", endpoint),
		attribute.Bool("relay.success", success),
	)
	m.ProbeAttempts.Add(context.Background(), 1, attrs)
	m.ProbeDuration.Record(context.Background(), duration, attrs)
}

// RecordCommit counts a commit as created or deduplicated.
func (m *Metrics) RecordCommit(created bool) {
	outcome := "deduplicated"
	if created {
		outcome = "created"
	}
	m.VersionCommits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordParse records document parse metrics
func (m *Metrics) RecordParse(duration float64, mimeType, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("parse.mime_type", mimeType),
		attribute.String("parse.status", status),
	}

	m.ParseDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
