package telemetry

import "testing"

// With no meter provider installed the global no-op meter backs every
// instrument, so recording must never panic.
func TestMetricsRecordWithNoopProvider(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	m.RecordRequest("GET", "/health", "200", 0.01)
	m.RecordProbe("http://chat.local/api/chat", true, 0.2)
	m.RecordCommit(true)
	m.RecordCommit(false)
	m.RecordParse(1.5, "application/pdf", "success")
	m.RecordCircuitBreakerState("gemini-chat", "open")
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer("sop-assistant", "", 1)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	shutdown()
}
