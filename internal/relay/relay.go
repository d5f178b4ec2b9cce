// Package relay delivers a chat turn to a configured backend, probing the
// candidate endpoints in order and normalizing whichever reply is best.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/normalizer"
	"sop-assistant/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxResponseBytes = 5 << 20
	maxDebugBody     = 4096
)

// Attempt records one probe of a candidate endpoint.
type Attempt struct {
	Endpoint string        `json:"endpoint"`
	Status   int           `json:"status,omitempty"`
	Images   int           `json:"images"`
	TextLen  int           `json:"textLength"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Reply is the normalized answer plus where it came from.
type Reply struct {
	normalizer.Result
	Endpoint string
	RawBody  string
	Attempts []Attempt
}

// ProbeReport renders the attempts one per line for debug output.
func (r *Reply) ProbeReport() string {
	var b strings.Builder
	for _, a := range r.Attempts {
		fmt.Fprintf(&b, "%s status=%d images=%d text=%d", a.Endpoint, a.Status, a.Images, a.TextLen)
		if a.Error != "" {
			fmt.Fprintf(&b, " error=%q", a.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProbeRecorder receives one call per attempt. telemetry.Metrics satisfies it.
type ProbeRecorder interface {
	RecordProbe(endpoint string, success bool, duration float64)
}

// Client relays chat turns to one configured backend base URL.
type Client struct {
	base       string
	candidates []string
	httpClient *http.Client
	normalizer *normalizer.Normalizer
	recorder   ProbeRecorder
}

// NewClient creates a relay for base. Each probe is bounded by timeout.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		base:       base,
		candidates: CandidateEndpoints(base),
		httpClient: &http.Client{Timeout: timeout},
		normalizer: normalizer.New(base),
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRecorder attaches a probe metrics recorder.
func (c *Client) WithRecorder(r ProbeRecorder) *Client {
	c.recorder = r
	return c
}

// Candidates returns the endpoints this client probes.
func (c *Client) Candidates() []string {
	return append([]string(nil), c.candidates...)
}

type relayRequest struct {
	ConversationID string               `json:"conversationId"`
	UserInput      string               `json:"userInput"`
	History        []models.ChatHistory `json:"history"`
}

// Send probes candidates sequentially. The first reply carrying an image
// wins immediately; otherwise the reply with the most images, then the
// longest text, is returned.
func (c *Client) Send(ctx context.Context, req models.ChatRequest) (*Reply, error) {
	tracer := otel.Tracer("chat-relay")
	ctx, span := tracer.Start(ctx, "relay.send")
	defer span.End()

	history := req.History
	if history == nil {
		history = []models.ChatHistory{}
	}
	payload, err := json.Marshal(relayRequest{
		ConversationID: req.ConversationID,
		UserInput:      req.UserInput,
		History:        history,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal relay request: %w", err)
	}

	if len(c.candidates) == 0 {
		return nil, apperr.BackendUnreachable(errors.New("no chat backend configured"))
	}

	var (
		best     *Reply
		lastErr  error
		attempts []Attempt
	)
	for _, endpoint := range c.candidates {
		reply, attempt, err := c.try(ctx, endpoint, payload)
		attempts = append(attempts, attempt)
		if c.recorder != nil {
			c.recorder.RecordProbe(endpoint, err == nil, attempt.Duration.Seconds())
		}
		if err != nil {
			logger.Warn("chat endpoint probe failed", "endpoint", endpoint, "error", err)
			lastErr = err
			continue
		}
		if len(reply.ImageURLs) > 0 {
			best = reply
			break
		}
		if best == nil || better(reply, best) {
			best = reply
		}
	}

	span.SetAttributes(attribute.Int("relay.attempts", len(attempts)))
	if best == nil {
		span.SetAttributes(attribute.Bool("relay.unreachable", true))
		return nil, apperr.BackendUnreachable(lastErr)
	}
	best.Attempts = attempts
	span.SetAttributes(
		attribute.String("relay.endpoint", best.Endpoint),
		attribute.Int("relay.images", len(best.ImageURLs)),
	)
	return best, nil
}

func better(a, b *Reply) bool {
	if len(a.ImageURLs) != len(b.ImageURLs) {
		return len(a.ImageURLs) > len(b.ImageURLs)
	}
	return len(a.Text) > len(b.Text)
}

func (c *Client) try(ctx context.Context, endpoint string, payload []byte) (*Reply, Attempt, error) {
	start := time.Now()
	attempt := Attempt{Endpoint: endpoint}
	fail := func(err error) (*Reply, Attempt, error) {
		attempt.Error = err.Error()
		attempt.Duration = time.Since(start)
		return nil, attempt, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()
	attempt.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	result := c.normalizer.Normalize(string(body))
	attempt.Images = len(result.ImageURLs)
	attempt.TextLen = len(result.Text)
	attempt.Duration = time.Since(start)

	return &Reply{Result: result, Endpoint: endpoint, RawBody: truncateUTF8(string(body), maxDebugBody)}, attempt, nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
