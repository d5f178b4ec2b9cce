// Package ai holds the language-model providers used for chat answers and
// for structuring uploaded documents into SOP drafts.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sop-assistant/internal/logger"
	"sop-assistant/models"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ChatProvider answers one chat turn given prior history.
type ChatProvider interface {
	Chat(ctx context.Context, prompt string, history []models.ChatHistory, systemInstruction string) (string, error)
	Name() string
}

// Structurer turns raw document text into the pending-SOP JSON document.
type Structurer interface {
	ParseStructure(ctx context.Context, text string) ([]byte, error)
}

// ErrMissingCredentials is returned when a provider is selected without its key.
var ErrMissingCredentials = errors.New("missing provider credentials")

// BusyMessage is returned as the answer while a provider's breaker is open.
const BusyMessage = "目前服務繁忙，請稍後再試。"

// StructurePrompt asks the model for the pending-SOP JSON shape. Image
// placeholders named extracted_image_<n> are replaced after parsing.
func StructurePrompt(text string) string {
	return fmt.Sprintf("請解析以下內容並生成標準作業程序 (SOP)。\n\n內容：\n%s\n\n"+
		`回傳 JSON 格式: { sections: [{ title, content, images: [{ url: "extracted_image_INDEX", caption, keyword }] }] }`, text)
}

// StateObserver is told about breaker transitions. telemetry.Metrics satisfies it.
type StateObserver interface {
	RecordCircuitBreakerState(service, state string)
}

// guard couples a circuit breaker with a request-rate limiter. Every provider
// call goes through one.
type guard struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newGuard(name string, perSecond float64, observer StateObserver) *guard {
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &guard{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
				if observer != nil {
					observer.RecordCircuitBreakerState(name, to.String())
				}
			},
		}),
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// do waits for the limiter, then runs fn inside the breaker.
func (g *guard) do(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// isBreakerOpen reports whether err came from a tripped breaker.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// firstPartText returns the text of a history entry, the way every
// provider flattens it.
func firstPartText(h models.ChatHistory) string {
	return strings.TrimSpace(h.Text())
}
