package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sop-assistant/models"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// OllamaClient chats with a local Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
	guard  *guard
}

// NewOllamaClient connects to host, or to OLLAMA_HOST's default when empty.
func NewOllamaClient(host, model string, perSecond float64, observer StateObserver) (*OllamaClient, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return &OllamaClient{
		client: api.NewClient(hostURL, http.DefaultClient),
		model:  model,
		guard:  newGuard("ollama", perSecond, observer),
	}, nil
}

func (o *OllamaClient) Name() string { return "ollama" }

func (o *OllamaClient) Chat(ctx context.Context, prompt string, history []models.ChatHistory, systemInstruction string) (string, error) {
	ctx, span := otel.Tracer("ollama-client").Start(ctx, "ollama.chat")
	defer span.End()
	span.SetAttributes(attribute.String("ollama.model", o.model))

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: ollamaMessages(prompt, history, systemInstruction),
		Stream:   &stream,
	}

	text, err := o.guard.do(ctx, func() (string, error) {
		var b strings.Builder
		err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			_, err := b.WriteString(resp.Message.Content)
			return err
		})
		if err != nil {
			return "", fmt.Errorf("failed to generate response: %w", err)
		}
		return b.String(), nil
	})
	if err != nil {
		if isBreakerOpen(err) {
			return BusyMessage, nil
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return text, nil
}

func ollamaMessages(prompt string, history []models.ChatHistory, systemInstruction string) []api.Message {
	messages := make([]api.Message, 0, len(history)+2)
	if systemInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemInstruction})
	}
	for _, h := range history {
		role := "user"
		if h.Role == "model" || h.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, api.Message{Role: role, Content: firstPartText(h)})
	}
	return append(messages, api.Message{Role: "user", Content: prompt})
}
