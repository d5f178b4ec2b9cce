package ai

import (
	"context"
	"fmt"

	"sop-assistant/models"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient speaks the OpenAI-compatible chat completions API.
type GroqClient struct {
	client *openai.Client
	model  string
	guard  *guard
}

func NewGroqClient(apiKey, model, baseURL string, perSecond float64, observer StateObserver) (*GroqClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: %w: GROQ_API_KEY", ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		guard:  newGuard("groq", perSecond, observer),
	}, nil
}

func (g *GroqClient) Name() string { return "groq" }

func (g *GroqClient) Chat(ctx context.Context, prompt string, history []models.ChatHistory, systemInstruction string) (string, error) {
	ctx, span := otel.Tracer("groq-client").Start(ctx, "groq.chat")
	defer span.End()
	span.SetAttributes(attribute.String("groq.model", g.model))

	messages := groqMessages(prompt, history, systemInstruction)
	text, err := g.guard.do(ctx, func() (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    g.model,
			Messages: messages,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if isBreakerOpen(err) {
			return BusyMessage, nil
		}
		return "", fmt.Errorf("groq chat: %w", err)
	}
	return text, nil
}

func groqMessages(prompt string, history []models.ChatHistory, systemInstruction string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemInstruction})
	}
	for _, h := range history {
		role := openai.ChatMessageRoleUser
		if h.Role == "model" || h.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: firstPartText(h)})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}
