package ai

import (
	"context"
	"fmt"
	"strings"

	"sop-assistant/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

type GeminiClient struct {
	client     *genai.Client
	chatModel  string
	parseModel string
	guard      *guard
}

func NewGeminiClient(ctx context.Context, apiKey, chatModel, parseModel string, perSecond float64, observer StateObserver) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w: GEMINI_API_KEY", ErrMissingCredentials)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client:     client,
		chatModel:  chatModel,
		parseModel: parseModel,
		guard:      newGuard("gemini", perSecond, observer),
	}, nil
}

func (gc *GeminiClient) Name() string { return "gemini" }

// Chat replays history into a chat session and sends prompt as the next turn.
func (gc *GeminiClient) Chat(ctx context.Context, prompt string, history []models.ChatHistory, systemInstruction string) (string, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", gc.chatModel),
		attribute.Int("gemini.history_turns", len(history)),
	)

	text, err := gc.guard.do(ctx, func() (string, error) {
		model := gc.client.GenerativeModel(gc.chatModel)
		if systemInstruction != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
		}

		cs := model.StartChat()
		cs.History = toGeminiHistory(history)

		resp, err := cs.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return responseText(resp), nil
	})
	if err != nil {
		if isBreakerOpen(err) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return BusyMessage, nil
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	return text, nil
}

// ParseStructure asks the parse model for JSON output.
func (gc *GeminiClient) ParseStructure(ctx context.Context, text string) ([]byte, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.parse_structure")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", gc.parseModel),
		attribute.Int("gemini.input_chars", len(text)),
	)

	out, err := gc.guard.do(ctx, func() (string, error) {
		model := gc.client.GenerativeModel(gc.parseModel)
		model.ResponseMIMEType = "application/json"

		resp, err := model.GenerateContent(ctx, genai.Text(StructurePrompt(text)))
		if err != nil {
			return "", err
		}
		return responseText(resp), nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, fmt.Errorf("gemini parse: %w", err)
	}
	return []byte(out), nil
}

func toGeminiHistory(history []models.ChatHistory) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, h := range history {
		role := "user"
		if h.Role == "model" || h.Role == "assistant" {
			role = "model"
		}
		parts := make([]genai.Part, 0, len(h.Parts))
		for _, p := range h.Parts {
			parts = append(parts, genai.Text(p.Text))
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
