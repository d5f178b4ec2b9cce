package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sop-assistant/internal/config"
	"sop-assistant/models"

	openai "github.com/sashabaranov/go-openai"
)

func history() []models.ChatHistory {
	return []models.ChatHistory{
		{Role: "user", Parts: []models.ChatPart{{Text: "報價流程?"}}},
		{Role: "model", Parts: []models.ChatPart{{Text: "請先建立報價單"}}},
		{Role: "user", Parts: nil},
	}
}

func TestGroqMessagesMapRoles(t *testing.T) {
	msgs := groqMessages("next question", history(), "你是 SOP 助手。")
	if len(msgs) != 5 {
		t.Fatalf("expected system + 3 history + prompt, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("unexpected roles %+v", msgs)
	}
	if last := msgs[len(msgs)-1]; last.Role != openai.ChatMessageRoleUser || last.Content != "next question" {
		t.Fatalf("prompt must be the final user turn, got %+v", last)
	}
}

func TestGroqMessagesWithoutSystemInstruction(t *testing.T) {
	msgs := groqMessages("q", nil, "")
	if len(msgs) != 1 || msgs[0].Role != openai.ChatMessageRoleUser {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestOllamaMessagesMapRoles(t *testing.T) {
	msgs := ollamaMessages("q", history(), "sys")
	if msgs[0].Role != "system" || msgs[2].Role != "assistant" || msgs[len(msgs)-1].Content != "q" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestGeminiHistorySkipsEmptyTurns(t *testing.T) {
	out := toGeminiHistory(history())
	if len(out) != 2 {
		t.Fatalf("expected empty turn to be dropped, got %d", len(out))
	}
	if out[0].Role != "user" || out[1].Role != "model" {
		t.Fatalf("unexpected roles %s %s", out[0].Role, out[1].Role)
	}
}

func TestStructurePromptEmbedsText(t *testing.T) {
	p := StructurePrompt("步驟一：開機")
	if !strings.Contains(p, "步驟一：開機") || !strings.Contains(p, "extracted_image_INDEX") {
		t.Fatalf("prompt missing content or placeholder contract: %s", p)
	}
}

func TestClientsReportMissingKeys(t *testing.T) {
	clients := NewClients(&config.Config{LLMProvider: "groq"}, nil)
	if _, err := clients.Chat(); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	if _, err := clients.Structurer(); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing gemini key, got %v", err)
	}
}

func TestClientsBuildOllamaWithoutKey(t *testing.T) {
	clients := NewClients(&config.Config{LLMProvider: "ollama", OllamaHost: "http://127.0.0.1:11434", OllamaModel: "llama3.1"}, nil)
	p, err := clients.Chat()
	if err != nil || p.Name() != "ollama" {
		t.Fatalf("expected ollama provider, got %v %v", p, err)
	}
	again, _ := clients.Chat()
	if again != p {
		t.Fatalf("provider must be memoized")
	}
}

func TestGuardPassesThroughResult(t *testing.T) {
	g := newGuard("test", 100, nil)
	out, err := g.do(context.Background(), func() (string, error) { return "ok", nil })
	if err != nil || out != "ok" {
		t.Fatalf("got %q %v", out, err)
	}

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		g.do(context.Background(), func() (string, error) { return "", boom })
	}
	_, err = g.do(context.Background(), func() (string, error) { return "never", nil })
	if !isBreakerOpen(err) {
		t.Fatalf("expected the breaker to open after repeated failures, got %v", err)
	}
}
