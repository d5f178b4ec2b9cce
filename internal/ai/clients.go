package ai

import (
	"context"
	"fmt"
	"sync"

	"sop-assistant/internal/config"
	"sop-assistant/internal/logger"
)

// Clients builds providers on first use and keeps them for the process
// lifetime. A missing key only fails the calls that need that provider.
type Clients struct {
	cfg      *config.Config
	observer StateObserver

	geminiOnce sync.Once
	gemini     *GeminiClient
	geminiErr  error

	chatOnce sync.Once
	chat     ChatProvider
	chatErr  error
}

func NewClients(cfg *config.Config, observer StateObserver) *Clients {
	return &Clients{cfg: cfg, observer: observer}
}

func (c *Clients) geminiClient() (*GeminiClient, error) {
	c.geminiOnce.Do(func() {
		c.gemini, c.geminiErr = NewGeminiClient(context.Background(), c.cfg.GeminiAPIKey,
			c.cfg.ChatModel, c.cfg.ParseModel, c.cfg.LLMRequestsPerSec, c.observer)
		if c.geminiErr == nil {
			logger.Info("Gemini client initialized", "chat_model", c.cfg.ChatModel, "parse_model", c.cfg.ParseModel)
		}
	})
	return c.gemini, c.geminiErr
}

// Chat returns the provider selected by LLM_PROVIDER.
func (c *Clients) Chat() (ChatProvider, error) {
	c.chatOnce.Do(func() {
		switch c.cfg.LLMProvider {
		case "groq":
			c.chat, c.chatErr = NewGroqClient(c.cfg.GroqAPIKey, c.cfg.GroqModel, "", c.cfg.LLMRequestsPerSec, c.observer)
		case "ollama":
			c.chat, c.chatErr = NewOllamaClient(c.cfg.OllamaHost, c.cfg.OllamaModel, c.cfg.LLMRequestsPerSec, c.observer)
		case "gemini", "":
			var g *GeminiClient
			g, c.chatErr = c.geminiClient()
			if c.chatErr == nil {
				c.chat = g
			}
		default:
			c.chatErr = fmt.Errorf("unknown LLM provider %q", c.cfg.LLMProvider)
		}
		if c.chatErr == nil {
			logger.Info("Chat provider ready", "provider", c.chat.Name())
		}
	})
	return c.chat, c.chatErr
}

// Structurer always uses Gemini; its JSON response mode is relied upon.
func (c *Clients) Structurer() (Structurer, error) {
	g, err := c.geminiClient()
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Close releases the Gemini client if it was created.
func (c *Clients) Close() error {
	if c.gemini != nil {
		return c.gemini.Close()
	}
	return nil
}
