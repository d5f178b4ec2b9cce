// models/chat.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatPart is one text part of a history turn.
type ChatPart struct {
	Text string `json:"text"`
}

// ChatHistory is a prior turn in the shape the LLM provider expects.
// Role is "user" or "model".
type ChatHistory struct {
	Role  string     `json:"role"`
	Parts []ChatPart `json:"parts"`
}

// Text joins the turn's parts.
func (h ChatHistory) Text() string {
	texts := make([]string, 0, len(h.Parts))
	for _, p := range h.Parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "")
}

// DebugInfo is attached to assistant messages when debugging is enabled.
type DebugInfo struct {
	Endpoint            string   `json:"endpoint,omitempty"`
	RawResponse         string   `json:"rawResponse,omitempty"`
	NormalizedImageURLs []string `json:"normalizedImageUrls,omitempty"`
	ImageURLEchoText    string   `json:"imageUrlEchoText,omitempty"`
	ProbeReport         string   `json:"probeReport,omitempty"`
}

// Message is a rendered chat message.
type Message struct {
	Role      string     `json:"role"` // "user" or "assistant"
	Text      string     `json:"text"`
	ImageURLs []string   `json:"imageUrls,omitempty"`
	DebugInfo *DebugInfo `json:"debugInfo,omitempty"`
}

// ChatSession is owned by the client; the server only repairs legacy shapes.
type ChatSession struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Title          string        `json:"title"`
	Timestamp      int64         `json:"timestamp"`
	Messages       []Message     `json:"messages"`
	History        []ChatHistory `json:"history"`
}

// EnsureConversationIDs assigns a conversation id to sessions that predate
// the field. It reports whether any session was changed.
func EnsureConversationIDs(sessions []ChatSession) bool {
	migrated := false
	for i := range sessions {
		if sessions[i].ConversationID == "" {
			sessions[i].ConversationID = NewConversationID()
			migrated = true
		}
	}
	return migrated
}

// NewConversationID returns a fresh conversation id.
func NewConversationID() string {
	return uuid.NewString()
}

// ChatRequest is the client-facing chat wire contract.
type ChatRequest struct {
	ConversationID    string        `json:"conversationId,omitempty"`
	UserInput         string        `json:"userInput" binding:"required,min=1,max=4000"`
	History           []ChatHistory `json:"history"`
	SystemInstruction string        `json:"systemInstruction,omitempty"`
}

// ChatResponse is returned by both the direct and relayed chat endpoints.
type ChatResponse struct {
	Text           string     `json:"text"`
	ImageURLs      []string   `json:"imageUrls"`
	ConversationID string     `json:"conversationId,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	DebugInfo      *DebugInfo `json:"debugInfo,omitempty"`
}

// SessionsRequest carries client-held sessions for repair.
type SessionsRequest struct {
	Sessions []ChatSession `json:"sessions"`
}
