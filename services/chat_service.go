package services

import (
	"context"
	"strings"
	"time"

	"sop-assistant/internal/ai"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/relay"
	"sop-assistant/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ChatSource hands out the configured chat model. *ai.Clients satisfies it.
type ChatSource interface {
	Chat() (ai.ChatProvider, error)
}

// Knowledge is the read side of the knowledge base used while answering.
type Knowledge interface {
	Current(ctx context.Context) ([]models.SOPSection, error)
}

// ChatService answers questions directly against the configured model,
// grounded in the current SOP snapshot.
type ChatService struct {
	knowledge         Knowledge
	models            ChatSource
	systemInstruction string
	now               func() time.Time
}

func NewChatService(knowledge Knowledge, source ChatSource, systemInstruction string) *ChatService {
	return &ChatService{
		knowledge:         knowledge,
		models:            source,
		systemInstruction: systemInstruction,
		now:               time.Now,
	}
}

// Answer builds the knowledge prompt, asks the model and attaches the
// images whose keywords the answer mentions. The client's system
// instruction is ignored in favour of the server's.
func (s *ChatService) Answer(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("chat-service").Start(ctx, "chat.answer")
	defer span.End()

	sections, err := s.knowledge.Current(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := s.models.Chat()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.provider", provider.Name()))

	prompt := BuildChatPrompt(BuildKnowledgeContext(sections), req.UserInput)
	text, err := provider.Chat(ctx, prompt, req.History, s.systemInstruction)
	if err != nil {
		return nil, err
	}

	images := MatchImages(text, sections)
	span.SetAttributes(attribute.Int("chat.images", len(images)))

	return &models.ChatResponse{
		Text:           text,
		ImageURLs:      images,
		ConversationID: conversationID(req.ConversationID),
		Timestamp:      s.now(),
	}, nil
}

func conversationID(id string) string {
	if strings.TrimSpace(id) == "" {
		return models.NewConversationID()
	}
	return id
}

// Relayer forwards a chat turn to the external backend. *relay.Client
// satisfies it.
type Relayer interface {
	Send(ctx context.Context, req models.ChatRequest) (*relay.Reply, error)
}

// AssistantService relays chat turns to the external chat backend and
// enriches the reply with keyword-matched SOP images.
type AssistantService struct {
	relay     Relayer
	knowledge Knowledge
	debug     bool
	now       func() time.Time
}

func NewAssistantService(r Relayer, knowledge Knowledge, debug bool) *AssistantService {
	return &AssistantService{relay: r, knowledge: knowledge, debug: debug, now: time.Now}
}

// Ask relays req. Reply images come first, then keyword matches from the
// current snapshot. A snapshot that cannot be loaded only loses the
// keyword matches.
func (a *AssistantService) Ask(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	req.ConversationID = conversationID(req.ConversationID)

	reply, err := a.relay.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	images := MergeURLs(reply.ImageURLs)
	if a.knowledge != nil {
		sections, err := a.knowledge.Current(ctx)
		if err != nil {
			logger.Warn("Could not load SOP snapshot for image matching", "error", err)
		} else {
			images = MergeURLs(images, MatchImages(reply.Text, sections))
		}
	}

	resp := &models.ChatResponse{
		Text:           reply.Text,
		ImageURLs:      images,
		ConversationID: req.ConversationID,
		Timestamp:      a.now(),
	}
	if a.debug {
		resp.DebugInfo = &models.DebugInfo{
			Endpoint:            reply.Endpoint,
			RawResponse:         reply.RawBody,
			NormalizedImageURLs: reply.ImageURLs,
			ImageURLEchoText:    strings.Join(reply.ImageURLs, "\n"),
			ProbeReport:         reply.ProbeReport(),
		}
	}
	return resp, nil
}
