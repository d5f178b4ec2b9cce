package routes

import (
	"context"
	"net/http"

	"sop-assistant/models"
	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

// Answerer answers directly against the configured model.
type Answerer interface {
	Answer(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// Asker relays to the external chat backend.
type Asker interface {
	Ask(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// SetupChatRoutes registers the public chat endpoints. A nil assistant
// disables the relayed endpoint.
func SetupChatRoutes(api *gin.RouterGroup, answerer Answerer, assistant Asker) {
	api.POST("/chat", handleChat(answerer.Answer))
	api.POST("/assistant/chat", func(c *gin.Context) {
		if assistant == nil {
			utils.RespondWithUnavailable(c, "未設定對話服務位址。")
			return
		}
		handleChat(assistant.Ask)(c)
	})
	api.POST("/chat/sessions/migrate", handleMigrateSessions)
}

func handleChat(send func(context.Context, models.ChatRequest) (*models.ChatResponse, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "請輸入問題。", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		resp, err := send(ctx, req)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleMigrateSessions assigns conversation ids to client-held sessions
// saved before the field existed.
func handleMigrateSessions(c *gin.Context) {
	var req models.SessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "無效的對話紀錄格式。", gin.H{"error": err.Error()})
		return
	}
	if req.Sessions == nil {
		req.Sessions = []models.ChatSession{}
	}
	migrated := models.EnsureConversationIDs(req.Sessions)
	c.JSON(http.StatusOK, gin.H{
		"sessions": req.Sessions,
		"migrated": migrated,
	})
}
