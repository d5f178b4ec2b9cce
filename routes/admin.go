package routes

import (
	"context"
	"net/http"

	"sop-assistant/internal/auth"
	"sop-assistant/internal/logger"
	"sop-assistant/middleware"
	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

// PassphraseChecker is satisfied by *auth.Passphrase.
type PassphraseChecker interface {
	Matches(candidate string) bool
}

// TokenService is satisfied by *auth.TokenIssuer.
type TokenService interface {
	middleware.TokenVerifier
	Issue(ctx context.Context, subject string) (*auth.Token, error)
	Revoke(ctx context.Context, jti string) error
}

type loginRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

// SetupAdminRoutes registers login and logout. With no passphrase configured
// both endpoints report the admin surface as disabled.
func SetupAdminRoutes(api *gin.RouterGroup, passphrase PassphraseChecker, tokens TokenService) {
	admin := api.Group("/admin")

	admin.POST("/login", func(c *gin.Context) {
		if passphrase == nil || tokens == nil {
			utils.RespondWithUnavailable(c, "管理功能未啟用。")
			return
		}

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "請輸入管理員通行碼。", nil)
			return
		}
		if !passphrase.Matches(req.Passphrase) {
			logger.Warn("Admin login rejected", "client_ip", c.ClientIP(), "request_id", middleware.GetRequestID(c))
			utils.RespondWithUnauthorized(c, "通行碼錯誤。")
			return
		}

		token, err := tokens.Issue(c.Request.Context(), "admin")
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		logger.Info("Admin logged in", "client_ip", c.ClientIP())
		c.JSON(http.StatusOK, token)
	})

	var verifier middleware.TokenVerifier
	if tokens != nil {
		verifier = tokens
	}
	admin.POST("/logout", middleware.AdminRequired(verifier), func(c *gin.Context) {
		claims := middleware.GetAdminClaims(c)
		if err := tokens.Revoke(c.Request.Context(), claims.ID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
