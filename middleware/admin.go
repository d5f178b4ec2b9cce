package middleware

import (
	"context"
	"errors"
	"strings"

	"sop-assistant/internal/auth"
	"sop-assistant/internal/logger"
	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

const adminClaimsKey = "admin_claims"

// TokenVerifier checks an admin bearer token. *auth.TokenIssuer satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AdminRequired gates editing routes behind an admin token. A nil verifier
// means the admin surface is disabled.
func AdminRequired(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			utils.RespondWithUnavailable(c, "管理功能未啟用。")
			c.Abort()
			return
		}

		token := ExtractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			utils.RespondWithUnauthorized(c, "請先登入管理員帳號。")
			c.Abort()
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrRevoked) {
				logger.Warn("Admin token check failed", "error", err, "request_id", GetRequestID(c))
			}
			utils.RespondWithUnauthorized(c, "登入已過期，請重新登入。")
			c.Abort()
			return
		}

		c.Set(adminClaimsKey, claims)
		c.Next()
	}
}

// GetAdminClaims returns the verified claims, or nil on public routes.
func GetAdminClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(adminClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// ExtractBearerToken returns the token from an "Authorization: Bearer" header.
func ExtractBearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
