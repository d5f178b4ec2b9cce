package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sop-assistant/internal/versionstore"
	"sop-assistant/models"
	"sop-assistant/services"
	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

// KnowledgeService is satisfied by *services.KnowledgeBase.
type KnowledgeService interface {
	Current(ctx context.Context) ([]models.SOPSection, error)
	Snapshot(ctx context.Context) ([]models.SOPSection, error)
	Commit(ctx context.Context, sections []models.SOPSection, metadata map[string]any) (versionstore.CommitResult, error)
	ConfirmDraft(ctx context.Context, pending []models.PendingSOPSection, metadata map[string]any) (versionstore.CommitResult, error)
}

// VersionHistory is satisfied by *versionstore.Store.
type VersionHistory interface {
	Versions(ctx context.Context, limit int) ([]models.VersionSummary, error)
	Version(ctx context.Context, versionID string) (*models.Version, error)
}

type confirmDraftRequest struct {
	Sections []models.PendingSOPSection `json:"sections"`
	Metadata map[string]any             `json:"metadata,omitempty"`
}

// SetupSOPRoutes registers snapshot reads (public) and edits (admin).
func SetupSOPRoutes(api *gin.RouterGroup, adminOnly gin.HandlerFunc, kb KnowledgeService, history VersionHistory) {
	sop := api.Group("/sop")

	current := func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		sections, err := kb.Current(ctx)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, sections)
	}
	sop.GET("/current", current)
	sop.GET("/blocks", current)

	edit := sop.Group("", adminOnly)

	edit.POST("/commit", func(c *gin.Context) {
		var req models.CommitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "無效的 SOP 格式。", gin.H{"error": err.Error()})
			return
		}
		if req.Sections == nil {
			req.Sections = []models.SOPSection{}
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		result, err := kb.Commit(ctx, req.Sections, req.Metadata)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, commitResponse(result))
	})

	edit.POST("/drafts/confirm", func(c *gin.Context) {
		var req confirmDraftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "無效的草稿格式。", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		result, err := kb.ConfirmDraft(ctx, req.Sections, req.Metadata)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, commitResponse(result))
	})

	edit.GET("/versions", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		versions, err := history.Versions(ctx, limit)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"versions": versions, "count": len(versions)})
	})

	edit.GET("/versions/:id", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		version, err := history.Version(ctx, c.Param("id"))
		if errors.Is(err, versionstore.ErrNotFound) {
			utils.RespondWithNotFound(c, "找不到指定的版本。")
			return
		}
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, version)
	})

	edit.GET("/export", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		sections, err := kb.Snapshot(ctx)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		now := time.Now().UTC()
		stamp := now.Format("20060102-150405")
		switch c.DefaultQuery("format", "xlsx") {
		case "json":
			data, err := services.ExportJSON(sections, now)
			if err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="sop-%s.json"`, stamp))
			c.Data(http.StatusOK, "application/json", data)
		case "xlsx":
			data, err := services.ExportXLSX(sections)
			if err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="sop-%s.xlsx"`, stamp))
			c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		default:
			utils.RespondWithBadRequest(c, "不支援的匯出格式。", gin.H{"supported": []string{"xlsx", "json"}})
		}
	})
}

func commitResponse(r versionstore.CommitResult) models.CommitResponse {
	return models.CommitResponse{
		VersionID:   r.VersionID,
		Created:     r.Created,
		ContentHash: r.ContentHash,
		Success:     true,
	}
}
