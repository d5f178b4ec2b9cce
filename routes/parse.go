package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/queue"
	"sop-assistant/models"
	"sop-assistant/services"
	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

// DocumentParser is satisfied by *services.SOPParser.
type DocumentParser interface {
	Stage(ctx context.Context, mimeType string, data []byte) (string, error)
	ParseDocument(ctx context.Context, mimeType string, data []byte) (*models.PendingSOP, error)
	ImportPage(ctx context.Context, pageURL string, renderJS bool) (*models.PendingSOP, error)
}

// ParseJobs is satisfied by *queue.Client.
type ParseJobs interface {
	EnqueueParse(ctx context.Context, storagePath, mimeType string) (string, error)
	Status(ctx context.Context, taskID string) (*models.ParseTaskStatus, error)
}

// ParseLimits bounds uploads. Documents above SyncLimit are parsed in the
// background when a queue is available.
type ParseLimits struct {
	MaxFileSize int64
	SyncLimit   int64
}

// SetupParseRoutes registers document and page import. jobs may be nil,
// in which case every upload is parsed synchronously.
func SetupParseRoutes(api *gin.RouterGroup, adminOnly gin.HandlerFunc, parser DocumentParser, jobs ParseJobs, limits ParseLimits) {
	parse := api.Group("/parse-sop", adminOnly)

	parse.POST("", func(c *gin.Context) {
		mimeType, data, err := readUpload(c, limits.MaxFileSize)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		async := c.Query("async") == "true" || (limits.SyncLimit > 0 && int64(len(data)) > limits.SyncLimit)
		if async && jobs != nil {
			ctx, cancel := utils.WithLongTimeout(c.Request.Context())
			defer cancel()

			path, err := parser.Stage(ctx, mimeType, data)
			if err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
			taskID, err := jobs.EnqueueParse(ctx, path, mimeType)
			if err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, models.ParseTaskStatus{TaskID: taskID, State: "pending"})
			return
		}

		ctx, cancel := utils.WithParseTimeout(c.Request.Context())
		defer cancel()

		draft, err := parser.ParseDocument(ctx, mimeType, data)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, draft)
	})

	parse.POST("/url", func(c *gin.Context) {
		var req models.ParseURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "請提供網址。", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithParseTimeout(c.Request.Context())
		defer cancel()

		draft, err := parser.ImportPage(ctx, req.URL, req.RenderJS)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, draft)
	})

	parse.GET("/tasks/:id", func(c *gin.Context) {
		if jobs == nil {
			utils.RespondWithUnavailable(c, "背景處理未啟用。")
			return
		}

		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		status, err := jobs.Status(ctx, c.Param("id"))
		if errors.Is(err, queue.ErrTaskNotFound) {
			utils.RespondWithNotFound(c, "找不到指定的解析工作。")
			return
		}
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}

// readUpload accepts a multipart "file" field or a JSON body carrying a
// base64 data URL.
func readUpload(c *gin.Context, maxFileSize int64) (string, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return "", nil, apperr.Validation("請選擇要上傳的檔案。", nil)
		}
		if maxFileSize > 0 && header.Size > maxFileSize {
			return "", nil, apperr.Validation("檔案過大，請上傳較小的檔案。", nil)
		}
		file, err := header.Open()
		if err != nil {
			return "", nil, err
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}

		mimeType := c.PostForm("mimeType")
		if mimeType == "" {
			mimeType = header.Header.Get("Content-Type")
		}
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}
		logger.Debug("Multipart document received", "filename", header.Filename, "size", header.Size, "mime_type", mimeType)
		return mimeType, data, nil
	}

	var req models.ParseSOPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, apperr.Validation("請提供 base64Data。", nil)
	}
	mimeType, data, err := services.DecodeUpload(req.Base64Data, req.MimeType)
	if err != nil {
		return "", nil, err
	}
	if maxFileSize > 0 && int64(len(data)) > maxFileSize {
		return "", nil, apperr.Validation("檔案過大，請上傳較小的檔案。", nil)
	}
	return mimeType, data, nil
}
