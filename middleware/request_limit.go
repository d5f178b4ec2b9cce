package middleware

import (
	"net/http"

	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimit rejects bodies larger than maxSize. Bodies without a
// Content-Length are cut off at maxSize while being read.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"request_too_large",
				"檔案過大，請上傳較小的檔案。",
				gin.H{
					"max_size":    maxSize,
					"received":    c.Request.ContentLength,
					"max_size_mb": maxSize / (1024 * 1024),
				})
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
