package utils

import (
	"errors"
	"net/http"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithDomainError maps err onto the error taxonomy. Unclassified
// errors are logged and reported with a generic message.
func RespondWithDomainError(c *gin.Context, err error) {
	status, code := apperr.HTTPStatus(err)

	var details interface{}
	var de *apperr.DomainError
	if errors.As(err, &de) {
		details = de.Details
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err)
	}
	RespondWithError(c, status, code, apperr.PublicMessage(err), details)
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "validation_failure", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithUnavailable sends a 503 for features that are not configured
func RespondWithUnavailable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, "service_unavailable", message, nil)
}
