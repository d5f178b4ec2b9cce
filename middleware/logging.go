package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"sop-assistant/internal/logger"

	"github.com/gin-gonic/gin"
)

// redactedFields never reach the logs; they carry documents, whole
// snapshots or conversation history.
var redactedFields = map[string]bool{
	"base64Data": true,
	"sections":   true,
	"history":    true,
	"passphrase": true,
}

const maxLoggedBody = 1 << 20

// RequestLogger logs one line per request. With logBodies set, JSON bodies
// are logged with sensitive and bulky fields redacted.
func RequestLogger(logBodies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var body string
		if logBodies && strings.HasPrefix(c.ContentType(), "application/json") && c.Request.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody+1))
			if err == nil {
				rest := c.Request.Body
				c.Request.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(raw), rest), rest}
				body = RedactBody(raw)
			}
		}

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}
		if body != "" {
			attrs = append(attrs, "body", body)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		logger.Info("HTTP request", attrs...)
	}
}

// RedactBody renders a JSON body with redacted fields replaced by a size
// marker. Non-object bodies are summarized by size only.
func RedactBody(raw []byte) string {
	if len(raw) > maxLoggedBody {
		return fmt.Sprintf("[body %d+ bytes]", maxLoggedBody)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Sprintf("[body %d bytes]", len(raw))
	}
	for k, v := range fields {
		if redactedFields[k] {
			fields[k] = json.RawMessage(fmt.Sprintf(`"[REDACTED %d bytes]"`, len(v)))
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("[body %d bytes]", len(raw))
	}
	return string(out)
}
