package routes

import (
	"context"
	"net/http"
	"time"

	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// SetupHealthRoutes registers /health. Failing checks are reported by name
// and turn the response into a 503.
func SetupHealthRoutes(router *gin.Engine, checks map[string]HealthCheck) {
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":    state,
			"checks":    results,
			"timestamp": time.Now().UTC(),
		})
	})
}
