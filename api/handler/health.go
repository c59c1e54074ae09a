package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports browser pool utilisation and degrades status when > 80% of
// pages are active. A nil browser (HTTP-only deployment) always
// reports healthy.
func Health(br *fetch.Browser, maxPages int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := 0
		if br != nil {
			active = br.ActivePages()
		}

		status := "healthy"
		if maxPages > 0 && active > int(float64(maxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActivePages: active,
			MaxPages:    maxPages,
			Version:     "0.1.0",
		})
	}
}
