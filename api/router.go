package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pinharvest/api/handler"
	"github.com/use-agent/pinharvest/api/middleware"
	"github.com/use-agent/pinharvest/cache"
	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/harvest"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(fetcher harvest.Fetcher, pages *cache.Cache, br *fetch.Browser, cfg *config.Config, log *slog.Logger, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(br, cfg.Browser.MaxPages, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Harvest
	protected.POST("/harvest", handler.PostHarvest(fetcher, pages, cfg, log))
	protected.GET("/harvest/:id", handler.GetHarvest())

	return r
}
