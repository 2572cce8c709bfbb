package adminapi

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hydraresolve/hydraresolve/internal/adminapi/handlers"
	"github.com/hydraresolve/hydraresolve/internal/adminapi/middleware"
	"github.com/hydraresolve/hydraresolve/internal/config"
)

// RegisterRoutes wires the read-only admin endpoints. Unlike the teacher's
// internal/api, there is no config/zones/custom-dns/filtering CRUD surface
// here: configuration is TOML-owned, and mutation would require a write
// path back into that file that this spec does not call for.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api/v1")
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/stats", h.Stats)
	api.GET("/cache/answer", h.AnswerCache)
	api.GET("/cache/negative", h.NegativeCache)
	api.GET("/delegations", h.Delegations)
	api.GET("/cluster/status", h.ClusterStatus)

	export := r.Group("/api/v1/cluster")
	if cfg != nil && cfg.Cluster.SharedSecret != "" {
		export.Use(middleware.RequireClusterSecret(cfg.Cluster.SharedSecret))
	}
	export.GET("/export", h.ClusterExport)
}
